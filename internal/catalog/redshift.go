package catalog

import (
	"fmt"
	"strings"
)

// Redshift renders Amazon Redshift SQL, including distribution and sort keys
// and COPY from S3 with an IAM role.
type Redshift struct{}

func (Redshift) Name() string { return "redshift" }

func (Redshift) RequiredKeys() []string {
	return []string{KeyLogData, KeySongData, KeyLogJSONPath, KeyRoleARN}
}

func (Redshift) CreateTable(def TableDef) string {
	var b strings.Builder
	b.WriteString(createPrefix(def))
	b.WriteString(" (\n")
	b.WriteString(renderColumns(def, redshiftColumn))
	b.WriteString("\n)")
	if def.DistStyleAll {
		b.WriteString("\nDISTSTYLE ALL")
	}
	b.WriteString(";")
	return b.String()
}

func redshiftColumn(c ColumnDef) string {
	parts := []string{c.Name, string(c.Type)}
	if c.Identity {
		parts = append(parts, "IDENTITY(0,1)")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.SortKey {
		parts = append(parts, "SORTKEY")
	}
	if c.DistKey {
		parts = append(parts, "DISTKEY")
	}
	return strings.Join(parts, " ")
}

func (Redshift) Copy(spec CopySpec, cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COPY %s FROM %s\n", spec.Table, quoteLiteral(spec.Source))
	fmt.Fprintf(&b, "CREDENTIALS %s\n", quoteLiteral("aws_iam_role="+cfg.RoleARN))
	fmt.Fprintf(&b, "REGION %s FORMAT AS JSON %s\n", quoteLiteral(cfg.region()), quoteLiteral(spec.JSONPaths))
	if spec.TimeFormat != "" {
		fmt.Fprintf(&b, "TIMEFORMAT AS %s\n", quoteLiteral(spec.TimeFormat))
	}
	b.WriteString("TRUNCATECOLUMNS BLANKSASNULL EMPTYASNULL;")
	return b.String()
}

func (Redshift) StartTime(expr string) string {
	return fmt.Sprintf("to_timestamp(to_char(%s, '%s'), '%s')", expr, timestampPattern, timestampPattern)
}

func (Redshift) Extract(part DatePart, expr string) string {
	return fmt.Sprintf("EXTRACT(%s FROM %s)", part, expr)
}
