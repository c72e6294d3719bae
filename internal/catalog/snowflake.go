package catalog

import (
	"fmt"
	"strings"
)

// Snowflake renders Snowflake SQL. Sort intent becomes a clustering key;
// Snowflake manages distribution itself, so distribution hints are dropped.
// JSON is matched to columns by name, so S3.LOG_JSONPATH is not required.
type Snowflake struct{}

func (Snowflake) Name() string { return "snowflake" }

func (Snowflake) RequiredKeys() []string {
	return []string{KeyLogData, KeySongData, KeyRoleARN}
}

func (Snowflake) CreateTable(def TableDef) string {
	var b strings.Builder
	b.WriteString(createPrefix(def))
	b.WriteString(" (\n")
	b.WriteString(renderColumns(def, snowflakeColumn))
	b.WriteString("\n)")
	if key := def.SortKey(); key != "" {
		fmt.Fprintf(&b, "\nCLUSTER BY (%s)", key)
	}
	b.WriteString(";")
	return b.String()
}

func snowflakeColumn(c ColumnDef) string {
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
	return strings.Join(parts, " ")
}

func (Snowflake) Copy(spec CopySpec, cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COPY INTO %s\n", spec.Table)
	fmt.Fprintf(&b, "FROM %s\n", quoteLiteral(spec.Source))
	fmt.Fprintf(&b, "CREDENTIALS = (AWS_ROLE = %s)\n", quoteLiteral(cfg.RoleARN))
	// blank strings load as NULL, as with BLANKSASNULL EMPTYASNULL on Redshift
	b.WriteString("FILE_FORMAT = (TYPE = JSON NULL_IF = (''))\n")
	b.WriteString("MATCH_BY_COLUMN_NAME = CASE_INSENSITIVE\n")
	b.WriteString("TRUNCATECOLUMNS = TRUE;")
	return b.String()
}

func (Snowflake) StartTime(expr string) string {
	return fmt.Sprintf("TO_TIMESTAMP(TO_CHAR(%s, '%s'), '%s')", expr, timestampPattern, timestampPattern)
}

func (Snowflake) Extract(part DatePart, expr string) string {
	if part == PartWeekday {
		return fmt.Sprintf("EXTRACT(dayofweek FROM %s)", expr)
	}
	return fmt.Sprintf("EXTRACT(%s FROM %s)", part, expr)
}
