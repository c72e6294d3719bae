package catalog

import (
	"fmt"
	"strings"
)

// Postgres renders PostgreSQL SQL for local runs and tests. Distribution and
// sort keys have no PostgreSQL equivalent and are dropped. Bulk loads are
// COPY ... FROM STDIN statements; the driver streams rows read from the
// local counterpart of the configured source paths.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

// RequiredKeys omits the IAM role: local loads need no credentials.
func (Postgres) RequiredKeys() []string {
	return []string{KeyLogData, KeySongData, KeyLogJSONPath}
}

func (Postgres) CreateTable(def TableDef) string {
	return createPrefix(def) + " (\n" + renderColumns(def, postgresColumn) + "\n);"
}

func postgresColumn(c ColumnDef) string {
	parts := []string{c.Name, postgresType(c.Type)}
	if c.Identity {
		parts = append(parts, "GENERATED BY DEFAULT AS IDENTITY (START WITH 0 MINVALUE 0)")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	return strings.Join(parts, " ")
}

func postgresType(t ColumnType) string {
	if t == TypeFloat {
		return "DOUBLE PRECISION"
	}
	return string(t)
}

func (Postgres) Copy(spec CopySpec, _ Config) string {
	return fmt.Sprintf("COPY %s (%s) FROM STDIN;", spec.Table, strings.Join(spec.ColumnNames(), ", "))
}

func (Postgres) StartTime(expr string) string {
	return fmt.Sprintf("to_timestamp(to_char(%s, '%s'), '%s')", expr, timestampPattern, timestampPattern)
}

func (Postgres) Extract(part DatePart, expr string) string {
	if part == PartWeekday {
		return fmt.Sprintf("EXTRACT(dow FROM %s)", expr)
	}
	return fmt.Sprintf("EXTRACT(%s FROM %s)", part, expr)
}
