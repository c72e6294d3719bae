package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect renders engine-specific SQL. Statements that are portable across
// engines (drops, counts, most of the inserts) are built by the catalog;
// a dialect only supplies the parts that differ.
type Dialect interface {
	// Name is the identifier used in configuration and on the command line.
	Name() string
	// CreateTable renders the CREATE TABLE statement for def.
	CreateTable(def TableDef) string
	// Copy renders the bulk-load statement for spec.
	Copy(spec CopySpec, cfg Config) string
	// StartTime wraps a timestamp expression so that sub-second precision is
	// dropped by a to_char/to_timestamp round trip.
	StartTime(expr string) string
	// Extract renders the extraction of a calendar field from expr.
	Extract(part DatePart, expr string) string
	// RequiredKeys lists the configuration keys the dialect cannot build without.
	RequiredKeys() []string
}

// DatePart is a calendar field of dim_time.
type DatePart string

const (
	PartHour    DatePart = "hour"
	PartDay     DatePart = "day"
	PartWeek    DatePart = "week"
	PartMonth   DatePart = "month"
	PartYear    DatePart = "year"
	PartWeekday DatePart = "weekday"
)

// Configuration keys as they appear in dwh.cfg.
const (
	KeyLogData     = "S3.LOG_DATA"
	KeySongData    = "S3.SONG_DATA"
	KeyLogJSONPath = "S3.LOG_JSONPATH"
	KeyRoleARN     = "IAM_ROLE.ARN"
)

// DefaultDialect is used when configuration does not name one.
const DefaultDialect = "redshift"

// timestampPattern is the to_char/to_timestamp pattern of the start_time round trip.
const timestampPattern = "YYYY-MM-DD HH24:MI:SS"

var dialects = map[string]Dialect{}

// Register makes a dialect available by name. It panics on duplicates.
func Register(d Dialect) {
	name := strings.ToLower(d.Name())
	if _, dup := dialects[name]; dup {
		panic(fmt.Sprintf("catalog: dialect %q registered twice", name))
	}
	dialects[name] = d
}

// LookupDialect returns the dialect registered under name. An empty name
// selects DefaultDialect.
func LookupDialect(name string) (Dialect, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultDialect
	}
	d, ok := dialects[name]
	return d, ok
}

// Dialects returns the names of all registered dialects, sorted.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(Redshift{})
	Register(Postgres{})
	Register(Snowflake{})
}

// literalEscaper escapes values for Redshift and Snowflake string literals,
// where a backslash escapes the following character.
var literalEscaper = strings.NewReplacer(`\`, `\\`, "'", "''")

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}

// renderColumns writes one column per line using the dialect's column renderer.
func renderColumns(def TableDef, render func(ColumnDef) string) string {
	lines := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		lines[i] = "    " + render(c)
	}
	return strings.Join(lines, ",\n")
}

func createPrefix(def TableDef) string {
	if def.IfNotExists {
		return "CREATE TABLE IF NOT EXISTS " + def.Table.String()
	}
	return "CREATE TABLE " + def.Table.String()
}
