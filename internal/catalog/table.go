package catalog

// Table is the logical name of a warehouse table.
type Table string

const (
	StagingEvents Table = "staging_events"
	StagingSongs  Table = "staging_songs"
	FactSongplay  Table = "fact_songplay"
	DimUser       Table = "dim_user"
	DimSong       Table = "dim_song"
	DimArtist     Table = "dim_artist"
	DimTime       Table = "dim_time"
)

// Tables returns every table in create order.
func Tables() []Table {
	return []Table{StagingEvents, StagingSongs, FactSongplay, DimUser, DimSong, DimArtist, DimTime}
}

// IsStaging reports whether the table is a transient landing table.
func (t Table) IsStaging() bool {
	return t == StagingEvents || t == StagingSongs
}

func (t Table) String() string {
	return string(t)
}

// ParseTable resolves a table by its logical name.
func ParseTable(name string) (Table, bool) {
	for _, t := range Tables() {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// Kind classifies a statement by the load step it belongs to.
type Kind string

const (
	KindDrop   Kind = "drop"
	KindCreate Kind = "create"
	KindCopy   Kind = "copy"
	KindInsert Kind = "insert"
	KindCount  Kind = "count"
)

// Kinds returns the step kinds in the order a driver must execute them.
func Kinds() []Kind {
	return []Kind{KindDrop, KindCreate, KindCopy, KindInsert, KindCount}
}

// ParseKind resolves a step kind by name.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// Statement is one piece of SQL tagged with the table it acts on.
type Statement struct {
	Table Table
	Kind  Kind
	SQL   string

	// Copy is set on bulk-load statements. Drivers that cannot hand the SQL
	// to the warehouse verbatim (COPY ... FROM STDIN) stream rows from it.
	Copy *CopySpec
}

// CopySpec describes a bulk load of a staging table.
type CopySpec struct {
	Table   Table
	Columns []ColumnDef
	// Source is the object-storage prefix (or local path) to load.
	Source string
	// JSONPaths is "auto" or the location of a jsonpaths mapping document.
	JSONPaths string
	// TimeFormat is the warehouse TIMEFORMAT for TIMESTAMP columns, empty for auto.
	TimeFormat string
}

// ColumnNames returns the ordered column names of the load.
func (c CopySpec) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}
