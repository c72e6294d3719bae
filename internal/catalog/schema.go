package catalog

import "slices"

// ColumnType is an engine-neutral column type. Dialects map it to SQL.
type ColumnType string

const (
	TypeVarchar   ColumnType = "VARCHAR"
	TypeInteger   ColumnType = "INTEGER"
	TypeFloat     ColumnType = "FLOAT"
	TypeTimestamp ColumnType = "TIMESTAMP"
)

// ColumnDef describes a single column. Layout flags (DistKey, SortKey) carry
// the physical intent; dialects without distribution or sort keys translate
// or drop them.
type ColumnDef struct {
	Name       string
	Type       ColumnType
	NotNull    bool
	PrimaryKey bool
	// Identity marks a surrogate key generated by the warehouse, seeded at 0.
	Identity bool
	DistKey  bool
	SortKey  bool
}

// TableDef is the full definition of one warehouse table.
type TableDef struct {
	Table   Table
	Columns []ColumnDef
	// DistStyleAll replicates the table to every node.
	DistStyleAll bool
	// IfNotExists is false for staging tables, which are always dropped first.
	IfNotExists bool
}

// SortKey returns the sort key column name, if any.
func (d TableDef) SortKey() string {
	for _, c := range d.Columns {
		if c.SortKey {
			return c.Name
		}
	}
	return ""
}

// DistKey returns the distribution key column name, if any.
func (d TableDef) DistKey() string {
	for _, c := range d.Columns {
		if c.DistKey {
			return c.Name
		}
	}
	return ""
}

// InsertColumns returns the columns a load writes, skipping identity columns.
func (d TableDef) InsertColumns() []ColumnDef {
	cols := make([]ColumnDef, 0, len(d.Columns))
	for _, c := range d.Columns {
		if !c.Identity {
			cols = append(cols, c)
		}
	}
	return cols
}

func col(name string, typ ColumnType) ColumnDef {
	return ColumnDef{Name: name, Type: typ}
}

var stagingEventsDef = TableDef{
	Table:        StagingEvents,
	DistStyleAll: true,
	Columns: []ColumnDef{
		col("artist", TypeVarchar),
		col("auth", TypeVarchar),
		col("firstName", TypeVarchar),
		col("gender", TypeVarchar),
		col("itemInSession", TypeInteger),
		col("lastName", TypeVarchar),
		col("length", TypeFloat),
		col("level", TypeVarchar),
		col("location", TypeVarchar),
		col("method", TypeVarchar),
		col("page", TypeVarchar),
		col("registration", TypeFloat),
		col("sessionId", TypeInteger),
		col("song", TypeVarchar),
		col("status", TypeInteger),
		col("ts", TypeTimestamp),
		col("userAgent", TypeVarchar),
		col("userId", TypeInteger),
	},
}

var stagingSongsDef = TableDef{
	Table:        StagingSongs,
	DistStyleAll: true,
	Columns: []ColumnDef{
		col("num_songs", TypeInteger),
		col("artist_id", TypeVarchar),
		col("artist_latitude", TypeFloat),
		col("artist_longitude", TypeFloat),
		col("artist_location", TypeVarchar),
		col("artist_name", TypeVarchar),
		col("song_id", TypeVarchar),
		col("title", TypeVarchar),
		col("duration", TypeFloat),
		col("year", TypeInteger),
	},
}

var factSongplayDef = TableDef{
	Table:       FactSongplay,
	IfNotExists: true,
	Columns: []ColumnDef{
		{Name: "songplay_id", Type: TypeInteger, Identity: true, PrimaryKey: true},
		{Name: "start_time", Type: TypeTimestamp, NotNull: true, SortKey: true, DistKey: true},
		{Name: "user_id", Type: TypeInteger, NotNull: true},
		col("level", TypeVarchar),
		{Name: "song_id", Type: TypeVarchar, NotNull: true},
		{Name: "artist_id", Type: TypeVarchar, NotNull: true},
		col("session_id", TypeInteger),
		col("location", TypeVarchar),
		col("user_agent", TypeVarchar),
	},
}

var dimUserDef = TableDef{
	Table:       DimUser,
	IfNotExists: true,
	Columns: []ColumnDef{
		{Name: "user_id", Type: TypeInteger, PrimaryKey: true, DistKey: true},
		col("first_name", TypeVarchar),
		col("last_name", TypeVarchar),
		col("gender", TypeVarchar),
		col("level", TypeVarchar),
	},
}

var dimSongDef = TableDef{
	Table:       DimSong,
	IfNotExists: true,
	Columns: []ColumnDef{
		{Name: "song_id", Type: TypeVarchar, PrimaryKey: true, DistKey: true},
		col("title", TypeVarchar),
		col("artist_id", TypeVarchar),
		col("year", TypeInteger),
		col("duration", TypeFloat),
	},
}

var dimArtistDef = TableDef{
	Table:       DimArtist,
	IfNotExists: true,
	Columns: []ColumnDef{
		{Name: "artist_id", Type: TypeVarchar, PrimaryKey: true, DistKey: true},
		col("name", TypeVarchar),
		col("location", TypeVarchar),
		col("latitude", TypeFloat),
		col("longitude", TypeFloat),
	},
}

var dimTimeDef = TableDef{
	Table:       DimTime,
	IfNotExists: true,
	Columns: []ColumnDef{
		{Name: "start_time", Type: TypeTimestamp, PrimaryKey: true, SortKey: true, DistKey: true},
		col("hour", TypeInteger),
		col("day", TypeInteger),
		col("week", TypeInteger),
		col("month", TypeInteger),
		col("year", TypeInteger),
		col("weekday", TypeInteger),
	},
}

// Schema returns the definitions of all seven tables in create order.
func Schema() []TableDef {
	defs := []TableDef{
		stagingEventsDef,
		stagingSongsDef,
		factSongplayDef,
		dimUserDef,
		dimSongDef,
		dimArtistDef,
		dimTimeDef,
	}
	for i := range defs {
		defs[i].Columns = slices.Clone(defs[i].Columns)
	}
	return defs
}

// Definition returns the definition of a single table.
func Definition(t Table) (TableDef, bool) {
	for _, def := range Schema() {
		if def.Table == t {
			return def, true
		}
	}
	return TableDef{}, false
}
