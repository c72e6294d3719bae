// Package catalog builds the SQL that loads the song-play star schema: drops,
// creates, bulk loads of the two staging tables, the inserts that derive the
// fact and dimension tables, and per-table row counts.
//
// A Catalog is rendered once from an explicit Config and a Dialect and is
// immutable afterwards, so it may be shared freely. Statements are tagged with
// the table and step they belong to; drivers look them up by name rather than
// by position.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"

	"dwhload/pkg/errors"
)

// DefaultRegion is the S3 region of the source buckets when none is configured.
const DefaultRegion = "us-west-2"

// Config carries the values substituted into the bulk-load statements.
type Config struct {
	LogData     string // S3.LOG_DATA
	SongData    string // S3.SONG_DATA
	LogJSONPath string // S3.LOG_JSONPATH
	RoleARN     string // IAM_ROLE.ARN
	Region      string // S3.REGION, optional
}

func (c Config) region() string {
	if c.Region == "" {
		return DefaultRegion
	}
	return c.Region
}

func (c Config) value(key string) string {
	switch key {
	case KeyLogData:
		return c.LogData
	case KeySongData:
		return c.SongData
	case KeyLogJSONPath:
		return c.LogJSONPath
	case KeyRoleARN:
		return c.RoleARN
	}
	return ""
}

// normalized strips whitespace and the quotes dwh.cfg values are commonly
// written with, e.g. LOG_DATA='s3://udacity-dend/log_data'.
func (c Config) normalized() Config {
	return Config{
		LogData:     unquote(c.LogData),
		SongData:    unquote(c.SongData),
		LogJSONPath: unquote(c.LogJSONPath),
		RoleARN:     unquote(c.RoleARN),
		Region:      unquote(c.Region),
	}
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// Validate checks that every key the dialect needs is present and well formed.
func (c Config) Validate(d Dialect) error {
	for _, key := range d.RequiredKeys() {
		if c.value(key) == "" {
			return errors.ConfigMissing(key)
		}
	}
	if c.RoleARN != "" {
		if err := validateRoleARN(c.RoleARN); err != nil {
			return err
		}
	}
	return nil
}

func validateRoleARN(s string) error {
	parsed, err := arn.Parse(s)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "IAM role is not a valid ARN").
			WithSeverity(errors.SeverityCritical).
			WithContext("field", KeyRoleARN).
			WithSuggestions("Use the form arn:aws:iam::<account-id>:role/<role-name>")
	}
	if parsed.Service != "iam" || !strings.HasPrefix(parsed.Resource, "role/") {
		return errors.ConfigError(
			fmt.Sprintf("ARN %s does not name an IAM role", s), KeyRoleARN)
	}
	return nil
}

// Catalog is the rendered, immutable set of load statements.
type Catalog struct {
	dialect Dialect
	config  Config
	steps   map[Kind][]Statement
}

// New validates cfg and renders every statement for dialect d. It fails
// before any SQL exists when a required key is missing or malformed.
func New(cfg Config, d Dialect) (*Catalog, error) {
	if d == nil {
		return nil, errors.New(errors.ErrCodeUnknownDialect, "No SQL dialect selected")
	}
	cfg = cfg.normalized()
	if err := cfg.Validate(d); err != nil {
		return nil, err
	}

	c := &Catalog{
		dialect: d,
		config:  cfg,
		steps:   make(map[Kind][]Statement, len(Kinds())),
	}

	for _, def := range Schema() {
		c.add(def.Table, KindDrop, fmt.Sprintf("DROP TABLE IF EXISTS %s;", def.Table))
		c.add(def.Table, KindCreate, d.CreateTable(def))
	}
	for _, spec := range copySpecs(cfg) {
		spec := spec
		c.steps[KindCopy] = append(c.steps[KindCopy], Statement{
			Table: spec.Table,
			Kind:  KindCopy,
			SQL:   d.Copy(spec, cfg),
			Copy:  &spec,
		})
	}
	for _, ins := range insertStatements(d) {
		c.add(ins.table, KindInsert, ins.sql)
	}
	for _, t := range Tables() {
		c.add(t, KindCount, fmt.Sprintf("SELECT COUNT(*) FROM %s;", t))
	}

	return c, nil
}

func (c *Catalog) add(t Table, k Kind, sql string) {
	c.steps[k] = append(c.steps[k], Statement{Table: t, Kind: k, SQL: sql})
}

func copySpecs(cfg Config) []CopySpec {
	return []CopySpec{
		{
			Table:      StagingEvents,
			Columns:    slices.Clone(stagingEventsDef.Columns),
			Source:     cfg.LogData,
			JSONPaths:  cfg.LogJSONPath,
			TimeFormat: "epochmillisecs",
		},
		{
			Table:     StagingSongs,
			Columns:   slices.Clone(stagingSongsDef.Columns),
			Source:    cfg.SongData,
			JSONPaths: "auto",
		},
	}
}

// Dialect returns the dialect the catalog was rendered for.
func (c *Catalog) Dialect() Dialect { return c.dialect }

// Config returns the normalized configuration the catalog was rendered from.
func (c *Catalog) Config() Config { return c.config }

// Step returns the ordered statements of one step.
func (c *Catalog) Step(k Kind) []Statement {
	return append([]Statement(nil), c.steps[k]...)
}

// Drops returns DROP TABLE IF EXISTS for all seven tables.
func (c *Catalog) Drops() []Statement { return c.Step(KindDrop) }

// Creates returns the CREATE TABLE statements in create order.
func (c *Catalog) Creates() []Statement { return c.Step(KindCreate) }

// Copies returns the staging bulk loads, events first.
func (c *Catalog) Copies() []Statement { return c.Step(KindCopy) }

// Inserts returns the fact and dimension loads in the order songplay, user,
// song, artist, time. They read the staging tables and must run after Copies.
func (c *Catalog) Inserts() []Statement { return c.Step(KindInsert) }

// Counts returns one SELECT COUNT(*) per table.
func (c *Catalog) Counts() []Statement { return c.Step(KindCount) }

// Lookup returns the statement of kind k acting on table t.
func (c *Catalog) Lookup(k Kind, t Table) (Statement, bool) {
	for _, s := range c.steps[k] {
		if s.Table == t {
			return s, true
		}
	}
	return Statement{}, false
}

func (c *Catalog) Drop(t Table) (Statement, bool)   { return c.Lookup(KindDrop, t) }
func (c *Catalog) Create(t Table) (Statement, bool) { return c.Lookup(KindCreate, t) }
func (c *Catalog) Copy(t Table) (Statement, bool)   { return c.Lookup(KindCopy, t) }
func (c *Catalog) Insert(t Table) (Statement, bool) { return c.Lookup(KindInsert, t) }
func (c *Catalog) Count(t Table) (Statement, bool)  { return c.Lookup(KindCount, t) }
