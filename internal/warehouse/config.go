package warehouse

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"dwhload/pkg/errors"
)

// Driver names registered with database/sql.
const (
	DriverPQ        = "postgres"
	DriverPGX       = "pgx"
	DriverSnowflake = "snowflake"
)

// DefaultTimeout bounds a single statement when Config.Timeout is unset.
// Bulk loads of the full song dataset take minutes, not seconds.
const DefaultTimeout = 30 * time.Minute

// Config holds warehouse connection configuration
type Config struct {
	Dialect  string
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// Snowflake only
	Account   string
	Warehouse string
	Role      string

	Schema  string
	SSLMode string
	Timeout time.Duration
}

// DriverName returns the database/sql driver for the dialect.
func (c Config) DriverName() (string, error) {
	switch c.Dialect {
	case "", "redshift":
		return DriverPQ, nil
	case "postgres":
		return DriverPGX, nil
	case "snowflake":
		return DriverSnowflake, nil
	}
	return "", errors.New(errors.ErrCodeUnknownDialect,
		fmt.Sprintf("No driver for dialect %q", c.Dialect))
}

// DSN renders the connection string for the dialect's driver.
func (c Config) DSN() (string, error) {
	switch c.Dialect {
	case "", "redshift", "postgres":
		return c.postgresDSN(), nil
	case "snowflake":
		dsn, err := gosnowflake.DSN(&gosnowflake.Config{
			Account:      c.Account,
			User:         c.User,
			Password:     c.Password,
			Database:     c.Database,
			Schema:       c.Schema,
			Warehouse:    c.Warehouse,
			Role:         c.Role,
			LoginTimeout: 30 * time.Second,
		})
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid Snowflake connection settings")
		}
		return dsn, nil
	}
	return "", errors.New(errors.ErrCodeUnknownDialect,
		fmt.Sprintf("No driver for dialect %q", c.Dialect))
}

func (c Config) postgresDSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
		if c.Dialect == "postgres" {
			sslMode = "prefer"
		}
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", "dwhload")
	if c.Dialect == "postgres" {
		// to_timestamp yields timestamptz; start_time must not shift across DST
		q.Set("timezone", "UTC")
	}
	if c.Schema != "" {
		q.Set("search_path", c.Schema)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Redacted returns the DSN with the password masked, for logs.
func (c Config) Redacted() string {
	masked := c
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	dsn, err := masked.DSN()
	if err != nil {
		return ""
	}
	return dsn
}

// ValidateConfig validates the connection settings required by the dialect
func ValidateConfig(config Config) error {
	if _, err := config.DriverName(); err != nil {
		return err
	}

	var required []struct{ key, value string }
	switch config.Dialect {
	case "snowflake":
		required = []struct{ key, value string }{
			{"WAREHOUSE.ACCOUNT", config.Account},
			{"CLUSTER.DB_USER", config.User},
			{"CLUSTER.DB_PASSWORD", config.Password},
			{"CLUSTER.DB_NAME", config.Database},
			{"WAREHOUSE.WAREHOUSE", config.Warehouse},
		}
	default:
		required = []struct{ key, value string }{
			{"CLUSTER.HOST", config.Host},
			{"CLUSTER.DB_NAME", config.Database},
			{"CLUSTER.DB_USER", config.User},
		}
	}
	if config.Dialect == "" || config.Dialect == "redshift" {
		required = append(required, struct{ key, value string }{"CLUSTER.DB_PASSWORD", config.Password})
	}
	for _, r := range required {
		if r.value == "" {
			return errors.ConfigMissing(r.key)
		}
	}

	if config.Dialect != "snowflake" && (config.Port <= 0 || config.Port > 65535) {
		return errors.ConfigError(fmt.Sprintf("Port %d is out of range", config.Port), "CLUSTER.DB_PORT")
	}
	if config.Timeout < 0 {
		return errors.ConfigError("Timeout must not be negative", "WAREHOUSE.TIMEOUT")
	}
	return nil
}
