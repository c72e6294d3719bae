// Package warehouse executes catalog statements against Redshift, PostgreSQL
// or Snowflake through database/sql.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"dwhload/internal/catalog"
	"dwhload/internal/staging"
	"dwhload/pkg/errors"
)

// RowSource produces the rows of a staging load for drivers that stream
// COPY data from the client.
type RowSource interface {
	Rows(spec catalog.CopySpec) ([][]any, error)
}

// Service provides warehouse database operations
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
	logger    *zap.Logger
	rows      RowSource
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRowSource replaces the local staging reader used for COPY FROM STDIN.
func WithRowSource(rows RowSource) Option {
	return func(s *Service) { s.rows = rows }
}

// NewService creates a new warehouse service
func NewService(config Config, opts ...Option) *Service {
	s := &Service{config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.rows == nil {
		s.rows = staging.NewReader(s.logger)
	}
	return s
}

// Connect opens the connection pool and verifies the warehouse is reachable.
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}
	if err := ValidateConfig(s.config); err != nil {
		return err
	}

	driver, err := s.config.DriverName()
	if err != nil {
		return err
	}
	dsn, err := s.config.DSN()
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return errors.ConnectionError("Failed to open warehouse connection", err).
			WithContext("driver", driver)
	}

	// Statements run one at a time; a small pool is enough.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()

		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "authentication") || strings.Contains(msg, "password") {
			return errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Authentication failed").
				WithSeverity(errors.SeverityCritical).
				WithContext("user", s.config.User).
				WithSuggestions(
					"Verify CLUSTER.DB_USER and CLUSTER.DB_PASSWORD",
					"Run 'dwhload auth set-password' to store the password in the keyring",
				)
		}
		if pingCtx.Err() != nil {
			return errors.Wrap(err, errors.ErrCodeConnectionTimeout, "Timed out connecting to the warehouse").
				WithSeverity(errors.SeverityCritical).
				WithContext("host", s.endpoint())
		}
		return errors.ConnectionError("Failed to connect to the warehouse", err).
			WithContext("host", s.endpoint())
	}

	s.logger.Info("Connected to warehouse",
		zap.String("dialect", s.dialect()),
		zap.String("driver", driver),
		zap.String("host", s.endpoint()),
		zap.String("database", s.config.Database))

	s.db = db
	s.connected = true
	return nil
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// Ping checks the connection is alive.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	ctx, cancel := s.getContext(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Exec runs one catalog statement. PostgreSQL staging loads are streamed
// from local files with the COPY protocol; everything else is sent verbatim.
func (s *Service) Exec(ctx context.Context, stmt catalog.Statement) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := s.getContext(ctx)
	defer cancel()

	start := time.Now()
	if stmt.Copy != nil && s.dialect() == "postgres" {
		n, err := s.copyFromStdin(ctx, stmt)
		if err != nil {
			return err
		}
		s.logger.Debug("Copied rows",
			zap.String("table", stmt.Table.String()),
			zap.Int64("rows", n),
			zap.Duration("duration", time.Since(start)))
		return nil
	}

	result, err := s.db.ExecContext(ctx, stmt.SQL)
	if err != nil {
		return s.statementError(stmt, err)
	}

	fields := []zap.Field{
		zap.String("kind", string(stmt.Kind)),
		zap.String("table", stmt.Table.String()),
		zap.Duration("duration", time.Since(start)),
	}
	if n, err := result.RowsAffected(); err == nil && stmt.Kind == catalog.KindInsert {
		fields = append(fields, zap.Int64("rows", n))
	}
	s.logger.Debug("Executed statement", fields...)
	return nil
}

// Count runs a row-count statement and returns its single value.
func (s *Service) Count(ctx context.Context, stmt catalog.Statement) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, stmt.SQL).Scan(&n); err != nil {
		return 0, s.statementError(stmt, err)
	}
	return n, nil
}

// GetDB returns the underlying database connection
func (s *Service) GetDB() *sql.DB {
	return s.db
}

// copyFromStdin loads a staging table from local JSON through pgx CopyFrom.
func (s *Service) copyFromStdin(ctx context.Context, stmt catalog.Statement) (int64, error) {
	spec := *stmt.Copy
	rows, err := s.rows.Rows(spec)
	if err != nil {
		return 0, err
	}

	// Unquoted identifiers in the DDL fold to lower case; CopyFrom quotes them.
	columns := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		columns[i] = strings.ToLower(c.Name)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, errors.ConnectionError("Failed to acquire a connection", err)
	}
	defer conn.Close()

	var copied int64
	err = conn.Raw(func(driverConn any) error {
		pgxConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errors.New(errors.ErrCodeDriverUnavailable,
				fmt.Sprintf("COPY FROM STDIN needs the pgx driver, got %T", driverConn)).
				WithContext("table", spec.Table.String())
		}
		n, err := pgxConn.Conn().CopyFrom(ctx,
			pgx.Identifier{strings.ToLower(spec.Table.String())},
			columns,
			pgx.CopyFromRows(rows))
		copied = n
		return err
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeDriverUnavailable) {
			return 0, err
		}
		return 0, s.statementError(stmt, err)
	}
	if copied != int64(len(rows)) {
		return copied, errors.New(errors.ErrCodeCopyFailed,
			fmt.Sprintf("Copied %d of %d rows into %s", copied, len(rows), spec.Table))
	}
	return copied, nil
}

func (s *Service) statementError(stmt catalog.Statement, err error) error {
	sqlErr := errors.SQLError(
		fmt.Sprintf("Failed to %s %s", stmt.Kind, stmt.Table),
		stmt.SQL,
		err,
	).WithContext("table", stmt.Table.String()).
		WithContext("kind", string(stmt.Kind))

	if stmt.Kind == catalog.KindCopy && sqlErr.Code == errors.ErrCodeSQLExecution {
		sqlErr.Code = errors.ErrCodeCopyFailed
		if s.dialect() == "redshift" {
			_ = sqlErr.WithSuggestions("Query stl_load_errors for the rejected rows")
		}
	}
	return sqlErr
}

func (s *Service) checkConnected() error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}
	return nil
}

func (s *Service) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(parent, timeout)
}

func (s *Service) dialect() string {
	if s.config.Dialect == "" {
		return catalog.DefaultDialect
	}
	return s.config.Dialect
}

func (s *Service) endpoint() string {
	if s.dialect() == "snowflake" {
		return s.config.Account
	}
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
