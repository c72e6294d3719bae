package warehouse

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwhload/internal/catalog"
	"dwhload/pkg/errors"
)

func testCatalog(t *testing.T, dialect string) *catalog.Catalog {
	t.Helper()
	d, ok := catalog.LookupDialect(dialect)
	require.True(t, ok)
	c, err := catalog.New(catalog.Config{
		LogData:     "s3://udacity-dend/log_data",
		SongData:    "s3://udacity-dend/song_data",
		LogJSONPath: "s3://udacity-dend/log_json_path.json",
		RoleARN:     "arn:aws:iam::123456789012:role/dwhRole",
	}, d)
	require.NoError(t, err)
	return c
}

func mockService(t *testing.T, dialect string, opts ...Option) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := NewService(Config{Dialect: dialect, Timeout: 5 * time.Second}, opts...)
	service.db = db
	service.connected = true
	return service, mock
}

type fakeRows struct {
	rows [][]any
	err  error
	seen []catalog.Table
}

func (f *fakeRows) Rows(spec catalog.CopySpec) ([][]any, error) {
	f.seen = append(f.seen, spec.Table)
	return f.rows, f.err
}

func TestNewService(t *testing.T) {
	config := Config{
		Dialect:  "redshift",
		Host:     "dwhcluster.example.us-west-2.redshift.amazonaws.com",
		Port:     5439,
		Database: "dwh",
		User:     "dwhuser",
		Password: "Passw0rd",
		Timeout:  30 * time.Second,
	}

	service := NewService(config)

	assert.NotNil(t, service)
	assert.Equal(t, config, service.config)
	assert.False(t, service.connected)
	assert.NotNil(t, service.rows)
	assert.NotNil(t, service.logger)
}

func TestExec(t *testing.T) {
	c := testCatalog(t, "redshift")
	create, _ := c.Create(catalog.DimUser)
	insert, _ := c.Insert(catalog.DimUser)
	copyEvents, _ := c.Copy(catalog.StagingEvents)

	tests := []struct {
		name      string
		stmt      catalog.Statement
		setupMock func(sqlmock.Sqlmock)
		wantCode  errors.ErrorCode
	}{
		{
			name: "successful create",
			stmt: create,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(create.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name: "successful insert",
			stmt: insert,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(insert.SQL)).WillReturnResult(sqlmock.NewResult(0, 96))
			},
		},
		{
			name: "permission denied",
			stmt: insert,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(insert.SQL)).
					WillReturnError(fmt.Errorf("pq: permission denied for relation dim_user"))
			},
			wantCode: errors.ErrCodeSQLPermission,
		},
		{
			name: "missing table",
			stmt: insert,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(insert.SQL)).
					WillReturnError(fmt.Errorf(`pq: relation "staging_events" does not exist`))
			},
			wantCode: errors.ErrCodeSQLObjectNotFound,
		},
		{
			name: "copy rejected",
			stmt: copyEvents,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(copyEvents.SQL)).
					WillReturnError(fmt.Errorf("pq: Load into table 'staging_events' failed. Check 'stl_load_errors' system table for details."))
			},
			wantCode: errors.ErrCodeCopyFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock := mockService(t, "redshift")
			tt.setupMock(mock)

			err := service.Exec(context.Background(), tt.stmt)

			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode), "got %s", errors.GetErrorCode(err))
				appErr, ok := errors.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, tt.stmt.Table.String(), appErr.Context["table"])
				assert.Equal(t, string(tt.stmt.Kind), appErr.Context["kind"])
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExec_CopySuggestsLoadErrors(t *testing.T) {
	c := testCatalog(t, "redshift")
	stmt, _ := c.Copy(catalog.StagingSongs)
	service, mock := mockService(t, "redshift")
	mock.ExpectExec(regexp.QuoteMeta(stmt.SQL)).WillReturnError(fmt.Errorf("pq: Load failed"))

	err := service.Exec(context.Background(), stmt)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stl_load_errors")
}

func TestExec_NotConnected(t *testing.T) {
	service := NewService(Config{Dialect: "redshift"})

	err := service.Exec(context.Background(), catalog.Statement{SQL: "SELECT 1;"})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConnectionFailed))
	assert.Contains(t, err.Error(), "Not connected to database")
}

func TestExec_PostgresCopyNeedsPGX(t *testing.T) {
	rows := &fakeRows{rows: [][]any{{"a"}}}
	service, mock := mockService(t, "postgres", WithRowSource(rows))
	stmt, _ := testCatalog(t, "postgres").Copy(catalog.StagingSongs)

	err := service.Exec(context.Background(), stmt)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDriverUnavailable))
	assert.Equal(t, []catalog.Table{catalog.StagingSongs}, rows.seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExec_PostgresCopySourceError(t *testing.T) {
	rows := &fakeRows{err: errors.New(errors.ErrCodeSourceNotFound, "No JSON files found")}
	service, _ := mockService(t, "postgres", WithRowSource(rows))
	stmt, _ := testCatalog(t, "postgres").Copy(catalog.StagingEvents)

	err := service.Exec(context.Background(), stmt)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceNotFound))
}

func TestExec_RedshiftCopyIsSentVerbatim(t *testing.T) {
	rows := &fakeRows{}
	service, mock := mockService(t, "redshift", WithRowSource(rows))
	stmt, _ := testCatalog(t, "redshift").Copy(catalog.StagingEvents)
	mock.ExpectExec(regexp.QuoteMeta(stmt.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, service.Exec(context.Background(), stmt))
	assert.Empty(t, rows.seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	service, mock := mockService(t, "redshift")
	stmt, _ := testCatalog(t, "redshift").Count(catalog.DimUser)

	mock.ExpectQuery(regexp.QuoteMeta(stmt.SQL)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(96)))

	n, err := service.Count(context.Background(), stmt)

	require.NoError(t, err)
	assert.Equal(t, int64(96), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount_Error(t *testing.T) {
	service, mock := mockService(t, "redshift")
	stmt, _ := testCatalog(t, "redshift").Count(catalog.DimTime)

	mock.ExpectQuery(regexp.QuoteMeta(stmt.SQL)).
		WillReturnError(fmt.Errorf(`pq: relation "dim_time" does not exist`))

	_, err := service.Count(context.Background(), stmt)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSQLObjectNotFound))
}

func TestPingAndClose(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	service := NewService(Config{Dialect: "redshift"})
	service.db = db
	service.connected = true

	mock.ExpectPing()
	require.NoError(t, service.Ping(context.Background()))

	mock.ExpectClose()
	require.NoError(t, service.Close())
	assert.False(t, service.connected)
	require.NoError(t, service.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_InvalidConfig(t *testing.T) {
	service := NewService(Config{Dialect: "redshift", Host: "localhost", Port: 5439})

	err := service.Connect(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigMissing))
	assert.False(t, service.connected)
}
