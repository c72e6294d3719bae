package pipeline

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dwhload/internal/catalog"
	"dwhload/internal/warehouse"
)

const testdata = "../staging/testdata"

// startWarehouse runs a disposable PostgreSQL and returns a connected service.
func startWarehouse(t *testing.T) *warehouse.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("dwh"),
		postgres.WithUsername("dwhuser"),
		postgres.WithPassword("Passw0rd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	service := warehouse.NewService(warehouse.Config{
		Dialect:  "postgres",
		Host:     host,
		Port:     port.Int(),
		Database: "dwh",
		User:     "dwhuser",
		Password: "Passw0rd",
		SSLMode:  "disable",
		Timeout:  time.Minute,
	})
	require.NoError(t, service.Connect(ctx))
	t.Cleanup(func() { _ = service.Close() })
	return service
}

func localCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	d, ok := catalog.LookupDialect("postgres")
	require.True(t, ok)
	c, err := catalog.New(catalog.Config{
		LogData:     testdata + "/log_data",
		SongData:    testdata + "/song_data",
		LogJSONPath: testdata + "/log_json_path.json",
	}, d)
	require.NoError(t, err)
	return c
}

func queryInt(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.QueryRowContext(context.Background(), query).Scan(&n))
	return n
}

func tableCount(t *testing.T, db *sql.DB) int64 {
	return queryInt(t, db, `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name IN
		('staging_events', 'staging_songs', 'fact_songplay', 'dim_user', 'dim_song', 'dim_artist', 'dim_time')`)
}

func TestPostgres_DropCreateDrop(t *testing.T) {
	service := startWarehouse(t)
	runner := New(service, localCatalog(t), nil, nil)
	ctx := context.Background()

	_, err := runner.Run(ctx, CreateTables...)
	require.NoError(t, err)
	assert.Equal(t, int64(7), tableCount(t, service.GetDB()))

	// Creating twice is safe: drops run first.
	_, err = runner.Run(ctx, CreateTables...)
	require.NoError(t, err)

	_, err = runner.Run(ctx, catalog.KindDrop)
	require.NoError(t, err)
	assert.Equal(t, int64(0), tableCount(t, service.GetDB()))

	// Dropping what is not there is not an error.
	_, err = runner.Run(ctx, catalog.KindDrop)
	require.NoError(t, err)
}

func TestPostgres_FullRun(t *testing.T) {
	service := startWarehouse(t)
	db := service.GetDB()

	report, err := New(service, localCatalog(t), nil, nil).Run(context.Background(), Full...)
	require.NoError(t, err)

	counts := map[catalog.Table]int64{}
	for _, c := range report.Counts {
		counts[c.Table] = c.Rows
	}
	assert.Equal(t, int64(3), counts[catalog.StagingEvents])
	assert.Equal(t, int64(2), counts[catalog.StagingSongs])
	assert.Equal(t, int64(2), counts[catalog.FactSongplay])
	assert.LessOrEqual(t, counts[catalog.DimUser], int64(2))
	assert.Equal(t, int64(2), counts[catalog.DimSong])
	assert.Equal(t, int64(2), counts[catalog.DimArtist])
	assert.LessOrEqual(t, counts[catalog.DimTime], int64(2))

	t.Run("blank userId is loaded as NULL", func(t *testing.T) {
		assert.Equal(t, int64(1), queryInt(t, db, `SELECT COUNT(*) FROM staging_events WHERE userId IS NULL`))
	})

	t.Run("dim_user has one row per user and no NULL keys", func(t *testing.T) {
		assert.Equal(t, int64(0), queryInt(t, db, `SELECT COUNT(*) FROM dim_user WHERE user_id IS NULL`))
		assert.Equal(t, int64(0), queryInt(t, db, `SELECT COUNT(*) - COUNT(DISTINCT user_id) FROM dim_user`))
	})

	t.Run("only NextSong events become songplays", func(t *testing.T) {
		assert.Equal(t, int64(0), queryInt(t, db, `SELECT COUNT(*) FROM fact_songplay WHERE session_id = 52`))
		assert.Equal(t, int64(2), queryInt(t, db, `SELECT COUNT(DISTINCT session_id) FROM fact_songplay`))
	})

	t.Run("every songplay has a dim_time row", func(t *testing.T) {
		assert.Equal(t, int64(0), queryInt(t, db, `SELECT COUNT(*) FROM fact_songplay f
			LEFT JOIN dim_time t ON f.start_time = t.start_time
			WHERE t.start_time IS NULL`))
	})

	t.Run("start_time keeps whole seconds", func(t *testing.T) {
		var start time.Time
		require.NoError(t, db.QueryRow(`SELECT start_time FROM fact_songplay WHERE user_id = 8`).Scan(&start))
		assert.Equal(t, time.UnixMilli(1541121934000).UTC(), start.UTC())
	})

	t.Run("dim_time fields", func(t *testing.T) {
		var hour, day, month, year, weekday int
		require.NoError(t, db.QueryRow(`SELECT hour, day, month, year, weekday FROM dim_time
			ORDER BY start_time LIMIT 1`).Scan(&hour, &day, &month, &year, &weekday))
		// 2018-11-02 01:25:34 UTC, a Friday
		assert.Equal(t, []int{1, 2, 11, 2018, 5}, []int{hour, day, month, year, weekday})
	})
}

func TestPostgres_UnmatchedSongsProduceNoFacts(t *testing.T) {
	service := startWarehouse(t)
	db := service.GetDB()
	ctx := context.Background()
	c := localCatalog(t)
	runner := New(service, c, nil, nil)

	_, err := runner.Run(ctx, catalog.KindDrop, catalog.KindCreate, catalog.KindCopy)
	require.NoError(t, err)

	// Rename one song so only one (song, artist) pair still matches.
	_, err = db.ExecContext(ctx, `UPDATE staging_songs SET title = 'Something Else' WHERE artist_name = 'Gang Starr'`)
	require.NoError(t, err)

	insert, ok := c.Insert(catalog.FactSongplay)
	require.True(t, ok)
	require.NoError(t, service.Exec(ctx, insert))

	assert.Equal(t, int64(1), queryInt(t, db, `SELECT COUNT(*) FROM fact_songplay`))
	assert.Equal(t, int64(0), queryInt(t, db, `SELECT COUNT(*) FROM fact_songplay WHERE user_id = 26`))
}
