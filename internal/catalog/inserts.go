package catalog

import (
	"fmt"
	"strings"
)

type insert struct {
	table Table
	sql   string
}

// insertStatements renders the fact and dimension loads in execution order.
func insertStatements(d Dialect) []insert {
	return []insert{
		{FactSongplay, songplayInsert(d)},
		{DimUser, userInsert()},
		{DimSong, songInsert()},
		{DimArtist, artistInsert()},
		{DimTime, timeInsert(d)},
	}
}

// songplayInsert joins plays to songs on exact title and artist name. Events
// without a matching song are dropped.
func songplayInsert(d Dialect) string {
	return fmt.Sprintf(`INSERT INTO fact_songplay (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
SELECT DISTINCT
    %s AS start_time,
    se.userId AS user_id,
    se.level AS level,
    ss.song_id AS song_id,
    ss.artist_id AS artist_id,
    se.sessionId AS session_id,
    se.location AS location,
    se.userAgent AS user_agent
FROM staging_events se
JOIN staging_songs ss
    ON se.song = ss.title
    AND se.artist = ss.artist_name
WHERE se.page = 'NextSong';`, d.StartTime("se.ts"))
}

// userInsert keeps the latest event per user so level changes do not produce
// a second row for the same key.
func userInsert() string {
	return `INSERT INTO dim_user (user_id, first_name, last_name, gender, level)
SELECT user_id, first_name, last_name, gender, level
FROM (
    SELECT
        userId AS user_id,
        firstName AS first_name,
        lastName AS last_name,
        gender AS gender,
        level AS level,
        ROW_NUMBER() OVER (PARTITION BY userId ORDER BY ts DESC NULLS LAST) AS rn
    FROM staging_events
    WHERE userId IS NOT NULL
        AND page = 'NextSong'
) latest
WHERE rn = 1;`
}

func songInsert() string {
	return `INSERT INTO dim_song (song_id, title, artist_id, year, duration)
SELECT DISTINCT
    song_id AS song_id,
    title AS title,
    artist_id AS artist_id,
    year AS year,
    duration AS duration
FROM staging_songs
WHERE song_id IS NOT NULL;`
}

func artistInsert() string {
	return `INSERT INTO dim_artist (artist_id, name, location, latitude, longitude)
SELECT artist_id, name, location, latitude, longitude
FROM (
    SELECT
        artist_id AS artist_id,
        artist_name AS name,
        artist_location AS location,
        artist_latitude AS latitude,
        artist_longitude AS longitude,
        ROW_NUMBER() OVER (PARTITION BY artist_id ORDER BY year DESC, song_id) AS rn
    FROM staging_songs
    WHERE artist_id IS NOT NULL
) latest
WHERE rn = 1;`
}

// timeInsert derives calendar fields from the same truncated start_time the
// fact insert writes, so every fact row has a matching dim_time key.
func timeInsert(d Dialect) string {
	parts := []DatePart{PartHour, PartDay, PartWeek, PartMonth, PartYear, PartWeekday}
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = fmt.Sprintf("    %s AS %s", d.Extract(p, "start_time"), p)
	}
	return fmt.Sprintf(`INSERT INTO dim_time (start_time, hour, day, week, month, year, weekday)
SELECT
    start_time,
%s
FROM (
    SELECT DISTINCT %s AS start_time
    FROM staging_events
    WHERE ts IS NOT NULL
        AND page = 'NextSong'
) plays;`, strings.Join(fields, ",\n"), d.StartTime("ts"))
}
