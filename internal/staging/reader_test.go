package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"dwhload/internal/catalog"
	"dwhload/pkg/errors"
)

func copySpec(t *testing.T, table catalog.Table) catalog.CopySpec {
	t.Helper()
	c, err := catalog.New(catalog.Config{
		LogData:     "testdata/log_data",
		SongData:    "file://testdata/song_data",
		LogJSONPath: "testdata/log_json_path.json",
	}, catalog.Postgres{})
	require.NoError(t, err)
	s, ok := c.Copy(table)
	require.True(t, ok)
	require.NotNil(t, s.Copy)
	return *s.Copy
}

func column(spec catalog.CopySpec, name string) int {
	for i, c := range spec.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func TestReader_Events(t *testing.T) {
	spec := copySpec(t, catalog.StagingEvents)
	rows, err := NewReader(nil).Rows(spec)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	require.Len(t, first, len(spec.Columns))
	assert.Equal(t, "Sydney Youngblood", first[column(spec, "artist")])
	assert.Equal(t, "NextSong", first[column(spec, "page")])
	assert.Equal(t, int64(8), first[column(spec, "userId")])
	assert.Equal(t, int64(139), first[column(spec, "sessionId")])
	assert.Equal(t, 238.07955, first[column(spec, "length")])
	assert.Equal(t, time.UnixMilli(1541121934796).UTC(), first[column(spec, "ts")])

	login := rows[2]
	assert.Equal(t, "Login", login[column(spec, "page")])
	assert.Nil(t, login[column(spec, "userId")], "empty userId is NULL")
	assert.Nil(t, login[column(spec, "artist")])
	assert.Nil(t, login[column(spec, "length")])
}

func TestReader_SongsAuto(t *testing.T) {
	spec := copySpec(t, catalog.StagingSongs)
	rows, err := NewReader(nil).Rows(spec)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first, second := rows[0], rows[1]
	assert.Equal(t, "SOGDBUF12A8C140FAA", first[column(spec, "song_id")])
	assert.Equal(t, "Ain't No Sunshine", first[column(spec, "title")])
	assert.Equal(t, int64(0), first[column(spec, "year")])
	assert.Equal(t, 35.21962, first[column(spec, "artist_latitude")])

	assert.Equal(t, "Gang Starr", second[column(spec, "artist_name")])
	assert.Nil(t, second[column(spec, "artist_latitude")])
	assert.Nil(t, second[column(spec, "artist_location")], "empty string is NULL")
	assert.Equal(t, int64(1998), second[column(spec, "year")])
}

func TestReader_JSONPathsMismatch(t *testing.T) {
	dir := t.TempDir()
	paths := filepath.Join(dir, "paths.json")
	require.NoError(t, os.WriteFile(paths, []byte(`{"jsonpaths": ["$['artist']"]}`), 0o600))

	spec := copySpec(t, catalog.StagingEvents)
	spec.JSONPaths = paths

	_, err := NewReader(nil).Rows(spec)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeJSONPaths))
}

func TestReader_BadValue(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"),
		[]byte(`{"num_songs": "many", "song_id": "S1"}`), 0o600))

	spec := copySpec(t, catalog.StagingSongs)
	spec.Source = dir

	_, err := NewReader(nil).Rows(spec)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceMalformed))
	assert.Contains(t, err.Error(), "num_songs")
}

func TestFiles(t *testing.T) {
	files, err := Files("testdata/song_data")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "song_data", "A", "A", "TRAAAAK128F9318786.json"),
		filepath.Join("testdata", "song_data", "A", "B", "TRAABJL12903CDCF1A.json"),
	}, files)

	files, err = Files("testdata/song_data/A/*/*.json")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = Files("file://testdata/log_json_path.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"testdata/log_json_path.json"}, files)
}

func TestFiles_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"remote", "s3://udacity-dend/song_data"},
		{"missing", "testdata/nope"},
		{"empty dir", t.TempDir()},
		{"no glob match", "testdata/*.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Files(tt.source)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeSourceNotFound))
		})
	}
}

func TestReadDocuments(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	docs, err := readDocuments(write("pretty.json", "{\n  \"a\": 1,\n  \"b\": \"x\"\n}\n"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0].Get("a").Int())

	docs, err = readDocuments(write("array.json", `[{"a": 1}, {"a": 2}]`))
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = readDocuments(write("lines.json", "{\"a\": 1}\n\n{\"a\": 2}\n{\"a\": 3}\n"))
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	docs, err = readDocuments(write("empty.json", "  \n"))
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = readDocuments(write("broken.json", "{\"a\": 1}\n{\"a\": \n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceMalformed))
	assert.Contains(t, err.Error(), "broken.json:2")

	_, err = readDocuments(write("scalar.json", "42"))
	require.Error(t, err)
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		expr    string
		want    string
		wantErr bool
	}{
		{expr: "$['artist']", want: "artist"},
		{expr: `$["userId"]`, want: "userId"},
		{expr: "$.auth", want: "auth"},
		{expr: "$.geo.lat", want: "geo.lat"},
		{expr: "$['tags'][0]", want: "tags.0"},
		{expr: "$['a.b']", want: `a\.b`},
		{expr: "$", wantErr: true},
		{expr: "artist", wantErr: true},
		{expr: "$['artist'", wantErr: true},
		{expr: "$[*]", wantErr: true},
		{expr: "$..x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParsePath(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePath_EscapedKeyResolves(t *testing.T) {
	p, err := ParsePath("$['a.b']")
	require.NoError(t, err)
	assert.Equal(t, "x", gjson.Get(`{"a.b": "x"}`, p).String())
}

func TestLoadJSONPaths(t *testing.T) {
	paths, err := LoadJSONPaths("testdata/log_json_path.json")
	require.NoError(t, err)
	require.Len(t, paths, 18)
	assert.Equal(t, "artist", paths[0])
	assert.Equal(t, "userId", paths[17])

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"paths": []}`), 0o600))
	_, err = LoadJSONPaths(bad)
	assert.True(t, errors.IsCode(err, errors.ErrCodeJSONPaths))

	_, err = LoadJSONPaths(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeJSONPaths))
}

func TestConvert(t *testing.T) {
	ts := time.UnixMilli(1541121934796).UTC()

	tests := []struct {
		name    string
		json    string
		typ     catalog.ColumnType
		format  string
		want    any
		wantErr bool
	}{
		{name: "missing", json: `{}`, typ: catalog.TypeVarchar, want: nil},
		{name: "null", json: `{"v": null}`, typ: catalog.TypeInteger, want: nil},
		{name: "blank", json: `{"v": "   "}`, typ: catalog.TypeVarchar, want: nil},
		{name: "string", json: `{"v": "Logged In"}`, typ: catalog.TypeVarchar, want: "Logged In"},
		{name: "number as varchar", json: `{"v": 200}`, typ: catalog.TypeVarchar, want: "200"},
		{name: "object as varchar", json: `{"v": {"a": 1}}`, typ: catalog.TypeVarchar, want: `{"a": 1}`},
		{name: "int from string", json: `{"v": " 26 "}`, typ: catalog.TypeInteger, want: int64(26)},
		{name: "int from number", json: `{"v": 139}`, typ: catalog.TypeInteger, want: int64(139)},
		{name: "bad int", json: `{"v": "abc"}`, typ: catalog.TypeInteger, wantErr: true},
		{name: "float", json: `{"v": 238.07955}`, typ: catalog.TypeFloat, want: 238.07955},
		{name: "epoch millis", json: `{"v": 1541121934796}`, typ: catalog.TypeTimestamp, format: TimeFormatEpochMillis, want: ts},
		{name: "rfc3339", json: `{"v": "2018-11-02T01:25:34Z"}`, typ: catalog.TypeTimestamp,
			want: time.Date(2018, 11, 2, 1, 25, 34, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(gjson.Get(tt.json, "v"), tt.typ, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
