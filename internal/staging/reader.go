// Package staging reads local copies of the song and event JSON datasets and
// turns them into rows for COPY ... FROM STDIN. It mirrors the parts of the
// warehouse JSON loader the catalog depends on: jsonpaths or 'auto' column
// mapping, blank-as-NULL handling and epoch-millisecond timestamps.
package staging

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"dwhload/internal/catalog"
	"dwhload/pkg/errors"
)

// maxLineSize bounds a single newline-delimited JSON document.
const maxLineSize = 4 * 1024 * 1024

// Reader loads staging rows from the local filesystem.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a reader. A nil logger discards output.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// Rows reads every document under spec.Source and returns one row per
// document with values ordered like spec.Columns.
func (r *Reader) Rows(spec catalog.CopySpec) ([][]any, error) {
	files, err := Files(spec.Source)
	if err != nil {
		return nil, err
	}

	mapper, err := r.mapper(spec)
	if err != nil {
		return nil, err
	}

	var rows [][]any
	for _, file := range files {
		docs, err := readDocuments(file)
		if err != nil {
			return nil, err
		}
		for i, doc := range docs {
			row, err := mapper.row(doc, spec.TimeFormat)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeSourceMalformed,
					fmt.Sprintf("Cannot load document %d of %s", i+1, file)).
					WithContext("table", spec.Table.String()).
					WithContext("file", file)
			}
			rows = append(rows, row)
		}
		r.logger.Debug("Read staging file",
			zap.String("table", spec.Table.String()),
			zap.String("file", file),
			zap.Int("documents", len(docs)))
	}

	r.logger.Info("Staging rows ready",
		zap.String("table", spec.Table.String()),
		zap.Int("files", len(files)),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func (r *Reader) mapper(spec catalog.CopySpec) (*columnMapper, error) {
	if spec.JSONPaths == "" || strings.EqualFold(spec.JSONPaths, "auto") {
		return &columnMapper{columns: spec.Columns}, nil
	}
	paths, err := LoadJSONPaths(spec.JSONPaths)
	if err != nil {
		return nil, err
	}
	if len(paths) != len(spec.Columns) {
		return nil, errors.New(errors.ErrCodeJSONPaths,
			fmt.Sprintf("jsonpaths file has %d expressions but %s has %d columns",
				len(paths), spec.Table, len(spec.Columns))).
			WithContext("jsonpaths", spec.JSONPaths)
	}
	return &columnMapper{columns: spec.Columns, paths: paths}, nil
}

// Files resolves a source to the JSON files it names: a directory (walked
// recursively for *.json), a glob pattern or a single file. A file:// prefix
// is accepted. Remote URLs cannot be read locally.
func Files(source string) ([]string, error) {
	path := localPath(source)
	if strings.Contains(path, "://") {
		return nil, errors.New(errors.ErrCodeSourceNotFound,
			fmt.Sprintf("Source %s is not a local path", source)).
			WithContext("source", source).
			WithSuggestions(
				"The postgres dialect loads local copies of the datasets",
				"Point S3.LOG_DATA and S3.SONG_DATA at local directories, or use --dialect redshift",
			)
	}

	var files []string
	if strings.ContainsAny(path, "*?[") {
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceNotFound, "Invalid source pattern").
				WithContext("source", source)
		}
		files = matches
	} else {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceNotFound,
				fmt.Sprintf("Cannot read source %s", source)).
				WithContext("source", source)
		}
		if !info.IsDir() {
			return []string{path}, nil
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".json") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSourceNotFound,
				fmt.Sprintf("Cannot walk source %s", source)).
				WithContext("source", source)
		}
	}

	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeSourceNotFound,
			fmt.Sprintf("No JSON files found at %s", source)).
			WithContext("source", source)
	}
	sort.Strings(files)
	return files, nil
}

func localPath(source string) string {
	return strings.TrimPrefix(strings.TrimSpace(source), "file://")
}

// readDocuments returns the top-level JSON objects of a file. A file is either
// one JSON value (an object or an array of objects) or newline-delimited
// objects.
func readDocuments(file string) ([]gjson.Result, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceNotFound,
			fmt.Sprintf("Cannot read %s", file))
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if gjson.ValidBytes(data) {
		doc := gjson.ParseBytes(data)
		switch {
		case doc.IsObject():
			return []gjson.Result{doc}, nil
		case doc.IsArray():
			docs := doc.Array()
			for i, d := range docs {
				if !d.IsObject() {
					return nil, malformed(file, i+1, "array element is not an object")
				}
			}
			return docs, nil
		default:
			return nil, malformed(file, 1, "top-level value is not an object")
		}
	}

	var docs []gjson.Result
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !gjson.ValidBytes(text) {
			return nil, malformed(file, line, "invalid JSON")
		}
		doc := gjson.ParseBytes(text)
		if !doc.IsObject() {
			return nil, malformed(file, line, "not an object")
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceMalformed,
			fmt.Sprintf("Cannot scan %s", file))
	}
	return docs, nil
}

func malformed(file string, line int, reason string) error {
	return errors.New(errors.ErrCodeSourceMalformed,
		fmt.Sprintf("%s:%d: %s", file, line, reason)).
		WithContext("file", file).
		WithContext("line", line)
}
