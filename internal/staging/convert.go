package staging

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"dwhload/internal/catalog"
)

// TimeFormatEpochMillis interprets TIMESTAMP sources as milliseconds since
// the Unix epoch.
const TimeFormatEpochMillis = "epochmillisecs"

// columnMapper selects the JSON value for each column, either through
// jsonpaths or by case-insensitive key match.
type columnMapper struct {
	columns []catalog.ColumnDef
	paths   []string
}

func (m *columnMapper) row(doc gjson.Result, timeFormat string) ([]any, error) {
	values := m.values(doc)
	row := make([]any, len(m.columns))
	for i, col := range m.columns {
		v, err := Convert(values[i], col.Type, timeFormat)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

func (m *columnMapper) values(doc gjson.Result) []gjson.Result {
	values := make([]gjson.Result, len(m.columns))
	if m.paths != nil {
		for i, p := range m.paths {
			values[i] = doc.Get(p)
		}
		return values
	}

	byKey := make(map[string]gjson.Result)
	doc.ForEach(func(key, value gjson.Result) bool {
		k := strings.ToLower(key.String())
		if _, seen := byKey[k]; !seen {
			byKey[k] = value
		}
		return true
	})
	for i, col := range m.columns {
		values[i] = byKey[strings.ToLower(col.Name)]
	}
	return values
}

// Convert coerces a JSON value to the Go value of a column type. Missing,
// null, empty and blank values become nil.
func Convert(v gjson.Result, typ catalog.ColumnType, timeFormat string) (any, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	if v.Type == gjson.String && strings.TrimSpace(v.Str) == "" {
		return nil, nil
	}

	raw := v.Value()
	switch typ {
	case catalog.TypeVarchar:
		if v.IsObject() || v.IsArray() {
			return v.Raw, nil
		}
		return cast.ToStringE(raw)
	case catalog.TypeInteger:
		if v.Type == gjson.String {
			raw = strings.TrimSpace(v.Str)
		}
		return cast.ToInt64E(raw)
	case catalog.TypeFloat:
		return cast.ToFloat64E(raw)
	case catalog.TypeTimestamp:
		if timeFormat == TimeFormatEpochMillis {
			ms, err := cast.ToInt64E(raw)
			if err != nil {
				return nil, err
			}
			return time.UnixMilli(ms).UTC(), nil
		}
		t, err := cast.ToTimeInDefaultLocationE(raw, time.UTC)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	return nil, fmt.Errorf("unsupported column type %s", typ)
}
