package staging

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"dwhload/pkg/errors"
)

// LoadJSONPaths reads a jsonpaths document and returns one gjson path per
// expression, in column order.
//
//	{"jsonpaths": ["$['artist']", "$.auth", "$['geo'][0]"]}
func LoadJSONPaths(location string) ([]string, error) {
	data, err := os.ReadFile(localPath(location))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeJSONPaths,
			fmt.Sprintf("Cannot read jsonpaths file %s", location)).
			WithContext("jsonpaths", location)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New(errors.ErrCodeJSONPaths,
			fmt.Sprintf("jsonpaths file %s is not valid JSON", location))
	}

	list := gjson.GetBytes(data, "jsonpaths")
	if !list.IsArray() {
		return nil, errors.New(errors.ErrCodeJSONPaths,
			fmt.Sprintf("jsonpaths file %s has no \"jsonpaths\" array", location))
	}

	var paths []string
	var parseErr error
	list.ForEach(func(_, expr gjson.Result) bool {
		var p string
		p, parseErr = ParsePath(expr.String())
		if parseErr != nil {
			return false
		}
		paths = append(paths, p)
		return true
	})
	if parseErr != nil {
		return nil, errors.Wrap(parseErr, errors.ErrCodeJSONPaths,
			fmt.Sprintf("Invalid expression in %s", location))
	}
	return paths, nil
}

// ParsePath converts a JSONPath expression in bracket or dot notation into a
// gjson path. Only member and array-index accessors are supported.
func ParsePath(expr string) (string, error) {
	s := strings.TrimSpace(expr)
	if !strings.HasPrefix(s, "$") {
		return "", fmt.Errorf("expression %q must start with $", expr)
	}
	s = s[1:]

	var parts []string
	for len(s) > 0 {
		switch s[0] {
		case '.':
			end := strings.IndexAny(s[1:], ".[")
			if end < 0 {
				end = len(s) - 1
			}
			name := s[1 : end+1]
			if name == "" {
				return "", fmt.Errorf("expression %q has an empty member name", expr)
			}
			parts = append(parts, escapeKey(name))
			s = s[end+1:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return "", fmt.Errorf("expression %q has an unterminated bracket", expr)
			}
			inner := s[1:end]
			if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
				parts = append(parts, escapeKey(inner[1:len(inner)-1]))
			} else if inner != "" && strings.Trim(inner, "0123456789") == "" {
				parts = append(parts, inner)
			} else {
				return "", fmt.Errorf("expression %q has unsupported accessor [%s]", expr, inner)
			}
			s = s[end+1:]
		default:
			return "", fmt.Errorf("expression %q is malformed near %q", expr, s)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("expression %q selects the whole document", expr)
	}
	return strings.Join(parts, "."), nil
}

func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`.*?|#@\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
