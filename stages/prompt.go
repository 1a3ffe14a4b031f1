package stages

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/vgate/errors"
)

// Template is a prompt with {{name}} and {{name.path}} placeholders
type Template struct {
	raw      string
	segments []segment
}

type segment struct {
	literal bool
	content string   // literal text, or the full placeholder path
	path    []string // placeholder path split on dots
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// ParseTemplate splits raw into literal and placeholder segments
func ParseTemplate(raw string) (*Template, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty template")
	}

	t := &Template{raw: raw}
	lastEnd := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(raw, -1) {
		start, end := m[0], m[1]
		field := raw[m[2]:m[3]]

		if start > lastEnd {
			t.segments = append(t.segments, segment{literal: true, content: raw[lastEnd:start]})
		}
		path := strings.Split(field, ".")
		for _, p := range path {
			if p == "" {
				return nil, errors.Newf("invalid placeholder {{%s}}", field)
			}
		}
		t.segments = append(t.segments, segment{content: field, path: path})
		lastEnd = end
	}
	if lastEnd < len(raw) {
		t.segments = append(t.segments, segment{literal: true, content: raw[lastEnd:]})
	}
	return t, nil
}

// Execute interpolates vars. A placeholder whose first path element is not
// in vars is an error; a missing nested key renders as "unknown".
func (t *Template) Execute(vars map[string]any) (string, error) {
	var b strings.Builder
	b.Grow(len(t.raw) * 2)

	for _, seg := range t.segments {
		if seg.literal {
			b.WriteString(seg.content)
			continue
		}
		root, ok := vars[seg.path[0]]
		if !ok {
			return "", errors.Newf("no value for {{%s}}", seg.content)
		}
		v, err := lookup(root, seg.path[1:])
		if err != nil {
			return "", errors.Wrapf(err, "failed to get value for {{%s}}", seg.content)
		}
		b.WriteString(valueToString(v))
	}
	return b.String(), nil
}

// Placeholders returns the placeholder paths in order of appearance
func (t *Template) Placeholders() []string {
	var out []string
	for _, seg := range t.segments {
		if !seg.literal {
			out = append(out, seg.content)
		}
	}
	return out
}

// Raw returns the template source
func (t *Template) Raw() string { return t.raw }

func lookup(current any, path []string) (any, error) {
	for i, part := range path {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[part]
			if !ok {
				return nil, nil
			}
			current = val
		case map[string]string:
			val, ok := v[part]
			if !ok {
				return nil, nil
			}
			current = val
		default:
			return nil, errors.Newf("cannot traverse into non-object at '%s'", strings.Join(path[:i+1], "."))
		}
	}
	return current, nil
}

func valueToString(v any) string {
	switch val := v.(type) {
	case nil:
		return "unknown"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case *float64:
		if val == nil {
			return "unknown"
		}
		return strconv.FormatFloat(*val, 'f', -1, 64)
	case []string:
		return toJSON(val)
	case interface{ String() string }:
		return val.String()
	default:
		return toJSON(val)
	}
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
