package agent

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseAnswer turns raw model output into an Answer.
// A JSON object (optionally inside a Markdown code fence) is decoded into the
// structured fields; anything else becomes the answer text as-is.
func ParseAnswer(raw string) *Answer {
	text := strings.TrimSpace(raw)
	body := stripCodeFence(text)

	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return &Answer{Text: text}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return &Answer{Text: text}
	}

	ans := &Answer{Text: text}
	for key, value := range obj {
		switch key {
		case "content":
			if s, ok := value.(string); ok {
				ans.Text = s
			} else if b, err := json.Marshal(value); err == nil {
				ans.Text = string(b)
			}
		case "reasoning":
			ans.Rationale, _ = value.(string)
		case "confidence":
			if f, ok := toFloat(value); ok {
				ans.Confidence = &f
			}
		case "next_actions":
			ans.NextActions = toStrings(value)
		default:
			if ans.Fields == nil {
				ans.Fields = make(map[string]any)
			}
			ans.Fields[key] = value
		}
	}
	return ans
}

// Float returns a numeric extra field
func (a *Answer) Float(key string) (float64, bool) {
	if a == nil || a.Fields == nil {
		return 0, false
	}
	return toFloat(a.Fields[key])
}

// String returns a string extra field
func (a *Answer) String(key string) (string, bool) {
	if a == nil || a.Fields == nil {
		return "", false
	}
	s, ok := a.Fields[key].(string)
	return s, ok
}

// Bool returns a boolean extra field
func (a *Answer) Bool(key string) (bool, bool) {
	if a == nil || a.Fields == nil {
		return false, false
	}
	b, ok := a.Fields[key].(bool)
	return b, ok
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string (```json)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// toFloat only yields finite values; NaN and infinities are treated as absent
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toStrings(v any) []string {
	switch items := v.(type) {
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return items
	case string:
		return []string{items}
	}
	return nil
}
