package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON strips markdown fences and any prose around the outermost
// JSON object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start != -1 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if strings.EqualFold(s, "none") || strings.EqualFold(s, "null") || s == "N/A" {
			return ""
		}
		return s
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceStrings accepts a list of strings, a list of objects carrying a
// "name" key, or a single comma separated string.
func coerceStrings(v any) []string {
	var out []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			var s string
			if m, ok := item.(map[string]any); ok {
				s = coerceString(m["name"])
			} else {
				s = coerceString(item)
			}
			if s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(val, ",") {
			if s := coerceString(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
