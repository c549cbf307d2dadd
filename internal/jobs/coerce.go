package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON strips markdown fences and any prose around the outermost JSON
// value.
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
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	start := strings.IndexAny(raw, "[{")
	end := strings.LastIndexAny(raw, "]}")
	if start == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceSkills accepts a list or a comma separated string. Blank items are
// dropped and duplicates (case-insensitive) keep their first spelling.
func coerceSkills(v any) []string {
	var items []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			items = append(items, coerceString(item))
		}
	case string:
		items = strings.Split(val, ",")
	}

	skills := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.Join(strings.Fields(item), " ")
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, item)
	}
	return skills
}
