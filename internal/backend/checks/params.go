package checks

import (
	"fmt"
	"strings"
)

// getIntParam extracts an int parameter; YAML and JSON numbers may arrive as int, int64 or float64
func getIntParam(params map[string]any, key string, defaultValue int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return defaultValue
}

// getStringListParam extracts a list of strings, accepting a YAML sequence or a
// comma separated string. Values are lower-cased and trimmed.
func getStringListParam(params map[string]any, key string) []string {
	val, ok := params[key]
	if !ok {
		return nil
	}

	var raw []string
	switch v := val.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validateRequiredParams(params map[string]any, required []string) error {
	for _, key := range required {
		if _, ok := params[key]; !ok {
			return fmt.Errorf("missing required parameter: %s", key)
		}
	}
	return nil
}
