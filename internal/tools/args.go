package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// intArg converts a JSON-decoded argument to int. Decoded JSON numbers
// arrive as float64; some MCP clients also send integers as strings.
func intArg(value any, name string) (int, error) {
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("'%s' must be an integer, got: %v", name, value)
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("'%s' must be an integer, got: %q", name, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("'%s' must be an integer, got: %v", name, value)
	}
}

// stringArg returns the named argument when it is a non-empty string.
func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// sanitizeArgs returns a copy of the tool arguments safe for logging. The
// "parameters" value may contain sensitive runtime values, so only its key
// names survive.
func sanitizeArgs(args map[string]any) map[string]any {
	safe := make(map[string]any, len(args))
	for k, v := range args {
		if k != "parameters" {
			safe[k] = v
		}
	}
	if raw, ok := args["parameters"]; ok {
		keys := "(invalid)"
		if s, ok := raw.(string); ok {
			var params map[string]any
			if err := json.Unmarshal([]byte(s), &params); err == nil {
				names := make([]string, 0, len(params))
				for k := range params {
					names = append(names, k)
				}
				sort.Strings(names)
				safe["parameter_keys"] = names
				return safe
			}
		}
		safe["parameter_keys"] = keys
	}
	return safe
}

// Helpers for walking decoded Azure DevOps response bodies.

func obj(m map[string]any, key string) map[string]any {
	child, _ := m[key].(map[string]any)
	return child
}

func list(m map[string]any, key string) []any {
	items, _ := m[key].([]any)
	return items
}

func str(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func strOrEmpty(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func webLink(m map[string]any) any {
	return str(obj(obj(m, "_links"), "web"), "href")
}
