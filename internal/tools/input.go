package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

// validateInput checks required fields and the declared type of every
// supplied property.
func validateInput(schema map[string]any, input map[string]any) error {
	props, _ := schema["properties"].(map[string]any)

	for _, name := range requiredFields(schema) {
		v, ok := input[name]
		if !ok || v == nil {
			return apperr.ToolInvalidInput(fmt.Sprintf("missing required argument %q", name))
		}
	}

	for name, v := range input {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		want, _ := prop["type"].(string)
		if !matchesType(want, v) {
			return apperr.ToolInvalidInput(fmt.Sprintf("argument %q must be of type %s", name, want))
		}
	}
	return nil
}

func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func matchesType(want string, v any) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer", "number":
		_, ok := toInt(v)
		return ok
	default:
		return true
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// stringArg returns input[key] when it is a non-empty string.
func stringArg(input map[string]any, key string) (string, bool) {
	s, ok := input[key].(string)
	return s, ok && s != ""
}

// requireString returns input[key] or an invalid-input error.
func requireString(input map[string]any, key string) (string, error) {
	s, ok := stringArg(input, key)
	if !ok {
		return "", apperr.ToolInvalidInput(fmt.Sprintf("%s is required", key))
	}
	return s, nil
}

// intArg returns input[key] as an int, or def when absent or invalid.
func intArg(input map[string]any, key string, def int) int {
	if n, ok := toInt(input[key]); ok && n > 0 {
		return n
	}
	return def
}
