package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// String returns a trimmed string param, or "" when absent or not a string.
func String(params map[string]interface{}, key string) string {
	switch v := params[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Int accepts JSON numbers and numeric strings.
func Int(params map[string]interface{}, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func Float(params map[string]interface{}, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func Bool(params map[string]interface{}, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func Strings(params map[string]interface{}, key string) []string {
	raw, ok := params[key].([]interface{})
	if !ok {
		if s := String(params, key); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func Objects(params map[string]interface{}, key string) []map[string]interface{} {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// RequireString returns the named param or a descriptive error.
func RequireString(params map[string]interface{}, key string) (string, error) {
	if s := String(params, key); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("%s is required", key)
}

// Success, NoResults and Failure build the three result shapes.
func Success(message string, data interface{}) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

func NoResults(message string) Result {
	return Result{Status: StatusNoResults, Message: message}
}

func Failure(message string) Result {
	return Result{Status: StatusError, Message: message}
}
