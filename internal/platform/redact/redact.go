// Package redact masks credential-bearing values before they reach
// logs or audit payloads.
package redact

import "strings"

var sensitiveKeys = []string{"password", "token", "secret", "api_key"}

const mask = "***"

func sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Map returns a copy of m with sensitive values replaced. Nested maps
// and slices of maps are masked recursively; the input is not mutated.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitive(k) {
			out[k] = mask
			continue
		}
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return Map(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = value(item)
		}
		return out
	default:
		return v
	}
}
