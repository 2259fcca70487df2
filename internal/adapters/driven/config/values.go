// Package config holds the value coercion shared by the config stores.
//
// Stores keep values under flat dot-notation keys. What a value looks like
// depends on where it came from: go-toml decodes integers as int64 and arrays
// as []any, while callers of Set pass plain Go values. The helpers here
// accept every shape either side produces.
package config

import (
	"sort"
	"strings"
	"time"
)

// String returns v when it is a string.
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Int returns v as an int. Floats are truncated.
func Int(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// Float returns v as a float64. TOML allows "items_per_second = 2" as well
// as "= 2.5", so integers are accepted.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// Bool returns v when it is a bool.
func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

// StringSlice returns the string elements of v. Non-string elements of a
// decoded TOML array are dropped.
func StringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Duration parses a Go duration string ("90s", "1h30m") or takes an integer
// as whole seconds. Anything else, including a negative value, is zero.
func Duration(v any) time.Duration {
	var d time.Duration
	switch x := v.(type) {
	case time.Duration:
		d = x
	case string:
		d, _ = time.ParseDuration(x)
	case int, int64:
		d = time.Duration(Int(x)) * time.Second
	}
	if d < 0 {
		return 0
	}
	return d
}

// Keys returns the keys of values that start with prefix, sorted.
func Keys(values map[string]any, prefix string) []string {
	var keys []string
	for k := range values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
