// Package strings normalizes identifier lists supplied by clients.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value, drops blanks and keeps the first
// occurrence of each duplicate. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ParseAll normalizes values with DedupeAndTrim and parses each one. On the
// first failure it returns the offending value with the error.
func ParseAll[T any](values []string, parse func(string) (T, error)) ([]T, string, error) {
	clean := DedupeAndTrim(values)
	out := make([]T, 0, len(clean))
	for _, v := range clean {
		parsed, err := parse(v)
		if err != nil {
			return nil, v, err
		}
		out = append(out, parsed)
	}
	return out, "", nil
}
