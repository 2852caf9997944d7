package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrColumnNotFound is wrapped by every column resolution failure.
var ErrColumnNotFound = errors.New("column not found")

// ColumnError reports the semantic fields that could not be resolved on a
// table.
type ColumnError struct {
	Table  string
	Fields []Field
}

func (e *ColumnError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	if e.Table == "" {
		return fmt.Sprintf("unresolved columns: %s", strings.Join(names, ", "))
	}
	return fmt.Sprintf("%s: unresolved columns: %s", e.Table, strings.Join(names, ", "))
}

func (e *ColumnError) Unwrap() error { return ErrColumnNotFound }

// Normalize trims surrounding whitespace and lowercases a header.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve finds the header to use for a semantic field. Aliases are checked
// in order against normalised headers and the first exact hit wins. Only if
// no alias matches and contains is non-empty, the first header (in table
// order) whose normalised text holds every substring is returned.
func Resolve(t *Table, aliases, contains []string) (string, bool) {
	if t == nil {
		return "", false
	}

	lookup := make(map[string]string, len(t.Headers))
	for _, h := range t.Headers {
		lookup[Normalize(h)] = h
	}

	for _, a := range aliases {
		if h, ok := lookup[Normalize(a)]; ok {
			return h, true
		}
	}

	if len(contains) == 0 {
		return "", false
	}
	for _, h := range t.Headers {
		n := Normalize(h)
		if containsAll(n, contains) {
			return h, true
		}
	}
	return "", false
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, Normalize(sub)) {
			return false
		}
	}
	return true
}
