// Package table holds the in-memory tabular shape every input file is
// loaded into, together with the convention-based column lookup used to
// tolerate loosely specified headers.
package table

import (
	"math"
	"strconv"
	"strings"
)

// Table is a header row plus string cells. Rows are always padded to the
// header width.
type Table struct {
	Name    string     `json:"name"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// New builds a table, padding or trimming ragged rows to the header width.
func New(name string, headers []string, rows [][]string) *Table {
	t := &Table{Name: name, Headers: append([]string(nil), headers...)}
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

// Append adds a row, normalised to the header width.
func (t *Table) Append(row []string) {
	out := make([]string, len(t.Headers))
	copy(out, row)
	t.Rows = append(t.Rows, out)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the header with exactly this name, or -1.
func (t *Table) Index(header string) int {
	if t == nil {
		return -1
	}
	for i, h := range t.Headers {
		if h == header {
			return i
		}
	}
	return -1
}

// Has reports whether a header with exactly this name exists.
func (t *Table) Has(header string) bool {
	return t.Index(header) >= 0
}

// Column returns a copy of the cells under header, or nil if absent.
func (t *Table) Column(header string) []string {
	i := t.Index(header)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Cell returns the value of header in row r. Missing headers yield "".
func (t *Table) Cell(r int, header string) string {
	i := t.Index(header)
	if i < 0 || r < 0 || r >= len(t.Rows) {
		return ""
	}
	return t.Rows[r][i]
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := &Table{Name: t.Name, Headers: append([]string(nil), t.Headers...)}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Records returns each row as a header -> value map.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			rec[h] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// ParseNumber coerces a cell to a float. Empty, non-numeric, NaN and
// infinite values report ok=false and are treated as missing.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
