// Package roster lists the clinician's patients from the demographics
// table with a quick filter, column sorting and fixed-size pages.
package roster

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mskdash/mskdash/internal/platform/table"
	"github.com/mskdash/mskdash/pkg/pagination"
)

// ErrUnknownColumn is returned when sorting by a header the table lacks.
var ErrUnknownColumn = errors.New("unknown sort column")

// Query is one roster request.
type Query struct {
	Search string `query:"q" json:"q,omitempty"`
	Sort   string `query:"sort" json:"sort,omitempty"`
	Desc   bool   `query:"desc" json:"desc,omitempty"`
	Page   int    `query:"page" json:"page,omitempty"`
}

// Row is one patient line. Name and ID are the resolved identity cells
// used to open the panel; either may be empty.
type Row struct {
	Name  string   `json:"name"`
	ID    string   `json:"id"`
	Cells []string `json:"cells"`
}

type Result struct {
	Headers []string          `json:"headers"`
	Rows    []Row             `json:"rows"`
	Total   int               `json:"total"`
	Params  pagination.Params `json:"-"`
}

// List filters, sorts and pages the demographics table.
func List(demo *table.Table, rules *table.Rules, q Query, limit int) (*Result, error) {
	if demo == nil {
		return nil, errors.New("demographics table is not loaded")
	}
	sortIdx := -1
	if q.Sort != "" {
		sortIdx = headerIndex(demo, q.Sort)
		if sortIdx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, q.Sort)
		}
	}

	rows := Filter(demo.Rows, q.Search)
	if sortIdx >= 0 {
		SortRows(rows, sortIdx, q.Desc)
	}

	nameIdx, idIdx := -1, -1
	if h, ok := rules.Resolve(demo, table.FieldPatientName); ok {
		nameIdx = demo.Index(h)
	}
	if h, ok := rules.Resolve(demo, table.FieldPatientID); ok {
		idIdx = demo.Index(h)
	}

	p := pagination.New(q.Page, limit).Clamp(len(rows))
	start, end := p.Window(len(rows))

	out := &Result{Headers: demo.Headers, Total: len(rows), Params: p, Rows: make([]Row, 0, end-start)}
	for _, cells := range rows[start:end] {
		r := Row{Cells: cells}
		if nameIdx >= 0 {
			r.Name = strings.TrimSpace(cells[nameIdx])
		}
		if idIdx >= 0 {
			r.ID = strings.TrimSpace(cells[idIdx])
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// headerIndex finds a header exactly, then by normalised text.
func headerIndex(t *table.Table, name string) int {
	if i := t.Index(name); i >= 0 {
		return i
	}
	want := table.Normalize(name)
	for i, h := range t.Headers {
		if table.Normalize(h) == want {
			return i
		}
	}
	return -1
}

// Filter keeps rows in which every whitespace-separated word of search
// appears, case-insensitively, in some cell.
func Filter(rows [][]string, search string) [][]string {
	words := strings.Fields(strings.ToLower(search))
	if len(words) == 0 {
		return append([][]string(nil), rows...)
	}
	var out [][]string
	for _, row := range rows {
		text := strings.ToLower(strings.Join(row, "\x00"))
		match := true
		for _, w := range words {
			if !strings.Contains(text, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out
}

// SortRows orders rows by one column, stably. Numbers compare numerically
// and rank below text. Empty cells go last in either direction.
func SortRows(rows [][]string, col int, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.TrimSpace(rows[i][col]), strings.TrimSpace(rows[j][col])
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		c := compare(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b string) int {
	x, aNum := table.ParseNumber(a)
	y, bNum := table.ParseNumber(b)
	switch {
	case aNum && bNum:
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
