package checkpoint

import (
	"errors"
	"fmt"

	"github.com/mskdash/mskdash/internal/platform/table"
)

// Value is one metric reduced over one checkpoint day.
type Value struct {
	Value float64 `json:"value"`
	// Count is the number of rows that contributed.
	Count int `json:"count"`
	// Present is false only for an empty week under GapNoData.
	Present bool `json:"present"`
}

// Row is one checkpoint day.
type Row struct {
	Day    int              `json:"day"`
	Week   string           `json:"week"`
	Values map[string]Value `json:"values"`
}

// Frame is the aggregate of a time series: always len(Days) rows, in
// checkpoint order, regardless of which days the source contained.
type Frame struct {
	DayColumn string   `json:"day_column"`
	Metrics   []string `json:"metrics"`
	Rows      []Row    `json:"rows"`
}

// Series returns the values of one metric in checkpoint order.
func (f *Frame) Series(name string) ([]Value, bool) {
	if len(f.Rows) == 0 {
		return nil, false
	}
	if _, ok := f.Rows[0].Values[name]; !ok {
		return nil, false
	}
	out := make([]Value, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Values[name]
	}
	return out, true
}

type accumulator struct {
	sum   float64
	count int
}

// Aggregate coerces the day and metric columns to numbers, drops rows
// without a usable day, keeps checkpoint days only and reduces each metric
// per day. Days with no rows are filled according to each metric's gap
// policy. A missing day or metric column is reported as an error wrapping
// table.ErrColumnNotFound.
func Aggregate(t *table.Table, dayColumn string, metrics ...Metric) (*Frame, error) {
	if len(metrics) == 0 {
		return nil, errors.New("aggregate: at least one metric is required")
	}
	dayIdx := t.Index(dayColumn)
	if dayIdx < 0 {
		return nil, fmt.Errorf("day column %q: %w", dayColumn, table.ErrColumnNotFound)
	}
	colIdx := make([]int, len(metrics))
	for i, m := range metrics {
		colIdx[i] = t.Index(m.Column)
		if colIdx[i] < 0 {
			return nil, fmt.Errorf("metric %s column %q: %w", m.Name, m.Column, table.ErrColumnNotFound)
		}
	}

	acc := make([][]accumulator, len(Days))
	for d := range acc {
		acc[d] = make([]accumulator, len(metrics))
	}

	for _, row := range t.Rows {
		v, ok := table.ParseNumber(row[dayIdx])
		if !ok {
			continue
		}
		day, ok := Match(v)
		if !ok {
			continue
		}
		d, _ := Index(day)
		for i, m := range metrics {
			x, ok := table.ParseNumber(row[colIdx[i]])
			switch m.Reduce {
			case Mean:
				if !ok {
					continue
				}
			default:
				if !ok {
					x = 0
				}
			}
			acc[d][i].sum += x
			acc[d][i].count++
		}
	}

	f := &Frame{DayColumn: dayColumn, Rows: make([]Row, len(Days))}
	for _, m := range metrics {
		f.Metrics = append(f.Metrics, m.Name)
	}
	for d, day := range Days {
		row := Row{Day: day, Week: Weeks[d], Values: make(map[string]Value, len(metrics))}
		for i, m := range metrics {
			row.Values[m.Name] = reduce(m, acc[d][i])
		}
		f.Rows[d] = row
	}
	return f, nil
}

func reduce(m Metric, a accumulator) Value {
	if a.count == 0 {
		return Value{Value: 0, Count: 0, Present: m.Gap == GapZero}
	}
	if m.Reduce == Mean {
		return Value{Value: a.sum / float64(a.count), Count: a.count, Present: true}
	}
	return Value{Value: a.sum, Count: a.count, Present: true}
}

// Floats extracts the raw numbers of a series.
func Floats(vs []Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Value
	}
	return out
}

// AveragePerDay divides each weekly total by seven.
func AveragePerDay(vs []Value) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = v
		out[i].Value = v.Value / DaysPerWeek
	}
	return out
}

// ThirtyDayAverage sums the weekly totals and divides by thirty. The
// denominator is always thirty, not the number of weeks with data.
func ThirtyDayAverage(vs []Value) float64 {
	var total float64
	for _, v := range vs {
		if v.Present {
			total += v.Value
		}
	}
	return total / DaysPerPeriod
}
