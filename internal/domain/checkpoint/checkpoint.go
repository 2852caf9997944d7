// Package checkpoint reduces per-day time series to the four fixed weekly
// checkpoints (days 7, 14, 21 and 30).
package checkpoint

import "fmt"

// Days is the complete, ordered checkpoint set. Every aggregate has exactly
// one row per entry.
var Days = [4]int{7, 14, 21, 30}

// Weeks holds the week labels in checkpoint order.
var Weeks = [4]string{"W1", "W2", "W3", "W4"}

// DaysPerWeek and DaysPerPeriod are the fixed denominators of the derived
// per-day averages.
const (
	DaysPerWeek   = 7.0
	DaysPerPeriod = 30.0
)

// Index returns the position of day in Days.
func Index(day int) (int, bool) {
	for i, d := range Days {
		if d == day {
			return i, true
		}
	}
	return -1, false
}

// WeekLabel maps a checkpoint day to its week label.
func WeekLabel(day int) (string, bool) {
	i, ok := Index(day)
	if !ok {
		return "", false
	}
	return Weeks[i], true
}

// Match reports whether a parsed day value is a checkpoint and returns it as
// an int. 7.0 matches, 7.5 does not.
func Match(v float64) (int, bool) {
	day := int(v)
	if float64(day) != v {
		return 0, false
	}
	if _, ok := Index(day); !ok {
		return 0, false
	}
	return day, true
}

// Reducer is the per-week reduction applied to a metric.
type Reducer int

const (
	// Sum zero-fills missing cells before summing.
	Sum Reducer = iota
	// Mean excludes missing cells from the average.
	Mean
)

func (r Reducer) String() string {
	switch r {
	case Sum:
		return "sum"
	case Mean:
		return "mean"
	default:
		return fmt.Sprintf("reducer(%d)", int(r))
	}
}

// GapPolicy decides what a week with no contributing rows reports.
type GapPolicy int

const (
	// GapZero reports 0 for an empty week.
	GapZero GapPolicy = iota
	// GapNoData marks an empty week as not present so that it is left out
	// of charts and further averaging.
	GapNoData
)

// ParseGapPolicy accepts "zero" and "no-data".
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch s {
	case "", "zero":
		return GapZero, nil
	case "no-data":
		return GapNoData, nil
	default:
		return GapZero, fmt.Errorf("unknown gap policy %q", s)
	}
}

func (g GapPolicy) String() string {
	if g == GapNoData {
		return "no-data"
	}
	return "zero"
}

// Metric describes one column to aggregate.
type Metric struct {
	Name   string
	Column string
	Reduce Reducer
	Gap    GapPolicy
}
