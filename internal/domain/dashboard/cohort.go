// Package dashboard assembles the clinician overview: headline counters,
// the three cohort checkpoint charts and the all-patients alert table.
package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mskdash/mskdash/internal/domain/checkpoint"
	"github.com/mskdash/mskdash/internal/platform/table"
)

// ErrUnknownMetric is returned for a cohort key other than logins,
// exercises or recovery.
var ErrUnknownMetric = errors.New("unknown checkpoint metric")

// Cohort metric keys.
const (
	MetricLogins    = "logins"
	MetricExercises = "exercises"
	MetricRecovery  = "recovery"
)

// Metrics lists the cohort keys in display order.
var Metrics = []string{MetricLogins, MetricExercises, MetricRecovery}

// Chart kinds.
const (
	KindLine = "line"
	KindBar  = "bar"
)

type cohortDef struct {
	key    string
	title  string
	yName  string
	kind   string
	field  table.Field
	reduce checkpoint.Reducer
}

var cohortDefs = map[string]cohortDef{
	MetricLogins: {
		key: MetricLogins, title: "Weekly Logins (All Patients)", yName: "Total logins",
		kind: KindLine, field: table.FieldLoggedIn, reduce: checkpoint.Sum,
	},
	MetricExercises: {
		key: MetricExercises, title: "Weekly Average Exercises (All Patients)", yName: "Avg exercises per day",
		kind: KindBar, field: table.FieldExercises, reduce: checkpoint.Sum,
	},
	MetricRecovery: {
		key: MetricRecovery, title: "Average Recovery Score Over 30 Days", yName: "Average recovery score",
		kind: KindLine, field: table.FieldRecovery, reduce: checkpoint.Mean,
	},
}

// WeekValue is one point of a cohort series.
type WeekValue struct {
	Week string `json:"week"`
	Day  int    `json:"day"`
	checkpoint.Value
}

// Cohort is one aggregated chart over all patients. When Warning is set
// the series could not be built and Weeks is empty.
type Cohort struct {
	Key   string      `json:"key"`
	Title string      `json:"title"`
	YName string      `json:"y_name"`
	Kind  string      `json:"kind"`
	Weeks []WeekValue `json:"weeks,omitempty"`
	// Totals holds the weekly sums behind a per-day average series.
	Totals []WeekValue `json:"totals,omitempty"`
	// ThirtyDayAverage is set for the exercises cohort.
	ThirtyDayAverage *float64 `json:"thirty_day_average,omitempty"`
	Gap              string   `json:"gap_policy,omitempty"`
	Warning          string   `json:"warning,omitempty"`
}

// Values returns the series as checkpoint values in week order.
func (c *Cohort) Values() []checkpoint.Value {
	out := make([]checkpoint.Value, len(c.Weeks))
	for i, w := range c.Weeks {
		out[i] = w.Value
	}
	return out
}

// BuildCohort aggregates one cohort metric over the time series. A
// missing day or metric column is a soft condition reported through
// Warning.
func BuildCohort(ts *table.Table, rules *table.Rules, key string, gap checkpoint.GapPolicy) (*Cohort, error) {
	def, ok := cohortDefs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, key)
	}
	c := &Cohort{Key: def.key, Title: def.title, YName: def.yName, Kind: def.kind}

	var missing []string
	dayCol, dayOK := rules.Resolve(ts, table.FieldDay)
	if !dayOK {
		missing = append(missing, "day number")
	}
	metricCol, metricOK := rules.Resolve(ts, def.field)
	if !metricOK {
		missing = append(missing, strings.ReplaceAll(string(def.field), "_", " "))
	}
	if len(missing) > 0 {
		c.Warning = "Missing column for: " + strings.Join(missing, ", ")
		return c, nil
	}

	m := checkpoint.Metric{Name: def.key, Column: metricCol, Reduce: def.reduce}
	if def.reduce == checkpoint.Mean {
		m.Gap = gap
		c.Gap = gap.String()
	}
	frame, err := checkpoint.Aggregate(ts, dayCol, m)
	if err != nil {
		return nil, err
	}
	values, _ := frame.Series(def.key)

	if key == MetricExercises {
		c.Totals = weeks(frame, values)
		avg := checkpoint.ThirtyDayAverage(values)
		c.ThirtyDayAverage = &avg
		values = checkpoint.AveragePerDay(values)
	}
	c.Weeks = weeks(frame, values)
	return c, nil
}

func weeks(f *checkpoint.Frame, values []checkpoint.Value) []WeekValue {
	out := make([]WeekValue, len(values))
	for i, v := range values {
		out[i] = WeekValue{Week: f.Rows[i].Week, Day: f.Rows[i].Day, Value: v}
	}
	return out
}
