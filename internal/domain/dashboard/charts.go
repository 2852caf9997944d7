package dashboard

import (
	"errors"
	"fmt"

	"github.com/mskdash/mskdash/internal/platform/chart"
	"github.com/mskdash/mskdash/internal/platform/telemetry"
	"github.com/mskdash/mskdash/internal/platform/view"
)

// Charts renders the cohorts. A cohort with a warning, or with no values
// to draw, becomes a warning slot.
func Charts(cohorts []*Cohort) ([]view.Chart, error) {
	out := make([]view.Chart, 0, len(cohorts))
	for _, c := range cohorts {
		if c.Warning != "" {
			out = append(out, view.WarningChart(c.Title, c.Warning))
			continue
		}
		spec := chart.Spec{Title: c.Title, YName: c.YName, Points: weeklyPoints(c)}
		var svg []byte
		var err error
		if c.Kind == KindBar {
			svg, err = chart.Bar(spec)
		} else {
			svg, err = chart.Line(spec)
		}
		if errors.Is(err, chart.ErrNoPoints) {
			telemetry.RecordWarning("cohort_chart")
			out = append(out, view.WarningChart(c.Title, "No data for any checkpoint week"))
			continue
		}
		if err != nil {
			telemetry.RecordFailure("cohort_chart")
			return nil, err
		}
		ch := view.NewChart(c.Title, svg)
		if c.ThirtyDayAverage != nil {
			ch.Note = fmt.Sprintf("30-day average: %s exercises per day", view.FormatNumber(2, *c.ThirtyDayAverage))
		}
		out = append(out, ch)
	}
	return out, nil
}

// weeklyPoints labels each cohort value with its checkpoint week.
func weeklyPoints(c *Cohort) []chart.Point {
	out := make([]chart.Point, len(c.Weeks))
	for i, w := range c.Weeks {
		out[i] = chart.Point{Label: w.Week, Value: w.Value.Value, Present: w.Present}
	}
	return out
}
