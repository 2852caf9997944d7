package panel

import (
	"errors"

	"github.com/mskdash/mskdash/internal/platform/chart"
	"github.com/mskdash/mskdash/internal/platform/telemetry"
	"github.com/mskdash/mskdash/internal/platform/view"
)

// Chart titles on the panel page.
const (
	TitleExercises = "Exercises completed (weekly)"
	TitleRecovery  = "Recovery score"
	TitleLogin     = "Logged in this week"
)

// MissingColumnWarning is shown in place of a chart whose column is absent.
func MissingColumnWarning(title string) string {
	return "Missing column for: " + title
}

// Charts renders the three per-patient series. A missing metric column or
// a series without values becomes a warning slot; a render failure is
// returned.
func Charts(p *Panel) ([]view.Chart, error) {
	out := make([]view.Chart, 0, 3)

	lines := []struct {
		title  string
		yName  string
		metric string
		ok     bool
	}{
		{TitleExercises, "Exercises", "exercises", p.Available.Exercises},
		{TitleRecovery, "Score", "recovery", p.Available.Recovery},
	}
	for _, l := range lines {
		if !l.ok {
			telemetry.RecordWarning("panel_chart")
			out = append(out, view.WarningChart(l.title, MissingColumnWarning(l.title)))
			continue
		}
		days, values, present := p.Series(l.metric)
		svg, err := chart.Line(chart.Spec{Title: l.title, YName: l.yName, XName: "Day", Points: chart.Days(days, values, present)})
		if errors.Is(err, chart.ErrNoPoints) {
			telemetry.RecordWarning("panel_chart")
			out = append(out, view.WarningChart(l.title, "No recorded values for this patient"))
			continue
		}
		if err != nil {
			telemetry.RecordFailure("panel_chart")
			return nil, err
		}
		out = append(out, view.NewChart(l.title, svg))
	}

	if !p.Available.Login {
		telemetry.RecordWarning("panel_chart")
		out = append(out, view.WarningChart(TitleLogin, MissingColumnWarning(TitleLogin)))
		return out, nil
	}
	days, values, present := p.Series("login")
	svg, err := chart.Bar(chart.Spec{
		Title:  TitleLogin,
		YName:  "Logged in",
		Points: chart.Days(days, values, present),
		YMax:   1.1,
		YTicks: []chart.Tick{{Value: 0, Label: "No"}, {Value: 1, Label: "Yes"}},
	})
	if err != nil {
		telemetry.RecordFailure("panel_chart")
		return nil, err
	}
	c := view.NewChart(TitleLogin, svg)
	if p.Logins != nil {
		c.Note = "Logged in " + p.Logins.Fraction()
	}
	return append(out, c), nil
}
