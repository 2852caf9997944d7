package panel

import (
	"fmt"
	"strings"

	"github.com/mskdash/mskdash/internal/domain/alerts"
	"github.com/mskdash/mskdash/internal/platform/table"
)

// Strategy decides which identity key is tried first when matching a
// selection to time-series rows.
type Strategy string

const (
	StrategyNameFirst Strategy = "name-first"
	StrategyIDFirst   Strategy = "id-first"
)

// ParseStrategy accepts the configured strategy; empty means name-first.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.TrimSpace(s)) {
	case "", StrategyNameFirst:
		return StrategyNameFirst, nil
	case StrategyIDFirst:
		return StrategyIDFirst, nil
	}
	return "", fmt.Errorf("unknown match strategy %q (want %s or %s)", s, StrategyNameFirst, StrategyIDFirst)
}

// NormalizeName lowercases a name and drops every rune that is not an
// ASCII letter or digit, so "Jane O'Brien" and "jane obrien" share a key.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Selection identifies the patient picked in the roster.
type Selection struct {
	Name string `json:"name" query:"name"`
	ID   string `json:"id" query:"id"`
}

func (s Selection) Empty() bool {
	return strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.ID) == ""
}

// Header holds the quick facts shown above the charts.
type Header struct {
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	Age       string `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// Reading is one checkpoint day for the patient. Metric pointers are nil
// when the column is absent or every contributing value was missing.
type Reading struct {
	Day       int      `json:"day"`
	Week      string   `json:"week"`
	Rows      int      `json:"rows"`
	Exercises *float64 `json:"exercises,omitempty"`
	Recovery  *float64 `json:"recovery,omitempty"`
	// LoginRate is the mean of the login flags for the day.
	LoginRate *float64 `json:"login_rate,omitempty"`
	LoggedIn  bool     `json:"logged_in"`
}

// LoginSummary counts checkpoint weeks present and weeks logged in.
type LoginSummary struct {
	WeeksLogged int `json:"weeks_logged"`
	WeeksTotal  int `json:"weeks_total"`
	Percent     int `json:"percent"`
}

func (s LoginSummary) Fraction() string {
	return fmt.Sprintf("%d/%d weeks", s.WeeksLogged, s.WeeksTotal)
}

// Availability records which metric columns were found.
type Availability struct {
	Exercises bool `json:"exercises"`
	Recovery  bool `json:"recovery"`
	Login     bool `json:"login"`
}

// Panel is the assembled single-patient view.
type Panel struct {
	Selection Selection `json:"selection"`
	// MatchedBy is "name" or "id".
	MatchedBy string        `json:"matched_by"`
	Header    Header        `json:"header"`
	Readings  []Reading     `json:"readings"`
	Logins    *LoginSummary `json:"logins,omitempty"`
	Available Availability  `json:"available"`
	Alert     *alerts.Row   `json:"alert,omitempty"`
	Factors   *table.Table  `json:"factors,omitempty"`
}

// Series returns one metric across the readings for charting.
func (p *Panel) Series(metric string) (days []int, values []float64, present []bool) {
	for _, r := range p.Readings {
		var v *float64
		switch metric {
		case "exercises":
			v = r.Exercises
		case "recovery":
			v = r.Recovery
		case "login":
			x := 0.0
			if r.LoggedIn {
				x = 1
			}
			v = &x
		}
		days = append(days, r.Day)
		if v == nil {
			values = append(values, 0)
			present = append(present, false)
			continue
		}
		values = append(values, *v)
		present = append(present, true)
	}
	return days, values, present
}
