// Package panel assembles the single-patient view: identity matching
// across the demographics and time-series tables, checkpoint readings and
// login summary.
package panel

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/domain/alerts"
	"github.com/mskdash/mskdash/internal/domain/checkpoint"
	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/table"
)

// ErrNoData means the selection matched no checkpoint rows. It is an
// expected outcome, shown as an inline notice.
var ErrNoData = errors.New("no matching weekly rows (7, 14, 21, 30) found for the selected patient")

// LoginThreshold is the averaged login value at or above which a day
// counts as logged in.
const LoginThreshold = 0.5

type Assembler struct {
	Rules    *table.Rules
	Strategy Strategy
	Logger   zerolog.Logger
}

func NewAssembler(rules *table.Rules, strategy Strategy, logger zerolog.Logger) *Assembler {
	if rules == nil {
		rules = table.DefaultRules()
	}
	if strategy == "" {
		strategy = StrategyNameFirst
	}
	return &Assembler{Rules: rules, Strategy: strategy, Logger: logger}
}

type matcher struct {
	by   string
	rows func() []int
}

// Assemble builds the panel for sel from ds.
func (a *Assembler) Assemble(ds *source.Dataset, sel Selection) (*Panel, error) {
	if ds == nil || ds.TimeSeries == nil {
		return nil, errors.New("timeseries table is not loaded")
	}
	ts := ds.TimeSeries
	nameCol, hasName := a.Rules.Resolve(ts, table.FieldPatientName)
	idCol, hasID := a.Rules.Resolve(ts, table.FieldPatientID)
	if !hasName && !hasID {
		return nil, &table.ColumnError{Table: ts.Name, Fields: []table.Field{table.FieldPatientName, table.FieldPatientID}}
	}

	key := NormalizeName(sel.Name)
	id := strings.TrimSpace(sel.ID)
	nameIdx, idIdx := optIndex(ts, nameCol, hasName), optIndex(ts, idCol, hasID)

	byName := matcher{by: "name", rows: func() []int {
		if !hasName || key == "" {
			return nil
		}
		return matchRows(ts, func(row []string) bool { return NormalizeName(row[nameIdx]) == key })
	}}
	byID := matcher{by: "id", rows: func() []int {
		if !hasID || id == "" {
			return nil
		}
		return matchRows(ts, func(row []string) bool { return strings.TrimSpace(row[idIdx]) == id })
	}}
	order := []matcher{byName, byID}
	if a.Strategy == StrategyIDFirst {
		order = []matcher{byID, byName}
	}

	var rows []int
	var matchedBy string
	for _, m := range order {
		if rows = m.rows(); len(rows) > 0 {
			matchedBy = m.by
			break
		}
	}
	log := a.Logger.With().Str("patient_id", id).Str("strategy", string(a.Strategy)).Logger()
	if len(rows) == 0 {
		log.Info().Msg("no timeseries rows for selected patient")
		return nil, ErrNoData
	}
	a.checkAgreement(log, ts, rows, matchedBy, key, id, nameIdx, idIdx)

	dayCol, ok := a.Rules.Resolve(ts, table.FieldDay)
	if !ok {
		log.Warn().Str("table", ts.Name).Msg("no day column on timeseries")
		return nil, ErrNoData
	}

	p := &Panel{Selection: sel, MatchedBy: matchedBy}
	exCol, exOK := a.Rules.Resolve(ts, table.FieldExercises)
	recCol, recOK := a.Rules.Resolve(ts, table.FieldRecovery)
	loginCol, loginOK := a.Rules.Resolve(ts, table.FieldLoggedIn)
	p.Available = Availability{Exercises: exOK, Recovery: recOK, Login: loginOK}

	p.Readings = readings(ts, rows, ts.Index(dayCol), optIndex(ts, exCol, exOK), optIndex(ts, recCol, recOK), optIndex(ts, loginCol, loginOK))
	if len(p.Readings) == 0 {
		log.Info().Int("rows", len(rows)).Msg("selected patient has no checkpoint-day rows")
		return nil, ErrNoData
	}
	if loginOK {
		p.Logins = summarize(p.Readings)
	}

	p.Header = a.header(ds.Demographics, sel, key, id)
	p.Alert = a.alertRow(ds, p.Header.ID, key)
	p.Factors = a.factors(ds.AlertFactors, p.Header.ID, key)
	return p, nil
}

// checkAgreement logs rows whose other identity key disagrees with the
// selection, so name collisions are visible to operators.
func (a *Assembler) checkAgreement(log zerolog.Logger, ts *table.Table, rows []int, matchedBy, key, id string, nameIdx, idIdx int) {
	var conflicts []string
	seen := map[string]bool{}
	for _, r := range rows {
		row := ts.Rows[r]
		var other string
		switch {
		case matchedBy == "name" && idIdx >= 0 && id != "":
			if v := strings.TrimSpace(row[idIdx]); v != id {
				other = v
			}
		case matchedBy == "id" && nameIdx >= 0 && key != "":
			if v := NormalizeName(row[nameIdx]); v != key {
				other = v
			}
		}
		if other != "" && !seen[other] {
			seen[other] = true
			conflicts = append(conflicts, other)
		}
	}
	if len(conflicts) > 0 {
		log.Warn().
			Str("matched_by", matchedBy).
			Int("conflicting_rows", len(conflicts)).
			Strs("other_keys", conflicts).
			Msg("patient name and identifier disagree")
	}
}

func matchRows(t *table.Table, keep func(row []string) bool) []int {
	var out []int
	for i, row := range t.Rows {
		if keep(row) {
			out = append(out, i)
		}
	}
	return out
}

func optIndex(t *table.Table, col string, ok bool) int {
	if !ok {
		return -1
	}
	return t.Index(col)
}

type mean struct {
	sum   float64
	count int
}

func (m mean) value() *float64 {
	if m.count == 0 {
		return nil
	}
	v := m.sum / float64(m.count)
	return &v
}

func (m *mean) add(cell string) {
	if v, ok := table.ParseNumber(cell); ok {
		m.sum += v
		m.count++
	}
}

// readings averages duplicate same-day rows per metric and keeps
// checkpoint days only, in day order.
func readings(ts *table.Table, rows []int, dayIdx, exIdx, recIdx, loginIdx int) []Reading {
	type acc struct {
		rows                    int
		exercises, recovery, in mean
	}
	byDay := map[int]*acc{}
	for _, r := range rows {
		row := ts.Rows[r]
		v, ok := table.ParseNumber(row[dayIdx])
		if !ok {
			continue
		}
		day, ok := checkpoint.Match(v)
		if !ok {
			continue
		}
		a := byDay[day]
		if a == nil {
			a = &acc{}
			byDay[day] = a
		}
		a.rows++
		if exIdx >= 0 {
			a.exercises.add(row[exIdx])
		}
		if recIdx >= 0 {
			a.recovery.add(row[recIdx])
		}
		if loginIdx >= 0 {
			a.in.add(row[loginIdx])
		}
	}

	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Ints(days)

	out := make([]Reading, 0, len(days))
	for _, d := range days {
		a := byDay[d]
		week, _ := checkpoint.WeekLabel(d)
		rd := Reading{
			Day:       d,
			Week:      week,
			Rows:      a.rows,
			Exercises: a.exercises.value(),
			Recovery:  a.recovery.value(),
			LoginRate: a.in.value(),
		}
		rd.LoggedIn = rd.LoginRate != nil && *rd.LoginRate >= LoginThreshold
		out = append(out, rd)
	}
	return out
}

func summarize(rs []Reading) *LoginSummary {
	s := &LoginSummary{WeeksTotal: len(rs)}
	for _, r := range rs {
		if r.LoggedIn {
			s.WeeksLogged++
		}
	}
	if s.WeeksTotal > 0 {
		s.Percent = int(math.Round(float64(s.WeeksLogged) / float64(s.WeeksTotal) * 100))
	}
	return s
}

// header looks the patient up in demographics by name key, then by
// identifier.
func (a *Assembler) header(demo *table.Table, sel Selection, key, id string) Header {
	h := Header{Name: strings.TrimSpace(sel.Name), ID: id}
	if demo == nil {
		return h
	}
	cols := map[table.Field]int{}
	for _, f := range []table.Field{table.FieldPatientName, table.FieldPatientID, table.FieldAge, table.FieldGender, table.FieldCondition} {
		if col, ok := a.Rules.Resolve(demo, f); ok {
			cols[f] = demo.Index(col)
		}
	}

	row := -1
	if i, ok := cols[table.FieldPatientName]; ok && key != "" {
		row = firstRow(demo, func(r []string) bool { return NormalizeName(r[i]) == key })
	}
	if i, ok := cols[table.FieldPatientID]; ok && row < 0 && id != "" {
		row = firstRow(demo, func(r []string) bool { return strings.TrimSpace(r[i]) == id })
	}
	if row < 0 {
		return h
	}

	cell := func(f table.Field) string {
		if i, ok := cols[f]; ok {
			return strings.TrimSpace(demo.Rows[row][i])
		}
		return ""
	}
	if v := cell(table.FieldPatientID); v != "" {
		h.ID = v
	}
	if h.Name == "" {
		h.Name = cell(table.FieldPatientName)
	}
	h.Age = cell(table.FieldAge)
	h.Gender = cell(table.FieldGender)
	h.Condition = cell(table.FieldCondition)
	return h
}

func firstRow(t *table.Table, keep func([]string) bool) int {
	for i, row := range t.Rows {
		if keep(row) {
			return i
		}
	}
	return -1
}

func (a *Assembler) alertRow(ds *source.Dataset, id, key string) *alerts.Row {
	if ds.Alerts == nil {
		return nil
	}
	tbl, err := alerts.Build(ds.Alerts, ds.Demographics, a.Rules)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("alert row unavailable for panel")
		return nil
	}
	for i, r := range tbl.Rows {
		if id != "" && strings.TrimSpace(r.PatientID) == id {
			return &tbl.Rows[i]
		}
	}
	if key == "" {
		return nil
	}
	for i, r := range tbl.Rows {
		if NormalizeName(r.PatientName) == key {
			return &tbl.Rows[i]
		}
	}
	return nil
}

// factors returns the alert-factor rows for the patient, or nil.
func (a *Assembler) factors(af *table.Table, id, key string) *table.Table {
	if af == nil {
		return nil
	}
	idCol, hasID := a.Rules.Resolve(af, table.FieldPatientID)
	nameCol, hasName := a.Rules.Resolve(af, table.FieldPatientName)
	if !hasID && !hasName {
		return nil
	}
	idIdx, nameIdx := optIndex(af, idCol, hasID), optIndex(af, nameCol, hasName)
	out := af.Filter(func(row []string) bool {
		if hasID && id != "" && strings.TrimSpace(row[idIdx]) == id {
			return true
		}
		return hasName && key != "" && NormalizeName(row[nameIdx]) == key
	})
	if out.Len() == 0 {
		return nil
	}
	return out
}
