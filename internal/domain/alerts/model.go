package alerts

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Known severities after tidying.
const (
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

// UnknownGlyph prefixes any severity outside the known three.
const UnknownGlyph = "•"

var glyphs = map[string]string{
	SeverityLow:    "🟢",
	SeverityMedium: "🟡",
	SeverityHigh:   "🔴",
}

// Severities lists the known severities from least to most urgent.
var Severities = []string{SeverityLow, SeverityMedium, SeverityHigh}

// Tidy trims and title-cases a raw alert value: " HIGH " -> "High",
// "n/a" -> "N/A".
func Tidy(raw string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(raw))
}

// Glyph returns the coloured dot for a tidied severity, or UnknownGlyph.
func Glyph(severity string) string {
	if g, ok := glyphs[severity]; ok {
		return g
	}
	return UnknownGlyph
}

// Decorate tidies a raw alert value and prefixes its glyph.
func Decorate(raw string) string {
	s := Tidy(raw)
	if s == "" {
		return UnknownGlyph
	}
	return Glyph(s) + " " + s
}

// Row is one display-ready alert line.
type Row struct {
	PatientName string `json:"patient_name"`
	PatientID   string `json:"patient_id"`
	Condition   string `json:"condition"`
	Alert       string `json:"alert"`
	Reason      string `json:"reason"`

	// Severity is the tidied alert value behind Alert.
	Severity string `json:"-"`
}

// Level is a lowercase class name for styling: low, medium, high or unknown.
func (r Row) Level() string {
	if _, ok := glyphs[r.Severity]; ok {
		return strings.ToLower(r.Severity)
	}
	return "unknown"
}

// Table is the alert table in source order.
type Table struct {
	Rows []Row `json:"rows"`
}

// Counts returns the number of rows per tidied severity.
func (t *Table) Counts() map[string]int {
	out := make(map[string]int, len(Severities))
	for _, r := range t.Rows {
		out[r.Severity]++
	}
	return out
}

// WithSeverity returns the rows whose tidied severity equals Tidy(level).
func (t *Table) WithSeverity(level string) []Row {
	want := Tidy(level)
	var out []Row
	for _, r := range t.Rows {
		if r.Severity == want {
			out = append(out, r)
		}
	}
	return out
}
