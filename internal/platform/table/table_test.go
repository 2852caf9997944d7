package table

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PadsRaggedRows(t *testing.T) {
	tbl := New("t", []string{"a", "b", "c"}, [][]string{{"1"}, {"1", "2", "3", "4"}})
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"1", "", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, tbl.Rows[1])
}

func TestTable_ColumnAndCell(t *testing.T) {
	tbl := New("t", []string{"id", "name"}, [][]string{{"1", "Ann"}, {"2", "Bob"}})
	assert.Equal(t, []string{"Ann", "Bob"}, tbl.Column("name"))
	assert.Nil(t, tbl.Column("missing"))
	assert.Equal(t, "Bob", tbl.Cell(1, "name"))
	assert.Equal(t, "", tbl.Cell(5, "name"))
	assert.Equal(t, "", tbl.Cell(0, "missing"))
}

func TestTable_NilSafe(t *testing.T) {
	var tbl *Table
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, -1, tbl.Index("x"))
	_, ok := Resolve(tbl, []string{"x"}, nil)
	assert.False(t, ok)
}

func TestTable_Filter(t *testing.T) {
	tbl := New("t", []string{"id"}, [][]string{{"1"}, {"2"}, {"3"}})
	out := tbl.Filter(func(row []string) bool { return row[0] != "2" })
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 3, tbl.Len())
}

func TestParseNumber(t *testing.T) {
	cases := map[string]struct {
		want float64
		ok   bool
	}{
		"7":     {7, true},
		" 14 ":  {14, true},
		"21.0":  {21, true},
		"":      {0, false},
		"abc":   {0, false},
		"NaN":   {0, false},
		"inf":   {0, false},
		"-0.25": {-0.25, true},
	}
	for in, tc := range cases {
		got, ok := ParseNumber(in)
		assert.Equal(t, tc.ok, ok, "input %q", in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", in)
		}
	}
}

func TestResolve_CaseAndWhitespaceInsensitive(t *testing.T) {
	variants := []string{"Patient ID", "patient id", "  PATIENT ID ", "Patient Id\t"}
	for _, v := range variants {
		tbl := New("t", []string{"Name", v}, nil)
		got, ok := Resolve(tbl, []string{"patient id"}, []string{"patient", "id"})
		require.True(t, ok, v)
		assert.Equal(t, v, got)
	}
}

func TestResolve_PrefersAliasOverContains(t *testing.T) {
	tbl := New("t", []string{"Patient Identifier Legacy", "Patient ID"}, nil)
	got, ok := Resolve(tbl, []string{"patient id"}, []string{"patient", "id"})
	require.True(t, ok)
	assert.Equal(t, "Patient ID", got)
}

func TestResolve_AliasPriorityOrder(t *testing.T) {
	tbl := New("t", []string{"login", "Logged In"}, nil)
	got, ok := Resolve(tbl, []string{"logged in", "login"}, nil)
	require.True(t, ok)
	assert.Equal(t, "Logged In", got)
}

func TestResolve_ContainsFallbackFirstHeaderWins(t *testing.T) {
	tbl := New("t", []string{"Age", "Alert level (overall)", "Alert source"}, nil)
	got, ok := Resolve(tbl, []string{"overall alert"}, []string{"alert"})
	require.True(t, ok)
	assert.Equal(t, "Alert level (overall)", got)
}

func TestResolve_ContainsRequiresEverySubstring(t *testing.T) {
	tbl := New("t", []string{"Patient Name", "Record ID"}, nil)
	_, ok := Resolve(tbl, []string{"patient id"}, []string{"patient", "id"})
	assert.False(t, ok)
}

func TestResolve_NoContainsMeansAbsent(t *testing.T) {
	tbl := New("t", []string{"Days since surgery"}, nil)
	_, ok := Resolve(tbl, []string{"day number", "day"}, nil)
	assert.False(t, ok)
}

func TestResolve_DuplicateNormalizedHeaderLaterWins(t *testing.T) {
	tbl := New("t", []string{"Age", " age "}, nil)
	got, ok := Resolve(tbl, []string{"age"}, nil)
	require.True(t, ok)
	assert.Equal(t, " age ", got)
}

func TestDefaultRules_CoverEveryField(t *testing.T) {
	rules := DefaultRules()
	for _, f := range []Field{
		FieldPatientID, FieldPatientName, FieldAge, FieldGender, FieldCondition,
		FieldAlert, FieldReason, FieldDay, FieldExercises, FieldRecovery, FieldLoggedIn,
	} {
		_, ok := rules.Rule(f)
		assert.True(t, ok, "missing rule for %s", f)
	}
	assert.Equal(t, FieldPatientID, rules.Fields()[0])
}

func TestRules_ResolveTimeseriesHeaders(t *testing.T) {
	rules := DefaultRules()
	tbl := New("timeseries", []string{"Patient Name ", "Day Number", "Exercises Completed", "Recovery Score", "Logged In"}, nil)

	cases := map[Field]string{
		FieldPatientName: "Patient Name ",
		FieldDay:         "Day Number",
		FieldExercises:   "Exercises Completed",
		FieldRecovery:    "Recovery Score",
		FieldLoggedIn:    "Logged In",
	}
	for f, want := range cases {
		got, ok := rules.Resolve(tbl, f)
		require.True(t, ok, f)
		assert.Equal(t, want, got)
	}
}

func TestRules_RequireReportsAllMissing(t *testing.T) {
	rules := DefaultRules()
	tbl := New("alerts", []string{"Patient Name"}, nil)
	got, err := rules.Require(tbl, FieldPatientName, FieldAlert, FieldReason)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrColumnNotFound))

	var colErr *ColumnError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, []Field{FieldAlert, FieldReason}, colErr.Fields)
	assert.Equal(t, "alerts", colErr.Table)
	assert.Equal(t, "Patient Name", got[FieldPatientName])
	assert.Contains(t, err.Error(), "alert, reason")
}

func TestLoadRules_OverridesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := []byte(`
- field: day
  aliases: [study day]
- field: pain
  aliases: [pain score]
  contains: [pain]
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	day, ok := rules.Rule(FieldDay)
	require.True(t, ok)
	assert.Equal(t, []string{"study day"}, day.Aliases)

	fields := rules.Fields()
	assert.Equal(t, Field("pain"), fields[len(fields)-1])
}

func TestLoadRules_EmptyPathIsDefault(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules().Fields(), rules.Fields())
}

func TestParseRules_Invalid(t *testing.T) {
	_, err := ParseRules([]byte(`- aliases: [x]`))
	assert.Error(t, err)

	_, err = ParseRules([]byte(`- field: x`))
	assert.Error(t, err)

	_, err = ParseRules([]byte(`{not: a list`))
	assert.Error(t, err)
}
