package checkpoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mskdash/mskdash/internal/platform/table"
)

func timeseries(rows ...[]string) *table.Table {
	return table.New("timeseries", []string{"patient", "day number", "exercises", "recovery", "logged in"}, rows)
}

func TestWeekLabel(t *testing.T) {
	for i, day := range Days {
		got, ok := WeekLabel(day)
		require.True(t, ok)
		assert.Equal(t, Weeks[i], got)
	}
	_, ok := WeekLabel(8)
	assert.False(t, ok)
}

func TestMatch(t *testing.T) {
	day, ok := Match(14.0)
	assert.True(t, ok)
	assert.Equal(t, 14, day)

	_, ok = Match(7.5)
	assert.False(t, ok)
	_, ok = Match(3)
	assert.False(t, ok)
}

func TestParseGapPolicy(t *testing.T) {
	g, err := ParseGapPolicy("no-data")
	require.NoError(t, err)
	assert.Equal(t, GapNoData, g)

	g, err = ParseGapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, GapZero, g)

	_, err = ParseGapPolicy("drop")
	assert.Error(t, err)
}

func TestAggregate_AlwaysFourRowsInOrder(t *testing.T) {
	ts := timeseries(
		[]string{"a", "30", "2", "", "1"},
		[]string{"a", "7", "1", "", "1"},
		[]string{"a", "3", "9", "", "1"},
	)
	f, err := Aggregate(ts, "day number", Metric{Name: "total", Column: "exercises", Reduce: Sum})
	require.NoError(t, err)
	require.Len(t, f.Rows, 4)
	for i, r := range f.Rows {
		assert.Equal(t, Days[i], r.Day)
		assert.Equal(t, Weeks[i], r.Week)
	}
	vals, ok := f.Series("total")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0, 0, 2}, Floats(vals))
}

func TestAggregate_MissingWeekSumIsZero(t *testing.T) {
	ts := timeseries(
		[]string{"a", "7", "1", "50", "1"},
		[]string{"b", "7", "2", "60", "0"},
		[]string{"a", "14", "3", "70", "1"},
		[]string{"a", "30", "4", "80", "1"},
	)
	f, err := Aggregate(ts, "day number",
		Metric{Name: "logins", Column: "logged in", Reduce: Sum},
		Metric{Name: "exercises", Column: "exercises", Reduce: Sum},
	)
	require.NoError(t, err)

	w3 := f.Rows[2]
	assert.Equal(t, "W3", w3.Week)
	assert.Equal(t, Value{Value: 0, Count: 0, Present: true}, w3.Values["logins"])
	assert.Equal(t, 0.0, w3.Values["exercises"].Value)

	logins, _ := f.Series("logins")
	assert.Equal(t, []float64{1, 1, 0, 1}, Floats(logins))
}

// An empty week for a mean metric defaults to zero under GapZero; this
// mirrors the current cohort recovery chart.
func TestAggregate_MissingWeekMeanGapZero(t *testing.T) {
	ts := timeseries(
		[]string{"a", "7", "", "50", ""},
		[]string{"b", "7", "", "70", ""},
	)
	f, err := Aggregate(ts, "day number", Metric{Name: "recovery", Column: "recovery", Reduce: Mean, Gap: GapZero})
	require.NoError(t, err)

	vals, _ := f.Series("recovery")
	assert.Equal(t, 60.0, vals[0].Value)
	assert.Equal(t, Value{Value: 0, Count: 0, Present: true}, vals[2])
}

// Under GapNoData the same empty week is reported as absent instead.
func TestAggregate_MissingWeekMeanGapNoData(t *testing.T) {
	ts := timeseries([]string{"a", "7", "", "50", ""})
	f, err := Aggregate(ts, "day number", Metric{Name: "recovery", Column: "recovery", Reduce: Mean, Gap: GapNoData})
	require.NoError(t, err)

	vals, _ := f.Series("recovery")
	assert.True(t, vals[0].Present)
	for _, v := range vals[1:] {
		assert.False(t, v.Present)
		assert.Equal(t, 0.0, v.Value)
	}
}

func TestAggregate_MeanExcludesMissingValues(t *testing.T) {
	ts := timeseries(
		[]string{"a", "14", "", "40", ""},
		[]string{"b", "14", "", "n/a", ""},
		[]string{"c", "14", "", "", ""},
		[]string{"d", "14", "", "80", ""},
	)
	f, err := Aggregate(ts, "day number", Metric{Name: "recovery", Column: "recovery", Reduce: Mean})
	require.NoError(t, err)
	v := f.Rows[1].Values["recovery"]
	assert.Equal(t, 60.0, v.Value)
	assert.Equal(t, 2, v.Count)
}

func TestAggregate_SumZeroFillsMissingValues(t *testing.T) {
	ts := timeseries(
		[]string{"a", "21", "3", "", "yes"},
		[]string{"b", "21", "", "", "1"},
	)
	f, err := Aggregate(ts, "day number",
		Metric{Name: "exercises", Column: "exercises", Reduce: Sum},
		Metric{Name: "logins", Column: "logged in", Reduce: Sum},
	)
	require.NoError(t, err)
	assert.Equal(t, Value{Value: 3, Count: 2, Present: true}, f.Rows[2].Values["exercises"])
	assert.Equal(t, Value{Value: 1, Count: 2, Present: true}, f.Rows[2].Values["logins"])
}

func TestAggregate_DropsRowsWithoutDay(t *testing.T) {
	ts := timeseries(
		[]string{"a", "", "100", "", ""},
		[]string{"a", "week one", "100", "", ""},
		[]string{"a", "7.0", "5", "", ""},
	)
	f, err := Aggregate(ts, "day number", Metric{Name: "exercises", Column: "exercises", Reduce: Sum})
	require.NoError(t, err)
	vals, _ := f.Series("exercises")
	assert.Equal(t, []float64{5, 0, 0, 0}, Floats(vals))
}

func TestAggregate_MissingColumns(t *testing.T) {
	ts := timeseries()

	_, err := Aggregate(ts, "day", Metric{Name: "x", Column: "exercises"})
	assert.True(t, errors.Is(err, table.ErrColumnNotFound))

	_, err = Aggregate(ts, "day number", Metric{Name: "x", Column: "pain"})
	assert.True(t, errors.Is(err, table.ErrColumnNotFound))

	_, err = Aggregate(ts, "day number")
	assert.Error(t, err)
}

func TestDerivedAverages(t *testing.T) {
	ts := timeseries(
		[]string{"a", "7", "10", "", ""},
		[]string{"a", "14", "0", "", ""},
		[]string{"a", "21", "5", "", ""},
		[]string{"a", "30", "20", "", ""},
	)
	f, err := Aggregate(ts, "day number", Metric{Name: "total", Column: "exercises", Reduce: Sum})
	require.NoError(t, err)
	vals, _ := f.Series("total")

	perDay := Floats(AveragePerDay(vals))
	want := []float64{10.0 / 7, 0.0 / 7, 5.0 / 7, 20.0 / 7}
	for i := range want {
		assert.InDelta(t, want[i], perDay[i], 1e-12)
	}
	assert.InDelta(t, 35.0/30, ThirtyDayAverage(vals), 1e-12)
}

func TestThirtyDayAverage_SkipsAbsentWeeks(t *testing.T) {
	vals := []Value{{Value: 30, Present: true}, {Value: 99, Present: false}, {}, {Value: 30, Present: true}}
	assert.InDelta(t, 2.0, ThirtyDayAverage(vals), 1e-12)
}

func TestFrame_SeriesUnknown(t *testing.T) {
	f := &Frame{}
	_, ok := f.Series("x")
	assert.False(t, ok)
}
