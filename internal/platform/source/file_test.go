package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func seedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data_demographics.csv"), "Patient ID,Patient Name,Age\nP1,Ann Lee,54\n")
	writeFile(t, filepath.Join(dir, "data_overallalerts.csv"), "Patient ID,Patient Name,Overall Alert,Overall Reason\nP1,Ann Lee,high,Pain\n")
	writeFile(t, filepath.Join(dir, "data", "data_timeseries.csv"), "Patient Name,Day Number,Logged In\nAnn Lee,7,1\n")
	return dir
}

func TestReadCSV_HeaderAndRaggedRows(t *testing.T) {
	in := "\ufeffPatient ID,Name\nP1,Ann,extra\nP2\n"
	tbl, err := ReadCSV(strings.NewReader(in), "demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Patient ID", "Name"}, tbl.Headers)
	assert.Equal(t, [][]string{{"P1", "Ann"}, {"P2", ""}}, tbl.Rows)
	assert.Equal(t, "demo", tbl.Name)
}

func TestReadCSV_QuotedFields(t *testing.T) {
	in := "name,reason\n\"O'Brien, Jane\",\"Pain \"\"flare\"\"\"\n"
	tbl, err := ReadCSV(strings.NewReader(in), "alerts")
	require.NoError(t, err)
	assert.Equal(t, "O'Brien, Jane", tbl.Rows[0][0])
	assert.Equal(t, `Pain "flare"`, tbl.Rows[0][1])
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), "demo")
	assert.Error(t, err)
}

func TestFileSource_Candidates(t *testing.T) {
	s := NewFileSource(FileConfig{Dir: "/srv"})
	assert.Equal(t, []string{
		"/srv/x.csv", "/srv/x.xlsx", "/srv/data/x.csv", "/srv/data/x.xlsx",
	}, s.Candidates("x"))
	assert.Equal(t, []string{"/srv/x.xlsx", "/srv/data/x.xlsx"}, s.Candidates("x.xlsx"))
	assert.Equal(t, []string{"/abs/x.csv"}, s.Candidates("/abs/x.csv"))
}

func TestFileSource_LoadProbesDataDir(t *testing.T) {
	dir := seedDir(t)
	s := NewFileSource(DefaultFileConfig(dir))

	ds, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Demographics.Len())
	assert.Equal(t, 1, ds.Alerts.Len())
	assert.Equal(t, 1, ds.TimeSeries.Len())
	assert.Nil(t, ds.AlertFactors)
	assert.False(t, ds.LoadedAt.IsZero())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestFileSource_LoadOptionalAlertFactors(t *testing.T) {
	dir := seedDir(t)
	writeFile(t, filepath.Join(dir, "data_alertfactors.csv"), "Patient ID,Pain trend\nP1,rising\n")

	ds, err := NewFileSource(DefaultFileConfig(dir)).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ds.AlertFactors)
	assert.Equal(t, "rising", ds.AlertFactors.Rows[0][1])
}

func TestFileSource_MissingRequiredFile(t *testing.T) {
	dir := seedDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "data_overallalerts.csv")))

	s := NewFileSource(DefaultFileConfig(dir))
	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableNotFound))
	assert.Contains(t, err.Error(), "overall alerts")
	assert.Error(t, s.Ping(context.Background()))
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileSource(DefaultFileConfig(seedDir(t))).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data_demographics.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Patient ID", "Patient Name", "Age"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"P1", "Ann Lee", 54}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := ReadFile(path, Demographics)
	require.NoError(t, err)
	assert.Equal(t, []string{"Patient ID", "Patient Name", "Age"}, tbl.Headers)
	assert.Equal(t, []string{"P1", "Ann Lee", "54"}, tbl.Rows[0])
}

func TestStatic(t *testing.T) {
	_, err := (&Static{}).Load(context.Background())
	assert.ErrorIs(t, err, ErrTableNotFound)

	ds := &Dataset{}
	got, err := (&Static{Data: ds}).Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, ds, got)
}

func TestLoadDataset_WrapsUnavailable(t *testing.T) {
	_, err := LoadDataset(context.Background(), &Static{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrTableNotFound)

	ds, err := LoadDataset(context.Background(), NewFileSource(DefaultFileConfig(seedDir(t))))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.TimeSeries.Len())
}
