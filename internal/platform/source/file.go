package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mskdash/mskdash/internal/platform/table"
)

// FileConfig names the input files. Each name is a base name probed with
// .csv and .xlsx, first in Dir and then in Dir/data. A name that already
// carries one of those extensions is used as given.
type FileConfig struct {
	Dir          string
	Demographics string
	Alerts       string
	TimeSeries   string
	AlertFactors string
}

// DefaultFileConfig returns the conventional file names.
func DefaultFileConfig(dir string) FileConfig {
	return FileConfig{
		Dir:          dir,
		Demographics: "data_demographics",
		Alerts:       "data_overallalerts",
		TimeSeries:   "data_timeseries",
		AlertFactors: "data_alertfactors",
	}
}

// FileSource reads flat files from disk on every Load.
type FileSource struct {
	cfg FileConfig
}

func NewFileSource(cfg FileConfig) *FileSource {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	return &FileSource{cfg: cfg}
}

func (s *FileSource) Kind() string { return "file" }

// Candidates lists the paths probed for a base name, in order.
func (s *FileSource) Candidates(base string) []string {
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".xlsx":
		if filepath.IsAbs(base) {
			return []string{base}
		}
		return []string{filepath.Join(s.cfg.Dir, base), filepath.Join(s.cfg.Dir, "data", base)}
	}
	var out []string
	for _, dir := range []string{s.cfg.Dir, filepath.Join(s.cfg.Dir, "data")} {
		for _, ext := range []string{".csv", ".xlsx"} {
			out = append(out, filepath.Join(dir, base+ext))
		}
	}
	return out
}

// Locate returns the first existing candidate for base.
func (s *FileSource) Locate(base string) (string, error) {
	for _, p := range s.Candidates(base) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s under %s: %w", base, s.cfg.Dir, ErrTableNotFound)
}

func (s *FileSource) Load(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{LoadedAt: time.Now()}

	required := []struct {
		name string
		base string
		dst  **table.Table
	}{
		{Demographics, s.cfg.Demographics, &ds.Demographics},
		{Alerts, s.cfg.Alerts, &ds.Alerts},
		{TimeSeries, s.cfg.TimeSeries, &ds.TimeSeries},
	}
	for _, r := range required {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := s.read(r.name, r.base)
		if err != nil {
			return nil, err
		}
		*r.dst = t
	}

	if s.cfg.AlertFactors != "" {
		t, err := s.read(AlertFactors, s.cfg.AlertFactors)
		switch {
		case err == nil:
			ds.AlertFactors = t
		case !errors.Is(err, ErrTableNotFound):
			return nil, err
		}
	}
	return ds, nil
}

func (s *FileSource) Ping(context.Context) error {
	for _, base := range []string{s.cfg.Demographics, s.cfg.Alerts, s.cfg.TimeSeries} {
		if _, err := s.Locate(base); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileSource) read(name, base string) (*table.Table, error) {
	path, err := s.Locate(base)
	if err != nil {
		return nil, fmt.Errorf("could not find %s file: %w", name, err)
	}
	return ReadFile(path, name)
}

// ReadFile reads a CSV or XLSX file depending on its extension.
func ReadFile(path, name string) (*table.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := ReadCSV(f, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV reads a header row followed by data rows. Rows may have varying
// field counts; a UTF-8 byte order mark on the header is dropped.
func ReadCSV(r io.Reader, name string) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file, header row expected", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := table.New(name, header, nil)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		t.Append(rec)
	}
	return t, nil
}

// ReadXLSX reads the first worksheet of a workbook.
func ReadXLSX(path, name string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", name)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", name, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty sheet, header row expected", name)
	}
	return table.New(name, rows[0], rows[1:]), nil
}
