// Package source loads the dashboard's input tables. A Dataset is loaded
// fresh for every render and passed explicitly to the domain packages.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mskdash/mskdash/internal/platform/table"
	"github.com/mskdash/mskdash/internal/platform/telemetry"
)

var (
	// ErrTableNotFound is returned when a required input cannot be located.
	ErrTableNotFound = errors.New("table not found")
	// ErrUnavailable wraps every failure returned by LoadDataset.
	ErrUnavailable = errors.New("data source unavailable")
)

// Table names used in logs and errors.
const (
	Demographics = "demographics"
	Alerts       = "overall alerts"
	TimeSeries   = "timeseries"
	AlertFactors = "alert factors"
)

// Dataset is everything one render reads.
type Dataset struct {
	Demographics *table.Table
	Alerts       *table.Table
	TimeSeries   *table.Table
	// AlertFactors is optional and may be nil.
	AlertFactors *table.Table
	LoadedAt     time.Time
}

// Source loads a Dataset.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
	// Ping reports whether the source is reachable.
	Ping(ctx context.Context) error
	// Kind names the backend for health output and metrics.
	Kind() string
}

// Static serves a fixed dataset.
type Static struct {
	Data *Dataset
}

func (s *Static) Load(context.Context) (*Dataset, error) {
	if s.Data == nil {
		return nil, ErrTableNotFound
	}
	return s.Data, nil
}

func (s *Static) Ping(context.Context) error { return nil }

func (s *Static) Kind() string { return "static" }

// LoadDataset loads from src and records the load in metrics. Errors wrap
// ErrUnavailable as well as the underlying cause.
func LoadDataset(ctx context.Context, src Source) (*Dataset, error) {
	start := time.Now()
	ds, err := src.Load(ctx)
	telemetry.ObserveLoad(src.Kind(), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	telemetry.SetTableRows(Demographics, ds.Demographics.Len())
	telemetry.SetTableRows(Alerts, ds.Alerts.Len())
	telemetry.SetTableRows(TimeSeries, ds.TimeSeries.Len())
	telemetry.SetTableRows(AlertFactors, ds.AlertFactors.Len())
	return ds, nil
}
