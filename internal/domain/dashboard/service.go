package dashboard

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/domain/alerts"
	"github.com/mskdash/mskdash/internal/domain/checkpoint"
	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/table"
	"github.com/mskdash/mskdash/internal/platform/telemetry"
)

// Counter is one headline number.
type Counter struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Overview is everything the dashboard page shows. A failed alert table
// sets AlertsError; the counters and charts still render.
type Overview struct {
	Counters    []Counter     `json:"counters"`
	Cohorts     []*Cohort     `json:"cohorts"`
	Alerts      *alerts.Table `json:"alerts,omitempty"`
	AlertsError string        `json:"alerts_error,omitempty"`
}

// Config holds the overview settings.
type Config struct {
	// RegisteredPatients is the app-wide registration count, which the
	// input tables do not carry.
	RegisteredPatients int
	Gap                checkpoint.GapPolicy
}

type Service struct {
	src    source.Source
	rules  *table.Rules
	cfg    Config
	logger zerolog.Logger
}

func NewService(src source.Source, rules *table.Rules, cfg Config, logger zerolog.Logger) *Service {
	if rules == nil {
		rules = table.DefaultRules()
	}
	return &Service{src: src, rules: rules, cfg: cfg, logger: logger}
}

// Overview loads a fresh dataset and builds the overview from it.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	ds, err := source.LoadDataset(ctx, s.src)
	if err != nil {
		return nil, err
	}
	return s.Build(ds)
}

// Build assembles the overview from a loaded dataset.
func (s *Service) Build(ds *source.Dataset) (*Overview, error) {
	ov := &Overview{}

	for _, key := range Metrics {
		c, err := BuildCohort(ds.TimeSeries, s.rules, key, s.cfg.Gap)
		if err != nil {
			telemetry.RecordFailure("cohort_chart")
			return nil, err
		}
		if c.Warning != "" {
			telemetry.RecordWarning("cohort_chart")
			s.logger.Warn().Str("chart", key).Str("warning", c.Warning).Msg("cohort chart skipped")
		}
		ov.Cohorts = append(ov.Cohorts, c)
	}

	tbl, err := alerts.Build(ds.Alerts, ds.Demographics, s.rules)
	switch {
	case err == nil:
		ov.Alerts = tbl
	case errors.Is(err, alerts.ErrMissingColumns):
		telemetry.RecordFailure("alerts_table")
		s.logger.Error().Err(err).Msg("alerts table unavailable")
		ov.AlertsError = "Missing required columns for the alerts table. " +
			"Needed: Patient name, Patient ID, Condition, Overall alert, Overall reason."
	default:
		telemetry.RecordFailure("alerts_table")
		s.logger.Error().Err(err).Msg("alerts table unavailable")
		ov.AlertsError = "Could not build the alerts table."
	}

	highAlerts := "n/a"
	if ov.Alerts != nil {
		highAlerts = strconv.Itoa(ov.Alerts.Counts()[alerts.SeverityHigh])
	}
	ov.Counters = []Counter{
		{Key: "registered", Label: "Total Patients registered in app", Value: strconv.Itoa(s.cfg.RegisteredPatients)},
		{Key: "caseload", Label: "Patients in my caseload", Value: strconv.Itoa(ds.Demographics.Len())},
		{Key: "high_alerts", Label: "Patients with high alerts", Value: highAlerts},
	}
	return ov, nil
}

// Checkpoints loads a fresh dataset and builds one cohort series.
func (s *Service) Checkpoints(ctx context.Context, metric string) (*Cohort, error) {
	if _, ok := cohortDefs[metric]; !ok {
		return nil, ErrUnknownMetric
	}
	ds, err := source.LoadDataset(ctx, s.src)
	if err != nil {
		return nil, err
	}
	return BuildCohort(ds.TimeSeries, s.rules, metric, s.cfg.Gap)
}
