package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mskdash/mskdash/internal/domain/alerts"
	"github.com/mskdash/mskdash/internal/domain/dashboard"
	"github.com/mskdash/mskdash/internal/platform/db"
	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/table"
	"github.com/mskdash/mskdash/internal/platform/view"
)

var severityColors = map[string]*color.Color{
	alerts.SeverityLow:    color.New(color.FgGreen),
	alerts.SeverityMedium: color.New(color.FgYellow),
	alerts.SeverityHigh:   color.New(color.FgRed, color.Bold),
}

// loadForReport builds the app from configuration and loads one dataset.
func loadForReport(ctx context.Context) (*app, *source.Dataset, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	ds, err := source.LoadDataset(ctx, a.src)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, ds, nil
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print dashboard tables in the terminal",
	}
	cmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			color.NoColor = true
		}
	}

	// report alerts
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print the all-patients alert table",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("level")
			level, err := alerts.ParseLevel(level)
			if err != nil {
				return err
			}

			a, ds, err := loadForReport(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			tbl, err := alerts.Build(ds.Alerts, ds.Demographics, a.rules)
			if err != nil {
				return err
			}
			printAlerts(cmd.OutOrStdout(), tbl, level)
			return nil
		},
	}
	alertsCmd.Flags().String("level", "", "only show one severity (low, medium or high)")
	cmd.AddCommand(alertsCmd)

	// report weekly
	cmd.AddCommand(&cobra.Command{
		Use:   "weekly",
		Short: "Print the cohort checkpoint frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ds, err := loadForReport(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			svc := dashboard.NewService(a.src, a.rules, dashboard.Config{
				RegisteredPatients: a.cfg.RegisteredPatients,
				Gap:                a.gap,
			}, logger)
			ov, err := svc.Build(ds)
			if err != nil {
				return err
			}
			printCohorts(cmd.OutOrStdout(), ov.Cohorts)
			return nil
		},
	})

	return cmd
}

func columnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "Show which header carries each field in every input table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ds, err := loadForReport(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			printColumns(cmd.OutOrStdout(), ds, a.rules)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load the input files into the configured Postgres tables",
		Long: `Read the demographics, alerts, time series and (when present) alert
factors files from DATA_DIR and replace the Postgres tables named by the
PG_*_TABLE settings with their contents. Every column is stored as text
and blank cells as NULL. Each table is replaced in its own transaction.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required for import")
			}

			ctx := cmd.Context()
			ds, err := source.NewFileSource(fileConfig(cfg)).Load(ctx)
			if err != nil {
				return fmt.Errorf("read input files: %w", err)
			}

			pool, err := db.NewPool(ctx, db.PoolConfig{
				URL:      cfg.DatabaseURL,
				MaxConns: cfg.DBMaxConns,
				MinConns: cfg.DBMinConns,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			importer := db.NewImporter(pool)
			for _, it := range importPlan(ds, postgresTables(cfg)) {
				n, err := importer.Import(ctx, it.relation, it.table)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s (%d rows)\n",
					color.GreenString("✓"), it.table.Name, it.relation, n)
			}
			return nil
		},
	}
}

type importItem struct {
	relation string
	table    *table.Table
}

// importPlan pairs each loaded table with its target relation. The
// optional alert factors table is skipped when it was not loaded or has
// no target.
func importPlan(ds *source.Dataset, tables source.PostgresTables) []importItem {
	plan := []importItem{
		{tables.Demographics, ds.Demographics},
		{tables.Alerts, ds.Alerts},
		{tables.TimeSeries, ds.TimeSeries},
	}
	if ds.AlertFactors != nil && tables.AlertFactors != "" {
		plan = append(plan, importItem{tables.AlertFactors, ds.AlertFactors})
	}
	return plan
}

func printAlerts(w io.Writer, tbl *alerts.Table, level string) {
	rows := tbl.Rows
	if level != "" {
		rows = tbl.WithSeverity(level)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No alerts found.")
		return
	}

	headers := []string{"PATIENT", "ID", "CONDITION", "ALERT", "REASON"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		severity := row.Severity
		if severity == "" {
			severity = alerts.UnknownGlyph
		}
		cells[r] = []string{row.PatientName, row.PatientID, row.Condition, severity, row.Reason}
		for i, c := range cells[r] {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}

	bold := color.New(color.Bold)
	for i, h := range headers {
		fmt.Fprint(w, bold.Sprint(padRight(h, widths[i])), "  ")
	}
	fmt.Fprintln(w)
	for r, row := range rows {
		for i, c := range cells[r] {
			cell := padRight(c, widths[i])
			if i == 3 {
				if sc, ok := severityColors[row.Severity]; ok {
					cell = sc.Sprint(cell)
				}
			}
			fmt.Fprint(w, cell, "  ")
		}
		fmt.Fprintln(w)
	}

	faint := color.New(color.Faint)
	counts := tbl.Counts()
	fmt.Fprintln(w, faint.Sprintf("%d rows; high %d, medium %d, low %d", len(rows),
		counts[alerts.SeverityHigh], counts[alerts.SeverityMedium], counts[alerts.SeverityLow]))
}

func printCohorts(w io.Writer, cohorts []*dashboard.Cohort) {
	bold := color.New(color.Bold)
	for i, c := range cohorts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, bold.Sprint(c.Title))
		if c.Warning != "" {
			color.New(color.FgYellow).Fprintf(w, "⚠ %s\n", c.Warning)
			continue
		}

		fmt.Fprintf(w, "%s %s %s\n", padRight("WEEK", 6), padRight("DAY", 5), c.YName)
		for j, wk := range c.Weeks {
			value := "no data"
			if wk.Present {
				value = view.FormatNumber(2, wk.Value.Value)
			}
			line := fmt.Sprintf("%s %s %s", padRight(wk.Week, 6), padRight(fmt.Sprint(wk.Day), 5), value)
			if j < len(c.Totals) {
				line += color.New(color.Faint).Sprintf("  (total %s)", view.FormatNumber(0, c.Totals[j].Value.Value))
			}
			fmt.Fprintln(w, line)
		}
		if c.ThirtyDayAverage != nil {
			fmt.Fprintf(w, "30-day average: %s exercises per day\n", view.FormatNumber(2, *c.ThirtyDayAverage))
		}
		if c.Gap != "" {
			fmt.Fprintln(w, color.New(color.Faint).Sprintf("absent weeks: %s", c.Gap))
		}
	}
}

func printColumns(w io.Writer, ds *source.Dataset, rules *table.Rules) {
	tables := []*table.Table{ds.Demographics, ds.Alerts, ds.TimeSeries, ds.AlertFactors}
	names := []string{source.Demographics, source.Alerts, source.TimeSeries, source.AlertFactors}

	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if t == nil {
			fmt.Fprintln(w, bold.Sprint(names[i]), faint.Sprint("(not loaded)"))
			continue
		}
		fmt.Fprintln(w, bold.Sprint(names[i]), faint.Sprintf("(%d rows, %d columns)", t.Len(), len(t.Headers)))
		for _, f := range rules.Fields() {
			h, ok := rules.Resolve(t, f)
			if !ok {
				fmt.Fprintf(w, "  %s %s\n", padRight(string(f), 14), faint.Sprint("-"))
				continue
			}
			fmt.Fprintf(w, "  %s %s\n", padRight(string(f), 14), color.GreenString("%q", h))
		}
	}
}

func padRight(s string, length int) string {
	n := utf8.RuneCountInString(s)
	if n >= length {
		return s
	}
	return s + strings.Repeat(" ", length-n)
}
