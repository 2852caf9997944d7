package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mskdash/mskdash/internal/config"
	"github.com/mskdash/mskdash/internal/domain/alerts"
	"github.com/mskdash/mskdash/internal/domain/checkpoint"
	"github.com/mskdash/mskdash/internal/domain/dashboard"
	"github.com/mskdash/mskdash/internal/domain/panel"
	"github.com/mskdash/mskdash/internal/domain/roster"
	"github.com/mskdash/mskdash/internal/platform/auth"
	"github.com/mskdash/mskdash/internal/platform/db"
	"github.com/mskdash/mskdash/internal/platform/middleware"
	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/table"
	"github.com/mskdash/mskdash/internal/platform/telemetry"
	"github.com/mskdash/mskdash/internal/platform/view"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "mskdash",
		Short:        "MSK clinician dashboard",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(columnsCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg == nil || cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if cfg != nil {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
			logger = logger.Level(lvl)
		}
	}
	return logger
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds what every command builds from the configuration.
type app struct {
	cfg      *config.Config
	rules    *table.Rules
	src      source.Source
	pool     *pgxpool.Pool
	gap      checkpoint.GapPolicy
	strategy panel.Strategy
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	rules, err := table.LoadRules(cfg.ColumnRulesFile)
	if err != nil {
		return nil, fmt.Errorf("column rules: %w", err)
	}
	gap, err := checkpoint.ParseGapPolicy(cfg.MeanGapPolicy)
	if err != nil {
		return nil, err
	}
	strategy, err := panel.ParseStrategy(cfg.MatchStrategy)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, rules: rules, gap: gap, strategy: strategy}
	switch cfg.DataSource {
	case config.SourcePostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:              cfg.DatabaseURL,
			MaxConns:         cfg.DBMaxConns,
			MinConns:         cfg.DBMinConns,
			ReadOnly:         true,
			StatementTimeout: cfg.RequestTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.src = source.NewPostgresSource(pool, postgresTables(cfg))
	default:
		a.src = source.NewFileSource(fileConfig(cfg))
	}
	return a, nil
}

func fileConfig(cfg *config.Config) source.FileConfig {
	return source.FileConfig{
		Dir:          cfg.DataDir,
		Demographics: cfg.DemographicsFile,
		Alerts:       cfg.AlertsFile,
		TimeSeries:   cfg.TimeSeriesFile,
		AlertFactors: cfg.AlertFactorsFile,
	}
}

func postgresTables(cfg *config.Config) source.PostgresTables {
	return source.PostgresTables{
		Demographics: cfg.PGDemographicsTable,
		Alerts:       cfg.PGAlertsTable,
		TimeSeries:   cfg.PGTimeSeriesTable,
		AlertFactors: cfg.PGAlertFactorsTable,
	}
}

func runServer() error {
	// Config
	cfg, err := loadConfig()
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise data source")
	}
	defer a.Close()
	logger.Info().Str("source", a.src.Kind()).Str("gap_policy", a.gap.String()).
		Str("match_strategy", string(a.strategy)).Msg("data source configured")

	renderer, err := view.New(auth.ClinicianName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse templates")
	}

	e := newServer(a, renderer, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with every route registered.
func newServer(a *app, renderer echo.Renderer, logger zerolog.Logger) *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = errorHandler(e, logger)

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.MetricsMiddleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	if cfg.UseJWT() {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	} else {
		e.Use(auth.DevAuthMiddleware(cfg.ClinicianName))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	e.StaticFS("/static", view.Static())
	e.GET("/health", db.HealthHandler(a.src, a.pool, version))
	e.GET("/metrics", telemetry.Handler())

	apiV1 := e.Group("/api/v1")
	apiV1.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	pages := e.Group("")

	dashSvc := dashboard.NewService(a.src, a.rules, dashboard.Config{
		RegisteredPatients: cfg.RegisteredPatients,
		Gap:                a.gap,
	}, logger)
	dashboard.NewHandler(dashSvc, logger).RegisterRoutes(apiV1, pages)

	alertSvc := alerts.NewService(a.src, a.rules)
	alerts.NewHandler(alertSvc, logger).RegisterRoutes(apiV1)

	rosterSvc := roster.NewService(a.src, a.rules, 0)
	roster.NewHandler(rosterSvc, logger).RegisterRoutes(apiV1, pages)

	panelSvc := panel.NewService(a.src, panel.NewAssembler(a.rules, a.strategy, logger))
	panel.NewHandler(panelSvc, logger).RegisterRoutes(apiV1, pages)

	return e
}

// errorHandler renders the HTML error page for browser routes and falls
// back to echo's JSON errors for the API and operational endpoints.
func errorHandler(e *echo.Echo, logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/static/") {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		code := http.StatusInternalServerError
		msg := "Something went wrong while preparing this page."
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}
		data := view.ErrorData{Status: code, Title: http.StatusText(code), Message: msg}
		if rerr := c.Render(code, view.PageError, data); rerr != nil {
			logger.Error().Err(rerr).Msg("failed to render error page")
			e.DefaultHTTPErrorHandler(err, c)
		}
	}
}
