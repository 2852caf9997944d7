package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Data source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DataSource       string `mapstructure:"DATA_SOURCE"`
	DataDir          string `mapstructure:"DATA_DIR"`
	DemographicsFile string `mapstructure:"DEMOGRAPHICS_FILE"`
	AlertsFile       string `mapstructure:"ALERTS_FILE"`
	TimeSeriesFile   string `mapstructure:"TIMESERIES_FILE"`
	AlertFactorsFile string `mapstructure:"ALERT_FACTORS_FILE"`

	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32  `mapstructure:"DB_MIN_CONNS"`
	PGDemographicsTable string `mapstructure:"PG_DEMOGRAPHICS_TABLE"`
	PGAlertsTable       string `mapstructure:"PG_ALERTS_TABLE"`
	PGTimeSeriesTable   string `mapstructure:"PG_TIMESERIES_TABLE"`
	PGAlertFactorsTable string `mapstructure:"PG_ALERT_FACTORS_TABLE"`

	ColumnRulesFile    string `mapstructure:"COLUMN_RULES_FILE"`
	MeanGapPolicy      string `mapstructure:"MEAN_GAP_POLICY"`
	MatchStrategy      string `mapstructure:"MATCH_STRATEGY"`
	RegisteredPatients int    `mapstructure:"REGISTERED_PATIENTS"`

	ClinicianName  string   `mapstructure:"CLINICIAN_NAME"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATA_SOURCE", "DATA_DIR", "DEMOGRAPHICS_FILE", "ALERTS_FILE", "TIMESERIES_FILE", "ALERT_FACTORS_FILE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"PG_DEMOGRAPHICS_TABLE", "PG_ALERTS_TABLE", "PG_TIMESERIES_TABLE", "PG_ALERT_FACTORS_TABLE",
	"COLUMN_RULES_FILE", "MEAN_GAP_POLICY", "MATCH_STRATEGY", "REGISTERED_PATIENTS",
	"CLINICIAN_NAME", "AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "CORS_ORIGINS",
	"REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_SOURCE", SourceFile)
	v.SetDefault("DATA_DIR", ".")
	v.SetDefault("DEMOGRAPHICS_FILE", "data_demographics")
	v.SetDefault("ALERTS_FILE", "data_overallalerts")
	v.SetDefault("TIMESERIES_FILE", "data_timeseries")
	v.SetDefault("ALERT_FACTORS_FILE", "data_alertfactors")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("PG_DEMOGRAPHICS_TABLE", "demographics")
	v.SetDefault("PG_ALERTS_TABLE", "overall_alerts")
	v.SetDefault("PG_TIMESERIES_TABLE", "timeseries")
	v.SetDefault("PG_ALERT_FACTORS_TABLE", "alert_factors")
	v.SetDefault("MEAN_GAP_POLICY", "zero")
	v.SetDefault("MATCH_STRATEGY", "name-first")
	v.SetDefault("REGISTERED_PATIENTS", 600)
	v.SetDefault("CLINICIAN_NAME", "Clinician X")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "15s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Every request is served as the configured CLINICIAN_NAME.")
		log.Println("WARNING: Set ENV=production and AUTH_SIGNING_KEY to require tokens.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UseJWT reports whether requests must carry a signed clinician token.
// Development runs without one unless a signing key is configured.
func (c *Config) UseJWT() bool {
	return !c.IsDev() || c.AuthSigningKey != ""
}

// Validate checks that the configuration is usable before anything is
// started.
func (c *Config) Validate() error {
	switch c.DataSource {
	case SourceFile:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_SOURCE is %q", SourcePostgres)
		}
	default:
		return fmt.Errorf("DATA_SOURCE must be %q or %q, got %q", SourceFile, SourcePostgres, c.DataSource)
	}

	switch c.MeanGapPolicy {
	case "zero", "no-data":
	default:
		return fmt.Errorf("MEAN_GAP_POLICY must be \"zero\" or \"no-data\", got %q", c.MeanGapPolicy)
	}

	switch c.MatchStrategy {
	case "name-first", "id-first":
	default:
		return fmt.Errorf("MATCH_STRATEGY must be \"name-first\" or \"id-first\", got %q", c.MatchStrategy)
	}

	if c.UseJWT() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development (current ENV=%q). "+
			"Refusing to start without clinician authentication", c.Env)
	}
	if c.RegisteredPatients < 0 {
		return fmt.Errorf("REGISTERED_PATIENTS must not be negative, got %d", c.RegisteredPatients)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
