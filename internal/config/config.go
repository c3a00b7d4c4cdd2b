package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"airquality-eda/internal/models"
	"airquality-eda/pkg/database"
)

// Source kinds
const (
	SourceDatabase = "database"
	SourceCSV      = "csv"
	SourceXLSX     = "xlsx"
)

// DefaultTable is the PRSA station table loaded when none is configured
const DefaultTable = "prsa_data_dongsi"

// Config is the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig configures the tabular store connection
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// SourceConfig selects where the observation table is loaded from
type SourceConfig struct {
	Kind            string `mapstructure:"kind"`
	Table           string `mapstructure:"table"`
	Query           string `mapstructure:"query"`
	Path            string `mapstructure:"path"`
	Sheet           string `mapstructure:"sheet"`
	Watch           bool   `mapstructure:"watch"`
	RefreshSchedule string `mapstructure:"refresh_schedule"`
}

// AnalysisConfig holds the missing-data pipeline parameters
type AnalysisConfig struct {
	MARCorrelationThreshold float64           `mapstructure:"mar_correlation_threshold"`
	MNARMissingRate         float64           `mapstructure:"mnar_missing_rate"`
	KSAlpha                 float64           `mapstructure:"ks_alpha"`
	IncludeDateParts        bool              `mapstructure:"include_date_parts"`
	Strategies              map[string]string `mapstructure:"strategies"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the prometheus collector
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "airquality")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", time.Minute)

	v.SetDefault("source.kind", SourceDatabase)
	v.SetDefault("source.table", DefaultTable)
	v.SetDefault("source.watch", false)
	v.SetDefault("source.refresh_schedule", "")

	v.SetDefault("analysis.mar_correlation_threshold", 0.3)
	v.SetDefault("analysis.mnar_missing_rate", 0.20)
	v.SetDefault("analysis.ks_alpha", 0.05)
	v.SetDefault("analysis.include_date_parts", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "airquality_eda")
}

// LoadConfig reads configuration from the optional YAML file at path, then
// from AQ_* environment variables. DATABASE_URL is honoured as database.url.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/airquality-eda")
	}

	v.SetEnvPrefix("AQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", "AQ_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("error binding DATABASE_URL: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Source.Kind {
	case SourceDatabase:
		if c.Source.Table == "" && c.Source.Query == "" {
			return errors.New("database source needs a table or a query")
		}
	case SourceCSV, SourceXLSX:
		if c.Source.Path == "" {
			return fmt.Errorf("%s source needs a path", c.Source.Kind)
		}
	default:
		return fmt.Errorf("unknown source kind: %q", c.Source.Kind)
	}

	thresholds := map[string]float64{
		"analysis.mar_correlation_threshold": c.Analysis.MARCorrelationThreshold,
		"analysis.mnar_missing_rate":         c.Analysis.MNARMissingRate,
		"analysis.ks_alpha":                  c.Analysis.KSAlpha,
	}
	for key, value := range thresholds {
		if value <= 0 || value >= 1 {
			return fmt.Errorf("%s must be in (0, 1), got %v", key, value)
		}
	}

	if _, err := c.StrategyOverrides(); err != nil {
		return err
	}
	return nil
}

// StrategyOverrides parses analysis.strategies into strategy tags
func (c *Config) StrategyOverrides() (map[string]models.Strategy, error) {
	return models.ParseStrategyOverrides(c.Analysis.Strategies)
}

// Strategies returns the default strategy map with configured overrides
func (c *Config) Strategies() (models.StrategyMap, error) {
	overrides, err := c.StrategyOverrides()
	if err != nil {
		return nil, err
	}
	return models.DefaultStrategies().With(overrides), nil
}

// DatabaseConfig converts the database section into a connection config
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		URL:             c.Database.URL,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}
