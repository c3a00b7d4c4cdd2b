package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airquality-eda/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, SourceDatabase, cfg.Source.Kind)
	assert.Equal(t, DefaultTable, cfg.Source.Table)
	assert.Equal(t, 0.3, cfg.Analysis.MARCorrelationThreshold)
	assert.Equal(t, 0.20, cfg.Analysis.MNARMissingRate)
	assert.Equal(t, 0.05, cfg.Analysis.KSAlpha)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
source:
  kind: csv
  path: /data/PRSA_Data_Dongsi.csv
  watch: true
analysis:
  mar_correlation_threshold: 0.4
  strategies:
    humidity: meteorological
logging:
  level: debug
`)
	t.Setenv("AQ_SERVER_PORT", "9191")
	t.Setenv("DATABASE_URL", "postgres://user:pw@db:5432/air?sslmode=disable")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, SourceCSV, cfg.Source.Kind)
	assert.True(t, cfg.Source.Watch)
	assert.Equal(t, 0.4, cfg.Analysis.MARCorrelationThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "postgres://user:pw@db:5432/air?sslmode=disable", cfg.Database.URL)

	strategies, err := cfg.Strategies()
	require.NoError(t, err)
	assert.Equal(t, models.StrategyMeteorological, strategies["humidity"])
	assert.Equal(t, models.StrategyPollutant, strategies["pm2_5"])
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			Source: SourceConfig{Kind: SourceDatabase, Table: DefaultTable},
			Analysis: AnalysisConfig{
				MARCorrelationThreshold: 0.3,
				MNARMissingRate:         0.2,
				KSAlpha:                 0.05,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "unknown source kind", mutate: func(c *Config) { c.Source.Kind = "parquet" }, wantErr: true},
		{name: "file source without path", mutate: func(c *Config) { c.Source.Kind = SourceXLSX }, wantErr: true},
		{name: "database source with query only", mutate: func(c *Config) { c.Source.Table = ""; c.Source.Query = "SELECT 1" }},
		{name: "database source without table or query", mutate: func(c *Config) { c.Source.Table = "" }, wantErr: true},
		{name: "threshold out of range", mutate: func(c *Config) { c.Analysis.KSAlpha = 1.5 }, wantErr: true},
		{name: "zero threshold", mutate: func(c *Config) { c.Analysis.MNARMissingRate = 0 }, wantErr: true},
		{name: "unknown strategy", mutate: func(c *Config) { c.Analysis.Strategies = map[string]string{"pm10": "spline"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
