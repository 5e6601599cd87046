package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://graph.facebook.com", cfg.Graph.BaseURL)
	assert.Equal(t, "v2.7", cfg.Graph.APIVersion)
	assert.Equal(t, 4000, cfg.Harvest.SearchDistance)
	assert.Equal(t, 2000, cfg.Harvest.TileRadius)
	assert.Equal(t, 14*24*time.Hour, cfg.Harvest.ActivityWindow)
	assert.Equal(t, float64(70), cfg.Harvest.MatchThreshold)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CITYHARVEST_ACCESS_TOKEN", "app|secret")
	t.Setenv("CITYHARVEST_DB_DRIVER", "postgres")
	t.Setenv("CITYHARVEST_DB_DSN", "postgres://localhost/harvest")
	t.Setenv("CITYHARVEST_WORKERS", "4")
	t.Setenv("CITYHARVEST_REQUESTS_PER_MINUTE", "30")
	t.Setenv("CITYHARVEST_ACTIVITY_WINDOW", "72h")
	t.Setenv("CITYHARVEST_METRICS_TEXTFILE", "/tmp/harvest.prom")
	t.Setenv("CITYHARVEST_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "app|secret", cfg.Graph.AccessToken)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/harvest", cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Harvest.Workers)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 72*time.Hour, cfg.Harvest.ActivityWindow)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/tmp/harvest.prom", cfg.Metrics.TextfilePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("CITYHARVEST_WORKERS", "many")
	t.Setenv("CITYHARVEST_ACTIVITY_WINDOW", "two weeks")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CITYHARVEST_WORKERS")
	assert.Contains(t, err.Error(), "CITYHARVEST_ACTIVITY_WINDOW")
	assert.Equal(t, 1, cfg.Harvest.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty base url", func(c *Config) { c.Graph.BaseURL = "" }, "graph base URL is required"},
		{"zero distance", func(c *Config) { c.Harvest.SearchDistance = 0 }, "search distance must be positive"},
		{"distance below radius", func(c *Config) { c.Harvest.SearchDistance = 1000 }, "smaller than the tile radius"},
		{"threshold above 100", func(c *Config) { c.Harvest.MatchThreshold = 120 }, "match threshold"},
		{"zero threshold", func(c *Config) { c.Harvest.MatchThreshold = 0 }, "greater than 0"},
		{"negative threshold", func(c *Config) { c.Harvest.MatchThreshold = -5 }, "greater than 0"},
		{"no workers", func(c *Config) { c.Harvest.Workers = 0 }, "workers must be positive"},
		{"retry without attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry max attempts"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "unsupported database driver"},
		{"metrics without path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.TextfilePath = "" }, "metrics textfile path"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Graph.BaseURL = ""
	cfg.Database.DSN = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph base URL is required")
	assert.Contains(t, err.Error(), "database DSN is required")
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Harvest.SearchDistance = 5000
	cfg.Database.Driver = DriverMySQL
	cfg.Database.DSN = "user:pass@tcp(localhost:3306)/harvest"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 5000, loaded.Harvest.SearchDistance)
	assert.Equal(t, DriverMySQL, loaded.Database.Driver)
	assert.Equal(t, cfg.Database.DSN, loaded.Database.DSN)
	assert.Equal(t, cfg.Harvest.ActivityWindow, loaded.Harvest.ActivityWindow)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"access-token":     "flag-token",
		"workers":          3,
		"activity-window":  48 * time.Hour,
		"metrics-textfile": "out.prom",
		"db-dsn":           "",
	})

	assert.Equal(t, "flag-token", cfg.Graph.AccessToken)
	assert.Equal(t, 3, cfg.Harvest.Workers)
	assert.Equal(t, 48*time.Hour, cfg.Harvest.ActivityWindow)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "cityharvest.db", cfg.Database.DSN)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harvest:\n  workers: 2\nlogging:\n  level: warn\n"), 0600))

	t.Setenv("HOME", dir)
	t.Setenv("CITYHARVEST_WORKERS", "5")

	cfg, err := Load(path, map[string]interface{}{"log-level": "error"})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Harvest.Workers)
	assert.Equal(t, "error", cfg.Logging.Level)
}
