package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable the harvester reads
const EnvPrefix = "CITYHARVEST_"

// Config holds all configuration options for the city harvester
type Config struct {
	// Graph API access
	Graph GraphConfig `yaml:"graph" json:"graph"`

	// Harvest behaviour
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Retry policy for connection failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Persistence
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Prometheus textfile export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GraphConfig holds Graph API settings
type GraphConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	APIVersion  string        `yaml:"api_version" json:"api_version"`
	AccessToken string        `yaml:"access_token" json:"access_token"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
}

// HarvestConfig holds the tunables of the location and photo harvesters
type HarvestConfig struct {
	// SearchDistance is the place search radius in meters around each tile center.
	// It is larger than TileRadius so neighbouring tiles overlap.
	SearchDistance int `yaml:"search_distance" json:"search_distance"`
	// TileRadius is the radius the tiler used to cover the city
	TileRadius int `yaml:"tile_radius" json:"tile_radius"`
	// ActivityWindow limits photo harvesting to events that started within it
	ActivityWindow time.Duration `yaml:"activity_window" json:"activity_window"`
	// MatchThreshold is the album similarity percentage that must be exceeded
	MatchThreshold float64 `yaml:"match_threshold" json:"match_threshold"`
	// Workers is the number of work items processed at once
	Workers int `yaml:"workers" json:"workers"`
	// AlbumCacheTTL keeps album listings for events sharing a location
	AlbumCacheTTL time.Duration `yaml:"album_cache_ttl" json:"album_cache_ttl"`
	// CheckpointDir stores tile progress for resumable location runs
	CheckpointDir string `yaml:"checkpoint_dir" json:"checkpoint_dir"`
}

// RetryConfig holds retry configuration for connection failures
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
	Jitter      float64       `yaml:"jitter" json:"jitter"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// DatabaseConfig selects and configures the relational store
type DatabaseConfig struct {
	Driver       string `yaml:"driver" json:"driver"`
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	Debug        bool   `yaml:"debug" json:"debug"`
}

// MetricsConfig controls the Prometheus textfile written at the end of a run
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			BaseURL:    "https://graph.facebook.com",
			APIVersion: "v2.7",
			Timeout:    30 * time.Second,
			UserAgent:  "cityharvest/1.0",
		},
		Harvest: HarvestConfig{
			SearchDistance: 4000,
			TileRadius:     2000,
			ActivityWindow: 14 * 24 * time.Hour,
			MatchThreshold: 70,
			Workers:        1,
			AlbumCacheTTL:  10 * time.Minute,
			CheckpointDir:  "",
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 6,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
			Jitter:      0.1,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 200,
			BurstSize:         10,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			DSN:          "cityharvest.db",
			MaxOpenConns: 4,
		},
		Metrics: MetricsConfig{
			Enabled:      false,
			TextfilePath: "cityharvest.prom",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(EnvPrefix + "ACCESS_TOKEN"); v != "" {
		c.Graph.AccessToken = v
	}
	if v := os.Getenv(EnvPrefix + "GRAPH_URL"); v != "" {
		c.Graph.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "API_VERSION"); v != "" {
		c.Graph.APIVersion = v
	}
	if v := os.Getenv(EnvPrefix + "DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvPrefix + "DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWORKERS: %w", EnvPrefix, err))
		} else {
			c.Harvest.Workers = n
		}
	}
	if v := os.Getenv(EnvPrefix + "REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv(EnvPrefix + "ACTIVITY_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sACTIVITY_WINDOW: %w", EnvPrefix, err))
		} else {
			c.Harvest.ActivityWindow = d
		}
	}
	if v := os.Getenv(EnvPrefix + "METRICS_TEXTFILE"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.TextfilePath = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"cityharvest.yaml",
		"cityharvest.yml",
		filepath.Join(home, ".config", "cityharvest", "config.yaml"),
		filepath.Join(home, ".config", "cityharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
// The access token is not checked here because it may come from a token store.
func (c *Config) Validate() error {
	var errs []error

	if c.Graph.BaseURL == "" {
		errs = append(errs, errors.New("graph base URL is required"))
	}
	if c.Graph.Timeout <= 0 {
		errs = append(errs, errors.New("graph timeout must be positive"))
	}

	if c.Harvest.SearchDistance <= 0 {
		errs = append(errs, errors.New("search distance must be positive"))
	}
	if c.Harvest.TileRadius > 0 && c.Harvest.SearchDistance < c.Harvest.TileRadius {
		errs = append(errs, errors.New("search distance must not be smaller than the tile radius"))
	}
	if c.Harvest.ActivityWindow <= 0 {
		errs = append(errs, errors.New("activity window must be positive"))
	}
	if c.Harvest.MatchThreshold <= 0 || c.Harvest.MatchThreshold > 100 {
		errs = append(errs, errors.New("match threshold must be greater than 0 and at most 100"))
	}
	if c.Harvest.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			errs = append(errs, errors.New("retry max attempts must be positive"))
		}
		if c.Retry.Multiplier < 1 {
			errs = append(errs, errors.New("retry multiplier must be at least 1"))
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}

	if c.Metrics.Enabled && c.Metrics.TextfilePath == "" {
		errs = append(errs, errors.New("metrics textfile path is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["access-token"].(string); ok && token != "" {
		c.Graph.AccessToken = token
	}
	if driver, ok := flags["db-driver"].(string); ok && driver != "" {
		c.Database.Driver = driver
	}
	if dsn, ok := flags["db-dsn"].(string); ok && dsn != "" {
		c.Database.DSN = dsn
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Harvest.Workers = workers
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts > 0 {
		c.Retry.MaxAttempts = attempts
	}
	if window, ok := flags["activity-window"].(time.Duration); ok && window > 0 {
		c.Harvest.ActivityWindow = window
	}
	if path, ok := flags["metrics-textfile"].(string); ok && path != "" {
		c.Metrics.Enabled = true
		c.Metrics.TextfilePath = path
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cityharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
