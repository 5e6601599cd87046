package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"cityharvest/pkg/config"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/ui"
)

var (
	// Version information
	version   = "0.1.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	profile     string
	accessToken string
	dbDriver    string
	dbDSN       string
	workers     int
	rateLimit   int
	maxAttempts int
	activity    time.Duration
	metricsFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cityharvest",
	Short: "Harvest city locations and event photos from the Graph API",
	Long: `cityharvest collects the public places of a city and the photos of its
recent events from the Facebook Graph API into a relational database.

  locations  search the places around every coverage tile of a city
  photos     collect the photos of the city's events of the last 14 days

Configuration is read from a YAML file, .env files, CITYHARVEST_* environment
variables and command line flags, in increasing order of priority.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default is ./cityharvest.yaml or ~/.config/cityharvest/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&profile, "profile", "", "stored token profile (default \"default\")")
	flags.StringVar(&accessToken, "access-token", "", "Graph API access token")
	flags.StringVar(&dbDriver, "db-driver", "", "database driver (sqlite, mysql, postgres)")
	flags.StringVar(&dbDSN, "db-dsn", "", "database connection string")
	flags.IntVar(&workers, "workers", 0, "work items processed at once")
	flags.IntVar(&rateLimit, "rate-limit", 0, "Graph API requests per minute")
	flags.IntVar(&maxAttempts, "max-attempts", 0, "attempts per request on connection failure")
	flags.DurationVar(&activity, "activity-window", 0, "how far back event start times are considered")
	flags.StringVar(&metricsFile, "metrics-textfile", "", "write Prometheus metrics to this file after a run")

	rootCmd.SetVersionTemplate(`cityharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commandLineFlags collects the global flags the user actually set, keyed the
// way config.MergeCommandLineFlags expects.
func commandLineFlags(cmd *cobra.Command) map[string]interface{} {
	set := cmd.Flags().Changed
	flags := make(map[string]interface{})
	if set("access-token") {
		flags["access-token"] = accessToken
	}
	if set("db-driver") {
		flags["db-driver"] = dbDriver
	}
	if set("db-dsn") {
		flags["db-dsn"] = dbDSN
	}
	if set("workers") {
		flags["workers"] = workers
	}
	if set("rate-limit") {
		flags["requests-per-minute"] = rateLimit
	}
	if set("max-attempts") {
		flags["max-attempts"] = maxAttempts
	}
	if set("activity-window") {
		flags["activity-window"] = activity
	}
	if set("metrics-textfile") {
		flags["metrics-textfile"] = metricsFile
	}
	if set("log-level") {
		flags["log-level"] = logLevel
	}
	return flags
}

// loadConfig loads and validates the configuration and initializes the
// global logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, commandLineFlags(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
