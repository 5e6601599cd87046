package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cityharvest/pkg/auth"
	"cityharvest/pkg/config"
	"cityharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage cityharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CITYHARVEST_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration to a file.

The file is created in the current directory as 'cityharvest.yaml' unless a
different path is given with the --config flag. Existing files are never
overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources.

The access token is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		path = "cityharvest.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Store an access token with 'cityharvest token set'")
	fmt.Fprintln(out, "2. Run 'cityharvest migrate' to create the tables")
	fmt.Fprintln(out, "3. Harvest with 'cityharvest locations --city-id <id> --tiles <file>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, commandLineFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	if display.Graph.AccessToken != "" {
		display.Graph.AccessToken = auth.MaskString(display.Graph.AccessToken)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, commandLineFlags(cmd))
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Graph.AccessToken == "" {
		ui.PrintWarning("No access token in the configuration", "a stored token will be used")
	}

	ui.PrintSuccess("Configuration is valid")
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Graph API: %s/%s\n", cfg.Graph.BaseURL, cfg.Graph.APIVersion)
	fmt.Fprintf(out, "  Database: %s\n", cfg.Database.Driver)
	fmt.Fprintf(out, "  Workers: %d\n", cfg.Harvest.Workers)
	fmt.Fprintf(out, "  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Fprintf(out, "  Activity window: %s\n", cfg.Harvest.ActivityWindow)
	return nil
}
