package main

import (
	"github.com/spf13/cobra"

	"cityharvest/pkg/logger"
	"cityharvest/pkg/ui"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the location, event and photo tables",
	Long: `Create the tables and unique indexes the harvesters write to.

Existing tables are left in place.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log := logger.GetLogger().WithField("driver", cfg.Database.Driver)
		st, err := openStore(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		log.Info("Schema ready")
		ui.PrintSuccess("Schema ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
