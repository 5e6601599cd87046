package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cityharvest/pkg/harvest"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/ui"
)

var (
	// Harvest command flags
	cityID    int64
	cityName  string
	tilesFile string
	resume    bool
)

// locationsCmd represents the locations command
var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Harvest the places of a city",
	Long: `Search the Graph API for places around every tile center of a city and
store each place once.

Tile centers come from a GeoJSON FeatureCollection of points or a YAML list of
latitude/longitude pairs. Progress is checkpointed per tile so an aborted run
can be resumed with --resume.`,
	Example: `  # Harvest the places of city 7 from a GeoJSON tiling
  cityharvest locations --city-id 7 --city-name Bucharest --tiles bucharest.geojson

  # Continue an interrupted run, skipping completed tiles
  cityharvest locations --city-id 7 --tiles bucharest.geojson --resume

  # Store into PostgreSQL with more workers
  cityharvest locations --city-id 7 --tiles tiles.yaml --db-driver postgres \
    --db-dsn postgres://harvest@localhost/harvest --workers 8`,
	Args: cobra.NoArgs,
	RunE: runLocations,
}

// photosCmd represents the photos command
var photosCmd = &cobra.Command{
	Use:   "photos",
	Short: "Harvest the photos of a city's recent events",
	Long: `Collect the photos of every event of a city that started within the activity
window (14 days by default).

For each event the photos posted to the event itself are stored first. When the
event has no album yet, the albums of its location are compared to the event
name and the best match above the similarity threshold is recorded; its photos
are stored as well.`,
	Example: `  # Harvest the photos of city 7
  cityharvest photos --city-id 7

  # Look back 30 days instead of 14
  cityharvest photos --city-id 7 --activity-window 720h`,
	Args: cobra.NoArgs,
	RunE: runPhotos,
}

func init() {
	rootCmd.AddCommand(locationsCmd, photosCmd)

	for _, cmd := range []*cobra.Command{locationsCmd, photosCmd} {
		cmd.Flags().Int64Var(&cityID, "city-id", 0, "database id of the city")
		cmd.Flags().StringVar(&cityName, "city-name", "", "display name of the city")
		_ = cmd.MarkFlagRequired("city-id")
	}

	locationsCmd.Flags().StringVarP(&tilesFile, "tiles", "t", "", "GeoJSON or YAML file with the tile centers")
	locationsCmd.Flags().BoolVar(&resume, "resume", false, "resume from the last checkpoint")
	_ = locationsCmd.MarkFlagRequired("tiles")
}

func runLocations(cmd *cobra.Command, _ []string) error {
	tiles, err := harvest.LoadTiles(tilesFile)
	if err != nil {
		return err
	}

	return runHarvest(cmd, "locations", func(ctx context.Context, a *app, city harvest.City) (harvest.Summary, error) {
		ui.PrintInfo("Tiles", fmt.Sprintf("%d", len(tiles)))
		h := harvest.NewLocationHarvester(a.fetcher, a.store, a.cfg.Harvest,
			harvest.WithLogger(a.log),
			harvest.WithMetrics(a.metrics),
			harvest.WithCheckpoints(a.cfg.Harvest.CheckpointDir, resume),
		)
		return h.Run(ctx, city, tiles)
	})
}

func runPhotos(cmd *cobra.Command, _ []string) error {
	return runHarvest(cmd, "photos", func(ctx context.Context, a *app, city harvest.City) (harvest.Summary, error) {
		h := harvest.NewPhotoHarvester(a.fetcher, a.store, a.cfg.Harvest,
			harvest.WithLogger(a.log),
			harvest.WithMetrics(a.metrics),
		)
		return h.Run(ctx, city)
	})
}

type harvestFunc func(ctx context.Context, a *app, city harvest.City) (harvest.Summary, error)

// runHarvest loads the configuration, wires the collaborators and runs fn
// until it finishes or the process is interrupted.
func runHarvest(cmd *cobra.Command, name string, fn harvestFunc) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	city := harvest.City{ID: cityID, Name: strings.TrimSpace(cityName)}
	if city.Name == "" {
		city.Name = fmt.Sprintf("city %d", city.ID)
	}
	log := logger.GetLogger().WithFields(map[string]interface{}{
		"command": name,
		"city_id": city.ID,
		"version": version,
	})
	log.Info("cityharvest starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	ui.PrintInfo("City", city.Name)
	sum, err := fn(ctx, a, city)
	ui.PrintSummary(ui.Out, city, sum, err)

	if errors.Is(err, context.Canceled) {
		log.Warn("Harvest interrupted")
		return fmt.Errorf("%s harvest interrupted", name)
	}
	if err != nil {
		log.WithError(err).Error("Harvest failed")
		return fmt.Errorf("%s harvest failed: %w", name, err)
	}

	log.WithFields(sum.Fields()).Info("Harvest completed")
	return nil
}
