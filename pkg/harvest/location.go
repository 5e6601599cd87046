package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cityharvest/internal/workpool"
	"cityharvest/pkg/checkpoint"
	"cityharvest/pkg/config"
	"cityharvest/pkg/graph"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/metrics"
	"cityharvest/pkg/normalize"
	"cityharvest/pkg/store"
)

const locationHarvester = "locations"

// LocationHarvester searches the places around every tile of a city and
// stores them as locations.
type LocationHarvester struct {
	pages    PageSource
	store    store.Store
	cfg      config.HarvestConfig
	settings settings
}

// NewLocationHarvester creates a location harvester
func NewLocationHarvester(pages PageSource, st store.Store, cfg config.HarvestConfig, opts ...Option) *LocationHarvester {
	return &LocationHarvester{
		pages:    pages,
		store:    st,
		cfg:      cfg,
		settings: newSettings(opts),
	}
}

// Run searches every tile and upserts the places found. The first fatal
// error aborts the run; the summary of the finished tiles is still returned.
func (h *LocationHarvester) Run(ctx context.Context, city City, tiles []Tile) (Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := h.settings.logger.WithFields(map[string]interface{}{
		"run_id":    runID,
		"harvester": locationHarvester,
		"city_id":   city.ID,
	})

	var t tally
	err := h.run(ctx, log, runID, city, tiles, &t)

	sum := t.snapshot()
	sum.RunID = runID
	sum.Harvester = locationHarvester
	sum.Duration = time.Since(start)
	h.settings.metrics.ObserveRun(locationHarvester, sum.Duration, err)

	if err != nil {
		log.WithError(err).ErrorWithFields("Location harvest aborted", sum.Fields())
		return sum, err
	}
	log.InfoWithFields("Location harvest finished", sum.Fields())
	return sum, nil
}

func (h *LocationHarvester) run(ctx context.Context, log logger.Logger, runID string, city City, tiles []Tile, t *tally) error {
	var (
		mgr *checkpoint.Manager
		cp  *checkpoint.Checkpoint
		err error
	)
	if h.settings.checkpoints {
		mgr, cp, err = h.openCheckpoint(log, runID, city, len(tiles))
		if err != nil {
			return err
		}
	}

	pending := tiles
	if cp != nil && len(cp.CompletedTiles) > 0 {
		pending = make([]Tile, 0, len(tiles))
		for _, tile := range tiles {
			if !cp.IsTileDone(tile.Key()) {
				pending = append(pending, tile)
			}
		}
		log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"completed_tiles": len(tiles) - len(pending),
			"pending_tiles":   len(pending),
		})
	}

	pool := workpool.NewPool(h.cfg.Workers, log)
	err = workpool.Run(ctx, pool, pending, func(ctx context.Context, tile Tile) error {
		sum, err := h.searchTile(ctx, log, city, tile)
		t.add(sum)
		if err != nil {
			return fmt.Errorf("tile %s: %w", tile.Key(), err)
		}
		if mgr != nil {
			if err := mgr.RecordTile(cp, tile.Key()); err != nil {
				return fmt.Errorf("tile %s: %w", tile.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if mgr != nil {
		return mgr.Delete()
	}
	return nil
}

func (h *LocationHarvester) openCheckpoint(log logger.Logger, runID string, city City, total int) (*checkpoint.Manager, *checkpoint.Checkpoint, error) {
	mgr, err := checkpoint.NewManager(h.settings.checkpointDir, city.ID)
	if err != nil {
		return nil, nil, err
	}
	mgr.WithLogger(log)

	if h.settings.resume {
		cp, err := mgr.Load()
		if err != nil {
			return nil, nil, err
		}
		if cp != nil {
			return mgr, cp, nil
		}
	}

	if mgr.Exists() {
		log.InfoWithFields("Discarding checkpoint of an earlier run", map[string]interface{}{
			"checkpoint": mgr.Path(),
		})
	}

	cp, err := mgr.Create(city.ID, city.Name, runID, total)
	if err != nil {
		return nil, nil, err
	}
	return mgr, cp, nil
}

func (h *LocationHarvester) searchTile(ctx context.Context, log logger.Logger, city City, tile Tile) (Summary, error) {
	sum := Summary{WorkItems: 1}
	req := graph.PlaceSearch(tile.Center, h.cfg.SearchDistance)

	for page, err := range h.pages.Pages(ctx, req) {
		if err != nil {
			return sum, err
		}
		sum.Pages++
		sum.Fetched += len(page.Data)

		locations, bad := normalize.Locations(page, city.ID)
		for _, itemErr := range bad {
			sum.Skipped++
			log.WithError(itemErr).WarnWithFields("Skipping malformed place", map[string]interface{}{
				"tile": tile.Key(),
			})
		}

		for i := range locations {
			inserted, err := h.store.UpsertLocation(ctx, &locations[i])
			if err != nil {
				return sum, err
			}
			if inserted {
				sum.Inserted++
			} else {
				sum.Duplicates++
			}
		}
	}

	h.settings.metrics.AddRecords("location", metrics.OutcomeInserted, sum.Inserted)
	h.settings.metrics.AddRecords("location", metrics.OutcomeDuplicate, sum.Duplicates)
	h.settings.metrics.AddRecords("location", metrics.OutcomeSkipped, sum.Skipped)

	log.DebugWithFields("Tile searched", map[string]interface{}{
		"tile":       tile.Key(),
		"pages":      sum.Pages,
		"inserted":   sum.Inserted,
		"duplicates": sum.Duplicates,
	})
	return sum, nil
}
