package harvest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"cityharvest/internal/workpool"
	"cityharvest/pkg/config"
	"cityharvest/pkg/graph"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/match"
	"cityharvest/pkg/metrics"
	"cityharvest/pkg/normalize"
	"cityharvest/pkg/store"
)

const photoHarvester = "photos"

// albumListing holds the album pages of a location read so far, newest first
type albumListing struct {
	pages    [][]graph.Album
	complete bool
}

// PhotoHarvester collects the photos of a city's recent events, from the
// event itself and from the album matched to it.
type PhotoHarvester struct {
	pages    PageSource
	store    store.Store
	cfg      config.HarvestConfig
	matcher  *match.Matcher
	albums   *cache.Cache
	settings settings
}

// NewPhotoHarvester creates a photo harvester
func NewPhotoHarvester(pages PageSource, st store.Store, cfg config.HarvestConfig, opts ...Option) *PhotoHarvester {
	ttl := cfg.AlbumCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PhotoHarvester{
		pages:    pages,
		store:    st,
		cfg:      cfg,
		matcher:  match.New(cfg.MatchThreshold),
		albums:   cache.New(ttl, 2*ttl),
		settings: newSettings(opts),
	}
}

// Run harvests every event of city that started within the activity window.
// The first fatal error aborts the run; the summary of the finished events
// is still returned.
func (h *PhotoHarvester) Run(ctx context.Context, city City) (Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := h.settings.logger.WithFields(map[string]interface{}{
		"run_id":    runID,
		"harvester": photoHarvester,
		"city_id":   city.ID,
	})

	var t tally
	err := h.run(ctx, log, city, &t)

	sum := t.snapshot()
	sum.RunID = runID
	sum.Harvester = photoHarvester
	sum.Duration = time.Since(start)
	h.settings.metrics.ObserveRun(photoHarvester, sum.Duration, err)

	if err != nil {
		log.WithError(err).ErrorWithFields("Photo harvest aborted", sum.Fields())
		return sum, err
	}
	log.InfoWithFields("Photo harvest finished", sum.Fields())
	return sum, nil
}

func (h *PhotoHarvester) run(ctx context.Context, log logger.Logger, city City, t *tally) error {
	since := h.settings.now().Add(-h.cfg.ActivityWindow)
	events, err := h.store.RecentEvents(ctx, city.ID, since)
	if err != nil {
		return fmt.Errorf("select recent events: %w", err)
	}
	log.InfoWithFields("Selected recent events", map[string]interface{}{
		"events": len(events),
		"since":  since.UTC().Format(time.RFC3339),
	})

	pool := workpool.NewPool(h.cfg.Workers, log)
	return workpool.Run(ctx, pool, events, func(ctx context.Context, ev store.EventRef) error {
		evLog := log.WithField("event_id", ev.EventID)
		sum, err := h.harvestEvent(ctx, evLog, ev)
		t.add(sum)
		if err != nil {
			return fmt.Errorf("event %s: %w", ev.EventID, err)
		}
		return nil
	})
}

func (h *PhotoHarvester) harvestEvent(ctx context.Context, log logger.Logger, ev store.EventRef) (Summary, error) {
	sum := Summary{WorkItems: 1}

	direct, err := h.savePhotos(ctx, log, ev, ev.EventID)
	sum.Add(direct)
	if err != nil {
		return sum, err
	}

	albumID, err := h.eventAlbum(ctx, log, ev, &sum)
	if err != nil || albumID == "" {
		return sum, err
	}

	fromAlbum, err := h.savePhotos(ctx, log, ev, albumID)
	sum.Add(fromAlbum)
	return sum, err
}

// eventAlbum returns the cached album of ev or resolves and records one. An
// empty id means no album matched.
func (h *PhotoHarvester) eventAlbum(ctx context.Context, log logger.Logger, ev store.EventRef, sum *Summary) (string, error) {
	if ev.HasAlbum() {
		h.settings.metrics.IncAlbum(metrics.AlbumCached)
		return *ev.AlbumID, nil
	}

	target := match.Target{Name: ev.Name, StartTime: ev.StartTime}
	candidate, ok, err := h.resolveAlbum(ctx, log, ev.LocationID, target, sum)
	if err != nil {
		return "", err
	}
	if !ok {
		h.settings.metrics.IncAlbum(metrics.AlbumNoMatch)
		log.Debug("No album matched the event")
		return "", nil
	}

	updated, err := h.store.SetEventAlbum(ctx, ev.ID, candidate.Album.ID)
	if err != nil {
		return "", err
	}
	sum.AlbumsResolved++
	h.settings.metrics.IncAlbum(metrics.AlbumResolved)
	log.InfoWithFields("Album matched", map[string]interface{}{
		"album_id":   candidate.Album.ID,
		"album_name": candidate.Album.Name,
		"score":      candidate.Score,
		"recorded":   updated,
	})
	if updated {
		return candidate.Album.ID, nil
	}

	// Another run recorded an album first; the stored one wins.
	stored, err := h.store.EventAlbum(ctx, ev.ID)
	if err != nil {
		return "", err
	}
	if stored != candidate.Album.ID {
		log.InfoWithFields("Using album recorded by another run", map[string]interface{}{
			"album_id": stored,
		})
	}
	return stored, nil
}

// resolveAlbum matches target against the albums of locationID. Pages already
// read for an earlier event of the same location are replayed first; the
// listing is fetched again only when they end before the stop signal.
func (h *PhotoHarvester) resolveAlbum(ctx context.Context, log logger.Logger, locationID string, target match.Target, sum *Summary) (match.Candidate, bool, error) {
	var cached albumListing
	if v, found := h.albums.Get(locationID); found {
		cached = v.(albumListing)

		acc := h.matcher.Scan(slices.Values(cached.pages), target)
		if acc.Stop || cached.complete {
			candidate, ok := acc.Result(h.matcher.Threshold)
			return candidate, ok, nil
		}
	}

	var (
		acc     match.Accumulator
		fetched albumListing
		last    *graph.Page
	)
	req := graph.AlbumList(locationID)
	req.Stop = func(*graph.Page) bool { return acc.Stop }

	for page, err := range h.pages.Pages(ctx, req) {
		if err != nil {
			return match.Candidate{}, false, err
		}
		last = page
		sum.Pages++

		albums, bad := graph.Decode[graph.Album](page)
		for _, itemErr := range bad {
			sum.Skipped++
			log.WithError(itemErr).Warn("Skipping malformed album")
		}
		fetched.pages = append(fetched.pages, albums)
		acc = h.matcher.Observe(acc, albums, target)
	}
	fetched.complete = last != nil && !last.HasNext()

	if len(fetched.pages) > len(cached.pages) || fetched.complete {
		h.albums.Set(locationID, fetched, cache.DefaultExpiration)
	}

	log.DebugWithFields("Albums scanned", map[string]interface{}{
		"location_id": locationID,
		"albums":      acc.Seen,
		"stopped":     acc.Stop,
	})

	candidate, ok := acc.Result(h.matcher.Threshold)
	return candidate, ok, nil
}

// savePhotos stores every photo of the photo stream of id for ev
func (h *PhotoHarvester) savePhotos(ctx context.Context, log logger.Logger, ev store.EventRef, id string) (Summary, error) {
	var sum Summary

	for page, err := range h.pages.Pages(ctx, graph.PhotoList(id)) {
		if err != nil {
			return sum, err
		}
		sum.Pages++
		sum.Fetched += len(page.Data)

		urls, skipped := normalize.Photos(page)
		for _, itemErr := range skipped {
			sum.Skipped++
			log.WithError(itemErr).WarnWithFields("Skipping malformed photo", map[string]interface{}{
				"source": id,
			})
		}

		for _, u := range urls {
			photo := &store.Photo{PhotoURL: u, EventID: ev.ID, LocationID: ev.LocationRowID}
			inserted, err := h.store.UpsertPhoto(ctx, photo)
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

	h.settings.metrics.AddRecords("photo", metrics.OutcomeInserted, sum.Inserted)
	h.settings.metrics.AddRecords("photo", metrics.OutcomeDuplicate, sum.Duplicates)
	h.settings.metrics.AddRecords("photo", metrics.OutcomeSkipped, sum.Skipped)
	return sum, nil
}
