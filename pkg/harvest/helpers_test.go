package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"cityharvest/pkg/config"
	"cityharvest/pkg/graph"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/retry"
	"cityharvest/pkg/store"
)

const testBase = "https://graph.test"

// graphMock serves paged Graph API collections and counts requests per path
type graphMock struct {
	t         *testing.T
	transport *httpmock.MockTransport
	mu        sync.Mutex
	calls     map[string]int
}

func newGraphMock(t *testing.T) *graphMock {
	return &graphMock{t: t, transport: httpmock.NewMockTransport(), calls: make(map[string]int)}
}

func (g *graphMock) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

func (g *graphMock) hit(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[path]++
}

// pages serves pages[i] for the cursor "" then c1, c2, ...; each page is a
// list of raw items.
func (g *graphMock) pages(path string, pages ...[]interface{}) {
	g.transport.RegisterResponder(http.MethodGet, testBase+"/v2.7"+path,
		func(req *http.Request) (*http.Response, error) {
			g.hit(path)
			i := 0
			if after := req.URL.Query().Get("after"); after != "" {
				if _, err := fmt.Sscanf(after, "c%d", &i); err != nil {
					return httpmock.NewStringResponse(http.StatusBadRequest, "unknown cursor"), nil
				}
			}
			if i >= len(pages) {
				return httpmock.NewStringResponse(http.StatusBadRequest, "unknown cursor"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, renderPage(g.t, path, pages[i], i+1 < len(pages), i+1)), nil
		})
}

func (g *graphMock) status(path string, code int, body string) {
	g.transport.RegisterResponder(http.MethodGet, testBase+"/v2.7"+path,
		func(req *http.Request) (*http.Response, error) {
			g.hit(path)
			return httpmock.NewStringResponse(code, body), nil
		})
}

func renderPage(t *testing.T, path string, items []interface{}, hasNext bool, next int) string {
	t.Helper()
	if items == nil {
		items = []interface{}{}
	}
	page := map[string]interface{}{"data": items}
	if hasNext {
		cursor := fmt.Sprintf("c%d", next)
		page["paging"] = map[string]interface{}{
			"cursors": map[string]string{"after": cursor},
			"next":    fmt.Sprintf("%s/v2.7%s?access_token=test-token&limit=25&after=%s", testBase, path, cursor),
		}
	}
	b, err := json.Marshal(page)
	require.NoError(t, err)
	return string(b)
}

func (g *graphMock) fetcher() *graph.Fetcher {
	client := graph.NewClient(config.GraphConfig{
		BaseURL:     testBase,
		APIVersion:  "v2.7",
		AccessToken: "test-token",
		Timeout:     5 * time.Second,
	},
		graph.WithHTTPClient(&http.Client{Transport: g.transport}),
		graph.WithRetry(&retry.Config{
			MaxAttempts: 3,
			Backoff:     retry.Constant(time.Millisecond),
			Logger:      logger.NewNopLogger(),
		}),
		graph.WithLogger(logger.NewNopLogger()),
	)
	return graph.NewFetcher(client)
}

func testHarvestConfig() config.HarvestConfig {
	return config.HarvestConfig{
		SearchDistance: 4000,
		TileRadius:     2000,
		ActivityWindow: 14 * 24 * time.Hour,
		MatchThreshold: 70,
		Workers:        1,
		AlbumCacheTTL:  time.Minute,
	}
}

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	s, err := store.OpenGorm(config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"}, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedLocation(t *testing.T, s *store.GormStore, locationID string, cityID int64) store.Location {
	t.Helper()
	loc := store.Location{LocationID: locationID, Name: "Venue " + locationID, Latitude: 44.43, Longitude: 26.1, CityID: cityID}
	_, err := s.UpsertLocation(context.Background(), &loc)
	require.NoError(t, err)
	return loc
}

func seedEvent(t *testing.T, s *store.GormStore, eventID, name string, start time.Time, loc store.Location) store.Event {
	t.Helper()
	ev := store.Event{EventID: eventID, Name: name, StartTime: start.UTC(), LocationID: loc.ID}
	require.NoError(t, s.DB().Create(&ev).Error)
	return ev
}

func place(id, name string, lat, lon float64) map[string]interface{} {
	return map[string]interface{}{
		"id":       id,
		"name":     name,
		"location": map[string]float64{"latitude": lat, "longitude": lon},
	}
}

func photo(id, source string) map[string]interface{} {
	return map[string]interface{}{
		"id":     id,
		"images": []map[string]interface{}{{"source": source, "width": 960, "height": 720}},
	}
}

func album(id, name string, created time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":           id,
		"name":         name,
		"created_time": created.UTC().Format("2006-01-02T15:04:05-0700"),
	}
}

func items(v ...interface{}) []interface{} {
	return v
}
