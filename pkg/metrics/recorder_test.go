package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New(WithNamespace("test"))

	r.ObserveRequest("ok")
	r.ObserveRequest("ok")
	r.ObserveRequest("network")
	r.IncRetry()
	r.IncPage("search")
	r.AddRecords("location", OutcomeInserted, 3)
	r.AddRecords("location", OutcomeDuplicate, 2)
	r.AddRecords("photo", OutcomeSkipped, 0)
	r.IncAlbum(AlbumNoMatch)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.requests.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.retries))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.pages.WithLabelValues("search")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.records.WithLabelValues("location", OutcomeInserted)))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.records.WithLabelValues("location", OutcomeDuplicate)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.albums.WithLabelValues(AlbumNoMatch)))
}

func TestObserveRunOnlyStampsSuccess(t *testing.T) {
	r := New()

	r.ObserveRun("photos", 2*time.Second, errors.New("status 500"))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.runDuration.WithLabelValues("photos")))
	assert.Zero(t, testutil.ToFloat64(r.lastSuccess.WithLabelValues("photos")))

	r.ObserveRun("photos", time.Second, nil)
	assert.Greater(t, testutil.ToFloat64(r.lastSuccess.WithLabelValues("photos")), float64(0))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRequest("ok")
		r.IncRetry()
		r.IncPage("albums")
		r.AddRecords("photo", OutcomeInserted, 1)
		r.IncAlbum(AlbumResolved)
		r.ObserveRun("locations", time.Second, nil)
		assert.NoError(t, r.WriteToTextfile("/nonexistent/x.prom"))
	})
	assert.Nil(t, r.Registry())
}

func TestWriteToTextfile(t *testing.T) {
	r := New(WithConstLabels(map[string]string{"city": "7"}))
	r.AddRecords("photo", OutcomeInserted, 4)

	path := filepath.Join(t.TempDir(), "harvest.prom")
	require.NoError(t, r.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cityharvest_records_total{city="7",kind="photo",outcome="inserted"} 4`)
}
