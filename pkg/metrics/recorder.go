package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes
const (
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
)

// Album resolution outcomes
const (
	AlbumCached   = "cached"
	AlbumResolved = "resolved"
	AlbumNoMatch  = "no_match"
)

// Recorder holds the counters of a harvest process. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	namespace   string
	constLabels map[string]string
	registry    *prometheus.Registry

	requests    *prometheus.CounterVec
	retries     prometheus.Counter
	pages       *prometheus.CounterVec
	records     *prometheus.CounterVec
	albums      *prometheus.CounterVec
	runDuration *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

// New creates a Recorder registered on its own registry unless WithRegistry is given.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "cityharvest",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.initializeMetrics()
	return r
}

func (r *Recorder) initializeMetrics() {
	auto := promauto.With(r.registry)

	r.requests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Name:        "graph_requests_total",
		Help:        "Graph API requests by outcome (ok, network, status, parsing)",
		ConstLabels: r.constLabels,
	}, []string{"outcome"})

	r.retries = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Name:        "graph_retries_total",
		Help:        "Graph API requests repeated after a connection failure",
		ConstLabels: r.constLabels,
	})

	r.pages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Name:        "pages_fetched_total",
		Help:        "Result pages fetched by endpoint kind",
		ConstLabels: r.constLabels,
	}, []string{"endpoint"})

	r.records = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Name:        "records_total",
		Help:        "Harvested records by kind and outcome",
		ConstLabels: r.constLabels,
	}, []string{"kind", "outcome"})

	r.albums = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Name:        "album_resolutions_total",
		Help:        "Event album lookups by outcome",
		ConstLabels: r.constLabels,
	}, []string{"outcome"})

	r.runDuration = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "run_duration_seconds",
		Help:        "Duration of the last harvest run",
		ConstLabels: r.constLabels,
	}, []string{"harvester"})

	r.lastSuccess = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "last_success_timestamp_seconds",
		Help:        "Unix time of the last harvest run that completed without error",
		ConstLabels: r.constLabels,
	}, []string{"harvester"})
}

// ObserveRequest counts one Graph API request
func (r *Recorder) ObserveRequest(outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(outcome).Inc()
}

// IncRetry counts one repeated request
func (r *Recorder) IncRetry() {
	if r == nil {
		return
	}
	r.retries.Inc()
}

// IncPage counts one fetched page
func (r *Recorder) IncPage(endpoint string) {
	if r == nil {
		return
	}
	r.pages.WithLabelValues(endpoint).Inc()
}

// AddRecords counts n records of kind with the given outcome
func (r *Recorder) AddRecords(kind, outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.records.WithLabelValues(kind, outcome).Add(float64(n))
}

// IncAlbum counts one album lookup
func (r *Recorder) IncAlbum(outcome string) {
	if r == nil {
		return
	}
	r.albums.WithLabelValues(outcome).Inc()
}

// ObserveRun records the duration of a harvester run and, on success, its completion time
func (r *Recorder) ObserveRun(harvester string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.runDuration.WithLabelValues(harvester).Set(d.Seconds())
	if err == nil {
		r.lastSuccess.WithLabelValues(harvester).SetToCurrentTime()
	}
}

// Registry returns the registry the metrics are gathered from
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteToTextfile writes all metrics in the text exposition format, atomically
func (r *Recorder) WriteToTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
