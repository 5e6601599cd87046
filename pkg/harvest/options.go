package harvest

import (
	"context"
	"iter"
	"time"

	"cityharvest/pkg/graph"
	"cityharvest/pkg/logger"
	"cityharvest/pkg/metrics"
)

// PageSource yields the pages of a Graph API collection. *graph.Fetcher
// implements it.
type PageSource interface {
	Pages(ctx context.Context, req graph.Request) iter.Seq2[*graph.Page, error]
}

type settings struct {
	logger        logger.Logger
	metrics       *metrics.Recorder
	now           func() time.Time
	checkpointDir string
	checkpoints   bool
	resume        bool
}

// Option configures a harvester
type Option func(*settings)

// WithLogger sets the harvester logger
func WithLogger(log logger.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithMetrics records record counts and run durations
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithClock replaces time.Now when computing the activity window
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCheckpoints records completed tiles under dir. With resume set, tiles
// completed by an earlier interrupted run are skipped.
func WithCheckpoints(dir string, resume bool) Option {
	return func(s *settings) {
		s.checkpoints = true
		s.checkpointDir = dir
		s.resume = resume
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger: logger.GetLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
