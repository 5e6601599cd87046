package harvest

import (
	"sync"
	"time"
)

// Summary counts what a run did. It is returned even when the run fails, and
// then covers the work finished before the failure.
type Summary struct {
	RunID          string
	Harvester      string
	WorkItems      int
	Pages          int
	Fetched        int
	Inserted       int
	Duplicates     int
	Skipped        int
	AlbumsResolved int
	Duration       time.Duration
}

// Add accumulates the counters of o into s
func (s *Summary) Add(o Summary) {
	s.WorkItems += o.WorkItems
	s.Pages += o.Pages
	s.Fetched += o.Fetched
	s.Inserted += o.Inserted
	s.Duplicates += o.Duplicates
	s.Skipped += o.Skipped
	s.AlbumsResolved += o.AlbumsResolved
}

// Fields renders the summary for structured logging
func (s Summary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"run_id":          s.RunID,
		"harvester":       s.Harvester,
		"work_items":      s.WorkItems,
		"pages":           s.Pages,
		"fetched":         s.Fetched,
		"inserted":        s.Inserted,
		"duplicates":      s.Duplicates,
		"skipped":         s.Skipped,
		"albums_resolved": s.AlbumsResolved,
		"duration":        s.Duration.String(),
	}
}

// tally merges per-item summaries from concurrent workers
type tally struct {
	mu  sync.Mutex
	sum Summary
}

func (t *tally) add(o Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum.Add(o)
}

func (t *tally) snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sum
}
