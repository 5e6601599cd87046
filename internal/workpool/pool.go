// Package workpool runs harvest work items on a bounded number of goroutines.
package workpool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"cityharvest/pkg/logger"
)

// Pool bounds how many work items run at once
type Pool struct {
	numWorkers int
	logger     logger.Logger
}

// NewPool creates a pool with numWorkers concurrent slots. Values below one
// run items sequentially.
func NewPool(numWorkers int, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pool{numWorkers: numWorkers, logger: log}
}

// Workers returns the number of concurrent slots
func (p *Pool) Workers() int {
	return p.numWorkers
}

// Run calls fn for every item and returns the first error. A failing item
// cancels the context handed to the others and no further items are started.
func Run[T any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) error) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.numWorkers)

	p.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
		"items":       len(items),
	})

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, item)
		})
	}

	err := g.Wait()
	fields := map[string]interface{}{
		"num_workers": p.numWorkers,
		"duration":    time.Since(start).String(),
	}
	if err != nil {
		p.logger.WithError(err).DebugWithFields("Worker pool stopped early", fields)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.DebugWithFields("Worker pool finished", fields)
	return nil
}
