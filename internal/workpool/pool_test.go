package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityharvest/pkg/logger"
)

func TestRunProcessesEveryItem(t *testing.T) {
	pool := NewPool(3, logger.NewTestLogger())
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	var mu sync.Mutex
	seen := make(map[int]bool)
	err := Run(context.Background(), pool, items, func(ctx context.Context, item int) error {
		mu.Lock()
		defer mu.Unlock()
		seen[item] = true
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, seen, len(items))
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	pool := NewPool(2, logger.NewNopLogger())
	items := make([]int, 8)

	var active, peak int32
	err := Run(context.Background(), pool, items, func(ctx context.Context, _ int) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunSequentialKeepsOrder(t *testing.T) {
	pool := NewPool(0, logger.NewNopLogger())
	assert.Equal(t, 1, pool.Workers())

	var order []string
	err := Run(context.Background(), pool, []string{"a", "b", "c"}, func(ctx context.Context, item string) error {
		order = append(order, item)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRunStopsOnFirstError(t *testing.T) {
	pool := NewPool(1, logger.NewTestLogger())
	boom := errors.New("tile failed")

	var calls int32
	err := Run(context.Background(), pool, []int{1, 2, 3, 4}, func(ctx context.Context, item int) error {
		atomic.AddInt32(&calls, 1)
		if item == 2 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := Run(ctx, NewPool(2, nil), []int{1, 2, 3}, func(ctx context.Context, item int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
