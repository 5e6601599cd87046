package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff returns the pause after the given 1-based failed attempt
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Exponential grows the pause by Factor per attempt, starting at Base and
// capped at Max. Jitter spreads each pause by up to ±Jitter of its length.
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// Delay implements Backoff
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := float64(e.Base) * math.Pow(math.Max(e.Factor, 1), float64(attempt-1))
	if e.Max > 0 {
		d = math.Min(d, float64(e.Max))
	}
	if e.Jitter > 0 {
		d *= 1 + e.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(math.Max(d, 0))
}

// Constant pauses for the same duration after every attempt
type Constant time.Duration

// Delay implements Backoff
func (c Constant) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(c)
}

// sleep pauses for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
