// Package ratelimit paces outgoing Graph API requests.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"cityharvest/pkg/config"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed right now
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket is a token bucket limiter refilled continuously
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows requestsPerMinute on average with bursts of up to burst
func NewTokenBucket(requestsPerMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &TokenBucket{limiter: rate.NewLimiter(limit, burst)}
}

func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// FromConfig returns Unlimited when no request rate is configured
func FromConfig(cfg config.RateLimitConfig) Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(cfg.RequestsPerMinute, cfg.BurstSize)
}
