// Package retry re-runs operations that fail with transient errors, waiting
// between attempts according to a Backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cityharvest/pkg/config"
	errs "cityharvest/pkg/errors"
	"cityharvest/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, the first one included
	MaxAttempts int
	Backoff     Backoff
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 6,
		Backoff:     Exponential{Base: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: 0.1},
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// FromConfig builds a retry Config from the retry section of the application config
func FromConfig(cfg config.RetryConfig, log logger.Logger) *Config {
	rc := &Config{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: Exponential{
			Base:   cfg.BaseDelay,
			Max:    cfg.MaxDelay,
			Factor: cfg.Multiplier,
			Jitter: cfg.Jitter,
		},
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
	if !cfg.Enabled {
		rc.MaxAttempts = 1
	}
	return rc
}

// DefaultRetryIf retries typed errors whose type is transient.
// The type decides even when the cause is a deadline: an HTTP client timeout
// before any response is a network error. Untyped errors, including the
// caller's own context errors, are final.
func DefaultRetryIf(err error) bool {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return false
}

// ErrExhausted wraps the last error once every attempt has failed
var ErrExhausted = errors.New("retry attempts exhausted")

// Do executes op until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := cfg.Backoff.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WithError(err).WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if werr := sleep(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}

	log.WithError(lastErr).ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
		"attempts": maxAttempts,
	})
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op func(ctx context.Context) (T, error), cfg *Config) (T, error) {
	var result T
	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)
	return result, err
}
