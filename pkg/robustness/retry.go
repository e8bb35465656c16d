package robustness

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/fyrsmithlabs/gomcp/internal/config"
)

// Retrier retries an operation with exponential backoff and jitter,
// following the same attempt-loop-with-select-on-ctx-and-time.After shape
// contextd's Qdrant store used for its own transient-failure retries, but
// delegating the backoff sequence itself to backoff.ExponentialBackOff
// instead of hand-doubling a duration.
type Retrier struct {
	cfg config.RetryConfig
}

// NewRetrier constructs a Retrier from RetryConfig.
func NewRetrier(cfg config.RetryConfig) *Retrier {
	return &Retrier{cfg: cfg}
}

// IsTransient is overridden by callers that know which errors from their
// own dependency are worth retrying; the zero value retries everything.
type IsTransient func(error) bool

// alwaysTransient is the default classification: every error is retried
// until MaxAttempts is exhausted.
func alwaysTransient(error) bool { return true }

// Do runs fn up to MaxAttempts times, waiting between attempts per the
// configured exponential backoff, and gives up early when isTransient
// reports an error is permanent. isTransient may be nil, in which case
// every error is treated as retryable.
func (r *Retrier) Do(ctx context.Context, operation string, isTransient IsTransient, fn func() error) error {
	if !r.cfg.Enabled {
		return fn()
	}
	if isTransient == nil {
		isTransient = alwaysTransient
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Duration(r.cfg.BaseDelay)),
		backoff.WithMaxInterval(time.Duration(r.cfg.MaxDelay)),
		backoff.WithRandomizationFactor(r.cfg.Jitter),
	)

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return fmt.Errorf("%s failed (non-retryable): %w", operation, err)
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled after %d attempts: %w", operation, attempt, ctx.Err())
		case <-time.After(b.NextBackOff()):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.cfg.MaxAttempts, lastErr)
}
