package robustness

import (
	"context"

	"github.com/fyrsmithlabs/gomcp/internal/config"
)

// Guard combines a CircuitBreaker and a Retrier behind a single Do call,
// the same pairing contextd's retryOperation hand-rolled around its own
// circuitBreaker struct: the breaker decides whether an attempt is even
// allowed, the retrier decides how many attempts and how long to wait
// between them.
type Guard struct {
	breaker *CircuitBreaker
	retrier *Retrier
}

// NewGuard constructs a Guard for the named dependency.
func NewGuard(name string, cfg config.RobustnessConfig) *Guard {
	return &Guard{
		breaker: NewCircuitBreaker(name, cfg.CircuitBreaker),
		retrier: NewRetrier(cfg.Retry),
	}
}

// Do runs fn under both the circuit breaker and the retrier: each attempt
// checks Allow before calling fn, and a failed attempt is recorded against
// the breaker before the retrier decides whether to try again.
func (g *Guard) Do(ctx context.Context, operation string, isTransient IsTransient, fn func() error) error {
	return g.retrier.Do(ctx, operation, isTransient, func() error {
		ok, err := g.breaker.Allow()
		if !ok {
			return err
		}
		if err := fn(); err != nil {
			g.breaker.RecordFailure()
			return err
		}
		g.breaker.RecordSuccess()
		return nil
	})
}

// Breaker exposes the underlying CircuitBreaker, e.g. for a health
// endpoint to report its current state.
func (g *Guard) Breaker() *CircuitBreaker { return g.breaker }
