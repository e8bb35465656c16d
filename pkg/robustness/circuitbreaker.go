// Package robustness implements the resilience layer wrapped around
// outbound operations: a circuit breaker, retry with exponential backoff,
// and periodic health checks. The circuit breaker and retry patterns
// generalize the ad hoc failures/lastFail bookkeeping contextd's Qdrant
// store kept for itself into a reusable component any component can wrap
// a call with.
package robustness

import (
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/gomcp/internal/config"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
)

// serverOverloaded reports the breaker's own fast-fail error without
// invoking the wrapped operation. It reuses the MCP application error
// reserved for "this server can't take more work right now" rather than
// minting a code outside the closed set.
func serverOverloaded(component string) *mcperr.Error {
	return mcperr.ServerOverloaded(fmt.Sprintf("circuit open: %s", component))
}

// CircuitState is one of the three states in the Closed/Open/HalfOpen
// state machine.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips to Open after FailureThreshold consecutive
// failures, refuses calls for OpenDuration, then allows up to
// HalfOpenMaxCalls trial calls through before deciding whether to close
// again or reopen.
type CircuitBreaker struct {
	name string
	cfg  config.CircuitBreakerConfig

	mu           sync.Mutex
	state        CircuitState
	failures     int
	lastFailure  time.Time
	halfOpenUsed int
	// openDuration is the backoff currently in effect; it starts at
	// cfg.OpenDuration and doubles (capped at cfg.MaxOpenDuration) each
	// time a HalfOpen probe fails, resetting to cfg.OpenDuration once the
	// breaker closes again.
	openDuration time.Duration
}

// NewCircuitBreaker constructs a CircuitBreaker for the named component.
// name is carried through into its ServerOverloaded errors so logs and
// callers can tell which downstream dependency tripped.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{name: name, cfg: cfg, openDuration: time.Duration(cfg.OpenDuration)}
}

// State reports the breaker's current state without mutating it, except
// for the Open-to-HalfOpen transition once the current backoff has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked()
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked() {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.openDuration {
		cb.state = StateHalfOpen
		cb.halfOpenUsed = 0
	}
}

// Allow reports whether a call may proceed, and if not, the error to
// return to the caller. It must be called immediately before attempting
// the wrapped operation.
func (cb *CircuitBreaker) Allow() (bool, error) {
	if !cb.cfg.Enabled {
		return true, nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked()

	switch cb.state {
	case StateOpen:
		return false, serverOverloaded(cb.name)
	case StateHalfOpen:
		if cb.halfOpenUsed >= cb.cfg.HalfOpenMaxCalls {
			return false, serverOverloaded(cb.name)
		}
		cb.halfOpenUsed++
		return true, nil
	default:
		return true, nil
	}
}

// RecordSuccess resets the failure count, closes the breaker, and resets
// the backoff to cfg.OpenDuration so the next failure streak starts from
// the configured baseline rather than wherever the last streak left off.
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.cfg.Enabled {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = StateClosed
	cb.halfOpenUsed = 0
	cb.openDuration = time.Duration(cb.cfg.OpenDuration)
}

// RecordFailure counts a failed call, tripping the breaker open once
// FailureThreshold consecutive failures accumulate. A failure seen while
// HalfOpen reopens the breaker immediately regardless of the threshold,
// doubling the backoff (capped at cfg.MaxOpenDuration) each time a probe
// fails, so a downstream dependency that keeps failing its probes is
// retried less and less often instead of every cfg.OpenDuration forever.
func (cb *CircuitBreaker) RecordFailure() {
	if !cb.cfg.Enabled {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.failures = cb.cfg.FailureThreshold
		cb.openDuration *= 2
		if maxOpen := time.Duration(cb.cfg.MaxOpenDuration); maxOpen > 0 && cb.openDuration > maxOpen {
			cb.openDuration = maxOpen
		}
		return
	}

	cb.failures++
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.state = StateOpen
	}
}

// Do runs fn if the breaker allows it, recording the outcome. It returns
// the breaker's own ServerOverloaded error without calling fn when the
// breaker is not allowing calls.
func (cb *CircuitBreaker) Do(fn func() error) error {
	ok, err := cb.Allow()
	if !ok {
		return err
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}
