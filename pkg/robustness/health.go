package robustness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/config"
	"github.com/fyrsmithlabs/gomcp/internal/logging"
)

// Checker is a single dependency's health probe, the same shape
// contextd's vector store used for its own Qdrant healthCheck span.
type Checker func(ctx context.Context) error

// Monitor runs a set of named Checkers on a fixed interval and keeps the
// most recent result for each, so a process can expose aggregate
// liveness/readiness without re-probing on every request.
type Monitor struct {
	cfg config.HealthConfig

	mu       sync.RWMutex
	checkers map[string]Checker
	results  map[string]error
}

// NewMonitor constructs a health Monitor.
func NewMonitor(cfg config.HealthConfig) *Monitor {
	return &Monitor{
		cfg:      cfg,
		checkers: make(map[string]Checker),
		results:  make(map[string]error),
	}
}

// Register adds a named Checker. Registering under a name that already
// exists replaces the previous Checker.
func (m *Monitor) Register(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = check
}

// Run blocks, probing every registered Checker on Interval until ctx is
// cancelled. It is meant to be started as its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
	logger := logging.FromContext(ctx)

	ticker := time.NewTicker(time.Duration(m.cfg.Interval))
	defer ticker.Stop()

	m.probeAll(ctx, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx, logger)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context, logger *logging.Logger) {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	checks := make(map[string]Checker, len(m.checkers))
	for name, check := range m.checkers {
		names = append(names, name)
		checks[name] = check
	}
	m.mu.RUnlock()

	for _, name := range names {
		probeCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.Timeout))
		err := checks[name](probeCtx)
		cancel()

		m.mu.Lock()
		m.results[name] = err
		m.mu.Unlock()

		if err != nil {
			logger.Warn(ctx, "health check failed", zap.String("component", name), zap.Error(err))
		}
	}
}

// Status reports the last-observed error for name, and whether name has
// been probed at least once.
func (m *Monitor) Status(name string) (err error, checked bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	err, checked = m.results[name]
	return err, checked
}

// Healthy reports whether every registered component's most recent probe
// succeeded. A component that has never been probed counts as healthy,
// so Healthy reflects known failures rather than startup race conditions.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, err := range m.results {
		if err != nil {
			return false
		}
	}
	return true
}
