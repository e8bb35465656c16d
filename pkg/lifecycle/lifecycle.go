// Package lifecycle runs the configured set of transports side by side
// and coordinates their startup and graceful shutdown, the same
// ctx.Done()-triggers-a-timed-Shutdown shape contextd's pkg/server.Server
// used for its single Echo instance, generalized to an arbitrary number
// of pkg/transport.Transport implementations running concurrently.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/pkg/transport"
)

// State is the server's own coarse lifecycle state, distinct from each
// individual transport.State.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Manager starts a fixed set of transports, waits for a shutdown signal
// (context cancellation, OS signal, or an explicit Shutdown call), and
// stops every transport within ShutdownTimeout.
type Manager struct {
	transports      []transport.Transport
	dispatcher      transport.Dispatcher
	shutdownTimeout time.Duration

	mu    sync.Mutex
	state State

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewManager constructs a Manager over the given transports, all of which
// dispatch through d.
func NewManager(d transport.Dispatcher, shutdownTimeout time.Duration, transports ...transport.Transport) *Manager {
	return &Manager{
		transports:      transports,
		dispatcher:      d,
		shutdownTimeout: shutdownTimeout,
		shutdownCh:      make(chan struct{}),
	}
}

// State reports the Manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run starts every transport, installs a SIGINT/SIGTERM handler, and
// blocks until ctx is cancelled, a signal arrives, or Shutdown is called
// explicitly -- then stops every transport within ShutdownTimeout. The
// first fatal transport error, if any, is returned; a clean shutdown
// returns nil.
func (m *Manager) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	m.setState(StateStarting)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, len(m.transports))
	var wg sync.WaitGroup
	for _, t := range m.transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			if err := t.Start(runCtx, m.dispatcher); err != nil {
				logger.Warn(ctx, "transport exited with error", zap.String("transport", t.Name()), zap.Error(err))
				select {
				case errCh <- fmt.Errorf("%s: %w", t.Name(), err):
				default:
				}
			}
		}(t)
	}

	m.setState(StateRunning)
	logger.Info(ctx, "lifecycle manager running", zap.Int("transports", len(m.transports)))

	var runErr error
	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		logger.Info(ctx, "received shutdown signal", zap.String("signal", sig.String()))
	case <-m.shutdownCh:
	case runErr = <-errCh:
	}

	m.setState(StateShuttingDown)
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()

	for _, t := range m.transports {
		if err := t.Stop(shutdownCtx); err != nil {
			logger.Warn(ctx, "transport stop failed", zap.String("transport", t.Name()), zap.Error(err))
		}
	}

	wg.Wait()
	m.setState(StateStopped)
	logger.Info(ctx, "lifecycle manager stopped")

	return runErr
}

// Shutdown requests a graceful shutdown without waiting for a signal or
// context cancellation. It is safe to call multiple times and from any
// goroutine.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() { close(m.shutdownCh) })
}
