// Package unixsock implements the Transport contract over a Unix domain
// socket, framing each connection as newline-delimited JSON-RPC messages.
package unixsock

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/fyrsmithlabs/gomcp/pkg/transport"
)

// Transport serves JSON-RPC over a Unix domain socket.
type Transport struct {
	transport.StateHolder

	path string
	ln   net.Listener
}

// Config configures a Transport.
type Config struct {
	Path string
}

// New constructs a Unix domain socket Transport bound to cfg.Path.
func New(cfg Config) *Transport {
	return &Transport{path: cfg.Path}
}

func (t *Transport) Name() string { return "unixsock" }

// Start listens on the configured socket path and serves connections until
// ctx is cancelled. Any stale socket file left behind by a previous,
// uncleanly terminated run is removed first.
func (t *Transport) Start(ctx context.Context, d transport.Dispatcher) error {
	_ = os.Remove(t.path)

	ln, err := net.Listen("unix", t.path)
	if err != nil {
		return fmt.Errorf("unixsock: listen %s: %w", t.path, err)
	}
	t.ln = ln
	t.Set(transport.StateConnected)
	defer t.Set(transport.StateClosed)
	defer os.Remove(t.path)

	return transport.ServeListener(ctx, ln, d, t.Name())
}

// Stop closes the listener, unblocking any pending Accept.
func (t *Transport) Stop(ctx context.Context) error {
	defer t.Set(transport.StateClosed)
	if t.ln == nil {
		return nil
	}
	return t.ln.Close()
}
