// Package tcp implements the Transport contract over a plain TCP listener,
// framing each connection as newline-delimited JSON-RPC messages.
package tcp

import (
	"context"
	"fmt"
	"net"

	"github.com/fyrsmithlabs/gomcp/pkg/transport"
)

// Transport serves JSON-RPC over TCP.
type Transport struct {
	transport.StateHolder

	addr string
	ln   net.Listener
}

// Config configures a Transport.
type Config struct {
	Addr string
}

// New constructs a TCP Transport bound to cfg.Addr (host:port).
func New(cfg Config) *Transport {
	return &Transport{addr: cfg.Addr}
}

func (t *Transport) Name() string { return "tcp" }

// Start listens on the configured address and serves connections until ctx
// is cancelled.
func (t *Transport) Start(ctx context.Context, d transport.Dispatcher) error {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("tcp: listen %s: %w", t.addr, err)
	}
	t.ln = ln
	t.Set(transport.StateConnected)
	defer t.Set(transport.StateClosed)

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

// Addr returns the listener's bound address. Only valid after Start has
// begun listening; useful in tests that bind to ":0" and need the actual
// port.
func (t *Transport) Addr() net.Addr {
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}
