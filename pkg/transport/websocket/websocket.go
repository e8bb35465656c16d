// Package websocket implements the Transport contract over a dedicated
// WebSocket listener: each connection exchanges one JSON-RPC message per
// text frame.
package websocket

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/pkg/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport serves JSON-RPC over WebSocket text frames.
type Transport struct {
	transport.StateHolder

	addr string
	path string

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// Config configures a Transport.
type Config struct {
	Addr string
	Path string
}

// New constructs a WebSocket Transport listening on cfg.Addr and serving
// connections at cfg.Path (default "/ws").
func New(cfg Config) *Transport {
	path := cfg.Path
	if path == "" {
		path = "/ws"
	}
	return &Transport{addr: cfg.Addr, path: path}
}

func (t *Transport) Name() string { return "websocket" }

// Start listens on the configured address, upgrading every request at path
// to a WebSocket connection, and serves until ctx is cancelled.
func (t *Transport) Start(ctx context.Context, d transport.Dispatcher) error {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("websocket: listen %s: %w", t.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(t.path, func(w http.ResponseWriter, r *http.Request) {
		t.handleUpgrade(ctx, w, r, d)
	})

	srv := &http.Server{Handler: mux}

	t.mu.Lock()
	t.ln = ln
	t.srv = srv
	t.mu.Unlock()

	t.Set(transport.StateConnected)
	defer t.Set(transport.StateClosed)

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (t *Transport) handleUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request, d transport.Dispatcher) {
	logger := logging.FromContext(ctx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		out, ok, err := transport.DecodeAndDispatch(ctx, raw, d)
		if err != nil {
			logger.Warn(ctx, "websocket failed to handle message", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		writeMu.Lock()
		writeErr := conn.WriteMessage(websocket.TextMessage, out)
		writeMu.Unlock()
		if writeErr != nil {
			logger.Warn(ctx, "websocket write failed", zap.Error(writeErr))
			return
		}
	}
}

// Stop shuts the HTTP server down with http.Server.Shutdown. Upgraded
// WebSocket connections are hijacked from the server, so Shutdown neither
// closes nor waits for them; each stays open until its peer closes it or
// a read or write on it fails.
func (t *Transport) Stop(ctx context.Context) error {
	defer t.Set(transport.StateClosed)
	t.mu.Lock()
	srv := t.srv
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr returns the listener's bound address. Only valid after Start has
// begun listening.
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}
