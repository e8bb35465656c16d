// Package httpsse implements the Transport contract over HTTP: JSON-RPC
// requests are POSTed to /mcp, server-initiated notifications stream back
// over /mcp/sse as Server-Sent Events, and /mcp/health reports liveness.
package httpsse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
	"github.com/fyrsmithlabs/gomcp/pkg/reqcontext"
	"github.com/fyrsmithlabs/gomcp/pkg/transport"
)

// Config configures a Transport.
type Config struct {
	Addr string
}

// Transport serves JSON-RPC over HTTP+SSE using an echo.Echo server.
type Transport struct {
	transport.StateHolder

	addr string
	echo *echo.Echo

	streamsMu sync.Mutex
	streams   map[string]chan []byte // sessionID -> outbound SSE frames
}

// New constructs an HTTP+SSE Transport.
func New(cfg Config) *Transport {
	return &Transport{addr: cfg.Addr, streams: make(map[string]chan []byte)}
}

func (t *Transport) Name() string { return "httpsse" }

// Start builds the Echo instance, registers routes, and serves until ctx is
// cancelled or Stop is called.
func (t *Transport) Start(ctx context.Context, d transport.Dispatcher) error {
	logger := logging.FromContext(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	e.GET("/mcp/health", t.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/mcp", t.handlePost(ctx, d))
	e.GET("/mcp/sse", t.handleSSE(ctx))

	t.echo = e
	t.Set(transport.StateConnected)
	defer t.Set(transport.StateClosed)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	if err := e.Start(t.addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpsse: %w", err)
	}
	return nil
}

// Stop gracefully shuts the Echo server down.
func (t *Transport) Stop(ctx context.Context) error {
	defer t.Set(transport.StateClosed)
	if t.echo == nil {
		return nil
	}
	return t.echo.Shutdown(ctx)
}

func (t *Transport) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handlePost accepts one JSON-RPC message (single or batch) per request,
// validating the Accept header per the MCP HTTP transport spec: a client
// must accept either application/json or text/event-stream.
func (t *Transport) handlePost(ctx context.Context, d transport.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := validateAcceptHeader(c.Request()); err != nil {
			return echo.NewHTTPError(http.StatusNotAcceptable, err.Error())
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
		}

		reqCtx := ctx
		if sessionID := c.Request().Header.Get("Mcp-Session-Id"); sessionID != "" {
			reqCtx = reqcontext.WithSessionID(reqCtx, sessionID)
			reqCtx = reqcontext.WithResponseSender(reqCtx, func(method string, params interface{}) error {
				if !t.Notify(sessionID, method, params) {
					return fmt.Errorf("httpsse: no open stream for session %s", sessionID)
				}
				return nil
			})
		}
		if auth := c.Request().Header.Get("Authorization"); auth != "" {
			md := reqcontext.MetadataFromContext(reqCtx).With("authorization", auth)
			reqCtx = reqcontext.WithMetadata(reqCtx, md)
		}

		out, ok, err := transport.DecodeAndDispatch(reqCtx, body, d)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !ok {
			return c.NoContent(http.StatusAccepted)
		}
		return c.JSONBlob(http.StatusOK, out)
	}
}

// handleSSE streams server-initiated notifications (progress, resource
// change events) to a client that opened a long-lived GET on /mcp/sse,
// keyed by its Mcp-Session-Id header.
func (t *Transport) handleSSE(ctx context.Context) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Request().Header.Get("Mcp-Session-Id")
		if sessionID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Mcp-Session-Id header is required")
		}

		ch := t.registerStream(sessionID)
		defer t.unregisterStream(sessionID)

		w := c.Response()
		w.Header().Set(echo.HeaderContentType, "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		reqCtx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-reqCtx.Done():
				return nil
			case frame, ok := <-ch:
				if !ok {
					return nil
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
					return nil
				}
				w.Flush()
			}
		}
	}
}

// Notify pushes a JSON-RPC notification to a connected session's SSE
// stream. Returns false if no stream is open for that session (the caller
// then falls back to polling or drops the notification).
func (t *Transport) Notify(sessionID string, method string, params interface{}) bool {
	t.streamsMu.Lock()
	ch, ok := t.streams[sessionID]
	t.streamsMu.Unlock()
	if !ok {
		return false
	}

	payload, err := json.Marshal(struct {
		JSONRPC string      `json:"jsonrpc"`
		Method  string      `json:"method"`
		Params  interface{} `json:"params,omitempty"`
	}{JSONRPC: jsonrpc.Version, Method: method, Params: params})
	if err != nil {
		return false
	}

	select {
	case ch <- payload:
		return true
	default:
		return false
	}
}

func (t *Transport) registerStream(sessionID string) chan []byte {
	t.streamsMu.Lock()
	defer t.streamsMu.Unlock()
	ch := make(chan []byte, 16)
	t.streams[sessionID] = ch
	return ch
}

func (t *Transport) unregisterStream(sessionID string) {
	t.streamsMu.Lock()
	defer t.streamsMu.Unlock()
	if ch, ok := t.streams[sessionID]; ok {
		close(ch)
		delete(t.streams, sessionID)
	}
}

// validateAcceptHeader requires the client to accept JSON or SSE, per the
// MCP streamable-HTTP transport spec.
func validateAcceptHeader(r *http.Request) error {
	accept := r.Header.Get("Accept")
	if accept == "" || accept == "*/*" {
		return nil
	}
	for _, want := range []string{"application/json", "text/event-stream"} {
		if containsMediaType(accept, want) {
			return nil
		}
	}
	return fmt.Errorf("Accept header must include application/json or text/event-stream")
}

func containsMediaType(accept, want string) bool {
	for i := 0; i+len(want) <= len(accept); i++ {
		if accept[i:i+len(want)] == want {
			return true
		}
	}
	return false
}
