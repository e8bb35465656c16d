// Package mcpserver assembles the protocol layers -- registry, router,
// middleware chain, session table, capability negotiation, robustness
// guards, and the configured set of wire transports -- into the single
// runtime a binary starts and stops, the way pkg/server.Server does for
// the teacher's HTTP-only daemon, generalized here to an arbitrary set of
// concurrent listeners.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"

	"github.com/fyrsmithlabs/gomcp/internal/config"
	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/pkg/lifecycle"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/metrics"
	"github.com/fyrsmithlabs/gomcp/pkg/middleware"
	"github.com/fyrsmithlabs/gomcp/pkg/negotiate"
	"github.com/fyrsmithlabs/gomcp/pkg/registry"
	"github.com/fyrsmithlabs/gomcp/pkg/robustness"
	"github.com/fyrsmithlabs/gomcp/pkg/router"
	"github.com/fyrsmithlabs/gomcp/pkg/session"
	"github.com/fyrsmithlabs/gomcp/pkg/transport"
	"github.com/fyrsmithlabs/gomcp/pkg/transport/childproc"
	"github.com/fyrsmithlabs/gomcp/pkg/transport/httpsse"
	"github.com/fyrsmithlabs/gomcp/pkg/transport/stdio"
	"github.com/fyrsmithlabs/gomcp/pkg/transport/tcp"
	"github.com/fyrsmithlabs/gomcp/pkg/transport/unixsock"
	"github.com/fyrsmithlabs/gomcp/pkg/transport/websocket"
)

// Options configures a Server. Config and ServerInfo are required; the
// remaining fields default to sensible standalone values so tests can
// build a Server without a full dependency-injection dance.
type Options struct {
	Config     *config.Config
	ServerInfo negotiate.ServerInfo
	Logger     *logging.Logger

	// MetricsRegisterer, when set, is where Prometheus collectors are
	// registered. Defaults to a fresh prometheus.NewRegistry() so two
	// Servers in the same test binary never collide on collector names.
	MetricsRegisterer prometheus.Registerer
	// MetricsMeter is the OpenTelemetry meter backing the metrics bridge.
	// Defaults to a no-op meter if unset.
	MetricsMeter otelmetric.Meter
}

// Server owns every layer of the runtime and the transports it serves
// over. The zero value is not usable; construct with New.
type Server struct {
	cfg *config.Config

	registry  *registry.Registry
	sessions  *session.Manager
	negotiate *negotiate.Manager
	router    *router.Router
	metrics   *metrics.Metrics
	health    *robustness.Monitor
	guard     *robustness.Guard
	logger    *logging.Logger

	lifecycle *lifecycle.Manager
}

// New builds a Server from opts, wiring the registry, session table,
// capability negotiation, middleware stack, and configured transports.
// Callers register tools/prompts/resources against Registry() before
// calling Run.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("mcpserver: Config is required")
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}

	reg := registry.New()
	sessions := session.NewManager(session.Config{
		TTL:         cfg.Session.TTL.Duration(),
		ShardCount:  cfg.Session.ShardCount,
		MaxSessions: cfg.Session.MaxSessions,
	})
	neg := negotiate.New(reg, sessions, opts.ServerInfo)

	rt := router.New(router.Config{
		Registry:       reg,
		Sessions:       sessions,
		Initialize:     neg.Initialize,
		DefaultTimeout: cfg.Router.DefaultTimeout.Duration(),
	})

	meter := opts.MetricsMeter
	if meter == nil {
		meter = noopmetric.NewMeterProvider().Meter("gomcp")
	}
	m, err := metrics.New(opts.MetricsRegisterer, meter)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: constructing metrics: %w", err)
	}

	health := robustness.NewMonitor(cfg.Robustness.Health)
	guard := robustness.NewGuard("mcpserver", cfg.Robustness)

	s := &Server{
		cfg:       cfg,
		registry:  reg,
		sessions:  sessions,
		negotiate: neg,
		router:    rt,
		metrics:   m,
		health:    health,
		guard:     guard,
		logger:    logger,
	}

	transports, err := s.buildTransports(cfg)
	if err != nil {
		return nil, err
	}

	s.lifecycle = lifecycle.NewManager(s.dispatcher(), cfg.Server.ShutdownTimeout.Duration(), transports...)
	return s, nil
}

// Registry exposes the tool/prompt/resource registry so callers can wire
// their own handlers before Run starts serving.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Sessions exposes the session table, e.g. for an admin/introspection tool.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Metrics exposes the metrics recorder, e.g. to register a health Checker
// that also records a gauge.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// Health exposes the robustness health monitor so callers can Register
// additional Checkers (database connectivity, an upstream API) before Run.
func (s *Server) Health() *robustness.Monitor { return s.health }

// Run starts every configured transport and the health monitor, blocking
// until ctx is cancelled, a SIGINT/SIGTERM arrives, or Shutdown is called.
// It mirrors the teacher's Server.Start: install signal handling once, at
// the outermost layer, rather than in each transport.
func (s *Server) Run(ctx context.Context) error {
	ctx = logging.WithLogger(ctx, s.logger)
	defer s.sessions.Close()

	healthCtx, cancelHealth := context.WithCancel(ctx)
	defer cancelHealth()
	go s.health.Run(healthCtx)

	return s.lifecycle.Run(ctx)
}

// Shutdown requests a graceful stop, equivalent to receiving SIGTERM.
func (s *Server) Shutdown() { s.lifecycle.Shutdown() }

func (s *Server) buildTransports(cfg *config.Config) ([]transport.Transport, error) {
	var transports []transport.Transport

	if cfg.Server.Stdio.Enabled {
		transports = append(transports, stdio.New(stdio.Config{}))
	}
	if cfg.Server.TCP.Enabled {
		transports = append(transports, tcp.New(tcp.Config{Addr: cfg.Server.TCP.Addr}))
	}
	if cfg.Server.Unix.Enabled {
		transports = append(transports, unixsock.New(unixsock.Config{Path: cfg.Server.Unix.Path}))
	}
	if cfg.Server.WebSocket.Enabled {
		transports = append(transports, websocket.New(websocket.Config{
			Addr: cfg.Server.WebSocket.Addr,
			Path: cfg.Server.WebSocket.Path,
		}))
	}
	if cfg.Server.HTTPSSE.Enabled {
		transports = append(transports, httpsse.New(httpsse.Config{Addr: cfg.Server.HTTPSSE.Addr}))
	}
	if cfg.Server.ChildProcess.Enabled {
		transports = append(transports, childproc.New(childproc.Config{
			Command: cfg.Server.ChildProcess.Command,
			Args:    cfg.Server.ChildProcess.Args,
		}))
	}

	if len(transports) == 0 {
		return nil, mcperr.InternalError("mcpserver: no transport is enabled")
	}
	return transports, nil
}

// middlewareChain builds the Logging -> RateLimit -> Auth -> Metrics stack
// in the order the teacher's own echo.Echo middleware registration reads:
// cross-cutting concerns outermost, authentication just inside them, and
// the thing being measured (dispatch) innermost.
func (s *Server) middlewareChain() middleware.Middleware {
	mws := []middleware.Middleware{middleware.Logging()}

	if s.cfg.Middleware.RateLimit.Enabled {
		mws = append(mws, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.cfg.Middleware.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.Middleware.RateLimit.Burst,
		}))
	}

	if s.cfg.Middleware.Auth.Enabled {
		mws = append(mws, middleware.Auth(middleware.AuthConfig{
			Mode:      middleware.AuthMode(s.cfg.Middleware.Auth.Mode),
			JWTSecret: string(s.cfg.Middleware.Auth.JWT.Secret),
			Issuer:    s.cfg.Middleware.Auth.JWT.Issuer,
			Audience:  s.cfg.Middleware.Auth.JWT.Audience,
		}))
	}

	mws = append(mws, middleware.Metrics(s.metrics))

	return middleware.Chain(mws...)
}
