// Package config provides configuration loading for the gomcp runtime.
//
// Configuration is loaded from environment variables, optional YAML/TOML
// files, and compiled-in defaults, layered via koanf. This package covers
// transport listeners, middleware policy, routing, robustness tuning, and
// session management -- the ambient knobs of the protocol runtime itself,
// not any particular tool's business logic.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete gomcp runtime configuration.
type Config struct {
	Production  ProductionConfig  `koanf:"production"`
	Server      ServerConfig      `koanf:"server"`
	Middleware  MiddlewareConfig  `koanf:"middleware"`
	Router      RouterConfig      `koanf:"router"`
	Robustness  RobustnessConfig  `koanf:"robustness"`
	Session     SessionConfig     `koanf:"session"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds listener configuration for every transport the server
// assembles. A transport section with Enabled=false is never started.
type ServerConfig struct {
	ShutdownTimeout Duration        `koanf:"shutdown_timeout"`
	Stdio           StdioConfig     `koanf:"stdio"`
	TCP             TCPConfig       `koanf:"tcp"`
	Unix            UnixConfig      `koanf:"unix"`
	WebSocket       WebSocketConfig `koanf:"websocket"`
	HTTPSSE         HTTPSSEConfig   `koanf:"http_sse"`
	ChildProcess    ChildProcessConfig `koanf:"child_process"`
}

// StdioConfig configures the newline-delimited JSON stdio transport.
type StdioConfig struct {
	Enabled bool `koanf:"enabled"`
}

// TCPConfig configures the newline-delimited JSON TCP listener.
type TCPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// UnixConfig configures the newline-delimited JSON Unix domain socket listener.
type UnixConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// WebSocketConfig configures the WebSocket text-frame transport.
type WebSocketConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	Path    string `koanf:"path"`
}

// HTTPSSEConfig configures the HTTP+SSE transport (POST /mcp, GET /mcp/sse,
// WS /mcp/ws, GET /mcp/health).
type HTTPSSEConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// ChildProcessConfig configures launching a child process and speaking the
// protocol over its piped stdio.
type ChildProcessConfig struct {
	Enabled bool     `koanf:"enabled"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

// MiddlewareConfig controls the built-in interceptor stack.
type MiddlewareConfig struct {
	SecurityHeaders SecurityHeadersConfig `koanf:"security_headers"`
	RateLimit       RateLimitConfig       `koanf:"rate_limit"`
	Auth            AuthConfig            `koanf:"auth"`
}

// SecurityHeadersConfig selects a response-header preset.
type SecurityHeadersConfig struct {
	Enabled bool   `koanf:"enabled"`
	Preset  string `koanf:"preset"` // "default", "relaxed", "strict"
}

// RateLimitConfig configures the per-client token bucket limiter.
type RateLimitConfig struct {
	Enabled           bool    `koanf:"enabled"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// AuthConfig configures authentication middleware.
type AuthConfig struct {
	Enabled bool   `koanf:"enabled"`
	Mode    string `koanf:"mode"` // "bearer_jwt", "dev_owner", "none"
	JWT     JWTConfig `koanf:"jwt"`
}

// JWTConfig configures bearer-token JWT verification.
type JWTConfig struct {
	Secret   Secret   `koanf:"secret"`
	Issuer   string   `koanf:"issuer"`
	Audience string   `koanf:"audience"`
}

// RouterConfig controls request dispatch defaults.
type RouterConfig struct {
	DefaultTimeout Duration `koanf:"default_timeout"`
}

// RobustnessConfig tunes the circuit breaker, retry, and health monitor.
type RobustnessConfig struct {
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
	Retry          RetryConfig          `koanf:"retry"`
	Health         HealthConfig         `koanf:"health"`
}

// CircuitBreakerConfig configures the Closed/Open/HalfOpen state machine.
type CircuitBreakerConfig struct {
	Enabled          bool     `koanf:"enabled"`
	FailureThreshold int      `koanf:"failure_threshold"`
	OpenDuration     Duration `koanf:"open_duration"`
	// MaxOpenDuration caps the doubling backoff applied each time a
	// HalfOpen probe fails; a repeatedly-failing probe never waits longer
	// than this before the next probe is attempted.
	MaxOpenDuration  Duration `koanf:"max_open_duration"`
	HalfOpenMaxCalls int      `koanf:"half_open_max_calls"`
}

// RetryConfig configures exponential backoff with jitter.
type RetryConfig struct {
	Enabled     bool     `koanf:"enabled"`
	MaxAttempts int      `koanf:"max_attempts"`
	BaseDelay   Duration `koanf:"base_delay"`
	MaxDelay    Duration `koanf:"max_delay"`
	Jitter      float64  `koanf:"jitter"`
}

// HealthConfig configures periodic transport health checks.
type HealthConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Interval Duration `koanf:"interval"`
	Timeout  Duration `koanf:"timeout"`
}

// SessionConfig controls the session table.
type SessionConfig struct {
	TTL         Duration `koanf:"ttl"`
	ShardCount  int      `koanf:"shard_count"`
	MaxSessions int      `koanf:"max_sessions"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry   bool   `koanf:"enable_telemetry"`
	ServiceName       string `koanf:"service_name"`
	OTLPEndpoint      string `koanf:"otlp_endpoint"`
	OTLPProtocol      string `koanf:"otlp_protocol"`
	OTLPInsecure      bool   `koanf:"otlp_insecure"`
	OTLPTLSSkipVerify bool   `koanf:"otlp_tls_skip_verify"`
}

// ProductionConfig holds production deployment configuration.
type ProductionConfig struct {
	// Enabled indicates whether production mode is active.
	// Set via GOMCP_PRODUCTION_MODE=1 environment variable.
	Enabled bool `koanf:"enabled"`

	// LocalModeAcknowledged allows development features in production mode.
	LocalModeAcknowledged bool `koanf:"local_mode_acknowledged"`

	// RequireAuthentication enforces authentication in production.
	RequireAuthentication bool `koanf:"require_authentication"`

	// AuthenticationConfigured indicates if auth is properly set up.
	AuthenticationConfigured bool `koanf:"authentication_configured"`

	// RequireTLS enforces TLS for external listeners.
	RequireTLS bool `koanf:"require_tls"`
}

// IsProduction returns true if running in production mode.
func (c *ProductionConfig) IsProduction() bool {
	return c.Enabled
}

// IsLocal returns true if local mode is acknowledged.
func (c *ProductionConfig) IsLocal() bool {
	return c.LocalModeAcknowledged
}

// Validate checks production configuration for security issues.
func (c *ProductionConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequireAuthentication && !c.AuthenticationConfigured {
		return fmt.Errorf("SECURITY: RequireAuthentication enabled but authentication not configured")
	}
	return nil
}

// Load loads configuration from environment variables with defaults.
//
// Server:
//   - GOMCP_SERVER_SHUTDOWN_TIMEOUT: graceful shutdown timeout (default: 10s)
//   - GOMCP_STDIO_ENABLED: enable the stdio transport (default: true)
//   - GOMCP_TCP_ENABLED / GOMCP_TCP_ADDR
//   - GOMCP_UNIX_ENABLED / GOMCP_UNIX_PATH
//   - GOMCP_WS_ENABLED / GOMCP_WS_ADDR / GOMCP_WS_PATH
//   - GOMCP_HTTP_ENABLED / GOMCP_HTTP_ADDR
//
// Middleware:
//   - GOMCP_SECURITY_HEADERS_PRESET: default|relaxed|strict
//   - GOMCP_RATE_LIMIT_RPS / GOMCP_RATE_LIMIT_BURST
//   - GOMCP_AUTH_MODE: bearer_jwt|dev_owner|none
//
// Telemetry:
//   - OTEL_ENABLE: enable OpenTelemetry (default: false)
//   - OTEL_SERVICE_NAME: service name for traces (default: gomcp)
func Load() *Config {
	cfg := &Config{
		Production: ProductionConfig{
			Enabled:               getEnvBool("GOMCP_PRODUCTION_MODE", false),
			LocalModeAcknowledged: getEnvBool("GOMCP_LOCAL_MODE", false),
			RequireAuthentication: getEnvBool("GOMCP_REQUIRE_AUTH", false),
			RequireTLS:            getEnvBool("GOMCP_REQUIRE_TLS", false),
		},
		Server: ServerConfig{
			ShutdownTimeout: Duration(getEnvDuration("GOMCP_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)),
			Stdio: StdioConfig{
				Enabled: getEnvBool("GOMCP_STDIO_ENABLED", true),
			},
			TCP: TCPConfig{
				Enabled: getEnvBool("GOMCP_TCP_ENABLED", false),
				Addr:    getEnvString("GOMCP_TCP_ADDR", ":7890"),
			},
			Unix: UnixConfig{
				Enabled: getEnvBool("GOMCP_UNIX_ENABLED", false),
				Path:    getEnvString("GOMCP_UNIX_PATH", "/tmp/gomcp.sock"),
			},
			WebSocket: WebSocketConfig{
				Enabled: getEnvBool("GOMCP_WS_ENABLED", false),
				Addr:    getEnvString("GOMCP_WS_ADDR", ":7891"),
				Path:    getEnvString("GOMCP_WS_PATH", "/mcp/ws"),
			},
			HTTPSSE: HTTPSSEConfig{
				Enabled: getEnvBool("GOMCP_HTTP_ENABLED", false),
				Addr:    getEnvString("GOMCP_HTTP_ADDR", ":8080"),
			},
			ChildProcess: ChildProcessConfig{
				Enabled: getEnvBool("GOMCP_CHILD_ENABLED", false),
				Command: getEnvString("GOMCP_CHILD_COMMAND", ""),
				Args:    splitEnvList(getEnvString("GOMCP_CHILD_ARGS", "")),
			},
		},
		Middleware: MiddlewareConfig{
			SecurityHeaders: SecurityHeadersConfig{
				Enabled: getEnvBool("GOMCP_SECURITY_HEADERS_ENABLED", true),
				Preset:  getEnvString("GOMCP_SECURITY_HEADERS_PRESET", "default"),
			},
			RateLimit: RateLimitConfig{
				Enabled:           getEnvBool("GOMCP_RATE_LIMIT_ENABLED", true),
				RequestsPerSecond: getEnvFloat("GOMCP_RATE_LIMIT_RPS", 50),
				Burst:             getEnvInt("GOMCP_RATE_LIMIT_BURST", 100),
			},
			Auth: AuthConfig{
				Enabled: getEnvBool("GOMCP_AUTH_ENABLED", false),
				Mode:    getEnvString("GOMCP_AUTH_MODE", "none"),
				JWT: JWTConfig{
					Secret:   Secret(getEnvString("GOMCP_AUTH_JWT_SECRET", "")),
					Issuer:   getEnvString("GOMCP_AUTH_JWT_ISSUER", ""),
					Audience: getEnvString("GOMCP_AUTH_JWT_AUDIENCE", ""),
				},
			},
		},
		Router: RouterConfig{
			DefaultTimeout: Duration(getEnvDuration("GOMCP_ROUTER_DEFAULT_TIMEOUT", 30*time.Second)),
		},
		Robustness: RobustnessConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvBool("GOMCP_CB_ENABLED", true),
				FailureThreshold: getEnvInt("GOMCP_CB_FAILURE_THRESHOLD", 5),
				OpenDuration:     Duration(getEnvDuration("GOMCP_CB_OPEN_DURATION", 30*time.Second)),
				MaxOpenDuration:  Duration(getEnvDuration("GOMCP_CB_MAX_OPEN_DURATION", 5*time.Minute)),
				HalfOpenMaxCalls: getEnvInt("GOMCP_CB_HALF_OPEN_MAX_CALLS", 1),
			},
			Retry: RetryConfig{
				Enabled:     getEnvBool("GOMCP_RETRY_ENABLED", true),
				MaxAttempts: getEnvInt("GOMCP_RETRY_MAX_ATTEMPTS", 3),
				BaseDelay:   Duration(getEnvDuration("GOMCP_RETRY_BASE_DELAY", 100*time.Millisecond)),
				MaxDelay:    Duration(getEnvDuration("GOMCP_RETRY_MAX_DELAY", 5*time.Second)),
				Jitter:      getEnvFloat("GOMCP_RETRY_JITTER", 0.2),
			},
			Health: HealthConfig{
				Enabled:  getEnvBool("GOMCP_HEALTH_ENABLED", true),
				Interval: Duration(getEnvDuration("GOMCP_HEALTH_INTERVAL", 15*time.Second)),
				Timeout:  Duration(getEnvDuration("GOMCP_HEALTH_TIMEOUT", 5*time.Second)),
			},
		},
		Session: SessionConfig{
			TTL:         Duration(getEnvDuration("GOMCP_SESSION_TTL", 30*time.Minute)),
			ShardCount:  getEnvInt("GOMCP_SESSION_SHARD_COUNT", 16),
			MaxSessions: getEnvInt("GOMCP_SESSION_MAX", 10000),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", false),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "gomcp"),
		},
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}

	if c.Server.TCP.Enabled {
		if err := validateListenAddr(c.Server.TCP.Addr); err != nil {
			return fmt.Errorf("invalid server.tcp.addr: %w", err)
		}
	}
	if c.Server.WebSocket.Enabled {
		if err := validateListenAddr(c.Server.WebSocket.Addr); err != nil {
			return fmt.Errorf("invalid server.websocket.addr: %w", err)
		}
	}
	if c.Server.HTTPSSE.Enabled {
		if err := validateListenAddr(c.Server.HTTPSSE.Addr); err != nil {
			return fmt.Errorf("invalid server.http_sse.addr: %w", err)
		}
	}
	if c.Server.Unix.Enabled {
		if err := validatePath(c.Server.Unix.Path); err != nil {
			return fmt.Errorf("invalid server.unix.path: %w", err)
		}
	}
	if c.Server.ChildProcess.Enabled && c.Server.ChildProcess.Command == "" {
		return errors.New("server.child_process.command required when child process transport is enabled")
	}

	if !oneOf(c.Middleware.SecurityHeaders.Preset, "default", "relaxed", "strict") {
		return fmt.Errorf("middleware.security_headers.preset must be default, relaxed, or strict, got %q", c.Middleware.SecurityHeaders.Preset)
	}
	if c.Middleware.RateLimit.Enabled && c.Middleware.RateLimit.RequestsPerSecond <= 0 {
		return errors.New("middleware.rate_limit.requests_per_second must be positive when enabled")
	}
	if !oneOf(c.Middleware.Auth.Mode, "bearer_jwt", "dev_owner", "none") {
		return fmt.Errorf("middleware.auth.mode must be bearer_jwt, dev_owner, or none, got %q", c.Middleware.Auth.Mode)
	}
	if c.Middleware.Auth.Enabled && c.Middleware.Auth.Mode == "bearer_jwt" && !c.Middleware.Auth.JWT.Secret.IsSet() {
		return errors.New("middleware.auth.jwt.secret required when auth.mode is bearer_jwt")
	}

	if c.Router.DefaultTimeout.Duration() <= 0 {
		return errors.New("router.default_timeout must be positive")
	}

	if c.Robustness.CircuitBreaker.Enabled && c.Robustness.CircuitBreaker.FailureThreshold < 1 {
		return errors.New("robustness.circuit_breaker.failure_threshold must be >= 1")
	}
	if c.Robustness.CircuitBreaker.Enabled && c.Robustness.CircuitBreaker.MaxOpenDuration.Duration() < c.Robustness.CircuitBreaker.OpenDuration.Duration() {
		return errors.New("robustness.circuit_breaker.max_open_duration must be >= open_duration")
	}
	if c.Robustness.Retry.Enabled && c.Robustness.Retry.MaxAttempts < 1 {
		return errors.New("robustness.retry.max_attempts must be >= 1")
	}

	if c.Session.ShardCount < 1 {
		return errors.New("session.shard_count must be >= 1")
	}
	if c.Session.TTL.Duration() <= 0 {
		return errors.New("session.ttl must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("observability.service_name required when telemetry is enabled")
	}

	if err := c.Production.Validate(); err != nil {
		return fmt.Errorf("production config validation failed: %w", err)
	}

	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// validateListenAddr checks a host:port listen address for shell metacharacters.
func validateListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be host:port: %w", err)
	}
	return validateHostname(host)
}

// validateHostname checks if a hostname is safe (no command injection attempts).
// Uses positive validation with net.ParseIP for IP addresses and regexp for hostnames.
func validateHostname(host string) error {
	if host == "" {
		return nil
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}
	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validatePath checks if a path is safe (no path traversal).
func validatePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))
		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}
	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only).
func validateURL(urlStr string) error {
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitEnvList splits a comma-separated env value into a trimmed, non-empty
// argument list. Returns nil for an empty input so ChildProcessConfig.Args
// stays nil (not an empty slice) when unset.
func splitEnvList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
