// Package config provides configuration loading for gomcp.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// LoadWithFile loads configuration from a YAML or TOML file, then overrides
// with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables of the form GOMCP_<SECTION>_<KEY>, mapped to
//     section.key (e.g. GOMCP_SERVER_SHUTDOWN_TIMEOUT ->
//     server.shutdown_timeout); only keys one level below a section can be
//     reached this way
//  2. Config file (~/.config/gomcp/config.yaml or config.toml)
//  3. Defaults from Load(), applied only to fields still empty after the
//     file and environment layers; the variables Load() reads (such as
//     GOMCP_TCP_ADDR or GOMCP_AUTH_MODE) therefore fill such empty fields
//     but do not override a value set in the file
//
// The configPath parameter specifies the file to load. If empty, uses the
// default path. The parser is chosen by file extension (.yaml/.yml or .toml).
//
// # Security Considerations
//
// File Permissions: Configuration file MUST have 0600 permissions (owner
// read/write only). Files with weaker permissions are rejected.
//
// Path Validation: Only configuration files in allowed directories can be
// loaded: ~/.config/gomcp/ or /etc/gomcp/. Absolute paths outside these
// directories are rejected to prevent path traversal attacks.
//
// File Size Limit: Configuration files larger than 1MB are rejected.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "gomcp", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFile(k, configPath); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile opens, validates, and parses the config file, choosing a
// parser by extension. Opens the file once and validates via the descriptor
// to avoid a TOCTOU race between stat and read.
func loadConfigFile(k *koanf.Koanf, configPath string) error {
	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		var raw map[string]interface{}
		if _, err := toml.Decode(string(content), &raw); err != nil {
			return fmt.Errorf("failed to parse TOML config %s: %w", configPath, err)
		}
		if err := k.Load(confmap.Provider(raw, "."), nil); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	default:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}
	return nil
}

// loadEnv overrides koanf values with environment variables.
// GOMCP_SECTION_FIELD_NAME -> section.field_name
func loadEnv(k *koanf.Koanf) error {
	err := k.Load(env.Provider("GOMCP_", ".", func(s string) string {
		trimmed := strings.TrimPrefix(s, "GOMCP_")
		lower := strings.ToLower(trimmed)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// WatchFile watches configPath for changes and invokes onChange with a
// freshly reloaded Config whenever the file is written or renamed over.
// The returned stop function closes the underlying watcher.
func WatchFile(configPath string, onChange func(*Config, error)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(configPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, loadErr := LoadWithFile(configPath)
				onChange(cfg, loadErr)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onChange(nil, werr)
			}
		}
	}()

	return watcher.Close, nil
}

// EnsureConfigDir creates the gomcp config directory if it doesn't exist.
// Called during startup so new installs have the config directory ready.
// The directory is created with 0700 permissions (owner rwx only).
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "gomcp")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	return nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Symlink evaluation fails for paths that don't exist yet; fall back
		// to the absolute path so pre-creation validation still works.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "gomcp"),
		"/etc/gomcp",
	}

	allowed := false
	for _, dir := range allowedDirs {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			allowed = true
			break
		}
	}

	if !allowed {
		return fmt.Errorf("config file must be in ~/.config/gomcp/ or /etc/gomcp/")
	}

	return nil
}

// validateConfigFileProperties checks file permissions and size.
// Takes FileInfo from an already-opened file descriptor to avoid TOCTOU race.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults sets default values for fields left unset by the file/env
// layers, matching Load()'s compiled-in defaults.
func applyDefaults(cfg *Config) {
	defaults := Load()

	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if cfg.Server.TCP.Addr == "" {
		cfg.Server.TCP.Addr = defaults.Server.TCP.Addr
	}
	if cfg.Server.Unix.Path == "" {
		cfg.Server.Unix.Path = defaults.Server.Unix.Path
	}
	if cfg.Server.WebSocket.Addr == "" {
		cfg.Server.WebSocket.Addr = defaults.Server.WebSocket.Addr
	}
	if cfg.Server.WebSocket.Path == "" {
		cfg.Server.WebSocket.Path = defaults.Server.WebSocket.Path
	}
	if cfg.Server.HTTPSSE.Addr == "" {
		cfg.Server.HTTPSSE.Addr = defaults.Server.HTTPSSE.Addr
	}
	if cfg.Middleware.SecurityHeaders.Preset == "" {
		cfg.Middleware.SecurityHeaders.Preset = defaults.Middleware.SecurityHeaders.Preset
	}
	if cfg.Middleware.RateLimit.RequestsPerSecond == 0 {
		cfg.Middleware.RateLimit.RequestsPerSecond = defaults.Middleware.RateLimit.RequestsPerSecond
	}
	if cfg.Middleware.RateLimit.Burst == 0 {
		cfg.Middleware.RateLimit.Burst = defaults.Middleware.RateLimit.Burst
	}
	if cfg.Middleware.Auth.Mode == "" {
		cfg.Middleware.Auth.Mode = defaults.Middleware.Auth.Mode
	}
	if cfg.Router.DefaultTimeout == 0 {
		cfg.Router.DefaultTimeout = defaults.Router.DefaultTimeout
	}
	if cfg.Robustness.CircuitBreaker.FailureThreshold == 0 {
		cfg.Robustness.CircuitBreaker.FailureThreshold = defaults.Robustness.CircuitBreaker.FailureThreshold
	}
	if cfg.Robustness.CircuitBreaker.OpenDuration == 0 {
		cfg.Robustness.CircuitBreaker.OpenDuration = defaults.Robustness.CircuitBreaker.OpenDuration
	}
	if cfg.Robustness.CircuitBreaker.HalfOpenMaxCalls == 0 {
		cfg.Robustness.CircuitBreaker.HalfOpenMaxCalls = defaults.Robustness.CircuitBreaker.HalfOpenMaxCalls
	}
	if cfg.Robustness.Retry.MaxAttempts == 0 {
		cfg.Robustness.Retry.MaxAttempts = defaults.Robustness.Retry.MaxAttempts
	}
	if cfg.Robustness.Retry.BaseDelay == 0 {
		cfg.Robustness.Retry.BaseDelay = defaults.Robustness.Retry.BaseDelay
	}
	if cfg.Robustness.Retry.MaxDelay == 0 {
		cfg.Robustness.Retry.MaxDelay = defaults.Robustness.Retry.MaxDelay
	}
	if cfg.Robustness.Health.Interval == 0 {
		cfg.Robustness.Health.Interval = defaults.Robustness.Health.Interval
	}
	if cfg.Robustness.Health.Timeout == 0 {
		cfg.Robustness.Health.Timeout = defaults.Robustness.Health.Timeout
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = defaults.Session.TTL
	}
	if cfg.Session.ShardCount == 0 {
		cfg.Session.ShardCount = defaults.Session.ShardCount
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = defaults.Session.MaxSessions
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = defaults.Observability.ServiceName
	}
}
