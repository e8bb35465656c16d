// Mcpd is the gomcp runtime's server executable. It loads configuration,
// initializes logging and telemetry, assembles pkg/mcpserver with every
// enabled transport, and serves until shutdown.
//
// Configuration is loaded from environment variables. See internal/config
// for details.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/config"
	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/internal/telemetry"
	"github.com/fyrsmithlabs/gomcp/pkg/negotiate"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	flag.Parse()
	if args := flag.Args(); len(args) > 0 && args[0] == "version" {
		printVersion()
		os.Exit(0)
	}

	// Signal handling (SIGINT/SIGTERM) is installed by pkg/lifecycle.Manager
	// inside Server.Run; main only needs to hand it a cancellable root
	// context for programmatic shutdown paths (tests, supervisors).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server shutdown complete")
}

func printVersion() {
	fmt.Printf("mcpd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run initializes the runtime's dependencies and blocks until ctx is
// cancelled:
//  1. Loads and validates configuration
//  2. Initializes the logger and OpenTelemetry providers
//  3. Assembles pkg/mcpserver with every enabled transport
//  4. Registers any bundled tools/prompts/resources
//  5. Serves until shutdown, then tears telemetry down
func run(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(ctx, "starting mcpd",
		zap.String("service", cfg.Observability.ServiceName),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	srv, err := buildServer(cfg, logger, tel)
	if err != nil {
		return fmt.Errorf("failed to assemble server: %w", err)
	}

	if err := registerBundledTools(srv); err != nil {
		return fmt.Errorf("failed to register bundled tools: %w", err)
	}

	logger.Info(ctx, "server configured",
		zap.Bool("stdio", cfg.Server.Stdio.Enabled),
		zap.Bool("tcp", cfg.Server.TCP.Enabled),
		zap.Bool("unix", cfg.Server.Unix.Enabled),
		zap.Bool("websocket", cfg.Server.WebSocket.Enabled),
		zap.Bool("http_sse", cfg.Server.HTTPSSE.Enabled),
		zap.Bool("child_process", cfg.Server.ChildProcess.Enabled))

	return srv.Run(ctx)
}

func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if cfg.Observability.EnableTelemetry {
		logCfg.Output.OTEL = true
	}
	return logging.NewLogger(logCfg, nil)
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Observability.EnableTelemetry
	tc.ServiceName = cfg.Observability.ServiceName
	tc.Endpoint = cfg.Observability.OTLPEndpoint
	tc.Insecure = cfg.Observability.OTLPInsecure
	return tc
}

func negotiateServerInfo() negotiate.ServerInfo {
	return negotiate.ServerInfo{Name: "mcpd", Version: version}
}
