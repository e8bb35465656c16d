package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/gomcp/internal/config"
	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/internal/telemetry"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/mcpserver"
	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
)

// buildServer assembles pkg/mcpserver.Server from configuration, wiring the
// telemetry meter through so Prometheus and OTel metrics both observe live
// traffic rather than a disconnected no-op meter.
func buildServer(cfg *config.Config, logger *logging.Logger, tel *telemetry.Telemetry) (*mcpserver.Server, error) {
	srv, err := mcpserver.New(mcpserver.Options{
		Config:       cfg,
		ServerInfo:   negotiateServerInfo(),
		Logger:       logger,
		MetricsMeter: tel.Meter("gomcp"),
	})
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// registerBundledTools registers the small set of built-in diagnostic tools
// every mcpd instance exposes regardless of which domain tools a deployment
// layers on top via its own registration code.
func registerBundledTools(srv *mcpserver.Server) error {
	pingSchema := json.RawMessage(`{"type":"object","properties":{}}`)
	pingOutput := json.RawMessage(`{"type":"object","properties":{"status":{"type":"string"}}}`)

	err := srv.Registry().RegisterTool(protocol.Tool{
		Name:         "ping",
		Description:  "Liveness check; always returns ok.",
		InputSchema:  pingSchema,
		OutputSchema: pingOutput,
	}, func(ctx context.Context, args json.RawMessage) (*protocol.ToolsCallResult, *mcperr.Error) {
		result, marshalErr := json.Marshal(map[string]string{"status": "ok"})
		if marshalErr != nil {
			return nil, mcperr.InternalError(fmt.Sprintf("marshal ping result: %v", marshalErr))
		}
		return &protocol.ToolsCallResult{
			Content: []protocol.Content{
				{Type: "text", Text: string(result)},
			},
		}, nil
	})
	if err != nil {
		return fmt.Errorf("registering ping tool: %w", err)
	}
	return nil
}
