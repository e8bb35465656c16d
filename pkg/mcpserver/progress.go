package mcpserver

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
	"github.com/fyrsmithlabs/gomcp/pkg/reqcontext"
)

// EmitProgress sends a notifications/progress message for the in-flight
// request ctx was derived from. It is a no-op (returning nil) if the
// caller's tools/call didn't carry a progress token -- most callers don't
// want to special-case "no one asked for progress" at every call site.
//
// completed and total follow the protocol's own units: total is omitted
// from the wire message when <= 0, for tools that can report partial
// progress but not a known endpoint.
func (s *Server) EmitProgress(ctx context.Context, completed, total float64, message string) error {
	token := reqcontext.ProgressTokenFromContext(ctx)
	if token == "" {
		return nil
	}

	params := protocol.ProgressParams{
		ProgressToken: token,
		Progress:      completed,
		Message:       message,
	}
	if total > 0 {
		params.Total = total
	}

	send := reqcontext.ResponseSenderFromContext(ctx)
	if err := send(protocol.MethodProgress, params); err != nil {
		return fmt.Errorf("mcpserver: emit progress: %w", err)
	}
	return nil
}
