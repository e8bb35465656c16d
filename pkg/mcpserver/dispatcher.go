package mcpserver

import (
	"context"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
	"github.com/fyrsmithlabs/gomcp/pkg/middleware"
	"github.com/fyrsmithlabs/gomcp/pkg/transport"
)

// guardedDispatcher runs every decoded request through the middleware
// chain before it reaches the router, and is what each transport's read
// loop is handed as its transport.Dispatcher. Batch dispatch preserves
// array order the same way router.Router.DispatchBatch does -- this
// layer only adds the middleware wrapping, not new batching semantics.
type guardedDispatcher struct {
	handler middleware.Handler
}

func (s *Server) dispatcher() transport.Dispatcher {
	return &guardedDispatcher{handler: s.middlewareChain()(s.router.Dispatch)}
}

func (d *guardedDispatcher) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	return d.handler(ctx, req)
}

func (d *guardedDispatcher) DispatchBatch(ctx context.Context, batch jsonrpc.Batch) []*jsonrpc.Response {
	responses := make([]*jsonrpc.Response, 0, len(batch))
	for _, req := range batch {
		if resp := d.handler(ctx, req); resp != nil {
			responses = append(responses, resp)
		}
	}
	return responses
}
