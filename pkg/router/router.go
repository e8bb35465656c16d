// Package router dispatches decoded JSON-RPC requests to the registry or
// to the router's own built-in methods (initialize, ping, resource
// subscription), applying the configured per-request timeout and honoring
// request cancellation. logging/setLevel is not routed: it is answered
// with MethodNotFound like any other unknown method.
package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/protocol"
	"github.com/fyrsmithlabs/gomcp/pkg/registry"
	"github.com/fyrsmithlabs/gomcp/pkg/reqcontext"
	"github.com/fyrsmithlabs/gomcp/pkg/session"
)

// InitializeHandler negotiates protocol version/capabilities and creates a
// session. Implemented by pkg/negotiate; injected here to keep router free
// of a dependency on the session manager's construction details.
type InitializeHandler func(ctx context.Context, params protocol.InitializeParams) (*protocol.InitializeResult, *session.Session, *mcperr.Error)

// Router dispatches requests by method name.
type Router struct {
	registry       *registry.Registry
	sessions       *session.Manager
	initialize     InitializeHandler
	defaultTimeout time.Duration
}

// Config configures a Router.
type Config struct {
	Registry       *registry.Registry
	Sessions       *session.Manager
	Initialize     InitializeHandler
	DefaultTimeout time.Duration
}

// New constructs a Router.
func New(cfg Config) *Router {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{
		registry:       cfg.Registry,
		sessions:       cfg.Sessions,
		initialize:     cfg.Initialize,
		defaultTimeout: timeout,
	}
}

// Dispatch handles a single decoded request and returns its response.
// For notifications (IsNotification() == true) the returned *Response is
// nil: no reply is ever sent for a notification, successful or not.
func (rt *Router) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	if verr := req.Validate(); verr != nil {
		if req.IsNotification() {
			return nil
		}
		return jsonrpc.NewErrorResponse(req.ID, verr)
	}

	ctx, cancel := context.WithTimeout(ctx, rt.defaultTimeout)
	defer cancel()
	ctx = reqcontext.WithMethod(ctx, req.Method)

	result, rerr := rt.route(ctx, req.Method, req.Params)

	if req.IsNotification() {
		return nil
	}
	if rerr != nil {
		return jsonrpc.NewErrorResponse(req.ID, rerr)
	}
	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, mcperr.InternalError(err.Error()))
	}
	return resp
}

// DispatchBatch handles a decoded batch, preserving array order in the
// returned responses (Open Question #2 in DESIGN.md: batch ordering is
// pinned, not implementation-defined). Notifications within the batch
// contribute no entry to the result.
func (rt *Router) DispatchBatch(ctx context.Context, batch jsonrpc.Batch) []*jsonrpc.Response {
	responses := make([]*jsonrpc.Response, 0, len(batch))
	for _, req := range batch {
		if resp := rt.Dispatch(ctx, req); resp != nil {
			responses = append(responses, resp)
		}
	}
	return responses
}

func (rt *Router) route(ctx context.Context, method string, params json.RawMessage) (interface{}, *mcperr.Error) {
	switch method {
	case protocol.MethodInitialize:
		return rt.handleInitialize(ctx, params)
	case protocol.MethodInitialized:
		return nil, nil
	case protocol.MethodPing:
		return map[string]interface{}{}, nil
	case protocol.MethodToolsList:
		return protocol.ToolsListResult{Tools: rt.registry.ListTools()}, nil
	case protocol.MethodToolsCall:
		return rt.handleToolsCall(ctx, params)
	case protocol.MethodPromptsList:
		return protocol.PromptsListResult{Prompts: rt.registry.ListPrompts()}, nil
	case protocol.MethodPromptsGet:
		return rt.handlePromptsGet(ctx, params)
	case protocol.MethodResourcesList:
		return protocol.ResourcesListResult{Resources: rt.registry.ListResources()}, nil
	case protocol.MethodResourcesRead:
		return rt.handleResourcesRead(ctx, params)
	case protocol.MethodResourcesSubscribe:
		return rt.handleResourcesSubscribe(ctx, params, true)
	case protocol.MethodResourcesUnsubscribe:
		return rt.handleResourcesSubscribe(ctx, params, false)
	case protocol.MethodCancelled:
		return nil, nil
	default:
		return nil, mcperr.MethodNotFound(method)
	}
}

func (rt *Router) handleInitialize(ctx context.Context, params json.RawMessage) (interface{}, *mcperr.Error) {
	var p protocol.InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcperr.InvalidParams("malformed initialize params: " + err.Error())
	}
	if rt.initialize == nil {
		return nil, mcperr.InternalError("router: no initialize handler configured")
	}
	result, _, err := rt.initialize(ctx, p)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (rt *Router) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, *mcperr.Error) {
	var p protocol.ToolsCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcperr.InvalidParams("malformed tools/call params: " + err.Error())
	}
	if p.Name == "" {
		return nil, mcperr.InvalidParams("tools/call requires a non-empty name")
	}
	if p.ProgressToken != "" {
		ctx = reqcontext.WithProgressToken(ctx, p.ProgressToken)
	}
	return rt.registry.Tool(ctx, p.Name, p.Arguments)
}

func (rt *Router) handlePromptsGet(ctx context.Context, params json.RawMessage) (interface{}, *mcperr.Error) {
	var p protocol.PromptsGetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcperr.InvalidParams("malformed prompts/get params: " + err.Error())
	}
	return rt.registry.Prompt(ctx, p.Name, p.Arguments)
}

func (rt *Router) handleResourcesRead(ctx context.Context, params json.RawMessage) (interface{}, *mcperr.Error) {
	var p protocol.ResourcesReadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcperr.InvalidParams("malformed resources/read params: " + err.Error())
	}
	return rt.registry.Resource(ctx, p.URI)
}

func (rt *Router) handleResourcesSubscribe(ctx context.Context, params json.RawMessage, subscribe bool) (interface{}, *mcperr.Error) {
	var p protocol.ResourcesSubscribeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcperr.InvalidParams("malformed subscribe params: " + err.Error())
	}
	sessionID := reqcontext.SessionIDFromContext(ctx)
	if sessionID == "" || rt.sessions == nil {
		return map[string]interface{}{}, nil
	}
	sess, err := rt.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if subscribe {
		sess.Subscribe(p.URI)
	} else {
		// Unsubscribing from a URI with no active subscription is a no-op
		// (Open Question #1): Session.Unsubscribe already tolerates this.
		sess.Unsubscribe(p.URI)
	}
	return map[string]interface{}{}, nil
}
