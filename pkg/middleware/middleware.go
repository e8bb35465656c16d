// Package middleware implements the cross-cutting request pipeline that
// wraps pkg/router's dispatch: logging, rate limiting, authentication, and
// (for the HTTP+SSE transport) response security headers.
//
// A Middleware wraps a Handler with another Handler, the same decorator
// shape net/http middleware uses, generalized to the JSON-RPC message
// level so the same stack runs unmodified over every transport.
package middleware

import (
	"context"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
)

// Handler dispatches one decoded request to a response. pkg/router.Dispatch
// satisfies this signature.
type Handler func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response

// Middleware wraps a Handler, producing a new Handler that runs before
// and/or after delegating to next.
type Middleware func(next Handler) Handler

// Chain composes middlewares into a single Middleware. The first entry
// in mws is the outermost layer: it sees the request first and the
// response last.
func Chain(mws ...Middleware) Middleware {
	return func(final Handler) Handler {
		h := final
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
