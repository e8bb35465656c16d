package middleware

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/metrics"
)

// Metrics records one request's outcome and duration against m, the way
// Logging records one log entry: it wraps next, measures elapsed time,
// and classifies the response's error code (if any) back into the
// mcperr.Kind that produced it.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
			start := time.Now()
			resp := next(ctx, req)
			elapsed := time.Since(start)

			if req.IsNotification() {
				return resp
			}

			status := "ok"
			if resp != nil && resp.Error != nil {
				status = "error"
				m.RecordError(ctx, kindForCode(resp.Error.Code))
			}
			m.RecordRequest(ctx, req.Method, status, elapsed)

			return resp
		}
	}
}

// kindForCode maps a JSON-RPC error code back to the mcperr.Kind name
// that produced it, for metrics cardinality purposes only -- it never
// needs to round-trip to a *mcperr.Error.
func kindForCode(code int) string {
	switch code {
	case mcperr.CodeParseError:
		return mcperr.KindParse.String()
	case mcperr.CodeInvalidRequest:
		return mcperr.KindInvalidRequest.String()
	case mcperr.CodeMethodNotFound:
		return mcperr.KindMethodNotFound.String()
	case mcperr.CodeInvalidParams:
		return mcperr.KindInvalidParams.String()
	case mcperr.CodeInternalError:
		return mcperr.KindInternal.String()
	default:
		return mcperr.KindApplication.String()
	}
}
