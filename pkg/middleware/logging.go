package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gomcp/internal/logging"
	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
	"github.com/fyrsmithlabs/gomcp/pkg/reqcontext"
)

// Logging logs one Info entry per request at completion, carrying the
// method, elapsed duration, and error code (if any). It reads the active
// *logging.Logger from ctx via logging.FromContext, falling back to that
// package's nop logger when none is attached -- so this middleware is safe
// to use in tests that never construct a real logger.
func Logging() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
			start := time.Now()
			logger := logging.FromContext(ctx)

			resp := next(ctx, req)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.Duration("elapsed", time.Since(start)),
				zap.Bool("notification", req.IsNotification()),
			}
			if sessionID := reqcontext.SessionIDFromContext(ctx); sessionID != "" {
				fields = append(fields, zap.String("session.id", sessionID))
			}

			if resp != nil && resp.Error != nil {
				fields = append(fields, zap.Int("error.code", resp.Error.Code), zap.String("error.message", resp.Error.Message))
				logger.Warn(ctx, "request failed", fields...)
			} else {
				logger.Info(ctx, "request handled", fields...)
			}

			return resp
		}
	}
}
