// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	// Authenticated caller context
	if caller := CallerFromContext(ctx); caller != nil {
		fields = append(fields, zap.String("caller.user_id", caller.UserID))
		if caller.ClientID != "" {
			fields = append(fields, zap.String("caller.client_id", caller.ClientID))
		}
		if len(caller.Roles) > 0 {
			fields = append(fields, zap.String("caller.roles", strings.Join(caller.Roles, ",")))
		}
	}

	// Session context
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}

	// Request ID
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// Context key types
type callerCtxKey struct{}
type sessionCtxKey struct{}
type requestCtxKey struct{}

// Caller identifies the authenticated party a request is attributed to:
// the user ID resolved by pkg/middleware.Auth (a JWT subject or a derived
// dev_owner ID), an optional client ID distinguishing which integration is
// calling on the user's behalf, and any roles carried on the credential.
type Caller struct {
	UserID   string
	ClientID string
	Roles    []string
}

// Validation constants
const (
	maxCallerFieldLen = 64
	maxIDLen          = 128
)

var (
	// callerFieldPattern allows alphanumeric, hyphen, underscore
	callerFieldPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// idPattern allows alphanumeric, hyphen, underscore with optional prefix
	idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// validateCallerField validates a caller field (user or client ID).
func validateCallerField(field, name string) error {
	if field == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(field) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(field) > maxCallerFieldLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxCallerFieldLen)
	}
	if !callerFieldPattern.MatchString(field) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// validateID validates a session or request ID.
func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// CallerFromContext extracts the authenticated caller from context.
func CallerFromContext(ctx context.Context) *Caller {
	if c, ok := ctx.Value(callerCtxKey{}).(*Caller); ok {
		return c
	}
	return nil
}

// WithCaller adds the authenticated caller to context.
// Panics if caller is nil or UserID is invalid; ClientID, when set, is
// validated the same way, since both are names pulled off a verified
// credential rather than free-form user input.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	if caller == nil {
		panic("logging: caller cannot be nil")
	}
	if err := validateCallerField(caller.UserID, "caller.UserID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	if caller.ClientID != "" {
		if err := validateCallerField(caller.ClientID, "caller.ClientID"); err != nil {
			panic(fmt.Sprintf("logging: %v", err))
		}
	}
	return context.WithValue(ctx, callerCtxKey{}, caller)
}

// SessionIDFromContext extracts session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithSessionID adds session ID to context.
// Panics if sessionID is empty or contains invalid characters.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if err := validateID(sessionID, "sessionID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID adds request ID to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a default nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
