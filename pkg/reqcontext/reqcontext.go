// Package reqcontext carries per-request state through context.Context,
// the same way internal/logging threads trace/tenant/session fields:
// unexported key types, WithX/XFromContext accessor pairs, and validation
// on write. There are no thread-locals anywhere in this runtime.
package reqcontext

import (
	"context"
	"fmt"
)

type requestIDKey struct{}
type sessionIDKey struct{}
type methodKey struct{}
type metadataKey struct{}
type responseSenderKey struct{}
type progressTokenKey struct{}
type userIDKey struct{}
type clientIDKey struct{}

// Metadata is an immutable, copy-on-write bag of per-request values.
// With returns a new Metadata with key set, leaving the receiver untouched
// so concurrent readers of the original never observe the mutation -- this
// is the substitute for a mutex on a value that outlives a single request.
type Metadata map[string]interface{}

// With returns a copy of m with key set to val.
func (m Metadata) With(key string, val interface{}) Metadata {
	next := make(Metadata, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	next[key] = val
	return next
}

// Get returns the value stored under key, if any.
func (m Metadata) Get(key string) (interface{}, bool) {
	v, ok := m[key]
	return v, ok
}

// WithRequestID attaches the request's correlation ID.
// Panics if requestID is empty: every request must be identifiable before
// it reaches a handler.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		panic("reqcontext: requestID must not be empty")
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or "" if unset.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithSessionID attaches the owning session's ID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		panic("reqcontext: sessionID must not be empty")
	}
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext returns the session ID, or "" if unset.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithMethod attaches the JSON-RPC method name being dispatched.
func WithMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodKey{}, method)
}

// MethodFromContext returns the method name, or "" if unset.
func MethodFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(methodKey{}).(string); ok {
		return v
	}
	return ""
}

// WithMetadata attaches a Metadata bag, replacing any existing one.
// Middleware that wants to add one field should read the existing bag
// with MetadataFromContext, call With, and attach the result.
func WithMetadata(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// MetadataFromContext returns the attached Metadata, or an empty one.
func MetadataFromContext(ctx context.Context) Metadata {
	if v, ok := ctx.Value(metadataKey{}).(Metadata); ok {
		return v
	}
	return Metadata{}
}

// WithUserID attaches the authenticated caller's user ID, as resolved by
// the auth middleware from a bearer token's subject claim or a local OS
// user. Unset (empty context value) means the request was never
// authenticated.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated caller's user ID, or "" if
// the request passed through with no auth middleware or AuthModeNone.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientID attaches the authenticated caller's client identifier, when
// the auth scheme distinguishes it from the user ID (e.g. an OAuth client_id
// claim alongside the subject).
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientIDFromContext returns the authenticated caller's client ID, or ""
// if unset.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ResponseSender is how a handler or middleware writes an out-of-band
// message -- a progress notification, a cancellation acknowledgement --
// back to the transport that is still holding the connection open.
type ResponseSender func(method string, params interface{}) error

// WithResponseSender attaches the transport's send-side callback.
func WithResponseSender(ctx context.Context, send ResponseSender) context.Context {
	return context.WithValue(ctx, responseSenderKey{}, send)
}

// ResponseSenderFromContext returns the attached ResponseSender, or an
// error-returning stub if none was attached (e.g. in unit tests that don't
// need to emit notifications).
func ResponseSenderFromContext(ctx context.Context) ResponseSender {
	if v, ok := ctx.Value(responseSenderKey{}).(ResponseSender); ok {
		return v
	}
	return func(method string, params interface{}) error {
		return fmt.Errorf("reqcontext: no response sender attached to context")
	}
}

// WithProgressToken attaches the opaque progress token a client sent on a
// request, if any. Unlike WithRequestID/WithSessionID this tolerates an
// empty token: progress reporting is optional per call, not a protocol
// invariant, so callers shouldn't have to branch before attaching it.
func WithProgressToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, progressTokenKey{}, token)
}

// ProgressTokenFromContext returns the attached progress token, or "" if the
// caller didn't request progress notifications for this request.
func ProgressTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(progressTokenKey{}).(string); ok {
		return v
	}
	return ""
}
