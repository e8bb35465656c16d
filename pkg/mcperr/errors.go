// Package mcperr defines the error taxonomy shared by every layer of the
// gomcp runtime: JSON-RPC 2.0's standard codes plus the application-level
// codes the Model Context Protocol adds on top.
package mcperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by the layer that raised it.
type Kind int

const (
	// KindParse means the transport received bytes that do not decode as JSON.
	KindParse Kind = iota
	// KindInvalidRequest means the decoded JSON is not a valid JSON-RPC envelope.
	KindInvalidRequest
	// KindMethodNotFound means no handler is registered for the method.
	KindMethodNotFound
	// KindInvalidParams means params failed validation against the method's schema.
	KindInvalidParams
	// KindInternal means a handler or the runtime itself failed unexpectedly.
	KindInternal
	// KindApplication means an MCP-specific application error (auth, rate limit, etc).
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindInvalidRequest:
		return "invalid_request"
	case KindMethodNotFound:
		return "method_not_found"
	case KindInvalidParams:
		return "invalid_params"
	case KindInternal:
		return "internal"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// JSON-RPC 2.0 standard error codes (https://www.jsonrpc.org/specification#error_object).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MCP application-level error codes: a closed set in the -32000..-32099
// reserved range. No other code is ever assigned to a KindApplication error.
const (
	CodeToolNotFound            = -32001
	CodeToolExecutionError      = -32002
	CodePromptNotFound          = -32003
	CodeResourceNotFound        = -32004
	CodeResourceAccessDenied    = -32005
	CodeCapabilityNotSupported  = -32006
	CodeProtocolVersionMismatch = -32007
	CodeAuthenticationRequired  = -32008
	CodeRateLimited             = -32009
	CodeServerOverloaded        = -32010
)

// Error is the runtime's canonical error type. It carries the JSON-RPC
// error code alongside a Kind for programmatic branching, and an optional
// Data payload echoed back to the client in the error object's "data" field.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Data    interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (code %d): %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithData attaches a data payload and returns e for chaining.
func (e *Error) WithData(data interface{}) *Error {
	e.Data = data
	return e
}

// Wrap attaches an underlying cause and returns e for chaining.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

func newErr(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Constructors for each standard JSON-RPC error.

func ParseError(message string) *Error {
	return newErr(KindParse, CodeParseError, message)
}

func InvalidRequest(message string) *Error {
	return newErr(KindInvalidRequest, CodeInvalidRequest, message)
}

func MethodNotFound(method string) *Error {
	return newErr(KindMethodNotFound, CodeMethodNotFound, fmt.Sprintf("method not found: %s", method))
}

func InvalidParams(message string) *Error {
	return newErr(KindInvalidParams, CodeInvalidParams, message)
}

func InternalError(message string) *Error {
	return newErr(KindInternal, CodeInternalError, message)
}

// Constructors for MCP application errors. Each corresponds exactly to one
// member of the closed set above; nothing outside this set is ever raised
// as a KindApplication error.

func ToolNotFound(name string) *Error {
	return newErr(KindApplication, CodeToolNotFound, fmt.Sprintf("Tool not found: %s", name))
}

func ToolExecutionError(name string, cause error) *Error {
	return newErr(KindApplication, CodeToolExecutionError, fmt.Sprintf("tool %q failed: %v", name, cause))
}

func PromptNotFound(name string) *Error {
	return newErr(KindApplication, CodePromptNotFound, fmt.Sprintf("prompt not found: %s", name))
}

func ResourceNotFound(uri string) *Error {
	return newErr(KindApplication, CodeResourceNotFound, fmt.Sprintf("resource not found: %s", uri))
}

func ResourceAccessDenied(uri string) *Error {
	return newErr(KindApplication, CodeResourceAccessDenied, fmt.Sprintf("resource access denied: %s", uri))
}

func CapabilityNotSupported(capability string) *Error {
	return newErr(KindApplication, CodeCapabilityNotSupported, fmt.Sprintf("capability not supported: %s", capability))
}

func ProtocolVersionMismatch(requested string) *Error {
	return newErr(KindApplication, CodeProtocolVersionMismatch, fmt.Sprintf("unsupported protocol version: %s", requested))
}

func AuthenticationRequired(message string) *Error {
	return newErr(KindApplication, CodeAuthenticationRequired, message)
}

func RateLimited(message string) *Error {
	return newErr(KindApplication, CodeRateLimited, message)
}

func ServerOverloaded(message string) *Error {
	return newErr(KindApplication, CodeServerOverloaded, message)
}

// As reports whether err (or something it wraps) is an *Error, returning it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
