// Package jsonrpc implements the JSON-RPC 2.0 envelope: requests,
// responses, notifications, batches, and the standard error object.
//
// This package only knows about the wire envelope. It has no opinion on
// method names or params shapes -- those belong to pkg/protocol.
package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
)

// Version is the only JSON-RPC version this runtime accepts. The spec pins
// this to the literal string "2.0"; anything else is an InvalidRequest.
const Version = "2.0"

// ID is a JSON-RPC request identifier: a string, a number, or absent
// (for notifications). json.RawMessage preserves whichever the client sent
// so the server can echo it back byte-for-byte in the response.
type ID = json.RawMessage

// Request is a JSON-RPC 2.0 request or notification object.
// A Request with a nil/empty ID is a notification: no response is sent.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether this request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result/Error
// is populated, per the spec.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC 2.0 error object shape.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewResultResponse builds a success response for id with result marshaled
// to JSON.
func NewResultResponse(id ID, result interface{}) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal result: %w", err)
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response for id from a *mcperr.Error.
func NewErrorResponse(id ID, err *mcperr.Error) *Response {
	resp := &Response{
		JSONRPC: Version,
		ID:      id,
		Error: &ErrorObject{
			Code:    err.Code,
			Message: err.Message,
		},
	}
	if err.Data != nil {
		if raw, merr := json.Marshal(err.Data); merr == nil {
			resp.Error.Data = raw
		}
	}
	return resp
}

// Batch is an ordered slice of requests decoded from a JSON array. Ordering
// is preserved end to end: the router dispatches batch entries in array
// order and the server emits responses in that same order.
type Batch []*Request

// DecodeMessage decodes a single raw JSON-RPC message, which may be a
// single Request object or a batch array of Request objects. It returns
// either a single *Request (single) or a Batch (batch), never both.
func DecodeMessage(raw []byte) (single *Request, batch Batch, err error) {
	trimmed := trimLeadingWhitespace(raw)
	if len(trimmed) == 0 {
		return nil, nil, mcperr.ParseError("empty message")
	}

	if trimmed[0] == '[' {
		var reqs []*Request
		if jsonErr := json.Unmarshal(raw, &reqs); jsonErr != nil {
			return nil, nil, mcperr.ParseError("invalid batch JSON").Wrap(jsonErr)
		}
		if len(reqs) == 0 {
			return nil, nil, mcperr.InvalidRequest("batch array must not be empty")
		}
		return nil, Batch(reqs), nil
	}

	var req Request
	if jsonErr := json.Unmarshal(raw, &req); jsonErr != nil {
		return nil, nil, mcperr.ParseError("invalid request JSON").Wrap(jsonErr)
	}
	return &req, nil, nil
}

// Validate checks the envelope-level invariants of a decoded request:
// exact version match and a non-empty method name. Params shape validation
// happens one layer up, against the method's registered schema.
func (r *Request) Validate() *mcperr.Error {
	if r.JSONRPC != Version {
		return mcperr.InvalidRequest(fmt.Sprintf("jsonrpc version must be %q, got %q", Version, r.JSONRPC))
	}
	if r.Method == "" {
		return mcperr.InvalidRequest("method must not be empty")
	}
	return nil
}

func trimLeadingWhitespace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}
