// Package transport defines the uniform contract every wire transport
// (stdio, TCP, Unix domain socket, WebSocket, HTTP+SSE, child process)
// implements, plus the shared decode-dispatch-encode helper each of those
// transports' read loop calls into.
//
// Transport implementations handle only framing and I/O. Protocol
// dispatch is delegated to a Dispatcher -- pkg/router.Router in
// production, a fake in tests -- the same separation the teacher's own
// transport package draws between its Transport interface and server.Server.
package transport

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
)

// Dispatcher is the protocol layer a Transport hands decoded messages to.
// pkg/router.Router satisfies this.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response
	DispatchBatch(ctx context.Context, batch jsonrpc.Batch) []*jsonrpc.Response
}

// State is a transport's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Transport is the contract every concrete wire transport implements.
// Start blocks, serving requests until ctx is cancelled or its input or
// listener is closed; it then returns nil (a clean shutdown) or the error
// that ended the loop.
type Transport interface {
	// Name identifies the transport for logging and metrics, e.g. "stdio".
	Name() string

	// Start begins serving, delegating decoded messages to d. Blocks until
	// ctx is cancelled or serving otherwise ends; whether Stop ends it
	// depends on the implementation (stdio's Stop does not).
	Start(ctx context.Context, d Dispatcher) error

	// Stop shuts the transport down. How far it waits for in-flight
	// requests depends on the implementation: httpsse and websocket call
	// http.Server.Shutdown, tcp and unixsock only close the listener,
	// stdio only marks itself closed, and childproc kills the child.
	Stop(ctx context.Context) error

	// State reports the transport's current lifecycle state.
	State() State
}

// StateHolder is an atomic State field embeddable by concrete transports so
// Stop/State are implemented consistently without each transport hand-
// rolling its own synchronization.
type StateHolder struct {
	v atomic.Int32
}

func (h *StateHolder) Set(s State)  { h.v.Store(int32(s)) }
func (h *StateHolder) Get() State   { return State(h.v.Load()) }

// DecodeAndDispatch decodes one raw wire message (a single JSON-RPC object
// or a batch array), dispatches it through d, and returns the encoded
// response bytes to write back -- or ok=false when nothing should be
// written (every message in the batch was a notification, or the lone
// message was a notification).
func DecodeAndDispatch(ctx context.Context, raw []byte, d Dispatcher) (out []byte, ok bool, err error) {
	single, batch, decodeErr := jsonrpc.DecodeMessage(raw)
	if decodeErr != nil {
		rpcErr, ok := mcperr.As(decodeErr)
		if !ok {
			rpcErr = mcperr.ParseError(decodeErr.Error())
		}
		resp := jsonrpc.NewErrorResponse(nil, rpcErr)
		encoded, merr := json.Marshal(resp)
		if merr != nil {
			return nil, false, merr
		}
		return encoded, true, nil
	}

	if single != nil {
		resp := d.Dispatch(ctx, single)
		if resp == nil {
			return nil, false, nil
		}
		encoded, merr := json.Marshal(resp)
		if merr != nil {
			return nil, false, merr
		}
		return encoded, true, nil
	}

	responses := d.DispatchBatch(ctx, batch)
	if len(responses) == 0 {
		return nil, false, nil
	}
	encoded, merr := json.Marshal(responses)
	if merr != nil {
		return nil, false, merr
	}
	return encoded, true, nil
}
