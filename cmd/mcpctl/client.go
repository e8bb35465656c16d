package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
)

// usageError marks a bad flag or argument combination -- exit code 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// protocolError wraps a JSON-RPC error object the server sent back --
// exit code 3, distinct from a transport-level failure.
type protocolError struct {
	Code    int
	Message string
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("server returned error %d: %s", e.Code, e.Message)
}

// client issues one JSON-RPC request at a time and returns its raw result
// (or a *protocolError if the server replied with an error object).
type client interface {
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
	Close() error
}

var requestSeq atomic.Int64

func nextID() jsonrpc.ID {
	return jsonrpc.ID(strconv.FormatInt(requestSeq.Add(1), 10))
}

func encodeRequest(method string, params interface{}) (*jsonrpc.Request, error) {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding %s params: %w", method, err)
		}
		raw = encoded
	}
	return &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      nextID(),
		Method:  method,
		Params:  raw,
	}, nil
}

func decodeResponse(raw []byte) (json.RawMessage, error) {
	var resp jsonrpc.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding server response: %w", err)
	}
	if resp.Error != nil {
		return nil, &protocolError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

// newClient constructs the client selected by --transport.
func newClient(ctx context.Context) (client, error) {
	switch flagTransport {
	case "stdio":
		if flagCommand == "" {
			return nil, &usageError{msg: "--command is required for the stdio transport"}
		}
		return newStdioClient(ctx, flagCommand)
	case "http":
		return newHTTPClient(flagURL, flagAuth), nil
	case "ws":
		return newWSClient(ctx, flagURL, flagAuth)
	default:
		return nil, &usageError{msg: fmt.Sprintf("unknown transport %q (want stdio, http, or ws)", flagTransport)}
	}
}

// stdioClient speaks newline-delimited JSON-RPC over a spawned child
// process's stdin/stdout, mirroring pkg/transport/stdio's own framing.
type stdioClient struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
}

func newStdioClient(ctx context.Context, commandLine string) (*stdioClient, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, &usageError{msg: "--command must not be empty"}
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening child stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening child stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", fields[0], err)
	}

	return &stdioClient{cmd: cmd, stdin: stdin, reader: bufio.NewReader(stdout)}, nil
}

func (c *stdioClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	req, err := encodeRequest(method, params)
	if err != nil {
		return nil, err
	}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := c.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("writing request to child process: %w", err)
	}

	resp, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading response from child process: %w", err)
	}
	return decodeResponse(resp)
}

func (c *stdioClient) Close() error {
	_ = c.stdin.Close()
	return c.cmd.Wait()
}

// httpClient POSTs one JSON-RPC request per Call to the server's /mcp
// endpoint, per pkg/transport/httpsse's wire contract.
type httpClient struct {
	url        string
	authHeader string
	http       *http.Client
}

func newHTTPClient(url, auth string) *httpClient {
	header := ""
	if auth != "" {
		header = "Bearer " + auth
	}
	return &httpClient{url: url, authHeader: header, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *httpClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	req, err := encodeRequest(method, params)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.authHeader != "" {
		httpReq.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, string(raw))
	}
	return decodeResponse(raw)
}

func (c *httpClient) Close() error { return nil }

// wsClient speaks the same JSON-RPC envelope over a single persistent
// WebSocket text-frame connection, per pkg/transport/websocket.
type wsClient struct {
	conn *websocket.Conn
}

func newWSClient(ctx context.Context, url, auth string) (*wsClient, error) {
	header := http.Header{}
	if auth != "" {
		header.Set("Authorization", "Bearer "+auth)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, toWSURL(url), header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &wsClient{conn: conn}, nil
}

func toWSURL(u string) string {
	switch {
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	default:
		return u
	}
}

func (c *wsClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	req, err := encodeRequest(method, params)
	if err != nil {
		return nil, err
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return decodeResponse(raw)
}

func (c *wsClient) Close() error { return c.conn.Close() }
