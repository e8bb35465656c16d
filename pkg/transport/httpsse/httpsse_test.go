package httpsse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
)

type fakeDispatcher struct{}

func (fakeDispatcher) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: []byte(`"pong"`)}
}

func (fakeDispatcher) DispatchBatch(ctx context.Context, batch jsonrpc.Batch) []*jsonrpc.Response {
	return nil
}

func startTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr := New(Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- tr.Start(ctx, fakeDispatcher{}) }()

	require.Eventually(t, func() bool { return tr.echo != nil && tr.echo.Listener != nil }, 2*time.Second, 5*time.Millisecond)
	return tr
}

func TestHTTPSSEHealthEndpoint(t *testing.T) {
	tr := startTestTransport(t)
	addr := tr.echo.Listener.Addr().String()

	resp, err := http.Get(fmt.Sprintf("http://%s/mcp/health", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPSSEPostDispatchesRequest(t *testing.T) {
	tr := startTestTransport(t)
	addr := tr.echo.Listener.Addr().String()

	body := bytes.NewBufferString(`{"jsonrpc":"2.0","id":"1","method":"ping"}`)
	resp, err := http.Post(fmt.Sprintf("http://%s/mcp", addr), "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rpcResp jsonrpc.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	assert.Nil(t, rpcResp.Error)
}

func TestHTTPSSEPostRejectsBadAcceptHeader(t *testing.T) {
	tr := startTestTransport(t)
	addr := tr.echo.Listener.Addr().String()

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s/mcp", addr), bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	req.Header.Set("Accept", "text/plain")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
}

func TestHTTPSSENotifyWithoutStreamReturnsFalse(t *testing.T) {
	tr := New(Config{})
	assert.False(t, tr.Notify("no-such-session", "notifications/progress", nil))
}
