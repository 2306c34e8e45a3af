package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoMCPServer answers "initialize" and "ping" with empty results
// over a single websocket connection, enough to drive Initialize/Ping
// through the real id-correlation path without a full MCP stack.
func newEchoMCPServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{}`)}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestWebSocketClientInitializeAndPing(t *testing.T) {
	srv := newEchoMCPServer(t)
	c := NewWebSocketClient("svc", wsURL(srv.URL))

	require.NoError(t, c.Initialize(t.Context()))
	defer c.Close()

	assert.NoError(t, c.Ping(t.Context()))
}

func TestWebSocketClientInitializeIsIdempotent(t *testing.T) {
	srv := newEchoMCPServer(t)
	c := NewWebSocketClient("svc", wsURL(srv.URL))

	require.NoError(t, c.Initialize(t.Context()))
	defer c.Close()
	assert.NoError(t, c.Initialize(t.Context()))
}

func TestWebSocketClientCloseStopsFurtherCalls(t *testing.T) {
	srv := newEchoMCPServer(t)
	c := NewWebSocketClient("svc", wsURL(srv.URL))

	require.NoError(t, c.Initialize(t.Context()))
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(t.Context()))
}

func TestWebSocketClientDialFailure(t *testing.T) {
	c := NewWebSocketClient("svc", "ws://127.0.0.1:1")
	assert.Error(t, c.Initialize(t.Context()))
}
