package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/router"
	"github.com/tunnelgate/gateway/internal/upstream"
)

func newTestWSServer(t *testing.T) (*wsServer, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(registry.LocalFirst, "x", nil, false)
	require.NoError(t, err)
	up := upstream.NewManager(reg, nil)
	rt := router.New(reg, up, nil, 5*time.Second)
	return newWSServer(nil, reg, rt), reg
}

func TestWSDispatchInitialize(t *testing.T) {
	s, _ := newTestWSServer(t)
	resp := s.dispatch(t.Context(), wsRequest{Method: "initialize"})
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Result)
}

func TestWSDispatchPing(t *testing.T) {
	s, _ := newTestWSServer(t)
	resp := s.dispatch(t.Context(), wsRequest{Method: "ping"})
	assert.Nil(t, resp.Error)
}

func TestWSDispatchToolsList(t *testing.T) {
	s, reg := newTestWSServer(t)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "status"}, registry.SourceLocal, "test"))

	resp := s.dispatch(t.Context(), wsRequest{Method: "tools/list"})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(mcp.ListToolsResult)
	require.True(t, ok)
	assert.Len(t, result.Tools, 1)
}

func TestWSDispatchUnknownMethod(t *testing.T) {
	s, _ := newTestWSServer(t)
	resp := s.dispatch(t.Context(), wsRequest{Method: "bogus/method"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestWSDispatchToolsCallUnknownTool(t *testing.T) {
	s, _ := newTestWSServer(t)
	params, err := json.Marshal(mcp.CallToolParams{Name: "missing"})
	require.NoError(t, err)

	resp := s.dispatch(t.Context(), wsRequest{Method: "tools/call", Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32000, resp.Error.Code)
}

func TestWSDispatchToolsCallBadParams(t *testing.T) {
	s, _ := newTestWSServer(t)
	resp := s.dispatch(t.Context(), wsRequest{Method: "tools/call", Params: json.RawMessage(`not json`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}
