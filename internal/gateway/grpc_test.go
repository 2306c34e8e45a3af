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
	"github.com/tunnelgate/gateway/internal/transport/grpccodec"
	"github.com/tunnelgate/gateway/internal/upstream"
)

func newTestGRPCServer(t *testing.T) (*grpcServer, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(registry.LocalFirst, "x", nil, false)
	require.NoError(t, err)
	up := upstream.NewManager(reg, nil)
	rt := router.New(reg, up, nil, 5*time.Second)
	return newGRPCServer(reg, rt), reg
}

func TestGRPCCallToolsList(t *testing.T) {
	g, reg := newTestGRPCServer(t)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "status"}, registry.SourceLocal, "test"))

	resp, err := g.Call(t.Context(), &grpccodec.RawMessage{Method: "tools/list"})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)

	var result mcp.ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Len(t, result.Tools, 1)
}

func TestGRPCCallUnknownMethod(t *testing.T) {
	g, _ := newTestGRPCServer(t)
	resp, err := g.Call(t.Context(), &grpccodec.RawMessage{Method: "bogus"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
}

func TestGRPCCallToolsCallUnknownTool(t *testing.T) {
	g, _ := newTestGRPCServer(t)
	params, err := json.Marshal(mcp.CallToolParams{Name: "missing"})
	require.NoError(t, err)

	resp, err := g.Call(t.Context(), &grpccodec.RawMessage{Method: "tools/call", Params: params})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
}

func TestGRPCCallToolsCallBadParams(t *testing.T) {
	g, _ := newTestGRPCServer(t)
	resp, err := g.Call(t.Context(), &grpccodec.RawMessage{Method: "tools/call", Params: json.RawMessage(`not json`)})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
}
