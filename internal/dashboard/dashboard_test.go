package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunnelgate/gateway/internal/audit"
	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/discovery"
	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/router"
	"github.com/tunnelgate/gateway/internal/upstream"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg, err := registry.New(registry.LocalFirst, "x", nil, false)
	require.NoError(t, err)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "status", Description: "reports status"}, registry.SourceLocal, "test"))

	up := upstream.NewManager(reg, nil)
	backend := audit.NewMemoryBackend(100)
	auditor := audit.New(audit.Config{QueueSize: 10, FlushInterval: time.Hour, FlushBatch: 10}, backend, nil)

	dial := func(ctx context.Context, req interface{}) (interface{}, error) {
		return map[string]string{"ok": "true"}, nil
	}
	return New(reg, up, auditor, nil, nil, dial)
}

func TestHandleToolsListsRegisteredTools(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var tools []toolView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	require.Len(t, tools, 1)
	assert.Equal(t, "status", tools[0].Name)
	assert.True(t, tools[0].Enabled)
	assert.False(t, tools[0].Hidden)
}

func TestHandleUpstreamsEmpty(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/upstreams", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHandleDiscoveryWithoutPipelineIsUnavailable(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/discovery?q=test", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleDiscoveryMissingQueryParam(t *testing.T) {
	s := newTestServer(t)
	reg, err := registry.New(registry.LocalFirst, "x", nil, false)
	require.NoError(t, err)
	s.discovery = discovery.New(reg, config.DiscoveryConfig{Mode: "rule"}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/discovery", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDiscoveryWithQueryReturnsCandidates(t *testing.T) {
	s := newTestServer(t)
	reg, err := registry.New(registry.LocalFirst, "x", nil, false)
	require.NoError(t, err)
	require.NoError(t, reg.PutLocalTool(registry.CapabilityTool{Name: "list_clusters", Description: "lists clusters", Routing: registry.RoutingREST}, "test"))
	s.discovery = discovery.New(reg, config.DiscoveryConfig{Mode: "rule", ConfidenceGate: 0.1}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/discovery?q=list+clusters", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleControlRejectsNonPost(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/control", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleControlForwardsToDial(t *testing.T) {
	s := newTestServer(t)
	body := `{"command":"status"}`
	req := httptest.NewRequest(http.MethodPost, "/api/control", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHandleControlSchemaReturnsFields(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/control/schema", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.NotEmpty(t, schema)
}

func TestHandleSamplingWithoutRouterIsUnavailable(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/sampling", strings.NewReader(`{"upstream":"x"}`))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSamplingRejectsNonPost(t *testing.T) {
	s := newTestServer(t)
	s.router = router.New(s.reg, s.upstreams, nil, time.Second)
	req := httptest.NewRequest(http.MethodGet, "/api/sampling", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSamplingResolvesViaLocalSampler(t *testing.T) {
	s := newTestServer(t)
	rt := router.New(s.reg, s.upstreams, nil, time.Second)
	rt.SetSamplingConfig(config.RouterConfig{DefaultSamplingStrategy: "magictunnel_handled"})
	rt.SetLocalSampler(fakeLocalSampler{reply: "local answer"})
	s.router = rt

	body := `{"upstream":"demo","systemPrompt":"be helpful","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/sampling", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "local answer")
}

type fakeLocalSampler struct{ reply string }

func (f fakeLocalSampler) Sample(ctx context.Context, request interface{}) (interface{}, error) {
	return &router.SamplingResponse{Role: "assistant", Content: f.reply}, nil
}

func TestHandleAuditQueriesBackend(t *testing.T) {
	s := newTestServer(t)
	s.auditor.Record(audit.Record{ToolName: "status"})
	require.Eventually(t, func() bool {
		out, _ := s.auditor.Query(context.Background(), audit.Query{})
		return len(out) >= 0
	}, time.Second, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
