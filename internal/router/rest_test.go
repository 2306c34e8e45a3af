package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunnelgate/gateway/internal/prompttpl"
	"github.com/tunnelgate/gateway/internal/registry"
)

func TestRESTExecutorRendersTemplatedRequest(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := &RESTExecutor{tmpl: prompttpl.New()}
	entry := &registry.ToolEntry{
		Capability: &registry.CapabilityTool{
			Method:  http.MethodGet,
			URL:     srv.URL + "/issues/{{ input.id }}",
			Headers: map[string]string{"Authorization": "Bearer {{ input.token }}"},
		},
	}

	result, err := e.Execute(t.Context(), entry, map[string]interface{}{"id": "42", "token": "secret"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/issues/42", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "ok", text.Text)
}

func TestRESTExecutorMarksHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := &RESTExecutor{tmpl: prompttpl.New()}
	entry := &registry.ToolEntry{
		Capability: &registry.CapabilityTool{Method: http.MethodGet, URL: srv.URL},
	}

	result, err := e.Execute(t.Context(), entry, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
