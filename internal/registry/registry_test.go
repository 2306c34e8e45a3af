package registry

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, policy ConflictResolutionPolicy) *Registry {
	t.Helper()
	reg, err := New(policy, "x", nil, false)
	require.NoError(t, err)
	return reg
}

func TestPutToolAndListCallable(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "list_clusters"}, SourceUpstream, "teleport"))

	tools := reg.ListCallable()
	require.Len(t, tools, 1)
	assert.Equal(t, "list_clusters", tools[0].Name)
}

func TestPutToolDenylistHidesByDefault(t *testing.T) {
	reg, err := New(Prefix, "x", DefaultPatterns, false)
	require.NoError(t, err)

	require.NoError(t, reg.PutTool(mcp.Tool{Name: "delete_cluster"}, SourceUpstream, "teleport"))
	assert.Empty(t, reg.ListVisible(), "destructive tools stay out of tools/list unless yolo is set")
	assert.Len(t, reg.ListCallable(), 1, "hidden tools remain callable by name")

	entry, ok := reg.Resolve("delete_cluster")
	require.True(t, ok)
	assert.True(t, entry.Destructive)
	assert.True(t, entry.Hidden)
	assert.True(t, entry.Enabled)
}

func TestPutToolDenylistYoloExposes(t *testing.T) {
	reg, err := New(Prefix, "x", DefaultPatterns, true)
	require.NoError(t, err)

	require.NoError(t, reg.PutTool(mcp.Tool{Name: "delete_cluster"}, SourceUpstream, "teleport"))
	tools := reg.ListCallable()
	require.Len(t, tools, 1)
	assert.Equal(t, "delete_cluster", tools[0].Name)
}

func TestResolveNameConflictPolicies(t *testing.T) {
	tests := []struct {
		name      string
		policy    ConflictResolutionPolicy
		first     Source
		second    Source
		wantError bool
		wantName  string
	}{
		{name: "local_first rejects upstream collision", policy: LocalFirst, first: SourceLocal, second: SourceUpstream, wantError: true},
		{name: "local_first allows local override", policy: LocalFirst, first: SourceUpstream, second: SourceLocal, wantError: false, wantName: "dup"},
		{name: "proxy_first rejects local collision", policy: ProxyFirst, first: SourceUpstream, second: SourceLocal, wantError: true},
		{name: "reject always errors on collision", policy: Reject, first: SourceLocal, second: SourceUpstream, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t, tt.policy)
			require.NoError(t, reg.PutTool(mcp.Tool{Name: "dup"}, tt.first, "origin-a"))

			err := reg.PutTool(mcp.Tool{Name: "dup"}, tt.second, "origin-b")
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			entry, ok := reg.Resolve(tt.wantName)
			require.True(t, ok)
			assert.Equal(t, tt.second, entry.Source)
		})
	}
}

func TestResolveNamePrefixesOnCollision(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "status"}, SourceUpstream, "alpha"))
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "status"}, SourceUpstream, "beta"))

	tools := reg.ListCallable()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"status", "x_beta_status"}, names)
}

func TestRemoveToolsFromOrigin(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "a"}, SourceUpstream, "teleport"))
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "b"}, SourceUpstream, "teleport"))
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "c"}, SourceUpstream, "other"))

	reg.RemoveToolsFromOrigin("teleport")

	tools := reg.ListCallable()
	require.Len(t, tools, 1)
	assert.Equal(t, "c", tools[0].Name)
}

func TestSetHiddenOverridesVisibility(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "a"}, SourceLocal, "file.yaml"))

	require.NoError(t, reg.SetHidden("a", true))
	assert.Empty(t, reg.ListVisible())
	assert.Len(t, reg.ListCallable(), 1, "hidden tools remain dispatchable")

	require.NoError(t, reg.SetHidden("a", false))
	assert.Len(t, reg.ListVisible(), 1)

	assert.Error(t, reg.SetHidden("missing", true))
}

func TestSetEnabledOverridesDispatchability(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "a"}, SourceLocal, "file.yaml"))

	require.NoError(t, reg.SetEnabled("a", false))
	assert.Empty(t, reg.ListCallable())
	assert.Empty(t, reg.ListVisible())

	require.NoError(t, reg.SetEnabled("a", true))
	assert.Len(t, reg.ListCallable(), 1)
	assert.Len(t, reg.ListVisible(), 1)

	assert.Error(t, reg.SetEnabled("missing", false))
}

func TestClearOverrideRevertsToFileDeclaredState(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	hidden := true
	require.NoError(t, reg.PutLocalTool(CapabilityTool{Name: "a", Routing: RoutingREST, Hidden: hidden}, "file.yaml"))

	require.NoError(t, reg.SetHidden("a", false))
	assert.Len(t, reg.ListVisible(), 1)

	require.NoError(t, reg.ClearOverride("a"))
	assert.Empty(t, reg.ListVisible(), "clearing the override reverts to the file's hidden:true")
}

func TestApplyBatchIsAtomicAndRemovesDroppedTools(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	rejected := reg.ApplyBatch("tools.yaml", []CapabilityTool{
		{Name: "a", Routing: RoutingREST},
		{Name: "b", Routing: RoutingREST},
	})
	assert.Empty(t, rejected)
	assert.Len(t, reg.ListCallable(), 2)

	rejected = reg.ApplyBatch("tools.yaml", []CapabilityTool{
		{Name: "a", Routing: RoutingREST},
	})
	assert.Empty(t, rejected)

	tools := reg.ListCallable()
	require.Len(t, tools, 1)
	assert.Equal(t, "a", tools[0].Name)
}

func TestResourcesAndPrompts(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	reg.PutResource(mcp.Resource{URI: "file:///readme.md"}, SourceLocal, "capabilities/readme.yaml")
	reg.PutPrompt(mcp.Prompt{Name: "summarize"}, SourceLocal, "capabilities/prompts.yaml")

	assert.Len(t, reg.ListResources(), 1)
	assert.Len(t, reg.ListPrompts(), 1)
}

func TestUpdatesChannelCoalesces(t *testing.T) {
	reg := newTestRegistry(t, Prefix)
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "a"}, SourceLocal, "file.yaml"))
	require.NoError(t, reg.PutTool(mcp.Tool{Name: "b"}, SourceLocal, "file.yaml"))

	select {
	case <-reg.Updates():
	default:
		t.Fatal("expected a pending update notification")
	}
	select {
	case <-reg.Updates():
		t.Fatal("updates channel should coalesce repeated notifications")
	default:
	}
}
