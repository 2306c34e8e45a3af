package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenylistMatches(t *testing.T) {
	d, err := NewDenylist(DefaultPatterns)
	require.NoError(t, err)

	tests := []struct {
		name   string
		tool   string
		denied bool
	}{
		{name: "delete prefix is destructive", tool: "delete_cluster", denied: true},
		{name: "remove prefix is destructive", tool: "remove_user", denied: true},
		{name: "force prefix is destructive", tool: "force_restart", denied: true},
		{name: "delete suffix is destructive", tool: "node_delete", denied: true},
		{name: "case insensitive", tool: "DELETE_CLUSTER", denied: true},
		{name: "read-only tool is not destructive", tool: "list_clusters", denied: false},
		{name: "get tool is not destructive", tool: "get_cluster_status", denied: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.denied, d.Matches(tt.tool))
		})
	}
}

func TestDenylistCustomPatterns(t *testing.T) {
	d, err := NewDenylist([]string{`(?i)^wipe_`})
	require.NoError(t, err)

	assert.True(t, d.Matches("wipe_database"))
	assert.False(t, d.Matches("delete_cluster"), "default patterns should not apply once overridden")
}

func TestDenylistInvalidPattern(t *testing.T) {
	_, err := NewDenylist([]string{"(unterminated"})
	assert.Error(t, err)
}

func TestDenylistEmpty(t *testing.T) {
	d, err := NewDenylist(nil)
	require.NoError(t, err)
	assert.False(t, d.Matches("delete_anything"))
}
