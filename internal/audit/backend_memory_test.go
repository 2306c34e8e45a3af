package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendWriteAndQuery(t *testing.T) {
	b := NewMemoryBackend(10)
	require.NoError(t, b.StoreBatch(t.Context(), []Record{
		{ToolName: "a", Timestamp: time.Now()},
		{ToolName: "b", Timestamp: time.Now()},
	}))

	out, err := b.Query(t.Context(), Query{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ToolName) // most recent first
}

func TestMemoryBackendCapsAtCapacity(t *testing.T) {
	b := NewMemoryBackend(2)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "x"}}))
	}
	out, err := b.Query(t.Context(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMemoryBackendQueryFiltersByToolName(t *testing.T) {
	b := NewMemoryBackend(10)
	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "a"}, {ToolName: "b"}}))

	out, err := b.Query(t.Context(), Query{ToolName: "a"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ToolName)
}

func TestMemoryBackendQueryFiltersByEventType(t *testing.T) {
	b := NewMemoryBackend(10)
	require.NoError(t, b.StoreBatch(t.Context(), []Record{
		{EventType: EventToolExecution, ToolName: "a"},
		{EventType: EventConfigChange, Component: "registry"},
	}))

	out, err := b.Query(t.Context(), Query{EventType: EventConfigChange})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "registry", out[0].Component)
}

func TestMemoryBackendQueryRespectsLimit(t *testing.T) {
	b := NewMemoryBackend(10)
	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "a"}, {ToolName: "b"}, {ToolName: "c"}}))

	out, err := b.Query(t.Context(), Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMemoryBackendQueryByTimeRange(t *testing.T) {
	b := NewMemoryBackend(10)
	now := time.Now()
	require.NoError(t, b.StoreBatch(t.Context(), []Record{
		{ToolName: "old", Timestamp: now.Add(-time.Hour)},
		{ToolName: "new", Timestamp: now},
	}))

	out, err := b.Query(t.Context(), Query{Since: now.Add(-time.Minute)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ToolName)
}

func TestMemoryBackendCount(t *testing.T) {
	b := NewMemoryBackend(10)
	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "a"}, {ToolName: "b"}}))

	n, err := b.Count(t.Context(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryBackendCleanupRemovesOldRecords(t *testing.T) {
	b := NewMemoryBackend(10)
	now := time.Now()
	require.NoError(t, b.StoreBatch(t.Context(), []Record{
		{ToolName: "old", Timestamp: now.Add(-48 * time.Hour)},
		{ToolName: "new", Timestamp: now},
	}))

	removed, err := b.Cleanup(t.Context(), now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	out, _ := b.Query(t.Context(), Query{})
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ToolName)
}
