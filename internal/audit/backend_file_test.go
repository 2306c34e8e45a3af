package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendWriteAndQuery(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)

	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "a", Timestamp: time.Now()}, {ToolName: "b", Timestamp: time.Now()}}))

	out, err := b.Query(t.Context(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestFileBackendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	b1, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)
	require.NoError(t, b1.StoreBatch(t.Context(), []Record{{ToolName: "a", Timestamp: time.Now()}}))
	require.NoError(t, b1.Close())

	b2, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)
	out, err := b2.Query(t.Context(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestFileBackendUsesDayNamedFile(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "a", Timestamp: now}}))
	require.NoError(t, b.Close())

	entries, err := readJSONLines(dir + "/" + dayFileName(now))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileBackendQueryRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)

	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "a", Timestamp: time.Now()}}))
	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "b", Timestamp: time.Now()}}))

	out, err := b.Query(t.Context(), Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestFileBackendEmptyBatchWritesNothing(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)

	require.NoError(t, b.StoreBatch(t.Context(), nil))
	out, err := b.Query(t.Context(), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFileBackendCleanupNeverDeletesCurrentDay(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "a", Timestamp: now}}))

	removed, err := b.Cleanup(t.Context(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "today's open file is never a cleanup target")

	out, err := b.Query(t.Context(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestFileBackendCleanupRemovesOldDayFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)

	old := time.Now().Add(-72 * time.Hour)
	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "old", Timestamp: old}}))
	require.NoError(t, b.StoreBatch(t.Context(), []Record{{ToolName: "new", Timestamp: time.Now()}}))

	removed, err := b.Cleanup(t.Context(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	out, err := b.Query(t.Context(), Query{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ToolName)
}

func TestFileBackendHealthCheck(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, 0, 0)
	require.NoError(t, err)
	assert.NoError(t, b.HealthCheck(t.Context()))
}
