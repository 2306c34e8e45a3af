package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunnelgate/gateway/internal/config"
)

func TestBuildBackendDefaultsToMemory(t *testing.T) {
	b, err := BuildBackend(t.Context(), config.AuditConfig{Backend: ""}, nil)
	require.NoError(t, err)
	_, ok := b.(*MemoryBackend)
	assert.True(t, ok)
}

func TestBuildBackendFile(t *testing.T) {
	dir := t.TempDir()
	b, err := BuildBackend(t.Context(), config.AuditConfig{Backend: "file", FileDir: dir}, nil)
	require.NoError(t, err)
	_, ok := b.(*FileBackend)
	assert.True(t, ok)
}

func TestBuildBackendPostgresRequiresDSN(t *testing.T) {
	_, err := BuildBackend(t.Context(), config.AuditConfig{Backend: "postgres"}, nil)
	assert.Error(t, err)
}

func TestBuildBackendUnknownBackendErrors(t *testing.T) {
	_, err := BuildBackend(t.Context(), config.AuditConfig{Backend: "sqlite"}, nil)
	assert.Error(t, err)
}

func TestBuildBackendHybridFallsBackToDuckDBWithoutDSN(t *testing.T) {
	dir := t.TempDir()
	b, err := BuildBackend(t.Context(), config.AuditConfig{Backend: "hybrid", DuckDBPath: dir + "/audit.duckdb"}, nil)
	require.NoError(t, err)
	_, ok := b.(*HybridBackend)
	assert.True(t, ok)
}
