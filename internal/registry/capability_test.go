package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapabilityFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCapabilityFile(t *testing.T) {
	dir := t.TempDir()
	path := writeCapabilityFile(t, dir, "github.yaml", `
tools:
  - name: list_issues
    description: list open issues
    routing: rest
    method: GET
    url: https://api.github.com/issues
`)

	tools, err := LoadCapabilityFile(path)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "list_issues", tools[0].Name)
	assert.Equal(t, RoutingREST, tools[0].Routing)
}

func TestLoadCapabilityFileRejectsMissingName(t *testing.T) {
	dir := t.TempDir()
	path := writeCapabilityFile(t, dir, "bad.yaml", `
tools:
  - description: no name here
    routing: rest
`)
	_, err := LoadCapabilityFile(path)
	assert.Error(t, err)
}

func TestLoadCapabilityFileRejectsMissingRouting(t *testing.T) {
	dir := t.TempDir()
	path := writeCapabilityFile(t, dir, "bad.yaml", `
tools:
  - name: orphan
`)
	_, err := LoadCapabilityFile(path)
	assert.Error(t, err)
}

func TestLoadCapabilityDirSkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeCapabilityFile(t, dir, "github.yaml", `
tools:
  - name: list_issues
    routing: rest
`)
	writeCapabilityFile(t, dir, "README.md", "not yaml")

	result, err := LoadCapabilityDir(dir)
	require.NoError(t, err)
	assert.Len(t, result.Files, 1)
	assert.Empty(t, result.Rejected)
}

func TestLoadCapabilityDirMissingIsNotError(t *testing.T) {
	result, err := LoadCapabilityDir(filepath.Join(t.TempDir(), "nonexistent"))
	require.NoError(t, err)
	assert.Empty(t, result.Files)
}

func TestLoadCapabilityDirRejectsOnlyBadFile(t *testing.T) {
	dir := t.TempDir()
	writeCapabilityFile(t, dir, "good.yaml", `
tools:
  - name: list_issues
    routing: rest
`)
	writeCapabilityFile(t, dir, "bad.yaml", `
tools:
  - description: no name here
    routing: rest
`)

	result, err := LoadCapabilityDir(dir)
	require.NoError(t, err)
	assert.Len(t, result.Files, 1, "the good file still loads")
	assert.Len(t, result.Rejected, 1, "only the bad file is rejected")
	for path := range result.Rejected {
		assert.Contains(t, path, "bad.yaml")
	}
}

func TestLoadCapabilityFileParsesEnabledAndHidden(t *testing.T) {
	dir := t.TempDir()
	path := writeCapabilityFile(t, dir, "flags.yaml", `
tools:
  - name: enabled_default
    routing: rest
  - name: explicitly_disabled
    routing: rest
    enabled: false
  - name: explicitly_hidden
    routing: rest
    hidden: true
`)

	tools, err := LoadCapabilityFile(path)
	require.NoError(t, err)
	require.Len(t, tools, 3)
	assert.Nil(t, tools[0].Enabled)
	require.NotNil(t, tools[1].Enabled)
	assert.False(t, *tools[1].Enabled)
	assert.True(t, tools[2].Hidden)
}

func TestToolEntryRoutingDefaultsToExternalMCP(t *testing.T) {
	entry := &ToolEntry{Source: SourceUpstream}
	assert.Equal(t, RoutingExternalMCP, entry.Routing())

	local := &ToolEntry{Source: SourceLocal, Capability: &CapabilityTool{Routing: RoutingSubprocess}}
	assert.Equal(t, RoutingSubprocess, local.Routing())
}
