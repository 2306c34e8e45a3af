package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApplicationWiresDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig(false, false, true, dir)

	appl, err := NewApplication(cfg)
	require.NoError(t, err)

	assert.NotNil(t, appl.reg)
	assert.NotNil(t, appl.upstreams)
	assert.NotNil(t, appl.router)
	assert.NotNil(t, appl.auditor)
	assert.NotNil(t, appl.server)
	assert.NotNil(t, appl.dashboard)
	assert.Nil(t, appl.discovery, "discovery is disabled by default")
}

func TestNewApplicationRejectsBadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("transports: [this is not a map]\n"), 0o644))

	cfg := NewConfig(false, false, true, dir)
	_, err := NewApplication(cfg)
	assert.Error(t, err)
}
