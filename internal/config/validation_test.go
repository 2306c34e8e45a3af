package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultConfigPasses(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidateUnknownConflictPolicy(t *testing.T) {
	cfg := Default()
	cfg.Registry.ConflictResolution = "bogus"
	assert.Error(t, Validate(cfg))
}

func TestValidateUpstreamRequiresCommandForStdio(t *testing.T) {
	cfg := Default()
	cfg.Upstreams = []UpstreamConfig{{Name: "local-tools", Transport: "stdio"}}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstreams[0].command")
}

func TestValidateUpstreamRequiresURLForNetworkTransports(t *testing.T) {
	cfg := Default()
	cfg.Upstreams = []UpstreamConfig{{Name: "github", Transport: "streamable-http"}}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstreams[0].url")
}

func TestValidateDuplicateUpstreamNames(t *testing.T) {
	cfg := Default()
	cfg.Upstreams = []UpstreamConfig{
		{Name: "github", Transport: "stdio", Command: "github-mcp"},
		{Name: "github", Transport: "stdio", Command: "github-mcp-2"},
	}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate upstream name")
}

func TestValidateAuditBackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GatewayConfig)
		wantErr bool
	}{
		{name: "postgres backend requires dsn file", mutate: func(c *GatewayConfig) { c.Audit.Backend = "postgres" }, wantErr: true},
		{name: "duckdb backend requires path", mutate: func(c *GatewayConfig) { c.Audit.Backend = "duckdb" }, wantErr: true},
		{name: "unknown backend rejected", mutate: func(c *GatewayConfig) { c.Audit.Backend = "sqlite" }, wantErr: true},
		{name: "memory backend needs nothing extra", mutate: func(c *GatewayConfig) { c.Audit.Backend = "memory" }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDiscoveryWeightsAndGate(t *testing.T) {
	cfg := Default()
	cfg.Discovery.Enabled = true
	cfg.Discovery.RuleWeight = 0
	cfg.Discovery.SemanticWeight = 0
	cfg.Discovery.LLMWeight = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hybrid weights")

	cfg.Discovery.SemanticWeight = 1
	cfg.Discovery.ConfidenceGate = 1.5
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidenceGate")
}

func TestValidationErrorsAggregatesMultipleProblems(t *testing.T) {
	cfg := Default()
	cfg.Registry.ConflictResolution = "bogus"
	cfg.Upstreams = []UpstreamConfig{{Name: "", Transport: "carrier-pigeon"}}

	err := Validate(cfg)
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(verrs), 3)
}
