package config

import "fmt"

var validConflictPolicies = map[string]bool{
	"local_first": true, "proxy_first": true, "prefix": true, "reject": true,
}

var validRoutingTransports = map[string]bool{
	"stdio": true, "sse": true, "streamable-http": true, "websocket": true,
}

var validAuditBackends = map[string]bool{
	"memory": true, "file": true, "postgres": true, "duckdb": true, "hybrid": true,
}

// Validate checks a loaded GatewayConfig for internal consistency,
// returning every problem found rather than stopping at the first.
func Validate(cfg *GatewayConfig) error {
	var errs ValidationErrors

	if !validConflictPolicies[cfg.Registry.ConflictResolution] {
		fieldErr(&errs, "registry.conflictResolution", "unknown policy %q", cfg.Registry.ConflictResolution)
	}

	seen := make(map[string]bool, len(cfg.Upstreams))
	for i, u := range cfg.Upstreams {
		field := fmt.Sprintf("upstreams[%d]", i)
		if u.Name == "" {
			fieldErr(&errs, field+".name", "must not be empty")
		} else if seen[u.Name] {
			fieldErr(&errs, field+".name", "duplicate upstream name %q", u.Name)
		}
		seen[u.Name] = true

		if !validRoutingTransports[u.Transport] {
			fieldErr(&errs, field+".transport", "unknown transport %q", u.Transport)
		}
		switch u.Transport {
		case "stdio":
			if u.Command == "" {
				fieldErr(&errs, field+".command", "required for stdio transport")
			}
		case "sse", "streamable-http", "websocket":
			if u.URL == "" {
				fieldErr(&errs, field+".url", "required for %s transport", u.Transport)
			}
		}
	}

	if cfg.Audit.Enabled && !validAuditBackends[cfg.Audit.Backend] {
		fieldErr(&errs, "audit.backend", "unknown backend %q", cfg.Audit.Backend)
	}
	if cfg.Audit.Backend == "postgres" && cfg.Audit.PostgresDSNFile == "" {
		fieldErr(&errs, "audit.postgresDSNFile", "required when backend is postgres")
	}
	if cfg.Audit.Backend == "duckdb" && cfg.Audit.DuckDBPath == "" {
		fieldErr(&errs, "audit.duckDBPath", "required when backend is duckdb")
	}

	if cfg.Discovery.Enabled {
		w := cfg.Discovery.RuleWeight + cfg.Discovery.SemanticWeight + cfg.Discovery.LLMWeight
		if w <= 0 {
			fieldErr(&errs, "discovery", "hybrid weights must sum to a positive value")
		}
		if cfg.Discovery.ConfidenceGate < 0 || cfg.Discovery.ConfidenceGate > 1 {
			fieldErr(&errs, "discovery.confidenceGate", "must be between 0 and 1")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
