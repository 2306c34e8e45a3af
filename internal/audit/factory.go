package audit

import (
	"context"
	"fmt"

	"github.com/tunnelgate/gateway/internal/config"
)

// BuildBackend constructs the configured storage backend, resolving
// secret-file-backed DSNs through secrets (as produced by
// config.ResolveSecrets).
func BuildBackend(ctx context.Context, cfg config.AuditConfig, secrets map[string]string) (Backend, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryBackend(cfg.QueueSize), nil
	case "file":
		return NewFileBackend(cfg.FileDir, cfg.MaxTotalSizeGB, cfg.MaxAgeDays)
	case "postgres":
		dsn, ok := secrets["audit.postgresDSN"]
		if !ok || dsn == "" {
			return nil, fmt.Errorf("audit backend postgres requires postgresDSNFile")
		}
		return NewPostgresBackend(ctx, dsn)
	case "duckdb":
		return NewDuckDBBackend(cfg.DuckDBPath)
	case "hybrid":
		fast := NewMemoryBackend(cfg.QueueSize)
		dsn, ok := secrets["audit.postgresDSN"]
		if ok && dsn != "" {
			durable, err := NewPostgresBackend(ctx, dsn)
			if err != nil {
				return nil, err
			}
			return NewHybridBackend(fast, durable), nil
		}
		durable, err := NewDuckDBBackend(cfg.DuckDBPath)
		if err != nil {
			return nil, err
		}
		return NewHybridBackend(fast, durable), nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}
