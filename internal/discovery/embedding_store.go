package discovery

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingStore persists tool-description embeddings in Postgres via
// pgvector and serves nearest-neighbour lookups for the semantic
// scorer. Grounded on the pack's pgx pool usage pattern for audit
// storage, reused here for the discovery index.
type EmbeddingStore struct {
	pool *pgxpool.Pool
}

func NewEmbeddingStore(ctx context.Context, dsn string) (*EmbeddingStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting embedding store: %w", err)
	}
	s := &EmbeddingStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *EmbeddingStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS tool_embeddings (
			tool_name TEXT PRIMARY KEY,
			embedding vector(1536) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("ensuring embedding schema: %w", err)
	}
	return nil
}

// Upsert stores or replaces a tool's embedding vector.
func (s *EmbeddingStore) Upsert(ctx context.Context, toolName string, vec []float32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tool_embeddings (tool_name, embedding, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tool_name) DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()
	`, toolName, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("upserting embedding for %s: %w", toolName, err)
	}
	return nil
}

// Similarity returns the cosine similarity between queryVec and the
// stored embedding for toolName, computed in the database via
// pgvector's <=> operator (cosine distance), reporting ok=false if no
// embedding has been indexed for that tool yet.
func (s *EmbeddingStore) Similarity(ctx context.Context, toolName string, queryVec []float32) (score float64, ok bool, err error) {
	var distance float64
	err = s.pool.QueryRow(ctx, `
		SELECT embedding <=> $2 FROM tool_embeddings WHERE tool_name = $1
	`, toolName, pgvector.NewVector(queryVec)).Scan(&distance)
	if err != nil {
		return 0, false, nil
	}
	return 1 - distance, true, nil
}

func (s *EmbeddingStore) Close() { s.pool.Close() }

// cosineSimilarity is used the first time a tool is scored, before its
// embedding has been persisted via Upsert.
func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
