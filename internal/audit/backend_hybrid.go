package audit

import (
	"context"
	"time"
)

// HybridBackend writes to a fast in-memory tier for recent-record
// queries and a durable tier for everything else, querying memory
// first and falling back to durable storage when memory can't satisfy
// the requested range.
type HybridBackend struct {
	fast    *MemoryBackend
	durable Backend
}

func NewHybridBackend(fast *MemoryBackend, durable Backend) *HybridBackend {
	return &HybridBackend{fast: fast, durable: durable}
}

func (b *HybridBackend) StoreEvent(ctx context.Context, r Record) error {
	return b.StoreBatch(ctx, []Record{r})
}

func (b *HybridBackend) StoreBatch(ctx context.Context, batch []Record) error {
	if err := b.fast.StoreBatch(ctx, batch); err != nil {
		return err
	}
	return b.durable.StoreBatch(ctx, batch)
}

func (b *HybridBackend) Query(ctx context.Context, q Query) ([]Record, error) {
	fromFast, err := b.fast.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(fromFast) >= q.Limit {
		return fromFast, nil
	}
	return b.durable.Query(ctx, q)
}

func (b *HybridBackend) Count(ctx context.Context, q Query) (int, error) {
	return b.durable.Count(ctx, q)
}

func (b *HybridBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	fromFast, err := b.fast.Cleanup(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	fromDurable, err := b.durable.Cleanup(ctx, olderThan)
	if err != nil {
		return fromFast, err
	}
	return fromFast + fromDurable, nil
}

func (b *HybridBackend) HealthCheck(ctx context.Context) error {
	if err := b.fast.HealthCheck(ctx); err != nil {
		return err
	}
	return b.durable.HealthCheck(ctx)
}

func (b *HybridBackend) Flush(ctx context.Context) error {
	if err := b.fast.Flush(ctx); err != nil {
		return err
	}
	return b.durable.Flush(ctx)
}

func (b *HybridBackend) Close() error {
	if err := b.fast.Close(); err != nil {
		return err
	}
	return b.durable.Close()
}
