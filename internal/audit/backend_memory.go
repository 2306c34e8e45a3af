package audit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend keeps a capped ring of recent records in process
// memory — the default backend, and the fast tier in a Hybrid
// configuration.
type MemoryBackend struct {
	mu      sync.RWMutex
	records []Record
	cap     int
}

func NewMemoryBackend(capacity int) *MemoryBackend {
	return &MemoryBackend{records: make([]Record, 0, capacity), cap: capacity}
}

func (b *MemoryBackend) StoreEvent(ctx context.Context, r Record) error {
	return b.StoreBatch(ctx, []Record{r})
}

func (b *MemoryBackend) StoreBatch(ctx context.Context, batch []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, batch...)
	if over := len(b.records) - b.cap; over > 0 {
		b.records = b.records[over:]
	}
	return nil
}

func (b *MemoryBackend) Query(ctx context.Context, q Query) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	filter, err := newCELFilter(q.CELExpr)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, q.Limit)
	skipped := 0
	for i := len(b.records) - 1; i >= 0; i-- {
		r := b.records[i]
		if !matchesQuery(r, q, filter) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (b *MemoryBackend) Count(ctx context.Context, q Query) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	filter, err := newCELFilter(q.CELExpr)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, r := range b.records {
		if matchesQuery(r, q, filter) {
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.records[:0]
	removed := 0
	for _, r := range b.records {
		if r.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	b.records = kept
	return removed, nil
}

func (b *MemoryBackend) HealthCheck(ctx context.Context) error { return nil }
func (b *MemoryBackend) Flush(ctx context.Context) error       { return nil }
func (b *MemoryBackend) Close() error                          { return nil }

func matchesQuery(r Record, q Query, filter *celFilter) bool {
	if q.ToolName != "" && r.ToolName != q.ToolName {
		return false
	}
	if q.EventType != "" && r.EventType != q.EventType {
		return false
	}
	if q.Component != "" && r.Component != q.Component {
		return false
	}
	if q.Severity != "" && r.Severity != q.Severity {
		return false
	}
	if q.UserID != "" && r.UserID != q.UserID {
		return false
	}
	if q.CorrelationID != "" && r.CorrelationID != q.CorrelationID {
		return false
	}
	if q.MessageSubstr != "" && !strings.Contains(r.Message, q.MessageSubstr) {
		return false
	}
	if !q.Since.IsZero() && r.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && r.Timestamp.After(q.Until) {
		return false
	}
	if filter != nil && !filter.matches(r) {
		return false
	}
	return true
}
