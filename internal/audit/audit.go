// Package audit implements C7: a bounded, backpressured record of every
// tool/resource/prompt invocation, flushed in batches to a pluggable
// storage backend and broadcast live to dashboard subscribers.
package audit

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tunnelgate/gateway/internal/metrics"
	"github.com/tunnelgate/gateway/internal/obslog"
)

// EventType closes the set of events the pipeline can carry. Every
// event the gateway logs — not just tool executions — is one of
// these.
type EventType string

const (
	EventAuthentication    EventType = "authentication"
	EventAuthorization     EventType = "authorization"
	EventToolExecution     EventType = "tool_execution"
	EventOAuthFlow         EventType = "oauth_flow"
	EventMCPConnection     EventType = "mcp_connection"
	EventSecurityViolation EventType = "security_violation"
	EventAdminAction       EventType = "admin_action"
	EventConfigChange      EventType = "config_change"
	EventServiceStart      EventType = "service_start"
	EventServiceStop       EventType = "service_stop"
	EventSystemHealth      EventType = "system_health"
	EventPerformanceMetric EventType = "performance_metric"
	EventErrorOccurred     EventType = "error_occurred"
)

// Severity grades an event for alerting/filtering purposes.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Record is one logged gateway event. The envelope fields
// (EventType/Severity/Component/Message/...) carry every event kind;
// the tool-execution fields below are populated when EventType is
// EventToolExecution and left zero otherwise.
type Record struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	EventType     EventType              `json:"eventType"`
	Severity      Severity               `json:"severity"`
	Component     string                 `json:"component"`
	Message       string                 `json:"message,omitempty"`
	UserID        string                 `json:"userId,omitempty"`
	SessionID     string                 `json:"sessionId,omitempty"`
	RequestID     string                 `json:"requestId,omitempty"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`

	// Tool-execution fields.
	ToolName     string                 `json:"toolName,omitempty"`
	OriginServer string                 `json:"originServer,omitempty"`
	Arguments    map[string]interface{} `json:"arguments,omitempty"`
	Result       string                 `json:"result,omitempty"`
	Error        string                 `json:"error,omitempty"`
	DurationMS   int64                  `json:"durationMs,omitempty"`
	ClientID     string                 `json:"clientId,omitempty"`
}

// Backend persists events and answers historical queries, matching
// the storage trait's store_event/store_batch/query/count/cleanup/
// health_check/flush operations so any tier (memory, file, database,
// hybrid) is interchangeable behind the pipeline.
type Backend interface {
	StoreEvent(ctx context.Context, r Record) error
	StoreBatch(ctx context.Context, batch []Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, q Query) (int, error)
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
	HealthCheck(ctx context.Context) error
	Flush(ctx context.Context) error
	Close() error
}

// Query filters a historical read, with an optional CEL expression
// evaluated per-record for anything the structured fields don't cover.
type Query struct {
	EventType     EventType
	Component     string
	Severity      Severity
	UserID        string
	CorrelationID string
	ToolName      string
	MessageSubstr string
	Since         time.Time
	Until         time.Time
	Offset        int
	Limit         int
	CELExpr       string
}

// Pipeline owns the bounded ingest queue, the periodic flush loop, and
// the live subscriber fanout.
type Pipeline struct {
	cfg        Config
	backend    Backend
	masker     *masker
	metrics    *metrics.Provider

	queue chan Record
	done  chan struct{}

	subMu sync.RWMutex
	subs  map[chan Record]struct{}
}

type Config struct {
	QueueSize     int
	FlushInterval time.Duration
	FlushBatch    int
	MaskFields    []string
}

func New(cfg Config, backend Backend, m *metrics.Provider) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		backend: backend,
		masker:  newMasker(cfg.MaskFields),
		metrics: m,
		queue:   make(chan Record, cfg.QueueSize),
		done:    make(chan struct{}),
		subs:    make(map[chan Record]struct{}),
	}
}

// Record enqueues r, masking configured fields first. If the queue is
// full the record is dropped and counted rather than blocking the
// caller's dispatch path.
func (p *Pipeline) Record(r Record) {
	r = p.masker.mask(r)

	select {
	case p.queue <- r:
		if p.metrics != nil {
			p.metrics.AuditQueueDepth.Add(context.Background(), 1)
		}
	default:
		obslog.Warn("audit", "queue full, dropping record for %s", r.ToolName)
		if p.metrics != nil {
			p.metrics.AuditDroppedTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("tool", r.ToolName)))
		}
	}

	p.broadcast(r)
}

// Subscribe registers a channel that receives every record as it's
// ingested, for the dashboard's live tail view. The returned function
// unregisters it.
func (p *Pipeline) Subscribe(buf int) (<-chan Record, func()) {
	ch := make(chan Record, buf)
	p.subMu.Lock()
	p.subs[ch] = struct{}{}
	p.subMu.Unlock()
	return ch, func() {
		p.subMu.Lock()
		delete(p.subs, ch)
		p.subMu.Unlock()
		close(ch)
	}
}

func (p *Pipeline) broadcast(r Record) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for ch := range p.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

// Run drains the queue into flush-sized batches, on a timer or when
// a batch fills, until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()
	defer close(p.done)

	batch := make([]Record, 0, p.cfg.FlushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.backend.StoreBatch(ctx, batch); err != nil {
			obslog.Error("audit", err, "flush failed")
		}
		if p.metrics != nil {
			p.metrics.AuditQueueDepth.Add(ctx, -int64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case r := <-p.queue:
			batch = append(batch, r)
			if len(batch) >= p.cfg.FlushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Query delegates a historical lookup to the backend.
func (p *Pipeline) Query(ctx context.Context, q Query) ([]Record, error) {
	return p.backend.Query(ctx, q)
}

// Count delegates a historical count to the backend.
func (p *Pipeline) Count(ctx context.Context, q Query) (int, error) {
	return p.backend.Count(ctx, q)
}

// Cleanup removes events older than olderThan from the backend,
// returning how many were removed.
func (p *Pipeline) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return p.backend.Cleanup(ctx, olderThan)
}

// HealthCheck reports whether the backend is reachable and writable.
func (p *Pipeline) HealthCheck(ctx context.Context) error {
	return p.backend.HealthCheck(ctx)
}

func (p *Pipeline) Close() error {
	return p.backend.Close()
}
