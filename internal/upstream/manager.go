// Package upstream implements C4: lifecycle and health tracking for
// every configured external MCP server.
package upstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/metrics"
	"github.com/tunnelgate/gateway/internal/obslog"
	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/upstream/client"
	"github.com/tunnelgate/gateway/internal/upstream/client/oauthx"
)

// HealthState is the closed set of states a tracked upstream can be in.
type HealthState string

const (
	HealthPending      HealthState = "pending"
	HealthHealthy      HealthState = "healthy"
	HealthUnhealthy    HealthState = "unhealthy"
	HealthDisconnected HealthState = "disconnected"
)

// ProcessInfo captures subprocess resource usage, sampled with gopsutil
// on a health tick for a client that has a Pid() int32 method. None of
// the clients in internal/upstream/client has one, so a Record's
// process info stays nil.
type ProcessInfo struct {
	PID        int32
	CPUPercent float64
	RSSBytes   uint64
}

// Record tracks one upstream's client, health, and capability snapshot.
type Record struct {
	Name    string
	Config  config.UpstreamConfig
	Client  client.Client
	secrets map[string]string

	mu          sync.RWMutex
	health      HealthState
	lastError   error
	lastChecked time.Time
	process     *ProcessInfo
}

func (r *Record) snapshot() (HealthState, error, time.Time, *ProcessInfo) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.health, r.lastError, r.lastChecked, r.process
}

// Manager owns every configured upstream's Client, periodically checks
// health, refreshes capabilities into the shared Registry, and
// invalidates discovery caches when a tool's shape changes.
type Manager struct {
	mu       sync.RWMutex
	records  map[string]*Record
	reg      *registry.Registry
	metrics  *metrics.Provider
	onChange func(toolName string) // discovery cache invalidation hook
}

func NewManager(reg *registry.Registry, m *metrics.Provider) *Manager {
	return &Manager{
		records: make(map[string]*Record),
		reg:     reg,
		metrics: m,
	}
}

// OnCapabilityChange registers the hook C6 uses to drop stale discovery
// cache entries when an upstream tool's schema or description changes.
func (m *Manager) OnCapabilityChange(fn func(toolName string)) { m.onChange = fn }

// AddUpstream constructs the right client type for cfg, connects it,
// and registers its capabilities.
func (m *Manager) AddUpstream(ctx context.Context, cfg config.UpstreamConfig, secrets map[string]string) error {
	c, err := buildClient(cfg, secrets)
	if err != nil {
		return fmt.Errorf("build client for %s: %w", cfg.Name, err)
	}

	rec := &Record{Name: cfg.Name, Config: cfg, Client: c, secrets: secrets, health: HealthPending}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := c.Initialize(connectCtx); err != nil {
		rec.health = HealthDisconnected
		rec.lastError = err
		m.mu.Lock()
		m.records[cfg.Name] = rec
		m.mu.Unlock()
		return fmt.Errorf("initialize upstream %s: %w", cfg.Name, err)
	}
	rec.health = HealthHealthy

	m.mu.Lock()
	m.records[cfg.Name] = rec
	m.mu.Unlock()

	return m.refreshCapabilities(ctx, rec)
}

func buildClient(cfg config.UpstreamConfig, secrets map[string]string) (client.Client, error) {
	switch cfg.Transport {
	case "stdio":
		return client.NewStdioClient(cfg.Name, cfg.Command, cfg.Args, cfg.Env), nil
	case "sse":
		return client.NewSSEClient(cfg.Name, cfg.URL, nil), nil
	case "websocket":
		return client.NewWebSocketClient(cfg.Name, cfg.URL), nil
	case "streamable-http":
		var ex *oauthx.Exchanger
		if cfg.OAuth != nil {
			secret := secrets["upstream."+cfg.Name+".oauthClientSecret"]
			ex = oauthx.New(cfg.OAuth.IssuerURL, cfg.OAuth.ClientID, secret, cfg.OAuth.Scopes)
		}
		return client.NewStreamableHTTPClient(cfg.Name, cfg.URL, nil, ex), nil
	default:
		return nil, fmt.Errorf("unsupported upstream transport %q", cfg.Transport)
	}
}

// refreshCapabilities lists tools/resources/prompts from the upstream
// and merges them into the registry, calling the OnCapabilityChange hook
// for every tool it lists, whether or not it changed. It keeps no
// earlier snapshot: it removes nothing from the registry and does not
// call the hook for tools the upstream no longer lists (Restart drops
// the upstream's tools before it refreshes).
func (m *Manager) refreshCapabilities(ctx context.Context, rec *Record) error {
	tools, err := rec.Client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools for %s: %w", rec.Name, err)
	}
	for _, t := range tools {
		if err := m.reg.PutTool(t, registry.SourceUpstream, rec.Name); err != nil {
			obslog.Warn("upstream-manager", "tool %s from %s rejected: %v", t.Name, rec.Name, err)
			continue
		}
		if m.onChange != nil {
			m.onChange(t.Name)
		}
	}

	if resources, err := rec.Client.ListResources(ctx); err == nil {
		for _, r := range resources {
			m.reg.PutResource(r, registry.SourceUpstream, rec.Name)
		}
	}
	if prompts, err := rec.Client.ListPrompts(ctx); err == nil {
		for _, p := range prompts {
			m.reg.PutPrompt(p, registry.SourceUpstream, rec.Name)
		}
	}

	obslog.Info("upstream-manager", "refreshed %s: %d tools", rec.Name, len(tools))
	return nil
}

// RunHealthLoop pings every upstream once per interval, fanning the
// pings out concurrently so one slow/hung server never delays the
// others' checks.
func (m *Manager) RunHealthLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

// RunHealthCheckOnce triggers a single immediate health pass outside the
// regular interval.
func (m *Manager) RunHealthCheckOnce(ctx context.Context) {
	m.checkAll(ctx)
}

// Restart tears down and reconnects the named upstream's client,
// re-registering its capabilities on success.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.mu.Lock()
	rec, ok := m.records[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown upstream %q", name)
	}
	cfg := rec.Config
	secrets := rec.secrets
	m.mu.Unlock()

	if err := rec.Client.Close(); err != nil {
		obslog.Warn("upstream-manager", "closing %s before restart: %v", name, err)
	}
	m.reg.RemoveToolsFromOrigin(name)

	c, err := buildClient(cfg, secrets)
	if err != nil {
		return fmt.Errorf("rebuilding client for %s: %w", name, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := c.Initialize(connectCtx); err != nil {
		rec.mu.Lock()
		rec.health = HealthDisconnected
		rec.lastError = err
		rec.mu.Unlock()
		return fmt.Errorf("reinitializing %s: %w", name, err)
	}

	rec.mu.Lock()
	rec.Client = c
	rec.health = HealthHealthy
	rec.lastError = nil
	rec.mu.Unlock()

	return m.refreshCapabilities(ctx, rec)
}

func (m *Manager) checkAll(ctx context.Context) {
	m.mu.RLock()
	records := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			m.checkOne(gctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) checkOne(ctx context.Context, rec *Record) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := rec.Client.Ping(pingCtx)
	elapsed := time.Since(start)

	if m.metrics != nil {
		m.metrics.UpstreamLatency.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(attribute.String("server", rec.Name)))
	}

	rec.mu.Lock()
	rec.lastChecked = time.Now()
	rec.lastError = err
	if err != nil {
		rec.health = HealthUnhealthy
	} else {
		rec.health = HealthHealthy
	}
	if sc, ok := rec.Client.(interface{ Pid() int32 }); ok {
		rec.process = sampleProcess(sc.Pid())
	}
	rec.mu.Unlock()

	if err != nil {
		obslog.Warn("upstream-manager", "health check failed for %s: %v", rec.Name, err)
	}
}

// sampleProcess reads CPU/RSS for a subprocess upstream via gopsutil,
// best-effort — a sampling failure just means no process info this tick.
func sampleProcess(pid int32) *ProcessInfo {
	if pid <= 0 {
		return nil
	}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	cpu, _ := proc.CPUPercent()
	mem, err := proc.MemoryInfo()
	info := &ProcessInfo{PID: pid, CPUPercent: cpu}
	if err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	return info
}

// Get returns the tracked record for name, if any.
func (m *Manager) Get(name string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[name]
	return r, ok
}

// Snapshot returns a point-in-time view of every upstream's health, for
// C10's dashboard.
type Snapshot struct {
	Name        string
	Health      HealthState
	LastError   string
	LastChecked time.Time
	Process     *ProcessInfo
}

func (m *Manager) Snapshot() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.records))
	for _, r := range m.records {
		health, err, checked, proc := r.snapshot()
		s := Snapshot{Name: r.Name, Health: health, LastChecked: checked, Process: proc}
		if err != nil {
			s.LastError = err.Error()
		}
		out = append(out, s)
	}
	return out
}

// Shutdown closes every upstream client.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if err := r.Client.Close(); err != nil {
			obslog.Warn("upstream-manager", "error closing %s: %v", r.Name, err)
		}
	}
}
