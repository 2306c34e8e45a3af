// Package app bootstraps the gateway process: loading configuration,
// wiring every component together, and running until told to stop.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tunnelgate/gateway/internal/audit"
	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/dashboard"
	"github.com/tunnelgate/gateway/internal/discovery"
	"github.com/tunnelgate/gateway/internal/gateway"
	"github.com/tunnelgate/gateway/internal/llm"
	"github.com/tunnelgate/gateway/internal/metrics"
	"github.com/tunnelgate/gateway/internal/obslog"
	"github.com/tunnelgate/gateway/internal/prompts"
	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/resources"
	"github.com/tunnelgate/gateway/internal/roots"
	"github.com/tunnelgate/gateway/internal/router"
	"github.com/tunnelgate/gateway/internal/upstream"
)

// Application bundles every wired-up component the serve command
// needs to run, following the teacher's two-phase bootstrap/run split.
type Application struct {
	config *Config
	gw     *config.GatewayConfig

	reg       *registry.Registry
	upstreams *upstream.Manager
	router    *router.Router
	discovery *discovery.Pipeline
	auditor   *audit.Pipeline
	metrics   *metrics.Provider
	server    *gateway.Server
	dashboard *dashboard.Server
	watcher   *registry.FilesystemWatcher
	embedding *discovery.EmbeddingStore
}

// NewApplication loads configuration and constructs every component,
// but starts nothing — callers drive the lifecycle via Run.
func NewApplication(cfg *Config) (*Application, error) {
	logLevel := obslog.LevelInfo
	if cfg.Debug {
		logLevel = obslog.LevelDebug
	}
	var out io.Writer = os.Stdout
	if cfg.Silent {
		out = io.Discard
	}
	obslog.Init("cli", logLevel, out)

	dir := cfg.ConfigPath
	if dir == "" {
		dir = "."
	}
	gw, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	gw.Registry.Yolo = cfg.Yolo

	secrets, err := config.ResolveSecrets(gw)
	if err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	reg, err := registry.New(registry.ConflictResolutionPolicy(gw.Registry.ConflictResolution), gw.Registry.GatewayPrefix, gw.Registry.DenylistPatterns, gw.Registry.Yolo)
	if err != nil {
		return nil, fmt.Errorf("initializing registry: %w", err)
	}

	// The audit backend is built before capability loading begins so a
	// malformed capability file on startup, or during hot reload, has
	// somewhere to report to.
	backend, err := audit.BuildBackend(context.Background(), gw.Audit, secrets)
	if err != nil {
		return nil, fmt.Errorf("initializing audit backend: %w", err)
	}
	auditCfg := audit.Config{
		QueueSize:     gw.Audit.QueueSize,
		FlushInterval: gw.Audit.FlushInterval,
		FlushBatch:    gw.Audit.FlushBatch,
		MaskFields:    gw.Audit.MaskFields,
	}
	auditor := audit.New(auditCfg, backend, m)

	loadCapabilityDirs(reg, auditor, gw.Registry.CapabilityDirs)

	var watcher *registry.FilesystemWatcher
	if len(gw.Registry.CapabilityDirs) > 0 {
		watcher, err = registry.NewFilesystemWatcher(gw.Registry.CapabilityDirs, 300*time.Millisecond, func(path string) {
			reloadCapabilityFile(reg, auditor, path)
		})
		if err != nil {
			obslog.Warn("app", "capability watcher disabled: %v", err)
			watcher = nil
		}
	}

	upstreams := upstream.NewManager(reg, m)
	for _, u := range gw.Upstreams {
		if err := upstreams.AddUpstream(context.Background(), u, secrets); err != nil {
			obslog.Warn("app", "upstream %s failed to connect: %v", u.Name, err)
		}
	}

	rt := router.New(reg, upstreams, m, gw.Router.DispatchTimeout)
	rt.SetAuditor(auditor)
	rt.SetSamplingConfig(gw.Router)

	var provider *llm.Provider
	if gw.LLMProvider.Backend != "" {
		provider, err = llm.New(gw.LLMProvider, secrets["llmProvider.apiKey"])
		if err != nil {
			obslog.Warn("app", "llm provider unavailable: %v", err)
			provider = nil
		}
	}
	if provider != nil {
		rt.SetLocalSampler(router.NewLLMSampler(provider, gw.LLMProvider.Model))
	}
	if len(gw.LLMProviders) > 0 {
		samplers := make(map[string]*router.LLMSampler, len(gw.LLMProviders))
		for name, pcfg := range gw.LLMProviders {
			p, err := llm.New(pcfg, secrets[fmt.Sprintf("llmProviders.%s.apiKey", name)])
			if err != nil {
				obslog.Warn("app", "sampling provider %s unavailable: %v", name, err)
				continue
			}
			samplers[name] = router.NewLLMSampler(p, pcfg.Model)
		}
		rt.SetSamplingForwarder(router.NewMultiProviderForwarder(samplers))
	}

	var embedding *discovery.EmbeddingStore
	var disco *discovery.Pipeline
	if gw.Discovery.Enabled {
		if gw.Discovery.EmbeddingStorePath != "" {
			embedding, err = discovery.NewEmbeddingStore(context.Background(), gw.Discovery.EmbeddingStorePath)
			if err != nil {
				obslog.Warn("app", "embedding store unavailable: %v", err)
				embedding = nil
			}
		}
		disco = discovery.New(reg, gw.Discovery, embedding, provider)
		upstreams.OnCapabilityChange(disco.InvalidateOnChange)
	}

	rootsSvc, err := roots.New(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing roots service: %w", err)
	}
	res := resources.New(os.DirFS("."))
	pr := prompts.New()

	gwServer := gateway.New(gw.Transports, reg, rt, rootsSvc, res, pr)

	dashSrv := dashboard.New(reg, upstreams, auditor, disco, rt, dialSupervisor(gw.Supervisor, secrets["supervisor.jwtSecret"]))

	return &Application{
		config:    cfg,
		gw:        gw,
		reg:       reg,
		upstreams: upstreams,
		router:    rt,
		discovery: disco,
		auditor:   auditor,
		metrics:   m,
		server:    gwServer,
		dashboard: dashSrv,
		watcher:   watcher,
		embedding: embedding,
	}, nil
}

// loadCapabilityDirs does the initial, whole-directory capability load
// at startup. A directory that cannot be read is logged and skipped;
// within a directory, a single malformed file never prevents its
// siblings from loading (registry.LoadCapabilityDir already isolates
// per-file failures) and never aborts application startup.
func loadCapabilityDirs(reg *registry.Registry, auditor *audit.Pipeline, dirs []string) {
	for _, dir := range dirs {
		result, err := registry.LoadCapabilityDir(dir)
		if err != nil {
			obslog.Warn("app", "capability directory %s unavailable: %v", dir, err)
			continue
		}
		for file, tools := range result.Files {
			if rejected := reg.ApplyBatch(file, tools); len(rejected) > 0 {
				for name, rerr := range rejected {
					obslog.Warn("app", "capability tool %s rejected: %v", name, rerr)
					recordCapabilityRejection(auditor, file, rerr)
				}
			}
		}
		for file, rerr := range result.Rejected {
			obslog.Warn("app", "capability file %s rejected: %v", file, rerr)
			recordCapabilityRejection(auditor, file, rerr)
		}
	}
}

// reloadCapabilityFile re-parses exactly the changed file a
// FilesystemWatcher event names, applying it as one atomic batch via
// registry.ApplyBatch so tools dropped from the file are removed and
// every reader sees either the pre- or post-reload state, never a
// partial merge. A parse/schema error rejects only this file — the
// registry keeps serving whatever that file last contributed
// successfully. A file that no longer exists (removed or renamed away)
// has its previously-registered tools removed entirely.
func reloadCapabilityFile(reg *registry.Registry, auditor *audit.Pipeline, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		obslog.Info("app", "capability file removed: %s", path)
		reg.RemoveToolsFromOrigin(path)
		return
	}

	tools, err := registry.LoadCapabilityFile(path)
	if err != nil {
		obslog.Warn("app", "capability file %s rejected: %v", path, err)
		recordCapabilityRejection(auditor, path, err)
		return
	}

	if rejected := reg.ApplyBatch(path, tools); len(rejected) > 0 {
		for name, rerr := range rejected {
			obslog.Warn("app", "capability tool %s rejected: %v", name, rerr)
			recordCapabilityRejection(auditor, path, rerr)
		}
	}
	obslog.Info("app", "capability file reloaded: %s (%d tools)", path, len(tools))
}

// recordCapabilityRejection emits a config_change audit event for a
// capability file or tool the registry refused to load, so rejections
// surface in the durable audit trail and not just the operator log.
func recordCapabilityRejection(auditor *audit.Pipeline, file string, cause error) {
	if auditor == nil {
		return
	}
	auditor.Record(audit.Record{
		EventType: audit.EventConfigChange,
		Severity:  audit.SeverityWarning,
		Component: "app-capabilities",
		Message:   fmt.Sprintf("capability file %s rejected", file),
		Error:     cause.Error(),
		Metadata:  map[string]interface{}{"file": file},
	})
}

// Run starts every background component, blocks until ctx is
// cancelled or a termination signal arrives, then shuts down in
// reverse dependency order.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway transports: %w", err)
	}

	go a.auditor.Run(ctx)
	go a.upstreams.RunHealthLoop(ctx, 30*time.Second)
	if a.watcher != nil {
		go a.watcher.Run()
	}

	var dashSrv *http.Server
	if a.gw.Dashboard.Enabled {
		addr := fmt.Sprintf("%s:%d", a.gw.Dashboard.Host, a.gw.Dashboard.Port)
		dashSrv = &http.Server{Addr: addr, Handler: a.dashboard.Routes()}
		go func() {
			obslog.Info("app", "dashboard listening on %s", addr)
			if err := dashSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				obslog.Error("app", err, "dashboard server error")
			}
		}()
	}

	obslog.Info("app", "tunnelgate gateway running")
	<-ctx.Done()
	obslog.Info("app", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Stop(shutdownCtx); err != nil {
		obslog.Warn("app", "gateway transport shutdown: %v", err)
	}
	if dashSrv != nil {
		if err := dashSrv.Shutdown(shutdownCtx); err != nil {
			obslog.Warn("app", "dashboard shutdown: %v", err)
		}
	}
	a.upstreams.Shutdown()
	a.auditor.Close()
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.metrics != nil {
		_ = a.metrics.Shutdown(shutdownCtx)
	}
	return nil
}
