// Package router implements C5: dispatch of a resolved tool call to its
// backing implementation, and the sampling/elicitation forwarding
// strategy table.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tunnelgate/gateway/internal/audit"
	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/metrics"
	"github.com/tunnelgate/gateway/internal/obslog"
	"github.com/tunnelgate/gateway/internal/prompttpl"
	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/upstream"
)

// Executor runs one ToolEntry against its routing kind and returns the
// MCP call result.
type Executor interface {
	Execute(ctx context.Context, entry *registry.ToolEntry, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// LocalSampler answers a sampling/elicitation request using the
// gateway's own LLM integration — the "magictunnel" endpoint.
type LocalSampler interface {
	Sample(ctx context.Context, request interface{}) (interface{}, error)
}

// SamplingForwarder forwards a sampling/elicitation request to a named
// upstream or to the connected downstream client.
type SamplingForwarder interface {
	ForwardSampling(ctx context.Context, endpoint string, request interface{}) (interface{}, error)
}

// Router dispatches local tools by their REST, subprocess, gRPC or
// GraphQL routing kind and upstream tools through their MCP client,
// timing each call and recording it to the shared metrics provider. A
// local tool with the websocket routing kind is rejected.
type Router struct {
	reg       *registry.Registry
	upstreams *upstream.Manager
	tmpl      *prompttpl.Engine
	metrics   *metrics.Provider
	timeout   time.Duration
	auditor   *audit.Pipeline

	rest       *RESTExecutor
	subprocess *SubprocessExecutor
	grpc       *GRPCExecutor
	graphql    *GraphQLExecutor

	samplingCfg       config.RouterConfig
	localSampler      LocalSampler
	samplingForwarder SamplingForwarder
}

func New(reg *registry.Registry, upstreams *upstream.Manager, m *metrics.Provider, timeout time.Duration) *Router {
	tmpl := prompttpl.New()
	return &Router{
		reg:        reg,
		upstreams:  upstreams,
		tmpl:       tmpl,
		metrics:    m,
		timeout:    timeout,
		rest:       &RESTExecutor{tmpl: tmpl},
		subprocess: &SubprocessExecutor{tmpl: tmpl},
		grpc:       &GRPCExecutor{tmpl: tmpl},
		graphql:    &GraphQLExecutor{tmpl: tmpl},
	}
}

// SetAuditor wires the audit pipeline so Dispatch records a
// tool_execution event per call. Nil disables recording.
func (r *Router) SetAuditor(a *audit.Pipeline) { r.auditor = a }

// SetSamplingConfig wires the ordered-candidate sampling configuration
// (priority order, fallback flag, per-upstream overrides).
func (r *Router) SetSamplingConfig(cfg config.RouterConfig) { r.samplingCfg = cfg }

// SetLocalSampler wires the gateway's own LLM-backed sampling handler.
func (r *Router) SetLocalSampler(s LocalSampler) { r.localSampler = s }

// SetSamplingForwarder wires the transport that reaches named upstream
// or client endpoints for sampling/elicitation forwarding.
func (r *Router) SetSamplingForwarder(f SamplingForwarder) { r.samplingForwarder = f }

// Dispatch resolves name in the registry and executes it, applying the
// router-wide dispatch timeout and recording latency by routing kind.
func (r *Router) Dispatch(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	entry, ok := r.reg.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if !entry.Enabled {
		return nil, fmt.Errorf("tool %q is disabled", name)
	}

	dctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	var (
		result *mcp.CallToolResult
		err    error
		kind   string
	)

	if entry.Source == registry.SourceUpstream {
		kind = "external_mcp"
		result, err = r.dispatchUpstream(dctx, entry, args)
	} else {
		kind = string(entry.Routing())
		result, err = r.dispatchLocal(dctx, entry, args)
	}

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.DispatchLatency.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(attribute.String("routing_kind", kind)))
	}
	if err != nil {
		obslog.Warn("router", "dispatch %s (%s) failed after %s: %v", name, kind, elapsed, err)
	}
	if r.auditor != nil {
		rec := audit.Record{
			EventType:    audit.EventToolExecution,
			Severity:     audit.SeverityInfo,
			Component:    "router",
			ToolName:     name,
			OriginServer: entry.OriginServer,
			Arguments:    args,
			DurationMS:   elapsed.Milliseconds(),
		}
		if err != nil {
			rec.Severity = audit.SeverityError
			rec.Error = err.Error()
		} else {
			rec.Result = "ok"
		}
		r.auditor.Record(rec)
	}
	return result, err
}

// HandleSampling answers a server-initiated sampling/createMessage or
// elicitation/create request from upstreamName, according to that
// upstream's configured strategy (falling back to the router-wide
// default), racing or chaining across its priority_order candidates
// plus the local "magictunnel" endpoint per StrategyConfig's rules.
func (r *Router) HandleSampling(ctx context.Context, upstreamName string, request interface{}) (*Outcome, error) {
	strategy := r.samplingCfg.DefaultSamplingStrategy
	if override, ok := r.samplingCfg.UpstreamSamplingStrategy[upstreamName]; ok {
		strategy = override
	}

	cfg := StrategyConfig{
		Strategy:              SamplingStrategy(strategy),
		PriorityOrder:         r.samplingCfg.SamplingPriorityOrder,
		FallbackToMagictunnel: r.samplingCfg.FallbackToMagictunnel,
	}

	candidates := make(map[string]SamplingHandler, len(cfg.PriorityOrder))
	for _, name := range cfg.PriorityOrder {
		name := name
		candidates[name] = func(ctx context.Context, request interface{}) (interface{}, error) {
			if r.samplingForwarder == nil {
				return nil, fmt.Errorf("no sampling forwarder configured for endpoint %q", name)
			}
			return r.samplingForwarder.ForwardSampling(ctx, name, request)
		}
	}

	local := Candidate{Name: magictunnelEndpoint, Handler: func(ctx context.Context, request interface{}) (interface{}, error) {
		if r.localSampler == nil {
			return nil, fmt.Errorf("no local sampler configured")
		}
		return r.localSampler.Sample(ctx, request)
	}}

	out, err := ResolveSampling(ctx, cfg, request, candidates, local, firstRankedMerge)
	if r.auditor != nil {
		rec := audit.Record{
			EventType: audit.EventMCPConnection,
			Severity:  audit.SeverityInfo,
			Component: "router-sampling",
			Message:   fmt.Sprintf("sampling request for upstream %s via strategy %s", upstreamName, strategy),
		}
		if err != nil {
			rec.Severity = audit.SeverityError
			rec.Error = err.Error()
		} else {
			rec.Metadata = map[string]interface{}{"endpoint": out.Endpoint, "attempted": out.Attempted}
		}
		r.auditor.Record(rec)
	}
	return out, err
}

// firstRankedMerge is the default Hybrid merge: keep the
// highest-priority successful response while the caller still
// receives, via the returned Outcome, every endpoint that answered.
func firstRankedMerge(ranked []RankedResponse) (interface{}, error) {
	if len(ranked) == 0 {
		return nil, fmt.Errorf("no successful responses to merge")
	}
	return ranked[0].Result, nil
}

func (r *Router) dispatchUpstream(ctx context.Context, entry *registry.ToolEntry, args map[string]interface{}) (*mcp.CallToolResult, error) {
	rec, ok := r.upstreams.Get(entry.OriginServer)
	if !ok {
		return nil, fmt.Errorf("upstream %q not connected", entry.OriginServer)
	}
	return rec.Client.CallTool(ctx, entry.OriginalName, args)
}

func (r *Router) dispatchLocal(ctx context.Context, entry *registry.ToolEntry, args map[string]interface{}) (*mcp.CallToolResult, error) {
	switch entry.Routing() {
	case registry.RoutingREST:
		return r.rest.Execute(ctx, entry, args)
	case registry.RoutingSubprocess:
		return r.subprocess.Execute(ctx, entry, args)
	case registry.RoutingGRPC:
		return r.grpc.Execute(ctx, entry, args)
	case registry.RoutingGraphQL:
		return r.graphql.Execute(ctx, entry, args)
	default:
		return nil, fmt.Errorf("unsupported routing kind %q for local tool %q", entry.Routing(), entry.Tool.Name)
	}
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: s}}}
}
