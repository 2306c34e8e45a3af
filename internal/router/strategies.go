package router

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tunnelgate/gateway/internal/obslog"
)

// SamplingStrategy is the closed set of ways the gateway can satisfy a
// server-initiated sampling/createMessage or elicitation/create
// request against an ordered pool of candidate endpoints (the
// gateway's own LLM integration, "magictunnel", and any number of
// named upstream/client endpoints).
type SamplingStrategy string

const (
	MagictunnelHandled SamplingStrategy = "magictunnel_handled"
	ClientForwarded    SamplingStrategy = "client_forwarded"
	MagictunnelFirst   SamplingStrategy = "magictunnel_first"
	ClientFirst        SamplingStrategy = "client_first"
	Parallel           SamplingStrategy = "parallel"
	Hybrid             SamplingStrategy = "hybrid"
)

// magictunnelEndpoint is the reserved candidate name for the gateway's
// own local handler, always the terminal candidate when fallback is
// enabled.
const magictunnelEndpoint = "magictunnel"

// SamplingHandler resolves one sampling/elicitation request against a
// single endpoint.
type SamplingHandler func(ctx context.Context, request interface{}) (interface{}, error)

// Candidate pairs an endpoint name with the handler that serves it.
type Candidate struct {
	Name    string
	Handler SamplingHandler
}

// StrategyConfig selects a strategy and the ordered candidate list it
// walks. PriorityOrder never includes the local provider; it is always
// addressed by name "magictunnel" and placed by buildOrder according to
// the strategy.
type StrategyConfig struct {
	Strategy              SamplingStrategy
	PriorityOrder         []string
	FallbackToMagictunnel bool
}

// RankedResponse is one successful candidate response, tagged with its
// position in the attempted order for Hybrid's merge step.
type RankedResponse struct {
	Endpoint string
	Rank     int
	Result   interface{}
}

// MergeFunc combines every successful response Hybrid collected into
// one synthesized result.
type MergeFunc func(ranked []RankedResponse) (interface{}, error)

// Outcome reports which endpoint(s) actually answered a sampling
// request, for audit logging and the attempted-is-a-prefix invariant.
type Outcome struct {
	Result    interface{}
	Endpoint  string
	Attempted []string
}

// buildOrder expands cfg into the literal candidate order a strategy
// walks: MagictunnelHandled tries only the local endpoint;
// ClientForwarded tries only the first PriorityOrder entry (or "client"
// when PriorityOrder is empty); MagictunnelFirst tries the local
// endpoint and then every PriorityOrder entry; ClientFirst, Parallel and
// Hybrid try every PriorityOrder entry, followed by the local endpoint
// only when FallbackToMagictunnel is set.
func buildOrder(cfg StrategyConfig) []string {
	switch cfg.Strategy {
	case MagictunnelHandled:
		return []string{magictunnelEndpoint}

	case ClientForwarded:
		if len(cfg.PriorityOrder) > 0 {
			return []string{cfg.PriorityOrder[0]}
		}
		return []string{"client"}

	case MagictunnelFirst:
		order := make([]string, 0, len(cfg.PriorityOrder)+1)
		order = append(order, magictunnelEndpoint)
		return append(order, cfg.PriorityOrder...)

	case ClientFirst, Parallel, Hybrid:
		order := append([]string{}, cfg.PriorityOrder...)
		if cfg.FallbackToMagictunnel {
			order = append(order, magictunnelEndpoint)
		}
		return order

	default:
		return nil
	}
}

// ResolveSampling dispatches request across the candidate endpoints
// named in cfg.PriorityOrder plus local (the "magictunnel" endpoint),
// in the shape cfg.Strategy demands. merge is only consulted for
// Hybrid; it may be nil for every other strategy.
func ResolveSampling(ctx context.Context, cfg StrategyConfig, request interface{}, candidates map[string]SamplingHandler, local Candidate, merge MergeFunc) (*Outcome, error) {
	handlers := make(map[string]SamplingHandler, len(candidates)+1)
	for name, h := range candidates {
		handlers[name] = h
	}
	handlers[magictunnelEndpoint] = local.Handler
	if local.Name != "" && local.Name != magictunnelEndpoint {
		handlers[local.Name] = local.Handler
	}

	order := buildOrder(cfg)
	if order == nil {
		return nil, fmt.Errorf("unknown sampling strategy %q", cfg.Strategy)
	}

	switch cfg.Strategy {
	case MagictunnelHandled, ClientForwarded, MagictunnelFirst, ClientFirst:
		return resolveSequential(ctx, order, handlers, request)
	case Parallel:
		return resolveParallel(ctx, order, handlers, request)
	case Hybrid:
		return resolveHybrid(ctx, order, handlers, request, merge)
	default:
		return nil, fmt.Errorf("unknown sampling strategy %q", cfg.Strategy)
	}
}

// resolveSequential tries order's endpoints one at a time, returning
// the first success. Used by the single-candidate strategies and the
// two fallback-chain strategies alike.
func resolveSequential(ctx context.Context, order []string, handlers map[string]SamplingHandler, request interface{}) (*Outcome, error) {
	var lastErr error
	attempted := make([]string, 0, len(order))
	for _, name := range order {
		h, ok := handlers[name]
		if !ok {
			lastErr = fmt.Errorf("no handler registered for endpoint %q", name)
			continue
		}
		attempted = append(attempted, name)
		result, err := h(ctx, request)
		if err == nil {
			return &Outcome{Result: result, Endpoint: name, Attempted: attempted}, nil
		}
		obslog.Warn("router-sampling", "endpoint %s failed: %v", name, err)
		lastErr = err
	}
	return nil, fmt.Errorf("all sampling endpoints failed (attempted %v): %w", attempted, lastErr)
}

type samplingOutcome struct {
	endpoint string
	rank     int
	result   interface{}
	err      error
}

// raceAll launches every endpoint in order concurrently and returns
// every outcome, in arrival order, once all have answered or ctx is
// cancelled by the caller.
func raceAll(ctx context.Context, order []string, handlers map[string]SamplingHandler, request interface{}) []samplingOutcome {
	var (
		mu  sync.Mutex
		out []samplingOutcome
	)
	g, gctx := errgroup.WithContext(ctx)
	for rank, name := range order {
		name, rank := name, rank
		h, ok := handlers[name]
		if !ok {
			mu.Lock()
			out = append(out, samplingOutcome{endpoint: name, rank: rank, err: fmt.Errorf("no handler registered for endpoint %q", name)})
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			result, err := h(gctx, request)
			mu.Lock()
			out = append(out, samplingOutcome{endpoint: name, rank: rank, result: result, err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// resolveParallel races every candidate in order and returns the
// first success encountered, cancelling the rest. Attempted is always
// the full order: every endpoint was launched, even if its result was
// discarded after another endpoint won the race.
func resolveParallel(ctx context.Context, order []string, handlers map[string]SamplingHandler, request interface{}) (*Outcome, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		endpoint string
		value    interface{}
		err      error
	}
	results := make(chan result, len(order))

	g, gctx := errgroup.WithContext(raceCtx)
	for _, name := range order {
		name := name
		h, ok := handlers[name]
		if !ok {
			results <- result{endpoint: name, err: fmt.Errorf("no handler registered for endpoint %q", name)}
			continue
		}
		g.Go(func() error {
			v, err := h(gctx, request)
			results <- result{endpoint: name, value: v, err: err}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	var lastErr error
	for r := range results {
		if r.err == nil {
			cancel()
			return &Outcome{Result: r.value, Endpoint: r.endpoint, Attempted: order}, nil
		}
		lastErr = r.err
	}
	return nil, fmt.Errorf("all sampling endpoints failed (attempted %v): %w", order, lastErr)
}

// resolveHybrid races every candidate in order, same as Parallel, but
// instead of returning on first success it waits for all of them,
// ranks the successes by their position in order, and asks merge to
// synthesize a single combined result — the behavior that
// distinguishes Hybrid from a plain first-success race.
func resolveHybrid(ctx context.Context, order []string, handlers map[string]SamplingHandler, request interface{}, merge MergeFunc) (*Outcome, error) {
	if merge == nil {
		return nil, fmt.Errorf("hybrid sampling strategy requires a merge function")
	}

	outcomes := raceAll(ctx, order, handlers, request)

	var ranked []RankedResponse
	var lastErr error
	for _, o := range outcomes {
		if o.err != nil {
			obslog.Warn("router-sampling", "endpoint %s failed: %v", o.endpoint, o.err)
			lastErr = o.err
			continue
		}
		ranked = append(ranked, RankedResponse{Endpoint: o.endpoint, Rank: o.rank, Result: o.result})
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("all sampling endpoints failed (attempted %v): %w", order, lastErr)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	merged, err := merge(ranked)
	if err != nil {
		return nil, fmt.Errorf("merging hybrid sampling responses: %w", err)
	}

	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.Endpoint
	}
	return &Outcome{Result: merged, Endpoint: fmt.Sprintf("hybrid(%v)", names), Attempted: order}, nil
}
