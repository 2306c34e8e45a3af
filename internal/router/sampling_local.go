package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/tunnelgate/gateway/internal/llm"
)

// SamplingMessage is one turn of conversation passed to a
// sampling/createMessage or elicitation/create request, independent of
// any particular transport's wire representation.
type SamplingMessage struct {
	Role    string
	Content string
}

// SamplingRequest is the transport-agnostic shape ResolveSampling's
// callers build their request from. LocalSampler and SamplingForwarder
// implementations type-assert the interface{} they receive back to
// *SamplingRequest.
type SamplingRequest struct {
	SystemPrompt string
	Messages     []SamplingMessage
	MaxTokens    int
}

// SamplingResponse is what every sampling endpoint, local or forwarded,
// answers with.
type SamplingResponse struct {
	Role    string
	Content string
	Model   string
}

// LLMSampler answers a SamplingRequest with the gateway's own LLM
// integration — the "magictunnel" endpoint's concrete implementation.
type LLMSampler struct {
	provider   *llm.Provider
	modelLabel string
}

// NewLLMSampler adapts provider, already constructed for one backend,
// into a LocalSampler.
func NewLLMSampler(provider *llm.Provider, modelLabel string) *LLMSampler {
	return &LLMSampler{provider: provider, modelLabel: modelLabel}
}

// Sample implements LocalSampler.
func (s *LLMSampler) Sample(ctx context.Context, request interface{}) (interface{}, error) {
	req, ok := request.(*SamplingRequest)
	if !ok {
		return nil, fmt.Errorf("llm sampler: unsupported request type %T", request)
	}

	var turns strings.Builder
	for _, m := range req.Messages {
		fmt.Fprintf(&turns, "%s: %s\n", m.Role, m.Content)
	}

	content, err := s.provider.Complete(ctx, req.SystemPrompt, turns.String())
	if err != nil {
		return nil, fmt.Errorf("llm sampler: %w", err)
	}
	return &SamplingResponse{Role: "assistant", Content: content, Model: s.modelLabel}, nil
}

// multiProviderForwarder implements SamplingForwarder over a set of
// additional named LLM backends (GatewayConfig.LLMProviders), racing or
// chaining them the same way MagictunnelHandled reaches the primary
// provider. It has no way to reach the "client" endpoint: mark3labs/mcp-go,
// the gateway's MCP library, exposes no server-session API for a
// gateway to initiate a reverse sampling/createMessage call against a
// connected client, so forwarding to "client" returns an error rather
// than a fabricated implementation.
type multiProviderForwarder struct {
	samplers map[string]*LLMSampler
}

// NewMultiProviderForwarder builds a SamplingForwarder over the given
// named LLM providers, used to satisfy priority_order entries other
// than the reserved "client" name.
func NewMultiProviderForwarder(samplers map[string]*LLMSampler) SamplingForwarder {
	return &multiProviderForwarder{samplers: samplers}
}

// ForwardSampling implements SamplingForwarder.
func (f *multiProviderForwarder) ForwardSampling(ctx context.Context, endpoint string, request interface{}) (interface{}, error) {
	if endpoint == "client" {
		return nil, fmt.Errorf("forwarding sampling requests to the connected client is not supported by this gateway's MCP transport")
	}
	sampler, ok := f.samplers[endpoint]
	if !ok {
		return nil, fmt.Errorf("no LLM provider configured for sampling endpoint %q", endpoint)
	}
	return sampler.Sample(ctx, request)
}
