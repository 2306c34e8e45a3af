// Package llm provides the gateway's single LLM entry point, wrapping
// any-llm-go so the discovery pipeline (C6) and MagictunnelHandled
// sampling (C5) share one provider abstraction instead of bespoke
// per-backend clients.
package llm

import (
	"context"
	"fmt"

	anyllm "github.com/mozilla-ai/any-llm-go"

	"github.com/tunnelgate/gateway/internal/config"
)

// Provider is a thin facade over any-llm-go's unified client,
// constructed for exactly one configured backend.
type Provider struct {
	inner *anyllm.Provider
	model string
}

// New builds a Provider for the backend named in cfg, following the
// per-backend constructor switch any-llm-go's callers use.
func New(cfg config.LLMProviderConfig, apiKey string) (*Provider, error) {
	opts := anyllm.Options{
		APIKey:  apiKey,
		BaseURL: cfg.BaseURL,
	}

	var (
		inner *anyllm.Provider
		err   error
	)
	switch cfg.Backend {
	case "openai":
		inner, err = anyllm.NewOpenAI(opts)
	case "anthropic":
		inner, err = anyllm.NewAnthropic(opts)
	case "gemini":
		inner, err = anyllm.NewGemini(opts)
	case "ollama":
		inner, err = anyllm.NewOllama(opts)
	case "deepseek":
		inner, err = anyllm.NewDeepSeek(opts)
	case "mistral":
		inner, err = anyllm.NewMistral(opts)
	case "groq":
		inner, err = anyllm.NewGroq(opts)
	case "llamacpp":
		inner, err = anyllm.NewLlamaCpp(opts)
	default:
		return nil, fmt.Errorf("unsupported llm backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("constructing %s provider: %w", cfg.Backend, err)
	}

	return &Provider{inner: inner, model: cfg.Model}, nil
}

// Complete runs a single-turn completion, used for tool-selection
// scoring and argument synthesis in C6.
func (p *Provider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.inner.Complete(ctx, anyllm.CompletionParams{
		Model: p.model,
		Messages: []anyllm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	return resp.Content, nil
}

// Embed returns an embedding vector for text, used by the discovery
// pipeline's semantic scorer.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.inner.Embed(ctx, anyllm.EmbeddingParams{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("llm embedding: %w", err)
	}
	return resp.Vector, nil
}

// CountTokens estimates token usage for budget-aware argument synthesis
// prompts.
func (p *Provider) CountTokens(text string) (int, error) {
	return p.inner.CountTokens(text)
}
