// Package discovery implements C6: smart tool discovery over the
// registry's catalog, scoring candidate tools against a natural
// language query via rule-based keyword matching, semantic embedding
// similarity, and/or LLM judgement, then synthesizing call arguments
// for the chosen tool.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/llm"
	"github.com/tunnelgate/gateway/internal/obslog"
	"github.com/tunnelgate/gateway/internal/registry"
)

// Mode selects which scorers contribute to a query's ranking.
type Mode string

const (
	ModeRule     Mode = "rule"
	ModeSemantic Mode = "semantic"
	ModeLLM      Mode = "llm"
	ModeHybrid   Mode = "hybrid"
)

// Candidate is one scored tool, returned in descending Score order.
type Candidate struct {
	Tool       mcp.Tool
	Score      float64
	RuleScore  float64
	SemScore   float64
	LLMScore   float64
	Reason     string
}

// llmClient is the subset of llm.Provider the pipeline depends on,
// narrowed to an interface so tests can substitute a fake for
// argument-synthesis retry scenarios without a live backend.
type llmClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Pipeline runs the configured scorers over the registry's tool list
// and gates results by confidence before returning them.
type Pipeline struct {
	reg   *registry.Registry
	cfg   config.DiscoveryConfig
	store *EmbeddingStore
	llm   llmClient
	cache *enhancementCache
}

func New(reg *registry.Registry, cfg config.DiscoveryConfig, store *EmbeddingStore, provider *llm.Provider) *Pipeline {
	p := &Pipeline{reg: reg, cfg: cfg, store: store, cache: newEnhancementCache()}
	// provider is a typed *llm.Provider; assigning a nil one directly to
	// the llmClient interface field would produce a non-nil interface
	// holding a nil pointer, breaking every "p.llm != nil" guard below.
	if provider != nil {
		p.llm = provider
	}
	reg.Updates()
	return p
}

// InvalidateOnChange is wired to upstream.Manager.OnCapabilityChange so
// a tool's cached LLM relevance judgements are dropped whenever its
// definition changes; stored embeddings are left as they are.
func (p *Pipeline) InvalidateOnChange(toolName string) {
	p.cache.invalidate(toolName)
}

// Discover scores every callable tool against query and returns the
// candidates clearing the configured confidence gate, best first.
func (p *Pipeline) Discover(ctx context.Context, query string, topK int) ([]Candidate, error) {
	tools := p.reg.ListCallable()
	if len(tools) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(tools))
	for _, t := range tools {
		c := Candidate{Tool: t}

		mode := Mode(p.cfg.Mode)
		if mode == ModeRule || mode == ModeHybrid {
			c.RuleScore = ruleScore(query, t)
		}
		if (mode == ModeSemantic || mode == ModeHybrid) && p.store != nil {
			score, err := p.semanticScore(ctx, query, t)
			if err != nil {
				obslog.Warn("discovery", "semantic score for %s: %v", t.Name, err)
			} else {
				c.SemScore = score
			}
		}
		if (mode == ModeLLM || mode == ModeHybrid) && p.llm != nil {
			score, reason, err := p.llmScore(ctx, query, t)
			if err != nil {
				obslog.Warn("discovery", "llm score for %s: %v", t.Name, err)
			} else {
				c.LLMScore = score
				c.Reason = reason
			}
		}

		switch mode {
		case ModeRule:
			c.Score = c.RuleScore
		case ModeSemantic:
			c.Score = c.SemScore
		case ModeLLM:
			c.Score = c.LLMScore
		case ModeHybrid:
			c.Score = p.cfg.RuleWeight*c.RuleScore + p.cfg.SemanticWeight*c.SemScore + p.cfg.LLMWeight*c.LLMScore
		default:
			return nil, fmt.Errorf("unknown discovery mode %q", p.cfg.Mode)
		}

		if c.Score >= p.cfg.ConfidenceGate {
			candidates = append(candidates, c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// ruleScore is a keyword-overlap heuristic: fraction of query terms
// found in the tool's name or description, weighted double for name
// hits.
func ruleScore(query string, t mcp.Tool) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	name := strings.ToLower(t.Name)
	desc := strings.ToLower(t.Description)

	var hits float64
	for _, term := range terms {
		switch {
		case strings.Contains(name, term):
			hits += 2
		case strings.Contains(desc, term):
			hits += 1
		}
	}
	return hits / (2 * float64(len(terms)))
}

// semanticScore embeds query, lazily embeds+caches the tool's
// description, and returns their cosine similarity from the store.
func (p *Pipeline) semanticScore(ctx context.Context, query string, t mcp.Tool) (float64, error) {
	queryVec, err := p.llm.Embed(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("embedding query: %w", err)
	}

	score, ok, err := p.store.Similarity(ctx, t.Name, queryVec)
	if err != nil {
		return 0, err
	}
	if ok {
		return score, nil
	}

	toolVec, err := p.llm.Embed(ctx, t.Name+" — "+t.Description)
	if err != nil {
		return 0, fmt.Errorf("embedding tool %s: %w", t.Name, err)
	}
	if err := p.store.Upsert(ctx, t.Name, toolVec); err != nil {
		obslog.Warn("discovery", "caching embedding for %s: %v", t.Name, err)
	}
	return cosineSimilarity(queryVec, toolVec), nil
}

// llmScore asks the configured LLM to judge relevance of a tool to the
// query on a 0-1 scale, returning its stated reason alongside.
func (p *Pipeline) llmScore(ctx context.Context, query string, t mcp.Tool) (float64, string, error) {
	if cached, ok := p.cache.get(t.Name, query); ok {
		return cached.score, cached.reason, nil
	}

	system := "You judge whether a tool is relevant to a user's request. " +
		"Reply with exactly two lines: a score from 0.0 to 1.0, then a one-sentence reason."
	user := fmt.Sprintf("Request: %s\nTool: %s\nDescription: %s", query, t.Name, t.Description)

	reply, err := p.llm.Complete(ctx, system, user)
	if err != nil {
		return 0, "", err
	}

	score, reason := parseScoreReply(reply)
	p.cache.put(t.Name, query, score, reason)
	return score, reason, nil
}

func parseScoreReply(reply string) (float64, string) {
	lines := strings.SplitN(strings.TrimSpace(reply), "\n", 2)
	var score float64
	fmt.Sscanf(strings.TrimSpace(lines[0]), "%f", &score)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	reason := ""
	if len(lines) > 1 {
		reason = strings.TrimSpace(lines[1])
	}
	return score, reason
}
