package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tunnelgate/gateway/internal/prompttpl"
	"github.com/tunnelgate/gateway/internal/registry"
)

// GraphQLExecutor posts a templated query/variables document to the
// capability's configured endpoint. No GraphQL client library appears
// anywhere in the retrieval pack, so this follows REST's net/http
// idiom rather than introducing an unreviewed dependency.
type GraphQLExecutor struct {
	tmpl *prompttpl.Engine
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

func (e *GraphQLExecutor) Execute(ctx context.Context, entry *registry.ToolEntry, args map[string]interface{}) (*mcp.CallToolResult, error) {
	cap := entry.Capability

	payload := graphqlRequest{Query: cap.GraphQLQuery, Variables: args}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cap.GraphQLEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading graphql response: %w", err)
	}

	result := textResult(string(body))
	if resp.StatusCode >= 400 {
		result.IsError = true
	}
	return result, nil
}
