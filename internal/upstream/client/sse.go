package client

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// SSEClient speaks MCP over Server-Sent Events: requests go out as
// plain HTTP POSTs, responses and server-initiated notifications arrive
// on the SSE stream and are correlated by id inside mcp-go's client.
type SSEClient struct {
	baseClient
	url     string
	headers map[string]string
}

func NewSSEClient(name, url string, headers map[string]string) *SSEClient {
	return &SSEClient{baseClient: baseClient{name: name}, url: url, headers: headers}
}

func (c *SSEClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	var opts []transport.ClientOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHeaders(c.headers))
	}

	mcpClient, err := client.NewSSEMCPClient(c.url, opts...)
	if err != nil {
		return fmt.Errorf("dial sse upstream %s: %w", c.name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start sse upstream %s: %w", c.name, err)
	}

	if err := initializeHandshake(ctx, c.name, mcpClient); err != nil {
		return err
	}

	c.inner = mcpClient
	c.connected = true
	return nil
}

func (c *SSEClient) Close() error { return c.closeClient() }
func (c *SSEClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }
func (c *SSEClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}
func (c *SSEClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}
func (c *SSEClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}
func (c *SSEClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) { return c.listPrompts(ctx) }
func (c *SSEClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}
func (c *SSEClient) Ping(ctx context.Context) error { return c.ping(ctx) }
