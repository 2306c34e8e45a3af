package client

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tunnelgate/gateway/internal/upstream/client/oauthx"
)

// StreamableHTTPClient speaks MCP over the streamable-HTTP transport: a
// single HTTP endpoint that upgrades to chunked streaming for
// server-initiated messages.
type StreamableHTTPClient struct {
	baseClient
	url     string
	headers map[string]string
	oauth   *oauthx.Exchanger
}

func NewStreamableHTTPClient(name, url string, headers map[string]string, oauth *oauthx.Exchanger) *StreamableHTTPClient {
	return &StreamableHTTPClient{baseClient: baseClient{name: name}, url: url, headers: headers, oauth: oauth}
}

func (c *StreamableHTTPClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	headers := c.headers
	if c.oauth != nil {
		token, err := c.oauth.Token(ctx)
		if err != nil {
			return fmt.Errorf("oauth token for upstream %s: %w", c.name, err)
		}
		if headers == nil {
			headers = map[string]string{}
		}
		headers["Authorization"] = "Bearer " + token
	}

	var opts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return fmt.Errorf("dial streamable-http upstream %s: %w", c.name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("start streamable-http upstream %s: %w", c.name, err)
	}

	if err := initializeHandshake(ctx, c.name, mcpClient); err != nil {
		return err
	}

	c.inner = mcpClient
	c.connected = true
	return nil
}

func (c *StreamableHTTPClient) Close() error { return c.closeClient() }
func (c *StreamableHTTPClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.listTools(ctx)
}
func (c *StreamableHTTPClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}
func (c *StreamableHTTPClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}
func (c *StreamableHTTPClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}
func (c *StreamableHTTPClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}
func (c *StreamableHTTPClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}
func (c *StreamableHTTPClient) Ping(ctx context.Context) error { return c.ping(ctx) }
