package client

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// StdioClient speaks MCP over a child process's stdin/stdout.
type StdioClient struct {
	baseClient
	command string
	args    []string
	env     map[string]string
}

func NewStdioClient(name, command string, args []string, env map[string]string) *StdioClient {
	if env == nil {
		env = map[string]string{}
	}
	return &StdioClient{baseClient: baseClient{name: name}, command: command, args: args, env: env}
}

func (c *StdioClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	envStrings := make([]string, 0, len(c.env))
	for k, v := range c.env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(c.command, envStrings, c.args...)
	if err != nil {
		return fmt.Errorf("spawn stdio upstream %s: %w", c.name, err)
	}

	if err := initializeHandshake(ctx, c.name, mcpClient); err != nil {
		return err
	}

	c.inner = mcpClient
	c.connected = true
	return nil
}

func (c *StdioClient) Close() error { return c.closeClient() }
func (c *StdioClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }
func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}
func (c *StdioClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}
func (c *StdioClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}
func (c *StdioClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) { return c.listPrompts(ctx) }
func (c *StdioClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}
func (c *StdioClient) Ping(ctx context.Context) error { return c.ping(ctx) }
