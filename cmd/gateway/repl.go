package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

var replEndpoint string

// newReplCmd opens an interactive session against a running gateway's
// streamable-HTTP endpoint: list tools/resources/prompts and call them
// by hand, with history and tab completion.
func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactively explore and call a running gateway's catalog",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}
	cmd.Flags().StringVar(&replEndpoint, "endpoint", "http://localhost:8080/mcp", "gateway streamable-HTTP endpoint")
	return cmd
}

func runRepl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := mcpclient.NewStreamableHttpClient(replEndpoint)
	if err != nil {
		return fmt.Errorf("dial %s: %w", replEndpoint, err)
	}
	defer c.Close()
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = "2025-06-18"
	initReq.Params.ClientInfo = mcp.Implementation{Name: "tunnelgate-client", Version: rootCmd.Version}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	historyFile := filepath.Join(os.TempDir(), ".tunnelgate_client_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tunnelgate » ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "connected. type 'help' for commands, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		fields := strings.Fields(input)
		cmdName, rest := fields[0], fields[1:]

		switch cmdName {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(out, "commands: list tools | list resources | list prompts | call <name> <json-args> | get <uri> | prompt <name> <json-args> | exit")
		case "list":
			if err := handleList(ctx, c, out, rest); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "call":
			if len(rest) < 1 {
				fmt.Fprintln(out, "usage: call <tool-name> [json-args]")
				continue
			}
			if err := handleCall(ctx, c, out, rest[0], strings.Join(rest[1:], " ")); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "get":
			if len(rest) != 1 {
				fmt.Fprintln(out, "usage: get <uri>")
				continue
			}
			if err := handleGet(ctx, c, out, rest[0]); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "prompt":
			if len(rest) < 1 {
				fmt.Fprintln(out, "usage: prompt <name> [json-args]")
				continue
			}
			if err := handlePrompt(ctx, c, out, rest[0], strings.Join(rest[1:], " ")); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		default:
			fmt.Fprintf(out, "unknown command %q, type 'help'\n", cmdName)
		}
	}
}

func handleList(ctx context.Context, c mcpclient.MCPClient, out io.Writer, args []string) error {
	kind := "tools"
	if len(args) > 0 {
		kind = args[0]
	}
	switch kind {
	case "tools":
		res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return err
		}
		for _, t := range res.Tools {
			fmt.Fprintf(out, "%-30s %s\n", t.Name, t.Description)
		}
	case "resources":
		res, err := c.ListResources(ctx, mcp.ListResourcesRequest{})
		if err != nil {
			return err
		}
		for _, r := range res.Resources {
			fmt.Fprintf(out, "%-40s %s\n", r.URI, r.Name)
		}
	case "prompts":
		res, err := c.ListPrompts(ctx, mcp.ListPromptsRequest{})
		if err != nil {
			return err
		}
		for _, p := range res.Prompts {
			fmt.Fprintf(out, "%-30s %s\n", p.Name, p.Description)
		}
	default:
		return fmt.Errorf("unknown list kind %q (want tools, resources, or prompts)", kind)
	}
	return nil
}

func handleCall(ctx context.Context, c mcpclient.MCPClient, out io.Writer, name, jsonArgs string) error {
	args := map[string]interface{}{}
	if jsonArgs != "" {
		if err := json.Unmarshal([]byte(jsonArgs), &args); err != nil {
			return fmt.Errorf("parsing args: %w", err)
		}
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := c.CallTool(ctx, req)
	if err != nil {
		return err
	}
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			fmt.Fprintln(out, text.Text)
		}
	}
	return nil
}

func handleGet(ctx context.Context, c mcpclient.MCPClient, out io.Writer, uri string) error {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	result, err := c.ReadResource(ctx, req)
	if err != nil {
		return err
	}
	for _, content := range result.Contents {
		if text, ok := content.(mcp.TextResourceContents); ok {
			fmt.Fprintln(out, text.Text)
		}
	}
	return nil
}

func handlePrompt(ctx context.Context, c mcpclient.MCPClient, out io.Writer, name, jsonArgs string) error {
	args := map[string]string{}
	if jsonArgs != "" {
		if err := json.Unmarshal([]byte(jsonArgs), &args); err != nil {
			return fmt.Errorf("parsing args: %w", err)
		}
	}
	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := c.GetPrompt(ctx, req)
	if err != nil {
		return err
	}
	for _, msg := range result.Messages {
		if text, ok := msg.Content.(mcp.TextContent); ok {
			fmt.Fprintf(out, "[%s] %s\n", msg.Role, text.Text)
		}
	}
	return nil
}
