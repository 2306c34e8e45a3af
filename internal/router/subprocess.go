package router

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tunnelgate/gateway/internal/prompttpl"
	"github.com/tunnelgate/gateway/internal/registry"
)

// SubprocessExecutor dispatches a tool call by running a short-lived
// child process, templating command/args/env against the call
// arguments. Process launching is inherently a standard-library
// concern (os/exec); nothing in the retrieval pack wraps it.
type SubprocessExecutor struct {
	tmpl *prompttpl.Engine
}

func (e *SubprocessExecutor) Execute(ctx context.Context, entry *registry.ToolEntry, args map[string]interface{}) (*mcp.CallToolResult, error) {
	cap := entry.Capability
	argCtx := map[string]interface{}{"input": args}

	renderedArgs := make([]string, len(cap.Args))
	for i, a := range cap.Args {
		rendered, err := e.tmpl.Replace(a, argCtx)
		if err != nil {
			return nil, fmt.Errorf("templating arg %d: %w", i, err)
		}
		renderedArgs[i] = fmt.Sprintf("%v", rendered)
	}

	cmd := exec.CommandContext(ctx, cap.Command, renderedArgs...)
	if len(cap.Env) > 0 {
		env := cmd.Environ()
		for k, v := range cap.Env {
			rendered, err := e.tmpl.Replace(v, argCtx)
			if err != nil {
				return nil, fmt.Errorf("templating env %s: %w", k, err)
			}
			env = append(env, fmt.Sprintf("%s=%v", k, rendered))
		}
		cmd.Env = env
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := textResult(stdout.String())
	if err != nil {
		result.IsError = true
		result.Content = append(result.Content, mcp.TextContent{Type: "text", Text: "stderr: " + stderr.String()})
		return result, fmt.Errorf("subprocess %s: %w", cap.Command, err)
	}
	return result, nil
}
