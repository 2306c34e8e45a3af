package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tunnelgate/gateway/internal/obslog"
)

// WebSocketClient speaks JSON-RPC 2.0 over a single bidirectional
// websocket connection. mcp-go's client package has no websocket
// transport, so this correlates requests and responses by id itself,
// the same shape mcp-go's internal transports use.
type WebSocketClient struct {
	name string
	url  string

	mu        sync.Mutex
	writeMu   sync.Mutex // serializes frame writes; mu guards connection state
	conn      *websocket.Conn
	connected bool
	nextID    atomic.Int64

	pending   sync.Map // int64 -> chan rpcResponse
	readerDone chan struct{}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

func NewWebSocketClient(name, url string) *WebSocketClient {
	return &WebSocketClient{name: name, url: url}
}

func (c *WebSocketClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial websocket upstream %s: %w", c.name, err)
	}
	c.conn = conn
	c.connected = true
	c.readerDone = make(chan struct{})
	go c.readLoop()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = "2025-06-18"
	req.Params.ClientInfo = mcp.Implementation{Name: "tunnelgate", Version: "0.1.0"}
	var result mcp.InitializeResult
	if err := c.call(ctx, "initialize", req.Params, &result); err != nil {
		_ = conn.Close()
		c.connected = false
		return fmt.Errorf("initialize handshake for %s: %w", c.name, err)
	}
	return nil
}

func (c *WebSocketClient) readLoop() {
	defer close(c.readerDone)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			obslog.Debug("upstream-websocket", "read loop for %s ended: %v", c.name, err)
			c.drainPending(err)
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			obslog.Warn("upstream-websocket", "malformed frame from %s: %v", c.name, err)
			continue
		}
		if ch, ok := c.pending.LoadAndDelete(resp.ID); ok {
			ch.(chan rpcResponse) <- resp
		}
	}
}

func (c *WebSocketClient) drainPending(err error) {
	c.pending.Range(func(key, value interface{}) bool {
		value.(chan rpcResponse) <- rpcResponse{ID: key.(int64), Error: &rpcError{Code: -32000, Message: err.Error()}}
		c.pending.Delete(key)
		return true
	})
}

func (c *WebSocketClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	id := c.nextID.Add(1)
	respCh := make(chan rpcResponse, 1)
	c.pending.Store(id, respCh)
	defer c.pending.Delete(id)

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && resp.Result != nil {
			return json.Unmarshal(resp.Result, out)
		}
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for response to %s", method)
	}
}

func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.conn.Close()
}

func (c *WebSocketClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	var result mcp.ListToolsResult
	if err := c.call(ctx, "tools/list", mcp.ListToolsRequest{}.Params, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (c *WebSocketClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	var result mcp.CallToolResult
	if err := c.call(ctx, "tools/call", req.Params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *WebSocketClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	var result mcp.ListResourcesResult
	if err := c.call(ctx, "resources/list", mcp.ListResourcesRequest{}.Params, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

func (c *WebSocketClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	var result mcp.ReadResourceResult
	if err := c.call(ctx, "resources/read", req.Params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *WebSocketClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	var result mcp.ListPromptsResult
	if err := c.call(ctx, "prompts/list", mcp.ListPromptsRequest{}.Params, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

func (c *WebSocketClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	stringArgs := make(map[string]string, len(args))
	for k, v := range args {
		stringArgs[k] = fmt.Sprintf("%v", v)
	}
	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = stringArgs
	var result mcp.GetPromptResult
	if err := c.call(ctx, "prompts/get", req.Params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *WebSocketClient) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", struct{}{}, nil)
}
