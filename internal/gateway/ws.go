package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tunnelgate/gateway/internal/obslog"
	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/router"
)

// wsServer exposes the same JSON-RPC 2.0 method set the upstream
// WebSocketClient speaks, in reverse: it is the gateway's own
// websocket listener, since mcp-go ships no websocket transport of
// its own. Requests are served directly off the registry and router
// rather than through the mcp-go server instance, since that type's
// transport-facing API is built around its own SSE/stdio/streamable
// listeners.
type wsServer struct {
	mcpSrv *mcpserver.MCPServer
	reg    *registry.Registry
	router *router.Router
	up     websocket.Upgrader
	httpSrv *http.Server
}

func newWSServer(mcpSrv *mcpserver.MCPServer, reg *registry.Registry, rt *router.Router) *wsServer {
	return &wsServer{
		mcpSrv: mcpSrv,
		reg:    reg,
		router: rt,
		up:     websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}
}

func (s *wsServer) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	s.httpSrv = &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		_ = s.httpSrv.Close()
	}()
	err := s.httpSrv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *wsServer) Close() {
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
}

type wsRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type wsResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *wsError        `json:"error,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *wsServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		obslog.Warn("gateway-websocket", "upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		resp := s.dispatch(r.Context(), req)
		payload, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (s *wsServer) dispatch(ctx context.Context, req wsRequest) wsResponse {
	resp := wsResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = mcp.InitializeResult{
			ProtocolVersion: "2025-06-18",
			ServerInfo:      mcp.Implementation{Name: "tunnelgate", Version: "0.1.0"},
		}
	case "ping":
		resp.Result = struct{}{}
	case "tools/list":
		resp.Result = mcp.ListToolsResult{Tools: s.reg.ListVisible()}
	case "resources/list":
		resp.Result = mcp.ListResourcesResult{Resources: s.reg.ListResources()}
	case "prompts/list":
		resp.Result = mcp.ListPromptsResult{Prompts: s.reg.ListPrompts()}
	case "tools/call":
		var p mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			resp.Error = &wsError{Code: -32602, Message: err.Error()}
			return resp
		}
		args, _ := p.Arguments.(map[string]interface{})
		result, err := s.router.Dispatch(ctx, p.Name, args)
		if err != nil {
			resp.Error = &wsError{Code: -32000, Message: err.Error()}
			return resp
		}
		resp.Result = result
	default:
		resp.Error = &wsError{Code: -32601, Message: "method not found: " + req.Method}
	}
	return resp
}
