// Package gateway implements C1: hosting the registry's merged tool,
// resource, and prompt catalog over every configured wire transport
// and dispatching calls through the router.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tunnelgate/gateway/internal/config"
	"github.com/tunnelgate/gateway/internal/obslog"
	"github.com/tunnelgate/gateway/internal/prompts"
	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/resources"
	"github.com/tunnelgate/gateway/internal/roots"
	"github.com/tunnelgate/gateway/internal/router"
)

// Server wires the registry's catalog into an mcp-go server instance
// and exposes it over stdio, SSE, streamable-HTTP, websocket, and gRPC
// simultaneously, per the configured TransportsConfig.
type Server struct {
	cfg    config.TransportsConfig
	reg    *registry.Registry
	router *router.Router
	roots  *roots.Service
	res    *resources.Resolver
	pr     *prompts.Service

	mcpServer *mcpserver.MCPServer

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	httpServers  []*http.Server
	stdioServer  *mcpserver.StdioServer
	wsServer     *wsServer
	grpcServer   *grpcServer
	shuttingDown bool

	catalogMu    sync.Mutex
	lastTools    map[string]struct{}
	lastPrompts  map[string]struct{}
	lastResources map[string]struct{}
}

func New(cfg config.TransportsConfig, reg *registry.Registry, rt *router.Router, rootsSvc *roots.Service, res *resources.Resolver, pr *prompts.Service) *Server {
	return &Server{cfg: cfg, reg: reg, router: rt, roots: rootsSvc, res: res, pr: pr}
}

// Start builds the mcp-go server with every capability enabled,
// registers the registry's current catalog, subscribes to further
// registry updates, and starts every transport named as enabled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.mcpServer != nil {
		s.mu.Unlock()
		return fmt.Errorf("gateway server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.mcpServer = mcpserver.NewMCPServer(
		"tunnelgate",
		"0.1.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithToolFilter(s.toolFilter),
	)
	s.mu.Unlock()

	s.syncCatalog()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchRegistry()
	}()

	return s.startTransports()
}

// toolFilter is mcp-go's WithToolFilter hook. It only narrows what
// tools/list advertises: mcp-go has no equivalent hook on CallTool, so
// hidden-but-enabled tools stay registered as handlers (see
// syncCatalog) and remain callable by name even though they're
// filtered out here.
func (s *Server) toolFilter(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	visible := make(map[string]struct{}, len(tools))
	for _, t := range s.reg.ListVisible() {
		visible[t.Name] = struct{}{}
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if _, ok := visible[t.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) watchRegistry() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.reg.Updates():
			s.syncCatalog()
		}
	}
}

// syncCatalog diffs the registry's current state against what was
// last registered and issues the corresponding Add/Delete calls,
// mirroring how the teacher's addNewItems/removeObsoleteItems pair
// reconciles its active-item managers against a changed backend set.
// mcp-go has no batch resource-removal method, so resources are
// removed one URI at a time via RemoveResource.
func (s *Server) syncCatalog() {
	s.mu.Lock()
	mcpSrv := s.mcpServer
	s.mu.Unlock()
	if mcpSrv == nil {
		return
	}

	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	tools := s.reg.ListCallable()
	nextTools := make(map[string]struct{}, len(tools))
	var toolsToAdd []mcpserver.ServerTool
	for _, t := range tools {
		name := t.Name
		nextTools[name] = struct{}{}
		if _, ok := s.lastTools[name]; !ok {
			toolsToAdd = append(toolsToAdd, mcpserver.ServerTool{Tool: t, Handler: s.toolHandler(name)})
		}
	}
	var toolsToRemove []string
	for name := range s.lastTools {
		if _, ok := nextTools[name]; !ok {
			toolsToRemove = append(toolsToRemove, name)
		}
	}
	if len(toolsToRemove) > 0 {
		mcpSrv.DeleteTools(toolsToRemove...)
	}
	if len(toolsToAdd) > 0 {
		mcpSrv.AddTools(toolsToAdd...)
	}
	s.lastTools = nextTools

	resourceList := s.reg.ListResources()
	nextResources := make(map[string]struct{}, len(resourceList))
	var resourcesToAdd []mcpserver.ServerResource
	for _, r := range resourceList {
		uri := r.URI
		nextResources[uri] = struct{}{}
		if _, ok := s.lastResources[uri]; !ok {
			resourcesToAdd = append(resourcesToAdd, mcpserver.ServerResource{Resource: r, Handler: s.resourceHandler(uri)})
		}
	}
	for uri := range s.lastResources {
		if _, ok := nextResources[uri]; !ok {
			mcpSrv.RemoveResource(uri)
		}
	}
	if len(resourcesToAdd) > 0 {
		mcpSrv.AddResources(resourcesToAdd...)
	}
	s.lastResources = nextResources

	promptList := s.pr.List()
	promptList = append(promptList, s.reg.ListPrompts()...)
	nextPrompts := make(map[string]struct{}, len(promptList))
	var promptsToAdd []mcpserver.ServerPrompt
	for _, p := range promptList {
		name := p.Name
		nextPrompts[name] = struct{}{}
		if _, ok := s.lastPrompts[name]; !ok {
			promptsToAdd = append(promptsToAdd, mcpserver.ServerPrompt{Prompt: p, Handler: s.promptHandler(name)})
		}
	}
	var promptsToRemove []string
	for name := range s.lastPrompts {
		if _, ok := nextPrompts[name]; !ok {
			promptsToRemove = append(promptsToRemove, name)
		}
	}
	if len(promptsToRemove) > 0 {
		mcpSrv.DeletePrompts(promptsToRemove...)
	}
	if len(promptsToAdd) > 0 {
		mcpSrv.AddPrompts(promptsToAdd...)
	}
	s.lastPrompts = nextPrompts

	obslog.Info("gateway", "catalog synced: %d tools, %d resources, %d prompts", len(tools), len(resourceList), len(promptList))
}

func (s *Server) toolHandler(name string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]interface{}{}
		if req.Params.Arguments != nil {
			if m, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = m
			}
		}
		return s.router.Dispatch(ctx, name, args)
	}
}

func (s *Server) resourceHandler(uri string) func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		content, err := s.res.Resolve(ctx, uri)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      content.URI,
				MIMEType: content.MIMEType,
				Text:     string(content.Data),
			},
		}, nil
	}
}

func (s *Server) promptHandler(name string) func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		args := make(map[string]interface{}, len(req.Params.Arguments))
		for k, v := range req.Params.Arguments {
			args[k] = v
		}
		rendered, err := s.pr.Render(name, args)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Messages: []mcp.PromptMessage{
				{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: rendered}},
			},
		}, nil
	}
}

// startTransports opens every transport enabled in cfg, preferring
// systemd-activated listeners over binding its own sockets when
// present, exactly as the teacher's aggregator does.
func (s *Server) startTransports() error {
	var systemdListeners []net.Listener
	byName, err := activation.ListenersWithNames()
	if err != nil {
		obslog.Warn("gateway", "systemd activation lookup failed: %v", err)
	} else {
		for name, ls := range byName {
			for i, l := range ls {
				obslog.Info("gateway", "systemd listener %d for %s", i, name)
				systemdListeners = append(systemdListeners, l)
			}
		}
	}
	useSystemd := len(systemdListeners) > 0

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Stdio.Enabled {
		if useSystemd {
			return fmt.Errorf("stdio transport cannot be combined with systemd socket activation")
		}
		s.stdioServer = mcpserver.NewStdioServer(s.mcpServer)
		stdio := s.stdioServer
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := stdio.Listen(s.ctx, os.Stdin, os.Stdout); err != nil {
				obslog.Error("gateway", err, "stdio transport error")
			}
		}()
	}

	if s.cfg.SSE.Enabled {
		baseURL := fmt.Sprintf("http://%s:%d", s.cfg.SSE.Host, s.cfg.SSE.Port)
		sse := mcpserver.NewSSEServer(
			s.mcpServer,
			mcpserver.WithBaseURL(baseURL),
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
			mcpserver.WithKeepAlive(true),
			mcpserver.WithKeepAliveInterval(30*time.Second),
		)
		if err := s.serveHTTP(sse, s.cfg.SSE, systemdListeners, useSystemd, "SSE"); err != nil {
			return err
		}
	}

	if s.cfg.HTTP.Enabled {
		streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer)
		if err := s.serveHTTP(streamable, s.cfg.HTTP, systemdListeners, useSystemd, "streamable-HTTP"); err != nil {
			return err
		}
	}

	if s.cfg.WebSocket.Enabled {
		ws := newWSServer(s.mcpServer, s.reg, s.router)
		s.wsServer = ws
		addr := fmt.Sprintf("%s:%d", s.cfg.WebSocket.Host, s.cfg.WebSocket.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen websocket transport: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := ws.Serve(s.ctx, ln); err != nil {
				obslog.Error("gateway", err, "websocket transport error")
			}
		}()
	}

	if s.cfg.GRPC.Enabled {
		gs := newGRPCServer(s.reg, s.router)
		s.grpcServer = gs
		addr := fmt.Sprintf("%s:%d", s.cfg.GRPC.Host, s.cfg.GRPC.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen grpc transport: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := gs.Serve(ln); err != nil {
				obslog.Error("gateway", err, "grpc transport error")
			}
		}()
	}

	return nil
}

// httpHandler is the subset of *mcpserver.SSEServer / *mcpserver.StreamableHTTPServer
// this package depends on.
type httpHandler interface {
	http.Handler
}

func (s *Server) serveHTTP(handler httpHandler, cfg config.NetTransportConfig, systemdListeners []net.Listener, useSystemd bool, label string) error {
	if useSystemd {
		for i, ln := range systemdListeners {
			srv := &http.Server{Handler: handler}
			s.httpServers = append(s.httpServers, srv)
			go func(srv *http.Server, ln net.Listener, i int) {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					obslog.Error("gateway", err, "listener %d: %s server error", i, label)
				}
			}(srv, ln, i)
		}
		return nil
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: handler}
	s.httpServers = append(s.httpServers, srv)
	obslog.Info("gateway", "starting %s transport on %s", label, addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obslog.Error("gateway", err, "%s server error", label)
		}
	}()
	return nil
}

// Stop shuts down every transport and waits for background routines.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.shuttingDown || s.mcpServer == nil {
		s.mu.Unlock()
		return nil
	}
	s.shuttingDown = true
	cancel := s.cancel
	httpServers := s.httpServers
	ws := s.wsServer
	gs := s.grpcServer
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	shutdownCtx, done := context.WithTimeout(ctx, 5*time.Second)
	defer done()
	for _, srv := range httpServers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			obslog.Warn("gateway", "http transport shutdown: %v", err)
		}
	}
	if ws != nil {
		ws.Close()
	}
	if gs != nil {
		gs.Stop()
	}

	s.wg.Wait()

	s.mu.Lock()
	s.mcpServer = nil
	s.httpServers = nil
	s.stdioServer = nil
	s.wsServer = nil
	s.grpcServer = nil
	s.mu.Unlock()
	return nil
}
