// Package dashboard implements C10: read-mostly JSON introspection over
// the registry, upstream manager, and audit pipeline, plus forwarding
// of control operations to the supervisor.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tunnelgate/gateway/internal/audit"
	"github.com/tunnelgate/gateway/internal/discovery"
	"github.com/tunnelgate/gateway/internal/registry"
	"github.com/tunnelgate/gateway/internal/router"
	"github.com/tunnelgate/gateway/internal/upstream"
)

// Server exposes the dashboard's HTTP surface. The HTML/JS frontend
// itself is out of scope; this is the JSON API a CLI or external UI
// consumes.
type Server struct {
	reg         *registry.Registry
	upstreams   *upstream.Manager
	auditor     *audit.Pipeline
	discovery   *discovery.Pipeline
	router      *router.Router
	controlDial func(ctx context.Context, req interface{}) (interface{}, error)
}

func New(reg *registry.Registry, upstreams *upstream.Manager, auditor *audit.Pipeline, disco *discovery.Pipeline, rt *router.Router, controlDial func(ctx context.Context, req interface{}) (interface{}, error)) *Server {
	return &Server{reg: reg, upstreams: upstreams, auditor: auditor, discovery: disco, router: rt, controlDial: controlDial}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tools", s.handleTools)
	mux.HandleFunc("/api/upstreams", s.handleUpstreams)
	mux.HandleFunc("/api/audit", s.handleAudit)
	mux.HandleFunc("/api/discovery", s.handleDiscovery)
	mux.HandleFunc("/api/sampling", s.handleSampling)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/api/control/schema", s.handleControlSchema)
	return mux
}

func (s *Server) handleControlSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := ControlRequestSchema(struct {
		Token   string      `json:"token"`
		Command string      `json:"command"`
		Payload interface{} `json:"payload,omitempty"`
	}{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, schema)
}

// toolView is the dashboard's JSON shape for one registered tool,
// exposing the enabled/hidden bits the catalog endpoints themselves
// never surface.
type toolView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Enabled     bool   `json:"enabled"`
	Hidden      bool   `json:"hidden"`
	Destructive bool   `json:"destructive"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	entries := s.reg.ListAll()
	out := make([]toolView, 0, len(entries))
	for _, e := range entries {
		out = append(out, toolView{
			Name:        e.Tool.Name,
			Description: e.Tool.Description,
			Source:      string(e.Source),
			Enabled:     e.Enabled,
			Hidden:      e.Hidden,
			Destructive: e.Destructive,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleUpstreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.upstreams.Snapshot())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{
		ToolName: r.URL.Query().Get("tool"),
		CELExpr:  r.URL.Query().Get("filter"),
		Limit:    100,
	}
	records, err := s.auditor.Query(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.discovery == nil {
		http.Error(w, "discovery pipeline disabled", http.StatusServiceUnavailable)
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	candidates, err := s.discovery.Discover(ctx, query, 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, candidates)
}

// samplingRequestBody is the dashboard's wire shape for a
// sampling/createMessage-style request, decoded into a
// router.SamplingRequest before being handed to the strategy engine.
type samplingRequestBody struct {
	Upstream     string `json:"upstream"`
	SystemPrompt string `json:"systemPrompt"`
	Messages     []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// handleSampling resolves a sampling/createMessage request against the
// named upstream's configured strategy — the entry point through which
// an upstream-facing caller (or an operator testing a strategy
// configuration) actually exercises C5's strategy engine, rather than
// it being reachable only from unit tests.
func (s *Server) handleSampling(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		http.Error(w, "router unavailable", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body samplingRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := &router.SamplingRequest{SystemPrompt: body.SystemPrompt}
	for _, m := range body.Messages {
		req.Messages = append(req.Messages, router.SamplingMessage{Role: m.Role, Content: m.Content})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	out, err := s.router.HandleSampling(ctx, body.Upstream, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, out)
}

// handleControl forwards a JSON-bodied control request to the
// supervisor's control socket via controlDial, kept opaque here since
// the wire shape belongs to internal/supervisor.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := s.controlDial(r.Context(), body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
