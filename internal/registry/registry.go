// Package registry implements C2: the in-memory catalog of tools,
// resources, and prompts visible to clients, merged from local
// capability files and connected upstream MCP servers, with
// conflict-resolution-policy-driven naming.
package registry

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tunnelgate/gateway/internal/obslog"
)

// ConflictResolutionPolicy controls how the registry names a tool whose
// name collides with one already registered from a different source.
type ConflictResolutionPolicy string

const (
	LocalFirst ConflictResolutionPolicy = "local_first"
	ProxyFirst ConflictResolutionPolicy = "proxy_first"
	Prefix     ConflictResolutionPolicy = "prefix"
	Reject     ConflictResolutionPolicy = "reject"
)

// Source identifies where a tool/resource/prompt definition came from.
type Source string

const (
	SourceLocal    Source = "local"    // defined by a capability YAML file
	SourceUpstream Source = "upstream" // discovered from an external MCP server
)

// ToolEntry is one registered tool plus the bookkeeping the registry
// needs to resolve calls and render override state.
type ToolEntry struct {
	Tool         mcp.Tool
	Source       Source
	OriginServer string // upstream name, empty for local tools
	OriginalName string // name before any conflict-resolution rename
	Enabled      bool
	Hidden       bool
	Destructive  bool
	Capability   *CapabilityTool // set for locally-defined tools, nil for upstream ones
}

// override holds out-of-band enabled/hidden bits set via the tool
// management API. A nil field means "no override, use the
// file/denylist-derived value"; overrides persist across capability
// reloads until explicitly cleared.
type override struct {
	enabled *bool
	hidden  *bool
}

func (o override) apply(enabled, hidden bool) (bool, bool) {
	if o.enabled != nil {
		enabled = *o.enabled
	}
	if o.hidden != nil {
		hidden = *o.hidden
	}
	return enabled, hidden
}

func (o override) isZero() bool { return o.enabled == nil && o.hidden == nil }

// Routing returns the tool's dispatch kind: the capability file's
// declared routing for local tools, or RoutingExternalMCP for anything
// sourced from an upstream server.
func (e *ToolEntry) Routing() RoutingKind {
	if e.Source == SourceUpstream || e.Capability == nil {
		return RoutingExternalMCP
	}
	return e.Capability.Routing
}

type ResourceEntry struct {
	Resource     mcp.Resource
	Source       Source
	OriginServer string
	OriginalName string
	Hidden       bool
}

type PromptEntry struct {
	Prompt       mcp.Prompt
	Source       Source
	OriginServer string
	OriginalName string
	Hidden       bool
}

// Registry is safe for concurrent use; every mutation goes through the
// single write lock and readers take a snapshot via the List* methods.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*ToolEntry
	resources map[string]*ResourceEntry
	prompts   map[string]*PromptEntry
	overrides map[string]override

	policy      ConflictResolutionPolicy
	gatewayPrefix string
	denylist    *Denylist
	yolo        bool

	updates chan struct{}
}

func New(policy ConflictResolutionPolicy, gatewayPrefix string, denylistPatterns []string, yolo bool) (*Registry, error) {
	dl, err := NewDenylist(denylistPatterns)
	if err != nil {
		return nil, fmt.Errorf("compile denylist: %w", err)
	}
	return &Registry{
		tools:         make(map[string]*ToolEntry),
		resources:     make(map[string]*ResourceEntry),
		prompts:       make(map[string]*PromptEntry),
		overrides:     make(map[string]override),
		policy:        policy,
		gatewayPrefix: gatewayPrefix,
		denylist:      dl,
		yolo:          yolo,
		updates:       make(chan struct{}, 1),
	}, nil
}

// Updates returns a channel that receives a notification (best-effort,
// coalesced) after every batch of registry mutations.
func (r *Registry) Updates() <-chan struct{} { return r.updates }

func (r *Registry) notify() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}

// resolveName applies the conflict resolution policy when a tool named
// originalName from originServer collides with an already-registered
// entry from a different origin.
func (r *Registry) resolveName(originalName string, source Source, originServer string) (string, error) {
	existing, taken := r.tools[originalName]
	if !taken || existing.OriginServer == originServer {
		return originalName, nil
	}

	switch r.policy {
	case LocalFirst:
		if source == SourceUpstream {
			return "", fmt.Errorf("rejected: %q already provided locally", originalName)
		}
		return originalName, nil
	case ProxyFirst:
		if source == SourceLocal {
			return "", fmt.Errorf("rejected: %q already provided by an upstream", originalName)
		}
		return originalName, nil
	case Prefix:
		return r.gatewayPrefix + "_" + originServer + "_" + originalName, nil
	case Reject:
		return "", fmt.Errorf("rejected: name %q conflicts under reject policy", originalName)
	default:
		return "", fmt.Errorf("unknown conflict resolution policy %q", r.policy)
	}
}

// PutTool inserts or replaces a tool definition, applying conflict
// resolution and denylist evaluation.
func (r *Registry) PutTool(t mcp.Tool, source Source, originServer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	originalName := t.Name
	exposedName, err := r.resolveName(originalName, source, originServer)
	if err != nil {
		return err
	}

	destructive := r.denylist.Matches(originalName)
	enabled, hidden := r.overrides[exposedName].apply(true, destructive && !r.yolo)
	t.Name = exposedName
	r.tools[exposedName] = &ToolEntry{
		Tool:         t,
		Source:       source,
		OriginServer: originServer,
		OriginalName: originalName,
		Destructive:  destructive,
		Enabled:      enabled,
		Hidden:       hidden,
	}
	r.notify()
	return nil
}

// PutLocalTool registers a capability-file-defined tool, converting its
// declared input schema into an mcp.Tool and keeping the routing
// configuration attached for the router to execute later.
func (r *Registry) PutLocalTool(capTool CapabilityTool, originFile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.putLocalToolLocked(capTool, originFile); err != nil {
		return err
	}
	r.notify()
	return nil
}

// putLocalToolLocked is the lock-held core of PutLocalTool, shared
// with ApplyBatch so a batch reload never releases the write lock
// between tools.
func (r *Registry) putLocalToolLocked(capTool CapabilityTool, originFile string) error {
	originalName := capTool.Name
	exposedName, err := r.resolveName(originalName, SourceLocal, originFile)
	if err != nil {
		return err
	}

	destructive := r.denylist.Matches(originalName)
	fileEnabled := capTool.Enabled == nil || *capTool.Enabled
	enabled, hidden := r.overrides[exposedName].apply(fileEnabled, capTool.Hidden || (destructive && !r.yolo))

	ct := capTool
	tool := mcp.Tool{
		Name:           exposedName,
		Description:    capTool.Description,
		RawInputSchema: schemaToRaw(capTool.InputSchema),
	}
	r.tools[exposedName] = &ToolEntry{
		Tool:         tool,
		Source:       SourceLocal,
		OriginServer: originFile,
		OriginalName: originalName,
		Destructive:  destructive,
		Enabled:      enabled,
		Hidden:       hidden,
		Capability:   &ct,
	}
	return nil
}

// ApplyBatch atomically replaces every tool previously registered from
// originFile with tools, under a single write lock: readers observe
// either the pre- or post-batch state, never a partial merge. Tools
// declared in a previous version of the file but absent from this
// batch are removed. A tool rejected by conflict resolution is skipped
// and reported in the returned map; the rest of the batch still
// applies.
func (r *Registry) ApplyBatch(originFile string, tools []CapabilityTool) map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := make(map[string]struct{}, len(tools))
	rejected := make(map[string]error)
	for _, t := range tools {
		if err := r.putLocalToolLocked(t, originFile); err != nil {
			rejected[t.Name] = err
			continue
		}
		keep[t.Name] = struct{}{}
	}

	for name, e := range r.tools {
		if e.OriginServer != originFile || e.Source != SourceLocal {
			continue
		}
		if _, ok := keep[e.OriginalName]; !ok {
			delete(r.tools, name)
		}
	}

	r.notify()
	if len(rejected) == 0 {
		return nil
	}
	return rejected
}

func schemaToRaw(schema map[string]interface{}) []byte {
	if schema == nil {
		schema = map[string]interface{}{"type": "object"}
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return []byte(`{"type":"object"}`)
	}
	return data
}

// RemoveToolsFromOrigin removes every tool registered from the given
// origin — used when an upstream disconnects or a capability file is
// removed.
func (r *Registry) RemoveToolsFromOrigin(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.tools {
		if e.OriginServer == origin {
			delete(r.tools, name)
		}
	}
	r.notify()
}

// ListCallable returns the callable view: every enabled tool,
// including hidden-but-enabled ones. Hidden tools are omitted from
// tools/list (ListVisible) but remain dispatchable by name.
func (r *Registry) ListCallable() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		if e.Enabled {
			out = append(out, e.Tool)
		}
	}
	return out
}

// ListVisible returns the visible view: enabled tools that are not
// hidden, the set a tools/list response should advertise.
func (r *Registry) ListVisible() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		if e.Enabled && !e.Hidden {
			out = append(out, e.Tool)
		}
	}
	return out
}

// ListAll returns every registered tool entry regardless of
// enabled/hidden state, for the tool management API.
func (r *Registry) ListAll() []*ToolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolEntry, 0, len(r.tools))
	for _, e := range r.tools {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// Resolve looks up a tool by its exposed name.
func (r *Registry) Resolve(name string) (*ToolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e, ok
}

// SetHidden overrides the visibility of a tool independent of the
// denylist, persisted out-of-band by the dashboard/control API until
// ClearOverride is called.
func (r *Registry) SetHidden(name string, hidden bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	e.Hidden = hidden
	o := r.overrides[name]
	o.hidden = &hidden
	r.overrides[name] = o
	obslog.Info("registry", "tool %s hidden=%v", name, hidden)
	r.notify()
	return nil
}

// SetEnabled overrides whether a tool can be dispatched at all,
// persisted out-of-band the same way as SetHidden.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	e.Enabled = enabled
	o := r.overrides[name]
	o.enabled = &enabled
	r.overrides[name] = o
	obslog.Info("registry", "tool %s enabled=%v", name, enabled)
	r.notify()
	return nil
}

// ClearOverride removes any out-of-band enabled/hidden override for
// name, reverting it to the file/denylist-derived value on its next
// reload. If the tool is currently registered, its live entry is
// recomputed immediately.
func (r *Registry) ClearOverride(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, name)

	e, ok := r.tools[name]
	if !ok {
		return nil
	}
	if e.Capability != nil {
		fileEnabled := e.Capability.Enabled == nil || *e.Capability.Enabled
		e.Enabled = fileEnabled
		e.Hidden = e.Capability.Hidden || (e.Destructive && !r.yolo)
	} else {
		e.Enabled = true
		e.Hidden = e.Destructive && !r.yolo
	}
	r.notify()
	return nil
}

func (r *Registry) PutResource(res mcp.Resource, source Source, originServer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.URI] = &ResourceEntry{Resource: res, Source: source, OriginServer: originServer, OriginalName: res.URI}
	r.notify()
}

func (r *Registry) ListResources() []mcp.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Resource, 0, len(r.resources))
	for _, e := range r.resources {
		if !e.Hidden {
			out = append(out, e.Resource)
		}
	}
	return out
}

func (r *Registry) PutPrompt(p mcp.Prompt, source Source, originServer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[p.Name] = &PromptEntry{Prompt: p, Source: source, OriginServer: originServer, OriginalName: p.Name}
	r.notify()
}

func (r *Registry) ListPrompts() []mcp.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Prompt, 0, len(r.prompts))
	for _, e := range r.prompts {
		if !e.Hidden {
			out = append(out, e.Prompt)
		}
	}
	return out
}

// compileAll is a small helper used by NewDenylist; kept here so
// Denylist itself stays free of the regexp-compile-error path.
func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
