package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoutingKind is the closed set of ways the router can execute a
// locally-defined tool.
type RoutingKind string

const (
	RoutingREST         RoutingKind = "rest"
	RoutingSubprocess    RoutingKind = "subprocess"
	RoutingGRPC          RoutingKind = "grpc"
	RoutingGraphQL       RoutingKind = "graphql"
	RoutingExternalMCP   RoutingKind = "external_mcp"
	RoutingWebSocket     RoutingKind = "websocket"
)

// CapabilityFile is the on-disk YAML shape for a directory of locally
// defined tools, one file per logical group (e.g. "github.yaml").
type CapabilityFile struct {
	Tools []CapabilityTool `yaml:"tools"`
}

// CapabilityTool is one tool definition as authored by an operator.
type CapabilityTool struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	InputSchema map[string]interface{} `yaml:"inputSchema"`
	Routing     RoutingKind            `yaml:"routing"`

	// Enabled defaults to true when omitted; disabled tools cannot be
	// dispatched at all. Hidden tools remain callable but are left out
	// of tools/list. Both can be overridden out-of-band by the tool
	// management API until explicitly cleared.
	Enabled *bool `yaml:"enabled,omitempty"`
	Hidden  bool  `yaml:"hidden,omitempty"`

	// rest
	Method  string            `yaml:"method,omitempty"`
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    interface{}       `yaml:"body,omitempty"`

	// subprocess
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`

	// grpc
	GRPCTarget  string `yaml:"grpcTarget,omitempty"`
	GRPCMethod  string `yaml:"grpcMethod,omitempty"`

	// graphql
	GraphQLEndpoint string `yaml:"graphqlEndpoint,omitempty"`
	GraphQLQuery    string `yaml:"graphqlQuery,omitempty"`

	// external_mcp: dispatches straight through to a named upstream tool
	UpstreamServer string `yaml:"upstreamServer,omitempty"`
	UpstreamTool   string `yaml:"upstreamTool,omitempty"`
}

// LoadResult is the outcome of parsing one capability directory: the
// tools successfully loaded per file, plus any files rejected along
// the way. A rejected file never prevents its siblings from loading.
type LoadResult struct {
	Files    map[string][]CapabilityTool
	Rejected map[string]error
}

// LoadCapabilityDir parses every *.yaml/*.yml file in dir. A single
// file's parse or validation error rejects only that file; every
// other file in the directory still loads.
func LoadCapabilityDir(dir string) (*LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Files: map[string][]CapabilityTool{}}, nil
		}
		return nil, fmt.Errorf("reading capability dir %s: %w", dir, err)
	}

	result := &LoadResult{Files: make(map[string][]CapabilityTool)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		tools, err := LoadCapabilityFile(path)
		if err != nil {
			if result.Rejected == nil {
				result.Rejected = make(map[string]error)
			}
			result.Rejected[path] = err
			continue
		}
		result.Files[path] = tools
	}
	return result, nil
}

// LoadCapabilityFile parses a single capability YAML file.
func LoadCapabilityFile(path string) ([]CapabilityTool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var file CapabilityFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, t := range file.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("%s: tool at index %d missing name", path, i)
		}
		if t.Routing == "" {
			return nil, fmt.Errorf("%s: tool %q missing routing", path, t.Name)
		}
	}
	return file.Tools, nil
}
