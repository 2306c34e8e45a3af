// Package config loads and validates the gateway's configuration.
package config

import "time"

// GatewayConfig is the top-level configuration document, loaded from
// config.yaml plus the capability/upstream directories it references.
type GatewayConfig struct {
	Transports  TransportsConfig  `yaml:"transports"`
	Registry    RegistryConfig    `yaml:"registry"`
	Upstreams   []UpstreamConfig  `yaml:"upstreams"`
	Router      RouterConfig      `yaml:"router"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Audit       AuditConfig       `yaml:"audit"`
	Supervisor  SupervisorConfig  `yaml:"supervisor"`
	LLMProvider LLMProviderConfig `yaml:"llmProvider"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`

	// LLMProviders names additional LLM backends the sampling strategy
	// engine can race or chain against LLMProvider (the "magictunnel"
	// endpoint), keyed by the name used in
	// RouterConfig.SamplingPriorityOrder.
	LLMProviders map[string]LLMProviderConfig `yaml:"llmProviders,omitempty"`
}

// DashboardConfig controls C10's read-mostly introspection HTTP API.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// TransportsConfig controls which of the five wire transports the
// gateway listens on and where.
type TransportsConfig struct {
	Stdio     StdioTransportConfig     `yaml:"stdio"`
	HTTP      NetTransportConfig       `yaml:"http"`
	SSE       NetTransportConfig       `yaml:"sse"`
	WebSocket NetTransportConfig       `yaml:"websocket"`
	GRPC      NetTransportConfig       `yaml:"grpc"`
}

type StdioTransportConfig struct {
	Enabled bool `yaml:"enabled"`
}

type NetTransportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// RegistryConfig points at the directories holding capability YAML
// files, watched for hot reload.
type RegistryConfig struct {
	CapabilityDirs     []string `yaml:"capabilityDirs"`
	ConflictResolution string   `yaml:"conflictResolution"` // local_first|proxy_first|prefix|reject
	GatewayPrefix      string   `yaml:"gatewayPrefix,omitempty"`
	DenylistPatterns   []string `yaml:"denylistPatterns,omitempty"`
	Yolo               bool     `yaml:"-"` // set from --yolo, never persisted
}

// UpstreamConfig describes one external MCP server the manager
// supervises and proxies.
type UpstreamConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // stdio|sse|streamable-http|websocket
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	OAuth     *OAuthConfig      `yaml:"oauth,omitempty"`
	Prefix    string            `yaml:"prefix,omitempty"`
}

type OAuthConfig struct {
	IssuerURL        string `yaml:"issuerURL"`
	ClientID         string `yaml:"clientID"`
	ClientSecretFile string `yaml:"clientSecretFile,omitempty"`
	Scopes           []string `yaml:"scopes,omitempty"`
}

// RouterConfig tunes dispatch concurrency and default strategies.
type RouterConfig struct {
	WorkerPoolSize          int           `yaml:"workerPoolSize"`
	DefaultSamplingStrategy string        `yaml:"defaultSamplingStrategy"`
	DispatchTimeout         time.Duration `yaml:"dispatchTimeout"`

	// SamplingPriorityOrder names candidate endpoints, in the order the
	// strategy engine should try them: keys into GatewayConfig.LLMProviders
	// for additional LLM backends to race or chain, or the reserved name
	// "client" for the connected downstream client. FallbackToMagictunnel
	// appends the local provider as the terminal candidate once the
	// list is exhausted.
	SamplingPriorityOrder []string `yaml:"samplingPriorityOrder,omitempty"`
	FallbackToMagictunnel bool     `yaml:"fallbackToMagictunnel"`

	// UpstreamSamplingStrategy overrides DefaultSamplingStrategy for a
	// specific upstream, keyed by upstream name.
	UpstreamSamplingStrategy map[string]string `yaml:"upstreamSamplingStrategy,omitempty"`
}

// DiscoveryConfig tunes the smart-discovery pipeline.
type DiscoveryConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Mode               string  `yaml:"mode"` // rule|semantic|llm|hybrid
	ConfidenceGate     float64 `yaml:"confidenceGate"`
	EmbeddingStorePath string  `yaml:"embeddingStorePath,omitempty"`
	RuleWeight         float64 `yaml:"ruleWeight"`
	SemanticWeight     float64 `yaml:"semanticWeight"`
	LLMWeight          float64 `yaml:"llmWeight"`
}

// AuditConfig configures C7's bounded queue and storage backend.
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Backend       string        `yaml:"backend"` // memory|file|postgres|duckdb|hybrid
	QueueSize     int           `yaml:"queueSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	FlushBatch    int           `yaml:"flushBatch"`
	FileDir       string        `yaml:"fileDir,omitempty"`
	PostgresDSNFile string      `yaml:"postgresDSNFile,omitempty"`
	DuckDBPath    string        `yaml:"duckDBPath,omitempty"`
	MaskFields    []string      `yaml:"maskFields,omitempty"`

	// MaxTotalSizeGB and MaxAgeDays bound the file backend's retention;
	// MaxTotalSizeGB dominates when both would otherwise keep a file.
	// RetentionInterval is accepted and defaulted but no component reads
	// it: no periodic cleanup task runs, so events leave a backend only
	// through an explicit Cleanup call or the file backend's own
	// retention pass.
	MaxTotalSizeGB    float64       `yaml:"maxTotalSizeGB,omitempty"`
	MaxAgeDays        int           `yaml:"maxAgeDays,omitempty"`
	RetentionInterval time.Duration `yaml:"retentionInterval,omitempty"`
}

// SupervisorConfig configures the control-socket process supervisor.
type SupervisorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SocketAddress string        `yaml:"socketAddress"`
	JWTSecretFile string        `yaml:"jwtSecretFile,omitempty"`
	ChildBinary   string        `yaml:"childBinary,omitempty"`
	ChildArgs     []string      `yaml:"childArgs,omitempty"`
	HealthURL     string        `yaml:"healthURL,omitempty"`
	GracePeriod   time.Duration `yaml:"gracePeriod,omitempty"`
}

// LLMProviderConfig selects and authenticates the unified LLM backend
// used by the discovery pipeline and MagictunnelHandled sampling.
type LLMProviderConfig struct {
	Backend     string `yaml:"backend"` // openai|anthropic|gemini|ollama|deepseek|mistral|groq|llamacpp
	Model       string `yaml:"model"`
	APIKeyFile  string `yaml:"apiKeyFile,omitempty"`
	BaseURL     string `yaml:"baseURL,omitempty"`
}
