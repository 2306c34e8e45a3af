package config

import "time"

// Default returns a GatewayConfig with the same baseline values the
// gateway starts from when no config.yaml is present.
func Default() *GatewayConfig {
	return &GatewayConfig{
		Transports: TransportsConfig{
			Stdio: StdioTransportConfig{Enabled: true},
			HTTP:  NetTransportConfig{Enabled: true, Host: "localhost", Port: 8080},
		},
		Registry: RegistryConfig{
			CapabilityDirs:     []string{"capabilities"},
			ConflictResolution: "prefix",
			GatewayPrefix:      "x",
		},
		Router: RouterConfig{
			WorkerPoolSize:          16,
			DefaultSamplingStrategy: "magictunnel_handled",
			DispatchTimeout:         30 * time.Second,
			FallbackToMagictunnel:   true,
		},
		Discovery: DiscoveryConfig{
			Enabled:        false,
			Mode:           "hybrid",
			ConfidenceGate: 0.55,
			RuleWeight:     0.3,
			SemanticWeight: 0.4,
			LLMWeight:      0.3,
		},
		Audit: AuditConfig{
			Enabled:       true,
			Backend:       "memory",
			QueueSize:     4096,
			FlushInterval: 2 * time.Second,
			FlushBatch:    200,
			FileDir:       "audit",
			MaxTotalSizeGB:    5,
			MaxAgeDays:        90,
			RetentionInterval: time.Hour,
		},
		Supervisor: SupervisorConfig{
			Enabled:       true,
			SocketAddress: "127.0.0.1:9091",
			GracePeriod:   10 * time.Second,
		},
		LLMProvider: LLMProviderConfig{
			Backend: "openai",
			Model:   "gpt-4o-mini",
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    8090,
		},
	}
}
