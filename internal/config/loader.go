package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads config.yaml from dir, falling back to Default() when the
// file does not exist, makes relative capability directories relative
// to dir, and validates the result. *_file secret indirections are not
// read here; ResolveSecrets does that.
func Load(dir string) (*GatewayConfig, error) {
	cfg := Default()

	path := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config.yaml: run on defaults, matching the teacher's
		// first-run behavior.
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if cfg.Registry.CapabilityDirs != nil {
		for i, d := range cfg.Registry.CapabilityDirs {
			if !filepath.IsAbs(d) {
				cfg.Registry.CapabilityDirs[i] = filepath.Join(dir, d)
			}
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveSecretFile reads a file path and returns its trimmed contents,
// used for every *_file configuration field (API keys, DSNs, JWT
// secrets, OAuth client secrets) so credentials never live in
// config.yaml itself.
func resolveSecretFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading secret file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ResolveSecrets resolves every *_file field present in cfg into the
// returned map, keyed by a stable logical name, so callers never touch
// the filesystem themselves after config load.
func ResolveSecrets(cfg *GatewayConfig) (map[string]string, error) {
	out := make(map[string]string)

	if cfg.Audit.PostgresDSNFile != "" {
		v, err := resolveSecretFile(cfg.Audit.PostgresDSNFile)
		if err != nil {
			return nil, err
		}
		out["audit.postgresDSN"] = v
	}
	if cfg.Supervisor.JWTSecretFile != "" {
		v, err := resolveSecretFile(cfg.Supervisor.JWTSecretFile)
		if err != nil {
			return nil, err
		}
		out["supervisor.jwtSecret"] = v
	}
	if cfg.LLMProvider.APIKeyFile != "" {
		v, err := resolveSecretFile(cfg.LLMProvider.APIKeyFile)
		if err != nil {
			return nil, err
		}
		out["llmProvider.apiKey"] = v
	}
	for name, p := range cfg.LLMProviders {
		if p.APIKeyFile != "" {
			v, err := resolveSecretFile(p.APIKeyFile)
			if err != nil {
				return nil, err
			}
			out["llmProviders."+name+".apiKey"] = v
		}
	}
	for _, u := range cfg.Upstreams {
		if u.OAuth != nil && u.OAuth.ClientSecretFile != "" {
			v, err := resolveSecretFile(u.OAuth.ClientSecretFile)
			if err != nil {
				return nil, err
			}
			out["upstream."+u.Name+".oauthClientSecret"] = v
		}
	}

	return out, nil
}
