package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			MaxFrameBytes:     1 << 20,
			SendQueueSize:     256,
			ConfigBatchPolicy: BatchPolicySkip,
			StoreTimeoutSec:   10,
			HostTimeoutSec:    60,
			AgentTimeoutSec:   180,
			AssignedFanout:    4,
		},
		Database: DatabaseConfig{
			Store: "memory",
		},
		Agent: AgentConfig{
			Provider:          "gemini",
			Model:             "gemini-2.0-flash",
			APIBase:           "https://generativelanguage.googleapis.com/v1beta/openai",
			MaxTokens:         8192,
			Temperature:       0.4,
			MaxToolIterations: 8,
			HistoryLimit:      20,
			MaxRetries:        3,
		},
		GitHub: GitHubConfig{
			RequestsPerSecond: 10,
			Burst:             5,
			MaxTreeNodes:      5000,
			MaxTreeDepth:      32,
			MaxRetries:        3,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "gitchat-gateway",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	// Gateway
	envStr("GITCHAT_HOST", &c.Gateway.Host)
	envInt("GITCHAT_PORT", &c.Gateway.Port)
	envStr("GITCHAT_CONFIG_BATCH_POLICY", &c.Gateway.ConfigBatchPolicy)
	if v := os.Getenv("GITCHAT_ALLOWED_ORIGINS"); v != "" {
		c.Gateway.AllowedOrigins = strings.Split(v, ",")
	}

	// Database
	envStr("GITCHAT_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("GITCHAT_STORE", &c.Database.Store)

	// Agent
	envStr("GITCHAT_AGENT_PROVIDER", &c.Agent.Provider)
	envStr("GITCHAT_GEMINI_MODEL", &c.Agent.Model)
	envStr("GITCHAT_AGENT_API_BASE", &c.Agent.APIBase)
	envInt("GITCHAT_AGENT_MAX_TOOL_ITERATIONS", &c.Agent.MaxToolIterations)

	// GitHub
	envInt("GITCHAT_GITHUB_MAX_TREE_NODES", &c.GitHub.MaxTreeNodes)

	// Telemetry
	envBool("GITCHAT_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envStr("GITCHAT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("GITCHAT_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envBool("GITCHAT_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
	envStr("GITCHAT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
}

func (c *Config) validate() error {
	switch c.Gateway.ConfigBatchPolicy {
	case "":
		c.Gateway.ConfigBatchPolicy = BatchPolicySkip
	case BatchPolicySkip, BatchPolicyAbort:
	default:
		return fmt.Errorf("gateway.config_batch_policy: unknown policy %q", c.Gateway.ConfigBatchPolicy)
	}
	switch c.Database.Store {
	case "", "memory":
		c.Database.Store = "memory"
	case "postgres":
	default:
		return fmt.Errorf("database.store: unknown backend %q", c.Database.Store)
	}
	switch c.Agent.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("agent.provider: unknown provider %q", c.Agent.Provider)
	}
	return nil
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
