package config

import (
	"sync"
	"time"
)

// Config is the root configuration for the gitchat gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Agent     AgentConfig     `json:"agent"`
	GitHub    GitHubConfig    `json:"github"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// Batch policies for repository descriptors submitted with SUBMIT_CONFIG.
const (
	BatchPolicySkip  = "skip"  // log the invalid descriptor and continue with the rest
	BatchPolicyAbort = "abort" // stop at the first invalid descriptor and report CONFIG_ERROR
)

// GatewayConfig controls the WebSocket server and request handling.
type GatewayConfig struct {
	Host              string   `json:"host"`
	Port              int      `json:"port"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`     // WebSocket CORS whitelist (empty = allow all)
	MaxFrameBytes     int64    `json:"max_frame_bytes,omitempty"`     // inbound frame size limit (default 1 MiB)
	SendQueueSize     int      `json:"send_queue_size,omitempty"`     // per-client outbound buffer (default 256)
	ConfigBatchPolicy string   `json:"config_batch_policy,omitempty"` // "skip" (default) or "abort"
	StoreTimeoutSec   int      `json:"store_timeout_sec,omitempty"`   // per persistence call (default 10)
	HostTimeoutSec    int      `json:"host_timeout_sec,omitempty"`    // per repository-host operation (default 60)
	AgentTimeoutSec   int      `json:"agent_timeout_sec,omitempty"`   // per agent reply including tool calls (default 180)
	AssignedFanout    int      `json:"assigned_fanout,omitempty"`     // concurrent repositories for GET_ASSIGNED_ISSUES (default 4)
}

// DatabaseConfig selects the persistence backend.
// PostgresDSN is never read from config.json, only from env GITCHAT_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`               // from env GITCHAT_POSTGRES_DSN only
	Store       string `json:"store,omitempty"` // "memory" (default) or "postgres"
}

// IsPostgres reports whether the gateway persists to Postgres.
func (c *Config) IsPostgres() bool {
	return c.Database.Store == "postgres" && c.Database.PostgresDSN != ""
}

// AgentConfig configures the chat agent. The API key itself is supplied per
// client through SUBMIT_CONFIG.
type AgentConfig struct {
	Provider          string  `json:"provider"`                      // "gemini" (native SDK) or "openai" (OpenAI-compatible endpoint)
	Model             string  `json:"model"`                         // e.g. "gemini-2.0-flash"
	APIBase           string  `json:"api_base,omitempty"`            // OpenAI-compatible base URL
	MaxTokens         int     `json:"max_tokens,omitempty"`          // response token cap
	Temperature       float64 `json:"temperature,omitempty"`
	MaxToolIterations int     `json:"max_tool_iterations,omitempty"` // tool-call rounds per reply (default 8)
	HistoryLimit      int     `json:"history_limit,omitempty"`       // prior chat messages sent as context (default 20)
	MaxRetries        int     `json:"max_retries,omitempty"`         // transient provider retries (default 3)
}

// GitHubConfig tunes the repository host client.
type GitHubConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"` // host call pacing (default 10)
	Burst             int     `json:"burst,omitempty"`               // pacing burst (default 5)
	MaxTreeNodes      int     `json:"max_tree_nodes,omitempty"`      // file tree node ceiling (default 5000)
	MaxTreeDepth      int     `json:"max_tree_depth,omitempty"`      // file tree depth ceiling (default 32)
	MaxRetries        int     `json:"max_retries,omitempty"`         // transient host retries (default 3)
}

// TelemetryConfig configures OpenTelemetry export for traces and spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext transport for local collectors
	ServiceName string            `json:"service_name,omitempty"` // default "gitchat-gateway"
	Headers     map[string]string `json:"headers,omitempty"`
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// StoreTimeout bounds one persistence call.
func (g GatewayConfig) StoreTimeout() time.Duration { return seconds(g.StoreTimeoutSec, 10) }

// HostTimeout bounds one repository-host operation.
func (g GatewayConfig) HostTimeout() time.Duration { return seconds(g.HostTimeoutSec, 60) }

// AgentTimeout bounds one agent reply.
func (g GatewayConfig) AgentTimeout() time.Duration { return seconds(g.AgentTimeoutSec, 180) }
