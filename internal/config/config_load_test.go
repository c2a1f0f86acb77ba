package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Load tests ---

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Gateway.Port)
	}
	if cfg.Gateway.ConfigBatchPolicy != BatchPolicySkip {
		t.Errorf("batch policy = %q, want %q", cfg.Gateway.ConfigBatchPolicy, BatchPolicySkip)
	}
	if cfg.Database.Store != "memory" {
		t.Errorf("store = %q, want memory", cfg.Database.Store)
	}
	if cfg.IsPostgres() {
		t.Error("IsPostgres should be false without a DSN")
	}
}

func TestLoad_JSON5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		// comments and trailing commas are accepted
		gateway: { port: 9100, config_batch_policy: "abort", },
		agent: { provider: "openai", model: "gemini-2.5-flash" },
		github: { max_tree_nodes: 10 },
	}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Gateway.Port)
	}
	if cfg.Gateway.ConfigBatchPolicy != BatchPolicyAbort {
		t.Errorf("batch policy = %q, want abort", cfg.Gateway.ConfigBatchPolicy)
	}
	if cfg.Agent.Provider != "openai" || cfg.Agent.Model != "gemini-2.5-flash" {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.GitHub.MaxTreeNodes != 10 {
		t.Errorf("max tree nodes = %d, want 10", cfg.GitHub.MaxTreeNodes)
	}
	// Untouched sections keep their defaults.
	if cfg.GitHub.MaxTreeDepth != 32 {
		t.Errorf("max tree depth = %d, want 32", cfg.GitHub.MaxTreeDepth)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{gateway: {port: 9100}}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GITCHAT_PORT", "9200")
	t.Setenv("GITCHAT_STORE", "postgres")
	t.Setenv("GITCHAT_POSTGRES_DSN", "postgres://localhost/gitchat")
	t.Setenv("GITCHAT_TELEMETRY_ENABLED", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 9200 {
		t.Errorf("port = %d, want 9200", cfg.Gateway.Port)
	}
	if !cfg.IsPostgres() {
		t.Error("IsPostgres should be true with store=postgres and a DSN")
	}
	if !cfg.Telemetry.Enabled {
		t.Error("telemetry should be enabled from env")
	}
}

func TestLoad_RejectsUnknownPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{gateway: {config_batch_policy: "maybe"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown batch policy")
	}
}

// --- Timeout accessors ---

func TestGatewayTimeouts(t *testing.T) {
	var g GatewayConfig
	if got := g.HostTimeout().Seconds(); got != 60 {
		t.Errorf("zero HostTimeout = %vs, want 60s", got)
	}
	g.StoreTimeoutSec = 3
	if got := g.StoreTimeout().Seconds(); got != 3 {
		t.Errorf("StoreTimeout = %vs, want 3s", got)
	}
}
