package tracing

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/gitchat/internal/config"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetup_RejectsBadConfig(t *testing.T) {
	if _, err := Setup(context.Background(), config.TelemetryConfig{Enabled: true}, "test"); err == nil {
		t.Error("missing endpoint accepted")
	}
	cfg := config.TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", Protocol: "carrier-pigeon"}
	if _, err := Setup(context.Background(), cfg, "test"); err == nil {
		t.Error("unknown protocol accepted")
	}
}
