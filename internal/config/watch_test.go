package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// --- Watch tests ---

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{gateway: {port: 9000}}`), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { reloaded <- c })
	}()

	// Keep rewriting until the watcher is armed and reports the new origins.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(2 * reloadDebounce)
	defer tick.Stop()
	for i := 0; ; i++ {
		select {
		case c := <-reloaded:
			if len(c.Gateway.AllowedOrigins) != 1 || c.Gateway.AllowedOrigins[0] != "https://app.example" {
				t.Fatalf("origins = %v", c.Gateway.AllowedOrigins)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-tick.C:
			data := fmt.Sprintf(`{gateway: {port: %d, allowed_origins: ["https://app.example"]}}`, 9000+i)
			if err := os.WriteFile(path, []byte(data), 0600); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { reloaded <- c })
	}()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	select {
	case <-reloaded:
		t.Fatal("reload fired for an unrelated file")
	case <-time.After(2 * reloadDebounce):
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
