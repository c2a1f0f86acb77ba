package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gitchat/internal/config"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Println("gitchat doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Gateway:")
	fmt.Printf("    %-12s %s:%d\n", "Listen:", cfg.Gateway.Host, cfg.Gateway.Port)
	if len(cfg.Gateway.AllowedOrigins) == 0 {
		fmt.Printf("    %-12s any\n", "Origins:")
	} else {
		fmt.Printf("    %-12s %v\n", "Origins:", cfg.Gateway.AllowedOrigins)
	}
	fmt.Printf("    %-12s %s\n", "Batch:", cfg.Gateway.ConfigBatchPolicy)

	fmt.Println()
	fmt.Println("  Database:")
	checkDatabase(ctx, cfg)

	fmt.Println()
	fmt.Println("  Agent:")
	fmt.Printf("    %-12s %s\n", "Provider:", cfg.Agent.Provider)
	fmt.Printf("    %-12s %s\n", "Model:", cfg.Agent.Model)
	if cfg.Agent.Provider == "openai" {
		fmt.Printf("    %-12s %s\n", "API base:", cfg.Agent.APIBase)
	}
	fmt.Printf("    %-12s supplied per client (SUBMIT_CONFIG)\n", "API key:")

	fmt.Println()
	fmt.Println("  Telemetry:")
	if cfg.Telemetry.Enabled {
		fmt.Printf("    %-12s %s (%s)\n", "Endpoint:", cfg.Telemetry.Endpoint, cfg.Telemetry.Protocol)
	} else {
		fmt.Printf("    %-12s disabled\n", "Status:")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkDatabase(ctx context.Context, cfg *config.Config) {
	if !cfg.IsPostgres() {
		fmt.Printf("    %-12s memory\n", "Store:")
		if cfg.Database.Store == "postgres" {
			fmt.Printf("    %-12s GITCHAT_POSTGRES_DSN is not set\n", "Warning:")
		}
		return
	}
	fmt.Printf("    %-12s postgres\n", "Store:")

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	s, err := schemaStatus(cctx, cfg.Database.PostgresDSN)
	switch {
	case err != nil:
		fmt.Printf("    %-12s FAILED (%s)\n", "Status:", err)
	case s.Dirty:
		fmt.Printf("    %-12s v%d (DIRTY, see: gitchat upgrade --status)\n", "Schema:", s.CurrentVersion)
	case s.Compatible:
		fmt.Printf("    %-12s v%d (up to date)\n", "Schema:", s.CurrentVersion)
	case s.CurrentVersion > s.RequiredVersion:
		fmt.Printf("    %-12s v%d (binary too old, requires v%d)\n", "Schema:", s.CurrentVersion, s.RequiredVersion)
	default:
		fmt.Printf("    %-12s v%d (upgrade needed, run: gitchat upgrade)\n", "Schema:", s.CurrentVersion)
	}
}
