package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gitchat/internal/agent"
	"github.com/nextlevelbuilder/gitchat/internal/config"
	"github.com/nextlevelbuilder/gitchat/internal/gateway"
	"github.com/nextlevelbuilder/gitchat/internal/gateway/methods"
	"github.com/nextlevelbuilder/gitchat/internal/repohost/github"
	"github.com/nextlevelbuilder/gitchat/internal/store"
	"github.com/nextlevelbuilder/gitchat/internal/store/memory"
	"github.com/nextlevelbuilder/gitchat/internal/store/pg"
	"github.com/nextlevelbuilder/gitchat/internal/tools"
	"github.com/nextlevelbuilder/gitchat/internal/tracing"
	"github.com/nextlevelbuilder/gitchat/internal/upgrade"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket gateway (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	host := github.New(github.Options{
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		Burst:             cfg.GitHub.Burst,
		MaxTreeNodes:      cfg.GitHub.MaxTreeNodes,
		MaxTreeDepth:      cfg.GitHub.MaxTreeDepth,
		MaxRetries:        cfg.GitHub.MaxRetries,
	})

	toolsReg := tools.NewRegistry()
	tools.RegisterRepositoryTools(toolsReg, host, st)
	slog.Info("agent tools registered", "tools", toolsReg.Names())

	chatAgent := agent.New(agent.ConfigFrom(cfg.Agent), agent.NewProviderFactory(cfg.Agent), st, toolsReg)

	sessions := gateway.NewRegistry(st, cfg.Gateway.StoreTimeout())
	router := gateway.NewRouter(sessions)
	methods.Register(router, &methods.Deps{
		Sessions: sessions,
		Store:    st,
		Host:     host,
		Agent:    chatAgent,
		Config:   cfg.Gateway,
	})
	if err := router.Validate(); err != nil {
		slog.Error("gateway misconfigured", "error", err)
		return err
	}

	server := gateway.NewServer(cfg.Gateway, sessions, router)
	if cfgPath := resolveConfigPath(); fileExists(cfgPath) {
		go func() {
			err := config.Watch(ctx, cfgPath, func(next *config.Config) {
				server.SetAllowedOrigins(next.Gateway.AllowedOrigins)
			})
			if err != nil {
				slog.Warn("config watch disabled", "error", err)
			}
		}()
	}
	slog.Info("gitchat starting",
		"version", Version,
		"store", cfg.Database.Store,
		"provider", cfg.Agent.Provider,
		"model", cfg.Agent.Model,
	)
	err = server.Start(ctx)
	sessions.Wait()
	return err
}

// openStore builds the configured persistence backend. Postgres must already
// be migrated to the schema this binary expects.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if !cfg.IsPostgres() {
		if cfg.Database.Store == "postgres" {
			return nil, errors.New("database.store is postgres but GITCHAT_POSTGRES_DSN is not set")
		}
		slog.Info("using in-memory store; data is lost on restart")
		return memory.New(), nil
	}

	pgStore, err := pg.NewPGStores(store.StoreConfig{PostgresDSN: cfg.Database.PostgresDSN})
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	s, err := upgrade.CheckSchema(cctx, pgStore.DB())
	if err != nil {
		pgStore.Close()
		return nil, fmt.Errorf("check schema: %w", err)
	}
	if !s.Compatible {
		pgStore.Close()
		fmt.Fprint(os.Stderr, upgrade.FormatError(s))
		return nil, errors.New("database schema is not compatible with this binary")
	}
	return pgStore, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
