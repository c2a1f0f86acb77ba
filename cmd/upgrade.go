package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gitchat/internal/config"
	"github.com/nextlevelbuilder/gitchat/internal/upgrade"
	"github.com/nextlevelbuilder/gitchat/pkg/protocol"
)

// ErrUpgradeFailed is returned when upgrade cannot proceed.
var ErrUpgradeFailed = errors.New("upgrade cannot proceed")

func upgradeCmd() *cobra.Command {
	var dryRun bool
	var status bool

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Bring the Postgres schema up to the version this binary requires",
		Long:  "Applies pending SQL migrations. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.IsPostgres() {
				fmt.Println("In-memory store: no database migrations needed.")
				return nil
			}
			s, err := schemaStatus(cmd.Context(), cfg.Database.PostgresDSN)
			if err != nil {
				return err
			}
			printSchema(s)
			if status {
				return nil
			}
			return runUpgrade(cfg.Database.PostgresDSN, s, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without applying changes")
	cmd.Flags().BoolVar(&status, "status", false, "show current schema status")
	return cmd
}

func schemaStatus(ctx context.Context, dsn string) (*upgrade.SchemaStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(cctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	s, err := upgrade.CheckSchema(cctx, db)
	if err != nil {
		return nil, fmt.Errorf("check schema: %w", err)
	}
	return s, nil
}

func printSchema(s *upgrade.SchemaStatus) {
	fmt.Printf("  App version:     %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  Schema current:  %d\n", s.CurrentVersion)
	fmt.Printf("  Schema required: %d\n", s.RequiredVersion)

	switch {
	case s.Dirty:
		fmt.Println("  Status:          DIRTY (failed migration)")
	case s.Compatible:
		fmt.Println("  Status:          UP TO DATE")
	case s.CurrentVersion > s.RequiredVersion:
		fmt.Println("  Status:          BINARY TOO OLD")
	default:
		fmt.Printf("  Status:          UPGRADE NEEDED (%d -> %d)\n", s.CurrentVersion, s.RequiredVersion)
	}
	fmt.Println()
}

func runUpgrade(dsn string, s *upgrade.SchemaStatus, dryRun bool) error {
	if s.Dirty || s.CurrentVersion > s.RequiredVersion {
		fmt.Print(upgrade.FormatError(s))
		return ErrUpgradeFailed
	}
	if !s.NeedsMigration {
		fmt.Println("  SQL schema is up to date.")
		return nil
	}
	if dryRun {
		fmt.Printf("  Would apply SQL migrations: v%d -> v%d\n", s.CurrentVersion, s.RequiredVersion)
		return nil
	}

	fmt.Print("  Applying SQL migrations... ")
	m, err := newMigrator(dsn)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("FAILED")
		return fmt.Errorf("migrate up: %w", err)
	}
	v, _, _ := m.Version()
	fmt.Printf("OK (v%d -> v%d)\n", s.CurrentVersion, v)
	fmt.Println()
	fmt.Println("  Upgrade complete.")
	return nil
}
