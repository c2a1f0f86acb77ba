package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/gitchat/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force, interactive bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg := config.Default()
			if interactive {
				if err := promptConfig(cfg); err != nil {
					return err
				}
			}
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Wrote %s\n", path)
			fmt.Println("Set GITCHAT_POSTGRES_DSN and database.store=postgres to persist to Postgres.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "answer a few questions instead of writing defaults")
	return cmd
}

// promptConfig fills the commonly edited fields of cfg from a terminal form.
func promptConfig(cfg *config.Config) error {
	port := strconv.Itoa(cfg.Gateway.Port)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen port").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n <= 0 || n > 65535 {
						return errors.New("enter a port between 1 and 65535")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Persistence").
				Options(
					huh.NewOption("In-memory (lost on restart)", "memory"),
					huh.NewOption("Postgres (GITCHAT_POSTGRES_DSN)", "postgres"),
				).
				Value(&cfg.Database.Store),
			huh.NewSelect[string]().
				Title("Repository batch policy").
				Options(
					huh.NewOption("Skip invalid repositories", config.BatchPolicySkip),
					huh.NewOption("Abort on the first invalid repository", config.BatchPolicyAbort),
				).
				Value(&cfg.Gateway.ConfigBatchPolicy),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Agent provider").
				Options(
					huh.NewOption("Gemini (native API)", "gemini"),
					huh.NewOption("OpenAI-compatible endpoint", "openai"),
				).
				Value(&cfg.Agent.Provider),
			huh.NewInput().
				Title("Model").
				Value(&cfg.Agent.Model),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("config form: %w", err)
	}
	cfg.Gateway.Port, _ = strconv.Atoi(port)
	return nil
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (file plus env overrides)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
