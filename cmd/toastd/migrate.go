package main

import (
	"errors"
	"fmt"

	"github.com/bissquit/lionsgeek-toasts/internal/config"
	"github.com/bissquit/lionsgeek-toasts/internal/pkg/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply toast history schema migrations",
		Long: `Apply the embedded toast history migrations to database.url.

Examples:
  toastd migrate up --config toastd.yaml
  TOASTD_DATABASE__URL=postgres://... toastd migrate down`,
	}

	cmd.AddCommand(
		migrateDirectionCmd(postgres.MigrateUp, "Apply all pending migrations"),
		migrateDirectionCmd(postgres.MigrateDown, "Roll back the latest migration"),
	)

	return cmd
}

func migrateDirectionCmd(direction postgres.MigrateDirection, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(direction),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.Read(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is required")
			}

			return postgres.Migrate(cfg.Database.URL, direction)
		},
	}
}
