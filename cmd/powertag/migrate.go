package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/database"
	"github.com/nerrad567/powertag-monitor/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the history database schema",
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withHistoryDB(cmd.Context(), configPath, func(ctx context.Context, db *database.DB) error {
			return migrateStatus(ctx, cmd, db)
		})
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withHistoryDB(cmd.Context(), configPath, func(ctx context.Context, db *database.DB) error {
			if err := db.Migrate(ctx, migrations.FS); err != nil {
				return err
			}
			return migrateStatus(ctx, cmd, db)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the newest applied migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withHistoryDB(cmd.Context(), configPath, func(ctx context.Context, db *database.DB) error {
			m, err := db.MigrateDown(ctx, migrations.FS)
			if err != nil {
				return err
			}
			if m == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reverted %s_%s\n", m.Version, m.Name)
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd, migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withHistoryDB opens the configured SQLite database for fn. It fails
// when storage.sqlite is disabled.
func withHistoryDB(ctx context.Context, path string, fn func(context.Context, *database.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Storage.SQLite.Enabled {
		return fmt.Errorf("storage.sqlite is disabled in %s", path)
	}

	db, err := database.Open(ctx, database.ConfigFrom(cfg.Storage.SQLite))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-mostly command

	return fn(ctx, db)
}

func migrateStatus(ctx context.Context, cmd *cobra.Command, db *database.DB) error {
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "database: %s\n", db.Path())
	for _, r := range applied {
		fmt.Fprintf(out, "  applied  %s  %s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "  pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}
