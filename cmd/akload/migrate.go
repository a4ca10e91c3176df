package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/akload/internal/db"
	"github.com/gyeh/akload/internal/exitcode"
)

var migrateExplorer bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateExplorer, "explorer", false, "Also create the explorer tables on --explorer-dsn (local and test setups)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or AKLOAD_DB_URL is required")
		os.Exit(exitcode.ConfigError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.ConnError)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.RunError)
	}
	log.Info().Msg("all migrations applied successfully")

	if !migrateExplorer {
		return nil
	}
	if cfg.ExplorerDSN == "" {
		log.Error().Msg("--explorer-dsn or AKLOAD_EXPLORER_URL is required with --explorer")
		os.Exit(exitcode.ConfigError)
	}
	explorerPool, err := db.NewPool(ctx, cfg.ExplorerDSN)
	if err != nil {
		log.Error().Err(err).Msg("explorer connection failed")
		os.Exit(exitcode.ConnError)
	}
	defer explorerPool.Close()

	if err := db.ApplyExplorerSchema(ctx, explorerPool, log); err != nil {
		log.Error().Err(err).Msg("explorer schema failed")
		os.Exit(exitcode.RunError)
	}
	log.Info().Msg("explorer schema applied")
	return nil
}
