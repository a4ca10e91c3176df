package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/akload/internal/audit"
	"github.com/gyeh/akload/internal/db"
	"github.com/gyeh/akload/internal/exitcode"
)

var historyAll bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent ingestion runs",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&cfg.HistoryLimit, "limit", 20, "Number of entries to show")
	f.BoolVar(&historyAll, "all-sources", false, "Show entries of every source")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ConfigError)
	}
	if cfg.HistoryLimit < 1 {
		log.Error().Int("limit", cfg.HistoryLimit).Msg("--limit must be at least 1")
		os.Exit(exitcode.ConfigError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("warehouse connection failed")
		os.Exit(exitcode.ConnError)
	}
	defer pool.Close()

	source := cfg.Source
	if historyAll {
		source = ""
	}
	entries, err := audit.NewPGStore(pool).Recent(ctx, source, cfg.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read ingestion log")
		os.Exit(exitcode.ConnError)
	}

	if len(entries) == 0 {
		fmt.Println("No ingestion runs recorded.")
		return nil
	}
	fmt.Printf("%-20s %-8s %-20s %-20s %-7s %8s  %s\n", "UPDATED", "SOURCE", "START", "END", "STATUS", "LOADED", "MESSAGE")
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Printf("%-20s %-8s %-20s %-20s %-7s %8d  %s\n",
			e.LastUpdate.UTC().Format("2006-01-02 15:04:05"),
			e.Source,
			time.Unix(e.Start, 0).UTC().Format("2006-01-02 15:04:05"),
			time.Unix(e.End, 0).UTC().Format("2006-01-02 15:04:05"),
			status, e.Loaded, e.Message)
	}
	return nil
}
