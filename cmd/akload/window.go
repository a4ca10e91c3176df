package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gyeh/akload/internal/audit"
	"github.com/gyeh/akload/internal/db"
	"github.com/gyeh/akload/internal/exitcode"
	"github.com/gyeh/akload/internal/window"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Print the window an ingestion run would cover",
	RunE:  runWindow,
}

func init() {
	addWindowFlags(windowCmd.Flags())
	rootCmd.AddCommand(windowCmd)
}

func addWindowFlags(f *pflag.FlagSet) {
	f.StringVar(&cfg.Start, "start", "", "Window start: unix seconds or a date")
	f.StringVar(&cfg.End, "end", "", "Window end: unix seconds or a date (default now)")
	f.StringVar(&cfg.SinceLast, "since-last", "", "Window keyword: hour, day, week, month or checkpoint")
	f.IntVar(&cfg.OffsetDays, "offset", 0, "Move the window start back by this many days")
}

func runWindow(cmd *cobra.Command, args []string) error {
	log := setupLogger()

	req, err := window.NewRequest(cfg.WindowOptions())
	if err != nil {
		log.Error().Err(err).Msg("invalid window")
		os.Exit(exitcode.ConfigError)
	}

	ctx := context.Background()
	var cp window.CheckpointFunc
	if req.NeedsCheckpoint() {
		if cfg.DSN == "" {
			log.Error().Msg("--dsn or AKLOAD_DB_URL is required to resolve a checkpoint")
			os.Exit(exitcode.ConfigError)
		}
		pool, err := db.NewPool(ctx, cfg.DSN)
		if err != nil {
			log.Error().Err(err).Msg("warehouse connection failed")
			os.Exit(exitcode.ConnError)
		}
		defer pool.Close()
		cp = audit.Checkpoint(audit.NewPGStore(pool), cfg.Source)
	}

	w, err := req.Resolve(ctx, time.Now(), cp)
	if err != nil {
		log.Error().Err(err).Msg("window resolution failed")
		if errors.Is(err, window.ErrConfig) {
			os.Exit(exitcode.ConfigError)
		}
		os.Exit(exitcode.ConnError)
	}

	fmt.Printf("Start: %d (%s)\n", w.Start, w.StartTime().UTC().Format(time.RFC3339))
	fmt.Printf("End:   %d (%s)\n", w.End, w.EndTime().UTC().Format(time.RFC3339))
	fmt.Printf("Span:  %s\n", time.Duration(w.End-w.Start)*time.Second)
	return nil
}
