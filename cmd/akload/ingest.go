package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/akload/internal/audit"
	"github.com/gyeh/akload/internal/config"
	"github.com/gyeh/akload/internal/db"
	"github.com/gyeh/akload/internal/exitcode"
	"github.com/gyeh/akload/internal/explorer"
	"github.com/gyeh/akload/internal/ingest"
	"github.com/gyeh/akload/internal/metrics"
	"github.com/gyeh/akload/internal/outcomes"
	"github.com/gyeh/akload/internal/parse"
	"github.com/gyeh/akload/internal/report"
	"github.com/gyeh/akload/internal/warehouse"
	"github.com/gyeh/akload/internal/window"
)

const finalizeTimeout = 30 * time.Second

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest app kernel instances for a time window",
	RunE:  runIngest,
}

func init() {
	f := ingestCmd.Flags()
	addWindowFlags(f)
	f.BoolVar(&cfg.DryRun, "dry-run", false, "Classify everything but write nothing")
	f.BoolVar(&cfg.Replace, "replace", false, "Overwrite instances that are already stored")
	f.BoolVar(&cfg.Remove, "remove", false, "Delete stored instances in the window before reingesting")
	f.StringVar(&cfg.Resource, "resource", "", "Only ingest this resource nickname")
	f.StringVar(&cfg.Kernel, "kernel", "", "Only ingest kernels whose basename contains this string")
	f.BoolVar(&cfg.CalculateControls, "calculate-controls", false, "Calculate missing control bands after ingestion")
	f.BoolVar(&cfg.RecalculateControls, "re-calculate-controls", false, "Recalculate all control bands after ingestion")
	f.StringVar(&cfg.Unmapped, "unmapped", config.UnmappedProcess, "Policy for kernels unknown to the catalog: process or skip")
	f.IntVar(&cfg.Workers, "workers", 1, "Resources processed in parallel")
	f.StringVar(&cfg.OutcomesFile, "outcomes-file", "", "Write one Parquet row per examined instance to this file")
	f.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := setupLogger()

	if err := cfg.ValidateIngest(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ConfigError)
	}
	req, err := window.NewRequest(cfg.WindowOptions())
	if err != nil {
		log.Error().Err(err).Msg("invalid window")
		os.Exit(exitcode.ConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("warehouse connection failed")
		os.Exit(exitcode.ConnError)
	}
	defer pool.Close()

	auditStore := audit.NewPGStore(pool)
	w, err := req.Resolve(ctx, time.Now(), audit.Checkpoint(auditStore, cfg.Source))
	if err != nil {
		log.Error().Err(err).Msg("window resolution failed")
		if errors.Is(err, window.ErrConfig) {
			os.Exit(exitcode.ConfigError)
		}
		os.Exit(exitcode.ConnError)
	}

	explorerPool, err := db.NewPool(ctx, cfg.ExplorerDSN)
	if err != nil {
		log.Error().Err(err).Msg("explorer connection failed")
		os.Exit(exitcode.ConnError)
	}
	defer explorerPool.Close()

	auditLog := audit.NewLogger(auditStore, log)
	entry := auditLog.Begin(cfg.Source, w, time.Now())
	runID := entry.ID.String()
	log = log.With().Str("run_id", runID).Logger()

	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New(cfg.Source)
	}

	deps := ingest.Deps{
		Catalog:   warehouse.NewCatalog(pool),
		Discovery: explorer.New(explorerPool, log),
		Parser:    parse.New(),
		Store:     warehouse.NewStore(pool, log),
		Controls:  warehouse.NewControls(pool, log),
	}
	var ledger *outcomes.Writer
	if cfg.OutcomesFile != "" {
		ledger, err = outcomes.Create(cfg.OutcomesFile)
		if err != nil {
			log.Error().Err(err).Msg("outcome ledger unavailable")
			os.Exit(exitcode.ConfigError)
		}
		deps.Sink = ledger
	}

	ctrl := ingest.New(deps, log)
	res, runErr := ctrl.Run(ctx, ingest.Options{
		RunID:    runID,
		Window:   w,
		Resource: cfg.Resource,
		Kernel:   cfg.Kernel,
		DryRun:   cfg.DryRun,
		Replace:  cfg.Replace,
		Remove:   cfg.Remove,
		Controls: controlMode(),
		Unmapped: ingest.UnmappedPolicy(cfg.Unmapped),
		Workers:  cfg.Workers,
	})

	// The run context may be cancelled by now; finishing writes get their own.
	fctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := ctrl.SinkErr(); err != nil {
		log.Warn().Err(err).Msg("outcome ledger is incomplete")
	}
	if ledger != nil {
		if err := ledger.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to finalize outcome ledger")
		} else {
			log.Info().Int64("records", ledger.Count()).Str("file", cfg.OutcomesFile).Msg("outcome ledger written")
		}
	}

	if runErr != nil {
		return failRun(fctx, log, auditLog, m, runErr)
	}

	fmt.Printf("Ingestion %s [%s]\n", runID, w)
	fmt.Println(report.Summary(res.Tally.Global))
	fmt.Print(report.Breakdown(res.Tally))
	if cfg.Remove {
		fmt.Printf("Removed before reingest: %d\n", res.Removed)
	}

	final, err := auditLog.Finish(fctx, res.Tally, cfg.DryRun)
	if err != nil {
		log.Error().Err(err).Msg("failed to persist ingestion log")
	}
	if m != nil {
		success := final != nil && final.Success
		m.RecordRun(res.Tally, res.Removed, success, w.End, res.Duration, time.Now())
		writeMetrics(log, m)
	}

	if res.ControlsErr != nil {
		log.Error().Err(res.ControlsErr).Msg("control bands not updated")
	}
	if final != nil && !final.Success {
		log.Warn().Str("message", final.Message).Msg("ingestion finished with storage failures")
	}
	return nil
}

func failRun(ctx context.Context, log zerolog.Logger, auditLog *audit.Logger, m *metrics.Metrics, runErr error) error {
	var pe *ingest.PipelineError
	phase := "run"
	if errors.As(runErr, &pe) {
		phase = pe.Phase
	}
	log.Error().Err(runErr).Str("phase", phase).Msg("ingestion failed")

	if _, err := auditLog.Fail(ctx, runErr, cfg.DryRun); err != nil {
		log.Error().Err(err).Msg("failed to persist ingestion log")
	}
	if m != nil {
		m.RecordStatus(false, time.Now())
		writeMetrics(log, m)
	}

	switch {
	case errors.Is(runErr, ingest.ErrNoResources):
		os.Exit(exitcode.NoResources)
	case phase == "catalog":
		os.Exit(exitcode.ConnError)
	}
	os.Exit(exitcode.RunError)
	return nil
}

func writeMetrics(log zerolog.Logger, m *metrics.Metrics) {
	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warn().Err(err).Msg("metrics textfile not written")
	}
}

func controlMode() ingest.ControlMode {
	switch {
	case cfg.RecalculateControls:
		return ingest.ControlsRecalculate
	case cfg.CalculateControls:
		return ingest.ControlsCalculate
	default:
		return ingest.ControlsNone
	}
}
