// Package audit records one ingestion log entry per run and answers the
// checkpoint query that incremental runs start from.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/model"
	"github.com/gyeh/akload/internal/report"
	"github.com/gyeh/akload/internal/window"
)

// StorageFailureMessage is the status message of a run in which at least one
// instance failed to store.
const StorageFailureMessage = "storage errors encountered during ingestion"

// Payload is the serialized report kept with each entry.
type Payload struct {
	Counters map[string]int64 `json:"counters"`
	Report   report.Nested    `json:"report"`
}

// Logger builds the entry of the current run and persists it once.
type Logger struct {
	store Store
	log   zerolog.Logger
	entry *model.IngestionLogEntry
}

// NewLogger returns a Logger writing to store.
func NewLogger(store Store, log zerolog.Logger) *Logger {
	return &Logger{store: store, log: log}
}

// Begin starts the entry of a run over w.
func (l *Logger) Begin(source string, w window.Window, now time.Time) *model.IngestionLogEntry {
	l.entry = &model.IngestionLogEntry{
		ID:         uuid.New(),
		Source:     source,
		Start:      w.Start,
		End:        w.End,
		LastUpdate: now,
		Success:    true,
	}
	return l.entry
}

// Finish completes the entry from the run's counters and persists it unless
// dryRun. The entry is returned in both cases.
func (l *Logger) Finish(ctx context.Context, tally *model.Tally, dryRun bool) (*model.IngestionLogEntry, error) {
	e, err := l.current()
	if err != nil {
		return nil, err
	}

	nested := report.Build(tally)
	payload, err := json.Marshal(Payload{Counters: nested.Global, Report: nested})
	if err != nil {
		return nil, fmt.Errorf("marshal ingestion report: %w", err)
	}

	e.LastUpdate = time.Now()
	e.Loaded = tally.Loaded()
	e.Report = payload
	if tally.StorageFailures() > 0 {
		e.Success = false
		e.Message = StorageFailureMessage
	}

	return e, l.persist(ctx, e, dryRun)
}

// Fail records a run that aborted after its window was resolved. Such an
// entry never becomes a checkpoint.
func (l *Logger) Fail(ctx context.Context, cause error, dryRun bool) (*model.IngestionLogEntry, error) {
	e, err := l.current()
	if err != nil {
		return nil, err
	}
	e.LastUpdate = time.Now()
	e.Success = false
	e.Message = cause.Error()
	return e, l.persist(ctx, e, dryRun)
}

func (l *Logger) current() (*model.IngestionLogEntry, error) {
	if l.entry == nil {
		return nil, fmt.Errorf("audit entry not started")
	}
	return l.entry, nil
}

func (l *Logger) persist(ctx context.Context, e *model.IngestionLogEntry, dryRun bool) error {
	log := l.log.With().
		Str("run_id", e.ID.String()).
		Str("source", e.Source).
		Bool("success", e.Success).
		Int64("loaded", e.Loaded).
		Logger()

	if dryRun {
		log.Info().Msg("dry run, ingestion log entry not persisted")
		return nil
	}
	if err := l.store.Insert(ctx, e); err != nil {
		return err
	}
	l.entry = nil
	log.Info().Msg("ingestion log entry persisted")
	return nil
}

// Checkpoint returns the window checkpoint lookup for source: the end of the
// latest successful run.
func Checkpoint(store Store, source string) window.CheckpointFunc {
	return func(ctx context.Context) (int64, bool, error) {
		e, err := store.LastSuccessful(ctx, source)
		if err != nil {
			return 0, false, err
		}
		if e == nil {
			return 0, false, nil
		}
		return e.End, true, nil
	}
}
