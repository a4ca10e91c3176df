package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/db"
	"github.com/gyeh/akload/internal/model"
	embedsql "github.com/gyeh/akload/internal/sql"
)

// Store writes parsed instances into ak.instance and ak.metric_data. An
// instance's identity is (kernel id, collected, resource id).
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewStore returns a Store backed by pool.
func NewStore(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// Store persists inst in one transaction. Without Replace an existing row
// with the same identity yields StoreDuplicate; with Replace the old row and
// its metrics are deleted first. In dry-run the transaction is rolled back
// after every statement has run, so classification matches a real run.
func (s *Store) Store(ctx context.Context, inst *model.ParsedInstance, opts model.StoreOptions) model.StoreResult {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	kernelID, err := s.resolveKernel(ctx, tx, inst)
	if err != nil {
		return classify(err)
	}

	if opts.Replace {
		if _, err := tx.Exec(ctx, embedsql.DeleteInstance, kernelID, inst.Collected, inst.ResourceID); err != nil {
			return classify(fmt.Errorf("delete previous instance: %w", err))
		}
	}

	params := inst.Parameters
	if params == nil {
		params = []model.ParameterValue{}
	}
	tag, err := tx.Exec(ctx, embedsql.InsertInstance,
		kernelID,
		inst.Collected,
		inst.ResourceID,
		inst.InstanceID,
		nilIfEmpty(inst.JobID),
		inst.Status,
		nilIfEmpty(inst.Message),
		nilIfEmpty(inst.Stderr),
		nilIfEmpty(inst.Body),
		nilIfEmpty(inst.EnvVersion),
		params,
		opts.AddToHistory,
		opts.RecalcEligible,
	)
	if err != nil {
		return classify(fmt.Errorf("insert instance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return model.StoreResult{
			Kind: model.StoreDuplicate,
			Message: fmt.Sprintf("instance %s/%d on %s at %s already stored",
				inst.KernelBasename, inst.NumUnits, inst.ResourceNickname, inst.Collected.UTC().Format("2006-01-02T15:04:05Z")),
		}
	}

	if len(inst.Metrics) > 0 {
		rows := make([]db.MetricRow, 0, len(inst.Metrics))
		for _, m := range inst.Metrics {
			var metricID int64
			if err := tx.QueryRow(ctx, embedsql.UpsertMetric, m.Name, m.Unit).Scan(&metricID); err != nil {
				return classify(fmt.Errorf("upsert metric %q: %w", m.Name, err))
			}
			rows = append(rows, db.MetricRow{
				KernelID:   kernelID,
				Collected:  inst.Collected,
				ResourceID: inst.ResourceID,
				MetricID:   metricID,
				Value:      m.Value,
			})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"ak", "metric_data"},
			db.MetricDataColumns(),
			db.NewMetricSource(rows),
		); err != nil {
			return classify(fmt.Errorf("copy metric data: %w", err))
		}
	}

	if opts.DryRun {
		return model.StoreResult{Kind: model.StoreOK}
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return model.StoreResult{Kind: model.StoreOK}
}

// resolveKernel returns the per-scale kernel id, registering the definition
// (hidden) and the scale when the catalog did not know them.
func (s *Store) resolveKernel(ctx context.Context, tx pgx.Tx, inst *model.ParsedInstance) (int64, error) {
	if inst.KernelID != 0 {
		return inst.KernelID, nil
	}

	defID := inst.KernelDefID
	if defID == 0 {
		unit := inst.ProcessorUnit
		if unit == "" {
			unit = model.ProcessorUnitNode
		}
		if err := tx.QueryRow(ctx, embedsql.RegisterKernelDef, inst.KernelName, inst.KernelBasename, unit).Scan(&defID); err != nil {
			return 0, fmt.Errorf("register kernel definition %q: %w", inst.KernelBasename, err)
		}
		s.log.Info().Str("kernel", inst.KernelBasename).Int64("ak_def_id", defID).Msg("registered new kernel definition (hidden)")
	}

	var kernelID int64
	name := fmt.Sprintf("%s.%d", inst.KernelBasename, inst.NumUnits)
	if err := tx.QueryRow(ctx, embedsql.RegisterKernel, defID, inst.NumUnits, name).Scan(&kernelID); err != nil {
		return 0, fmt.Errorf("register kernel scale %s: %w", name, err)
	}
	return kernelID, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
