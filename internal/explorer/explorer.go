// Package explorer discovers app kernel instances in the deployment
// engine's database.
package explorer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/model"
	"github.com/gyeh/akload/internal/window"
)

var (
	dialect    = goqu.Dialect("postgres")
	tasksTable = goqu.S("akrr").Table("completed_tasks")

	// backslash is the default ILIKE escape character in Postgres
	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// Explorer lists completed tasks from the explorer database.
type Explorer struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New returns an Explorer backed by pool.
func New(pool *pgxpool.Pool, log zerolog.Logger) *Explorer {
	return &Explorer{pool: pool, log: log}
}

// InstancesSQL renders the parameterized query for one resource and window.
// Both window bounds are inclusive at second precision, so a task collected
// anywhere in the final second belongs to this window and not the next.
// The kernel filter is a literal case-insensitive substring.
func InstancesSQL(nickname string, w window.Window, kernelFilter string) (string, []any, error) {
	ds := dialect.From(tasksTable).
		Select("task_id", "app", "nodes", "collected", "completed", "job_id", "body", "message", "stderr").
		Where(
			goqu.C("resource").Eq(nickname),
			goqu.C("collected").Gte(w.StartTime()),
			goqu.C("collected").Lt(w.UpperBound()),
		).
		Order(goqu.C("app").Asc(), goqu.C("nodes").Asc(), goqu.C("collected").Asc(), goqu.C("task_id").Asc())
	if kernelFilter != "" {
		ds = ds.Where(goqu.C("app").ILike("%" + likeEscaper.Replace(kernelFilter) + "%"))
	}
	return ds.Prepared(true).ToSQL()
}

// ListInstances returns the instances of res collected in w, grouped by
// kernel basename then number of units.
func (e *Explorer) ListInstances(ctx context.Context, res model.Resource, w window.Window, kernelFilter string) (map[string]map[int][]model.RawInstance, error) {
	start := time.Now()
	query, args, err := InstancesSQL(res.Nickname, w, kernelFilter)
	if err != nil {
		return nil, fmt.Errorf("build instance query: %w", err)
	}

	rows, err := e.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query instances for %s: %w", res.Nickname, err)
	}
	defer rows.Close()

	out := make(map[string]map[int][]model.RawInstance)
	var total int
	for rows.Next() {
		var (
			inst                        model.RawInstance
			jobID, body, message, stder *string
		)
		if err := rows.Scan(&inst.InstanceID, &inst.Kernel, &inst.NumUnits, &inst.Collected, &inst.Completed,
			&jobID, &body, &message, &stder); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst.JobID = deref(jobID)
		inst.Body = deref(body)
		inst.Message = deref(message)
		inst.Stderr = deref(stder)

		if out[inst.Kernel] == nil {
			out[inst.Kernel] = make(map[int][]model.RawInstance)
		}
		out[inst.Kernel][inst.NumUnits] = append(out[inst.Kernel][inst.NumUnits], inst)
		total++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances for %s: %w", res.Nickname, err)
	}

	e.log.Debug().
		Str("resource", res.Nickname).
		Int("instances", total).
		Int("kernels", len(out)).
		Dur("duration", time.Since(start)).
		Msg("instances discovered")
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
