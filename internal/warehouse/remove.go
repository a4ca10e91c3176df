package warehouse

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/gyeh/akload/internal/model"
)

var (
	dialect = goqu.Dialect("postgres")

	instanceTable  = goqu.S("ak").Table("instance")
	appKernelTable = goqu.S("ak").Table("app_kernel")
)

// removeConditions builds the WHERE clause for a removal filter. Every value
// is bound as a parameter.
func removeConditions(f model.RemoveFilter) []exp.Expression {
	conds := []exp.Expression{
		goqu.C("collected").Gte(f.Start),
		goqu.C("collected").Lt(f.End),
	}
	if f.ResourceID != nil {
		conds = append(conds, goqu.C("resource_id").Eq(*f.ResourceID))
	}
	if f.KernelDefID != nil {
		conds = append(conds, goqu.C("ak_id").In(
			dialect.From(appKernelTable).
				Select("ak_id").
				Where(goqu.C("ak_def_id").Eq(*f.KernelDefID)),
		))
	}
	return conds
}

// RemoveDeleteSQL renders the parameterized DELETE for f.
func RemoveDeleteSQL(f model.RemoveFilter) (string, []any, error) {
	return dialect.Delete(instanceTable).
		Where(removeConditions(f)...).
		Prepared(true).
		ToSQL()
}

// RemoveCountSQL renders the parameterized COUNT matching f.
func RemoveCountSQL(f model.RemoveFilter) (string, []any, error) {
	return dialect.From(instanceTable).
		Select(goqu.COUNT(goqu.Star())).
		Where(removeConditions(f)...).
		Prepared(true).
		ToSQL()
}

// RemoveWindow deletes the stored instances matching f; their metric data
// cascades. In dry-run only the matching rows are counted.
func (s *Store) RemoveWindow(ctx context.Context, f model.RemoveFilter, dryRun bool) (int64, error) {
	if dryRun {
		query, args, err := RemoveCountSQL(f)
		if err != nil {
			return 0, fmt.Errorf("build count: %w", err)
		}
		var n int64
		if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count instances in window: %w", err)
		}
		return n, nil
	}

	query, args, err := RemoveDeleteSQL(f)
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete instances in window: %w", err)
	}
	s.log.Info().
		Time("start", f.Start).
		Time("end", f.End).
		Int64("rows_deleted", tag.RowsAffected()).
		Msg("window removal complete")
	return tag.RowsAffected(), nil
}
