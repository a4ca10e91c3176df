// Package warehouse is the Postgres side of ingestion: the resource and
// kernel catalog, instance storage with duplicate detection, window-scoped
// removal and control band computation.
package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/akload/internal/model"
	embedsql "github.com/gyeh/akload/internal/sql"
)

// Catalog reads resources and kernel definitions from the warehouse.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog returns a Catalog backed by pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// LoadResources returns the enabled resources keyed by nickname, restricted
// to nickname when non-empty.
func (c *Catalog) LoadResources(ctx context.Context, nickname string) (map[string]model.Resource, error) {
	rows, err := c.pool.Query(ctx, embedsql.LoadResources, nickname)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Resource])
	if err != nil {
		return nil, fmt.Errorf("scan resources: %w", err)
	}

	out := make(map[string]model.Resource, len(list))
	for _, r := range list {
		out[r.Nickname] = r
	}
	return out, nil
}

// LoadKernelDefinitions returns every kernel definition keyed by basename,
// disabled ones included so their instances are not mistaken for new kernels.
func (c *Catalog) LoadKernelDefinitions(ctx context.Context) (map[string]model.KernelDefinition, error) {
	rows, err := c.pool.Query(ctx, embedsql.LoadKernelDefs)
	if err != nil {
		return nil, fmt.Errorf("query kernel definitions: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.KernelDefinition])
	if err != nil {
		return nil, fmt.Errorf("scan kernel definitions: %w", err)
	}

	out := make(map[string]model.KernelDefinition, len(list))
	for _, d := range list {
		out[d.Basename] = d
	}
	return out, nil
}

// LoadKernelIDIndex returns kernel ids keyed by basename then number of units.
func (c *Catalog) LoadKernelIDIndex(ctx context.Context) (map[string]map[int]int64, error) {
	rows, err := c.pool.Query(ctx, embedsql.LoadKernelIndex)
	if err != nil {
		return nil, fmt.Errorf("query kernel index: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[int]int64)
	for rows.Next() {
		var (
			basename string
			units    int
			id       int64
		)
		if err := rows.Scan(&basename, &units, &id); err != nil {
			return nil, fmt.Errorf("scan kernel index: %w", err)
		}
		if out[basename] == nil {
			out[basename] = make(map[int]int64)
		}
		out[basename][units] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kernel index: %w", err)
	}
	return out, nil
}
