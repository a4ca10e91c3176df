package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/model"
	embedsql "github.com/gyeh/akload/internal/sql"
)

// Control band defaults.
const (
	DefaultControlWindow = 20
	DefaultBandWidth     = 2.0
)

// Controls computes control bands as mean ± BandWidth standard deviations
// over the first Window successful instances of each kernel scale, resource
// and metric.
type Controls struct {
	pool      *pgxpool.Pool
	log       zerolog.Logger
	Window    int
	BandWidth float64
}

// NewControls returns Controls with the default window and band width.
func NewControls(pool *pgxpool.Pool, log zerolog.Logger) *Controls {
	return &Controls{pool: pool, log: log, Window: DefaultControlWindow, BandWidth: DefaultBandWidth}
}

// Recalculate fills missing bands in scope, or recomputes every band in
// scope when scope.Recalculate is set.
func (c *Controls) Recalculate(ctx context.Context, scope model.ControlScope) error {
	start := time.Now()
	tag, err := c.pool.Exec(ctx, embedsql.CalculateControls,
		scope.ResourceID,
		scope.KernelDefID,
		c.Window,
		c.BandWidth,
		scope.Recalculate,
	)
	if err != nil {
		return fmt.Errorf("calculate controls: %w", err)
	}
	c.log.Info().
		Int64("bands", tag.RowsAffected()).
		Bool("recalculate", scope.Recalculate).
		Dur("duration", time.Since(start)).
		Msg("control bands computed")
	return nil
}
