package db

import (
	"time"

	"github.com/jackc/pgx/v5"
)

// MetricRow is one ak.metric_data row with its metric id resolved.
type MetricRow struct {
	KernelID   int64
	Collected  time.Time
	ResourceID int64
	MetricID   int64
	Value      float64
}

// MetricDataColumns returns the ordered column names for COPY into ak.metric_data.
func MetricDataColumns() []string {
	return []string{"ak_id", "collected", "resource_id", "metric_id", "value"}
}

// MetricSource implements pgx.CopyFromSource over a slice of MetricRows.
type MetricSource struct {
	rows []MetricRow
	idx  int
}

// NewMetricSource creates a CopyFromSource backed by rows.
func NewMetricSource(rows []MetricRow) *MetricSource {
	return &MetricSource{rows: rows, idx: -1}
}

// Next advances to the next row. Returns false when the rows are exhausted.
func (s *MetricSource) Next() bool {
	s.idx++
	return s.idx < len(s.rows)
}

// Values returns the current row's values in COPY column order.
func (s *MetricSource) Values() ([]any, error) {
	r := s.rows[s.idx]
	return []any{r.KernelID, r.Collected, r.ResourceID, r.MetricID, r.Value}, nil
}

// Err returns any error encountered during iteration.
func (s *MetricSource) Err() error {
	return nil
}

// Compile-time check that MetricSource satisfies the interface.
var _ pgx.CopyFromSource = (*MetricSource)(nil)
