package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/akload/internal/model"
	embedsql "github.com/gyeh/akload/internal/sql"
)

// Store persists ingestion log entries.
type Store interface {
	Insert(ctx context.Context, e *model.IngestionLogEntry) error
	// LastSuccessful returns the successful entry with the latest end time
	// for source, or nil when there is none.
	LastSuccessful(ctx context.Context, source string) (*model.IngestionLogEntry, error)
}

// PGStore keeps the ingestion log in ak.ingestion_log.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a PGStore backed by pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Insert(ctx context.Context, e *model.IngestionLogEntry) error {
	_, err := s.pool.Exec(ctx, embedsql.InsertIngestionLog,
		e.ID, e.Source, e.Start, e.End, e.LastUpdate, e.Success, e.Message, e.Loaded, e.Report)
	if err != nil {
		return fmt.Errorf("insert ingestion log: %w", err)
	}
	return nil
}

func (s *PGStore) LastSuccessful(ctx context.Context, source string) (*model.IngestionLogEntry, error) {
	rows, err := s.pool.Query(ctx, embedsql.LastSuccessfulIngestion, source)
	if err != nil {
		return nil, fmt.Errorf("query last ingestion: %w", err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.IngestionLogEntry])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan last ingestion: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. An empty source lists
// every source.
func (s *PGStore) Recent(ctx context.Context, source string, limit int) ([]model.IngestionLogEntry, error) {
	rows, err := s.pool.Query(ctx, embedsql.RecentIngestions, source, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingestion history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.IngestionLogEntry])
	if err != nil {
		return nil, fmt.Errorf("scan ingestion history: %w", err)
	}
	return entries, nil
}
