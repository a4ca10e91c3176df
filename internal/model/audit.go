package model

import (
	"time"

	"github.com/google/uuid"
)

// IngestionLogEntry is the audit record of one ingestion run.
type IngestionLogEntry struct {
	ID         uuid.UUID `db:"id"`
	Source     string    `db:"source"`
	Start      int64     `db:"start_time"`
	End        int64     `db:"end_time"`
	LastUpdate time.Time `db:"last_update"`
	Success    bool      `db:"success"`
	Message    string    `db:"message"`
	Loaded     int64     `db:"num_loaded"`
	Report     []byte    `db:"report"`
}

// OutcomeRecord is the per-instance line of the outcome ledger.
type OutcomeRecord struct {
	RunID      string `parquet:"run_id"`
	Resource   string `parquet:"resource"`
	Kernel     string `parquet:"kernel"`
	NumUnits   int32  `parquet:"num_units"`
	InstanceID int64  `parquet:"instance_id"`
	Collected  int64  `parquet:"collected"` // unix seconds
	Outcome    string `parquet:"outcome"`
	Incomplete bool   `parquet:"incomplete"`
	Message    string `parquet:"message"`
}
