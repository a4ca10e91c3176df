package outcomes

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/akload/internal/model"
)

var requiredColumns = []string{"run_id", "resource", "kernel", "instance_id", "outcome", "incomplete"}

// ValidateSchema checks that schema carries the ledger columns.
func ValidateSchema(schema *parquet.Schema) error {
	columns := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns[strings.ToLower(field.Name())] = true
	}
	for _, col := range requiredColumns {
		if !columns[col] {
			return fmt.Errorf("missing required column: %s", col)
		}
	}
	return nil
}

// Summary is the aggregate of a ledger.
type Summary struct {
	Rows     int64
	RunIDs   []string
	Counters model.Counters
}

// Summarize reads every record of r and rebuilds the run counters. A record
// whose outcome is not terminal is an error.
func Summarize(r *Reader) (*Summary, error) {
	s := &Summary{Counters: model.Counters{}}
	seen := make(map[string]bool)
	buf := make([]model.OutcomeRecord, 256)

	for {
		n, readErr := r.Read(buf)
		for i := 0; i < n; i++ {
			rec := buf[i]
			o, ok := model.OutcomeByName(rec.Outcome)
			if !ok || !o.IsTerminal() {
				return nil, fmt.Errorf("row %d: invalid outcome %q", s.Rows+1, rec.Outcome)
			}
			s.Rows++
			s.Counters.Inc(model.OutcomeExamined)
			s.Counters.Inc(o)
			if rec.Incomplete {
				s.Counters.Inc(model.OutcomeIncomplete)
			}
			if !seen[rec.RunID] {
				seen[rec.RunID] = true
				s.RunIDs = append(s.RunIDs, rec.RunID)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return s, nil
}

// FileHash computes the hex-encoded SHA-256 of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
