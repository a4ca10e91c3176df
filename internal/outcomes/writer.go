// Package outcomes writes and reads the per-instance outcome ledger, a
// Parquet file with one row per examined instance.
package outcomes

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/akload/internal/model"
)

const batchSize = 1024

// Writer buffers outcome records and writes them to a Parquet file.
// It is not safe for concurrent use.
type Writer struct {
	file   *os.File
	writer *parquet.GenericWriter[model.OutcomeRecord]
	buf    []model.OutcomeRecord
	count  int64
}

// Create creates (or truncates) the ledger at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create outcome ledger: %w", err)
	}
	return &Writer{
		file:   f,
		writer: parquet.NewGenericWriter[model.OutcomeRecord](f),
		buf:    make([]model.OutcomeRecord, 0, batchSize),
	}, nil
}

// Record appends one record.
func (w *Writer) Record(rec model.OutcomeRecord) error {
	w.buf = append(w.buf, rec)
	w.count++
	if len(w.buf) >= batchSize {
		return w.flush()
	}
	return nil
}

// Count returns the number of records accepted so far.
func (w *Writer) Count() int64 {
	return w.count
}

func (w *Writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if _, err := w.writer.Write(w.buf); err != nil {
		return fmt.Errorf("write outcome rows: %w", err)
	}
	w.buf = w.buf[:0]
	return nil
}

// Close flushes buffered records and finalizes the file.
func (w *Writer) Close() error {
	if err := w.flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.file.Close()
}
