package ingest

import (
	"errors"
	"fmt"
)

// ErrNoResources is returned when the catalog yields no enabled resource
// matching the filter.
var ErrNoResources = errors.New("no enabled resources")

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
