// Package window resolves the [start, end) interval an ingestion run covers,
// either from explicit bounds, a fixed lookback keyword or the checkpoint
// left by the last successful run.
package window

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConfig marks every window error caused by user input.
var ErrConfig = errors.New("configuration error")

// Keywords accepted by --since-last.
const (
	SinceHour       = "hour"
	SinceDay        = "day"
	SinceWeek       = "week"
	SinceMonth      = "month"
	SinceCheckpoint = "checkpoint"
)

const secondsPerDay = 86400

var sinceDurations = map[string]int64{
	SinceHour:  3600,
	SinceDay:   secondsPerDay,
	SinceWeek:  7 * secondsPerDay,
	SinceMonth: 30 * secondsPerDay,
}

// Window is an ingestion interval in unix epoch seconds. Both bounds are
// inclusive: an instance collected at any instant within the End second
// belongs to the window.
type Window struct {
	Start int64
	End   int64
}

// StartTime returns Start as a time.Time.
func (w Window) StartTime() time.Time { return time.Unix(w.Start, 0) }

// EndTime returns End as a time.Time.
func (w Window) EndTime() time.Time { return time.Unix(w.End, 0) }

// UpperBound returns the first instant after the window, one second past End.
func (w Window) UpperBound() time.Time { return time.Unix(w.End+1, 0) }

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.StartTime().Format(time.RFC3339), w.EndTime().Format(time.RFC3339))
}

// Options are the raw user inputs for a window.
type Options struct {
	SinceLast  string
	Start      string
	End        string
	OffsetDays int
}

// CheckpointFunc returns the end time of the last successful ingestion run.
// ok is false when no such run exists.
type CheckpointFunc func(ctx context.Context) (end int64, ok bool, err error)

// Request is a validated, not yet resolved window. All user input has been
// parsed; only "now" and the checkpoint remain to be supplied.
type Request struct {
	since  string
	start  *int64
	end    *int64
	offset int64
}

// NewRequest parses and validates opts without contacting anything.
func NewRequest(opts Options) (*Request, error) {
	r := &Request{since: opts.SinceLast}

	if opts.OffsetDays < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative, got %d", ErrConfig, opts.OffsetDays)
	}
	r.offset = int64(opts.OffsetDays) * secondsPerDay

	if opts.Start != "" {
		v, err := ParseInstant(opts.Start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		r.start = &v
	}
	if opts.End != "" {
		v, err := ParseInstant(opts.End)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		r.end = &v
	}

	if r.since != "" {
		if r.start != nil || r.end != nil {
			return nil, fmt.Errorf("%w: --since-last cannot be combined with --start or --end", ErrConfig)
		}
		if _, ok := sinceDurations[r.since]; !ok && r.since != SinceCheckpoint {
			return nil, fmt.Errorf("%w: unknown --since-last value %q", ErrConfig, r.since)
		}
		return r, nil
	}

	if r.start == nil && r.end == nil {
		return nil, fmt.Errorf("%w: one of --since-last or --start is required", ErrConfig)
	}
	if r.start == nil {
		return nil, fmt.Errorf("%w: --end requires --start", ErrConfig)
	}
	if r.end != nil && *r.start > *r.end {
		return nil, fmt.Errorf("%w: start is after end", ErrConfig)
	}
	return r, nil
}

// NeedsCheckpoint reports whether Resolve will call the checkpoint func.
func (r *Request) NeedsCheckpoint() bool {
	return r.since == SinceCheckpoint
}

// Resolve turns the request into a concrete window. cp is only consulted in
// checkpoint mode and may be nil otherwise.
func (r *Request) Resolve(ctx context.Context, now time.Time, cp CheckpointFunc) (Window, error) {
	nowSec := now.Unix()
	var w Window

	switch {
	case r.since == SinceCheckpoint:
		if cp == nil {
			return Window{}, fmt.Errorf("%w: no checkpoint source configured", ErrConfig)
		}
		last, ok, err := cp(ctx)
		if err != nil {
			return Window{}, fmt.Errorf("read checkpoint: %w", err)
		}
		if !ok {
			return Window{}, fmt.Errorf("%w: no successful ingestion recorded, cannot resume from checkpoint", ErrConfig)
		}
		w = Window{Start: last + 1, End: nowSec}
	case r.since != "":
		w = Window{Start: nowSec - sinceDurations[r.since], End: nowSec}
	default:
		w.Start = *r.start
		w.End = nowSec
		if r.end != nil {
			w.End = *r.end
		}
	}

	w.Start -= r.offset
	if w.Start < 0 || w.End < 0 {
		return Window{}, fmt.Errorf("%w: window %d..%d falls before the epoch", ErrConfig, w.Start, w.End)
	}
	if w.Start > w.End {
		return Window{}, fmt.Errorf("%w: resolved start %d is after end %d", ErrConfig, w.Start, w.End)
	}
	return w, nil
}
