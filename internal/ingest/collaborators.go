package ingest

import (
	"context"

	"github.com/gyeh/akload/internal/model"
	"github.com/gyeh/akload/internal/window"
)

// Catalog enumerates the enabled resources and the known kernels.
type Catalog interface {
	// LoadResources returns enabled resources keyed by nickname, restricted
	// to one nickname when it is non-empty.
	LoadResources(ctx context.Context, nickname string) (map[string]model.Resource, error)
	// LoadKernelDefinitions returns every kernel definition keyed by basename,
	// disabled ones included.
	LoadKernelDefinitions(ctx context.Context) (map[string]model.KernelDefinition, error)
	// LoadKernelIDIndex returns the per-scale kernel id keyed by basename
	// then number of units.
	LoadKernelIDIndex(ctx context.Context) (map[string]map[int]int64, error)
}

// Discovery lists the candidate instances of one resource in a window,
// grouped by kernel basename then by number of units.
type Discovery interface {
	ListInstances(ctx context.Context, res model.Resource, w window.Window, kernelFilter string) (map[string]map[int][]model.RawInstance, error)
}

// Parser converts one raw instance into structured data.
type Parser interface {
	Parse(ctx context.Context, raw model.RawInstance) model.ParseResult
}

// Store persists parsed instances and removes stored ones.
type Store interface {
	Store(ctx context.Context, inst *model.ParsedInstance, opts model.StoreOptions) model.StoreResult
	// RemoveWindow deletes stored instances matching f and returns how many
	// rows were (or, in dry-run, would be) removed.
	RemoveWindow(ctx context.Context, f model.RemoveFilter, dryRun bool) (int64, error)
}

// ControlRecalculator recomputes statistical control bands.
type ControlRecalculator interface {
	Recalculate(ctx context.Context, scope model.ControlScope) error
}

// OutcomeSink receives one record per examined instance.
type OutcomeSink interface {
	Record(rec model.OutcomeRecord) error
}
