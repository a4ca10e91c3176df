package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/akload/internal/model"
	"github.com/gyeh/akload/internal/window"
)

// UnmappedPolicy decides what happens to an instance whose kernel or scale
// is unknown to the catalog.
type UnmappedPolicy string

const (
	// UnmappedProcess warns and still parses and stores the instance, so new
	// or renamed kernels are caught instead of silently dropped.
	UnmappedProcess UnmappedPolicy = "process"
	// UnmappedSkip warns and classifies the instance as unmapped.
	UnmappedSkip UnmappedPolicy = "skip"
)

// ControlMode selects the control band work done after ingestion.
type ControlMode int

const (
	ControlsNone ControlMode = iota
	ControlsCalculate
	ControlsRecalculate
)

// Options configure one ingestion run.
type Options struct {
	RunID    string
	Window   window.Window
	Resource string // nickname filter, empty for all
	Kernel   string // basename substring filter, empty for all
	DryRun   bool
	Replace  bool
	Remove   bool
	Controls ControlMode
	Unmapped UnmappedPolicy
	Workers  int

	// set for a dry run with Remove, so stores see the window as removed
	dryRemoved *model.RemoveFilter
}

// Deps are the collaborators a Controller drives. Sink is optional.
type Deps struct {
	Catalog   Catalog
	Discovery Discovery
	Parser    Parser
	Store     Store
	Controls  ControlRecalculator
	Sink      OutcomeSink
}

// Result summarizes a completed run.
type Result struct {
	Tally       *model.Tally
	Resources   int
	Removed     int64
	ControlsErr error
	Duration    time.Duration
}

// Controller orchestrates an ingestion run: resources → kernels → scales →
// instances, classifying every instance into exactly one terminal outcome.
type Controller struct {
	deps Deps
	log  zerolog.Logger

	sinkMu  sync.Mutex
	sinkErr error
}

// New returns a Controller over deps.
func New(deps Deps, log zerolog.Logger) *Controller {
	return &Controller{deps: deps, log: log}
}

// catalogView is the read-only catalog snapshot shared by all resources of a run.
type catalogView struct {
	defs  map[string]model.KernelDefinition
	index map[string]map[int]int64
}

// Run executes the ingestion run. Errors returned are fatal for the run;
// per-resource and per-instance failures are only counted.
func (c *Controller) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	if opts.Unmapped == "" {
		opts.Unmapped = UnmappedProcess
	}

	log := c.log.With().Str("window", opts.Window.String()).Logger()

	resources, err := c.deps.Catalog.LoadResources(ctx, opts.Resource)
	if err != nil {
		return nil, &PipelineError{Phase: "catalog", Err: fmt.Errorf("load resources: %w", err)}
	}
	if len(resources) == 0 {
		err := ErrNoResources
		if opts.Resource != "" {
			err = fmt.Errorf("%w matching %q", ErrNoResources, opts.Resource)
		}
		return nil, &PipelineError{Phase: "catalog", Err: err}
	}

	defs, err := c.deps.Catalog.LoadKernelDefinitions(ctx)
	if err != nil {
		return nil, &PipelineError{Phase: "catalog", Err: fmt.Errorf("load kernel definitions: %w", err)}
	}
	index, err := c.deps.Catalog.LoadKernelIDIndex(ctx)
	if err != nil {
		return nil, &PipelineError{Phase: "catalog", Err: fmt.Errorf("load kernel index: %w", err)}
	}
	view := catalogView{defs: defs, index: index}

	log.Info().
		Int("resources", len(resources)).
		Int("kernel_definitions", len(defs)).
		Bool("dry_run", opts.DryRun).
		Bool("replace", opts.Replace).
		Msg("catalog loaded")

	result := &Result{Tally: model.NewTally(), Resources: len(resources)}

	if opts.Remove {
		filter, err := removeFilter(opts, resources, defs)
		if err != nil {
			return nil, &PipelineError{Phase: "remove", Err: err}
		}
		n, err := c.deps.Store.RemoveWindow(ctx, filter, opts.DryRun)
		if err != nil {
			return nil, &PipelineError{Phase: "remove", Err: err}
		}
		result.Removed = n
		if opts.DryRun {
			opts.dryRemoved = &filter
		}
		log.Info().Int64("rows", n).Bool("dry_run", opts.DryRun).Msg("removed stored instances in window")
	}

	nicknames := make([]string, 0, len(resources))
	for nick := range resources {
		nicknames = append(nicknames, nick)
	}
	sort.Strings(nicknames)

	tallies := make([]*model.Tally, len(nicknames))
	if opts.Workers <= 1 {
		for i, nick := range nicknames {
			if ctx.Err() != nil {
				break
			}
			tallies[i] = c.processResource(ctx, resources[nick], view, opts)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i, nick := range nicknames {
			i, nick := i, nick
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				tallies[i] = c.processResource(ctx, resources[nick], view, opts)
				return nil
			})
		}
		_ = g.Wait()
	}
	for _, t := range tallies {
		result.Tally.Merge(t)
	}

	if err := ctx.Err(); err != nil {
		return result, &PipelineError{Phase: "discover", Err: err}
	}

	if opts.Controls != ControlsNone {
		result.ControlsErr = c.recalculate(ctx, opts, resources, defs)
	}

	result.Duration = time.Since(start)
	log.Info().
		Int64("examined", result.Tally.Global.Get(model.OutcomeExamined)).
		Int64("loaded", result.Tally.Loaded()).
		Int64("duplicate", result.Tally.Global.Get(model.OutcomeDuplicate)).
		Int64("storage_failures", result.Tally.StorageFailures()).
		Str("duration", result.Duration.String()).
		Msg("ingestion complete")

	return result, nil
}

// recalculate runs the control band recomputation once for the run. A failure
// is logged and returned but never undoes stored instances.
func (c *Controller) recalculate(ctx context.Context, opts Options, resources map[string]model.Resource, defs map[string]model.KernelDefinition) error {
	if c.deps.Controls == nil {
		return nil
	}
	if opts.DryRun {
		c.log.Info().Msg("dry run, skipping control recalculation")
		return nil
	}

	scope := model.ControlScope{Recalculate: opts.Controls == ControlsRecalculate}
	if opts.Resource != "" {
		if r, ok := resources[opts.Resource]; ok {
			id := r.ID
			scope.ResourceID = &id
		}
	}
	if opts.Kernel != "" {
		// definitions registered during this run must be visible to the match
		if fresh, err := c.deps.Catalog.LoadKernelDefinitions(ctx); err == nil {
			defs = fresh
		}
		def, err := resolveKernelDef(opts.Kernel, defs)
		if err != nil {
			err = fmt.Errorf("scope control recalculation: %w", err)
			c.log.Error().Err(err).Msg("control recalculation skipped")
			return err
		}
		id := def.ID
		scope.KernelDefID = &id
	}

	start := time.Now()
	if err := c.deps.Controls.Recalculate(ctx, scope); err != nil {
		c.log.Error().Err(err).Msg("control recalculation failed")
		return err
	}
	c.log.Info().
		Bool("recalculate", scope.Recalculate).
		Dur("duration", time.Since(start)).
		Msg("control bands updated")
	return nil
}

// resolveKernelDef picks the one definition a kernel filter names. An exact
// basename wins; otherwise the case-insensitive substring must match exactly
// one definition.
func resolveKernelDef(filter string, defs map[string]model.KernelDefinition) (model.KernelDefinition, error) {
	if def, ok := defs[filter]; ok {
		return def, nil
	}
	needle := strings.ToLower(filter)
	var matches []string
	for basename := range defs {
		if strings.Contains(strings.ToLower(basename), needle) {
			matches = append(matches, basename)
		}
	}
	if len(matches) != 1 {
		sort.Strings(matches)
		return model.KernelDefinition{}, fmt.Errorf("kernel filter %q matches %d definitions %v, need exactly one", filter, len(matches), matches)
	}
	return defs[matches[0]], nil
}

// removeFilter builds the removal filter for the run. It covers the same
// instants discovery does.
func removeFilter(opts Options, resources map[string]model.Resource, defs map[string]model.KernelDefinition) (model.RemoveFilter, error) {
	f := model.RemoveFilter{
		Start: opts.Window.StartTime(),
		End:   opts.Window.UpperBound(),
	}
	if opts.Resource != "" {
		r, ok := resources[opts.Resource]
		if !ok {
			return f, fmt.Errorf("unknown resource %q", opts.Resource)
		}
		id := r.ID
		f.ResourceID = &id
	}
	if opts.Kernel != "" {
		def, err := resolveKernelDef(opts.Kernel, defs)
		if err != nil {
			return f, err
		}
		id := def.ID
		f.KernelDefID = &id
	}
	return f, nil
}

// SinkErr returns the first error the outcome sink reported, if any.
func (c *Controller) SinkErr() error {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	return c.sinkErr
}

func (c *Controller) emit(rec model.OutcomeRecord) {
	if c.deps.Sink == nil {
		return
	}
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	if err := c.deps.Sink.Record(rec); err != nil && c.sinkErr == nil {
		c.sinkErr = err
		c.log.Warn().Err(err).Msg("outcome ledger write failed, further ledger errors suppressed")
	}
}
