package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/model"
)

// kernelRef is the catalog identity of one (kernel, scale) group on a resource.
type kernelRef struct {
	resource model.Resource
	basename string
	numUnits int
	def      model.KernelDefinition
	known    bool // definition present in the catalog
	kernelID int64
	mapped   bool // scale present in the catalog
}

// processResource discovers and ingests the instances of one resource. It
// owns the returned Tally; the caller merges it into the run.
func (c *Controller) processResource(ctx context.Context, res model.Resource, view catalogView, opts Options) *model.Tally {
	tally := model.NewTally()
	log := c.log.With().Str("resource", res.Nickname).Logger()

	groups, err := c.deps.Discovery.ListInstances(ctx, res, opts.Window, opts.Kernel)
	if err != nil {
		log.Error().Err(err).Str("severity", "critical").Msg("instance discovery failed, skipping resource")
		tally.SkipResource(res.Nickname)
		return tally
	}

	basenames := make([]string, 0, len(groups))
	for b := range groups {
		basenames = append(basenames, b)
	}
	sort.Strings(basenames)

	for _, basename := range basenames {
		def, known := view.defs[basename]
		switch {
		case !known:
			log.Warn().Str("kernel", basename).Str("policy", string(opts.Unmapped)).Msg("kernel not in catalog")
		case !def.Enabled:
			log.Warn().Str("kernel", basename).Msg("kernel disabled in catalog, instances will not be stored")
		}

		scales := groups[basename]
		units := make([]int, 0, len(scales))
		for u := range scales {
			units = append(units, u)
		}
		sort.Ints(units)

		for _, u := range units {
			kernelID, mapped := view.index[basename][u]
			if known && def.Enabled && !mapped {
				log.Warn().Str("kernel", basename).Int("num_units", u).Str("policy", string(opts.Unmapped)).Msg("kernel scale not in catalog")
			}
			ref := kernelRef{
				resource: res,
				basename: basename,
				numUnits: u,
				def:      def,
				known:    known,
				kernelID: kernelID,
				mapped:   known && mapped,
			}
			for _, raw := range scales[u] {
				if ctx.Err() != nil {
					return tally
				}
				c.processInstance(ctx, log, tally, ref, raw, opts)
			}
		}

		kc := tally.ByResource[res.Nickname][basename]
		log.Debug().
			Str("kernel", basename).
			Int64("examined", kc.Get(model.OutcomeExamined)).
			Int64("loaded", kc.Get(model.OutcomeLoaded)).
			Msg("kernel processed")
	}

	rc := tally.Resource(res.Nickname)
	log.Info().
		Int64("examined", rc.Get(model.OutcomeExamined)).
		Int64("loaded", rc.Get(model.OutcomeLoaded)).
		Int64("incomplete", rc.Get(model.OutcomeIncomplete)).
		Int64("duplicate", rc.Get(model.OutcomeDuplicate)).
		Int64("parse_error", rc.Get(model.OutcomeParseError)).
		Msg("resource processed")
	return tally
}

// processInstance counts raw as examined, classifies it and records exactly
// one terminal outcome.
func (c *Controller) processInstance(ctx context.Context, log zerolog.Logger, tally *model.Tally, ref kernelRef, raw model.RawInstance, opts Options) {
	nick := ref.resource.Nickname
	tally.Record(nick, ref.basename, model.OutcomeExamined)
	if !raw.Completed {
		tally.Record(nick, ref.basename, model.OutcomeIncomplete)
	}

	outcome, msg := c.classify(ctx, ref, raw, opts)
	tally.Record(nick, ref.basename, outcome)

	ev := log.Debug()
	switch outcome {
	case model.OutcomeParseError, model.OutcomeError, model.OutcomeUnknownType, model.OutcomeUnmapped:
		ev = log.Warn()
	case model.OutcomeStorageError, model.OutcomeSQLError, model.OutcomeException:
		ev = log.Error()
	}
	ev.Str("kernel", ref.basename).
		Int("num_units", ref.numUnits).
		Int64("instance_id", raw.InstanceID).
		Time("collected", raw.Collected).
		Str("outcome", string(outcome)).
		Str("detail", msg).
		Msg("instance classified")

	c.emit(model.OutcomeRecord{
		RunID:      opts.RunID,
		Resource:   nick,
		Kernel:     ref.basename,
		NumUnits:   int32(ref.numUnits),
		InstanceID: raw.InstanceID,
		Collected:  raw.Collected.Unix(),
		Outcome:    string(outcome),
		Incomplete: !raw.Completed,
		Message:    msg,
	})
}

// classify runs parse and store for one instance. A panic anywhere in the
// collaborators is recovered and classified as an exception.
func (c *Controller) classify(ctx context.Context, ref kernelRef, raw model.RawInstance, opts Options) (outcome model.Outcome, msg string) {
	defer func() {
		if r := recover(); r != nil {
			outcome = model.OutcomeException
			msg = fmt.Sprintf("panic: %v", r)
		}
	}()

	if ref.known && !ref.def.Enabled {
		return model.OutcomeUnmapped, fmt.Sprintf("kernel %s is disabled in the catalog", ref.basename)
	}
	if !ref.mapped && opts.Unmapped == UnmappedSkip {
		return model.OutcomeUnmapped, fmt.Sprintf("%s at %d units is not in the catalog", ref.basename, ref.numUnits)
	}

	pr := c.deps.Parser.Parse(ctx, raw)
	switch pr.Kind {
	case model.ParseOK:
	case model.ParseFailed:
		return model.OutcomeParseError, pr.Message
	case model.ParseQueued:
		return model.OutcomeQueued, pr.Message
	case model.ParseGenericError:
		return model.OutcomeError, pr.Message
	case model.ParseUnknownType:
		return model.OutcomeUnknownType, pr.Message
	default:
		return model.OutcomeException, fmt.Sprintf("parser returned unrecognized kind %q", pr.Kind)
	}
	if pr.Data == nil {
		return model.OutcomeException, "parser reported success without data"
	}

	inst := annotate(pr.Data, ref, raw)
	sr := c.deps.Store.Store(ctx, inst, model.StoreOptions{
		Replace:        opts.Replace || opts.dryRemoved.Covers(inst),
		AddToHistory:   true,
		RecalcEligible: true,
		DryRun:         opts.DryRun,
	})
	switch sr.Kind {
	case model.StoreOK:
	case model.StoreDuplicate:
		return model.OutcomeDuplicate, sr.Message
	case model.StoreFailed:
		return model.OutcomeStorageError, sr.Message
	case model.StoreTransport:
		return model.OutcomeSQLError, sr.Message
	default:
		return model.OutcomeException, fmt.Sprintf("store returned unrecognized kind %q", sr.Kind)
	}

	if !raw.Completed {
		return model.OutcomeStoredIncomplete, ""
	}
	return model.OutcomeLoaded, ""
}

// annotate copies the parsed payload into a fresh ParsedInstance and sets
// every identity field the store consumes.
func annotate(parsed *model.ParsedInstance, ref kernelRef, raw model.RawInstance) *model.ParsedInstance {
	inst := *parsed

	inst.ResourceID = ref.resource.ID
	inst.ResourceName = ref.resource.Name
	inst.ResourceNickname = ref.resource.Nickname
	inst.ResourceVisible = ref.resource.Visible

	inst.KernelBasename = ref.basename
	inst.NumUnits = ref.numUnits
	inst.KernelDefID = 0
	inst.KernelName = ref.basename
	inst.KernelVisible = false
	inst.KernelID = 0
	if inst.ProcessorUnit == "" {
		inst.ProcessorUnit = model.ProcessorUnitNode
	}
	if ref.known {
		inst.KernelDefID = ref.def.ID
		inst.KernelName = ref.def.Name
		inst.KernelVisible = ref.def.Visible
		inst.ProcessorUnit = ref.def.ProcessorUnit
	}
	if ref.mapped {
		inst.KernelID = ref.kernelID
	}

	inst.InstanceID = raw.InstanceID
	inst.Collected = raw.Collected
	inst.Completed = raw.Completed
	return &inst
}
