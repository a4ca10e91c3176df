package model

import "sort"

// Counters maps an outcome kind to the number of instances it applies to.
type Counters map[Outcome]int64

// Inc adds one to the counter for o.
func (c Counters) Inc(o Outcome) {
	c[o]++
}

// Get returns the counter for o, zero when absent.
func (c Counters) Get(o Outcome) int64 {
	return c[o]
}

// Merge adds every counter of other into c.
func (c Counters) Merge(other Counters) {
	for o, n := range other {
		c[o] += n
	}
}

// TerminalTotal sums the terminal outcomes. For a consistent scope it equals
// the examined counter.
func (c Counters) TerminalTotal() int64 {
	var total int64
	for _, o := range TerminalOutcomes {
		total += c[o]
	}
	return total
}

// Tally holds the counters of an ingestion run at two granularities: global
// and per resource nickname → kernel basename.
type Tally struct {
	Global           Counters
	ByResource       map[string]map[string]Counters
	SkippedResources []string
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{
		Global:     Counters{},
		ByResource: make(map[string]map[string]Counters),
	}
}

// Record increments o for the (resource, kernel) scope and globally.
func (t *Tally) Record(resource, kernel string, o Outcome) {
	kernels, ok := t.ByResource[resource]
	if !ok {
		kernels = make(map[string]Counters)
		t.ByResource[resource] = kernels
	}
	c, ok := kernels[kernel]
	if !ok {
		c = Counters{}
		kernels[kernel] = c
	}
	c.Inc(o)
	t.Global.Inc(o)
}

// SkipResource notes a resource whose discovery failed.
func (t *Tally) SkipResource(nickname string) {
	t.SkippedResources = append(t.SkippedResources, nickname)
}

// Merge folds other into t by addition.
func (t *Tally) Merge(other *Tally) {
	if other == nil {
		return
	}
	t.Global.Merge(other.Global)
	for res, kernels := range other.ByResource {
		for kernel, c := range kernels {
			for o, n := range c {
				dst, ok := t.ByResource[res]
				if !ok {
					dst = make(map[string]Counters)
					t.ByResource[res] = dst
				}
				if dst[kernel] == nil {
					dst[kernel] = Counters{}
				}
				dst[kernel][o] += n
			}
		}
	}
	t.SkippedResources = append(t.SkippedResources, other.SkippedResources...)
	sort.Strings(t.SkippedResources)
}

// Resource returns the counters of one resource summed across its kernels.
func (t *Tally) Resource(nickname string) Counters {
	sum := Counters{}
	for _, c := range t.ByResource[nickname] {
		sum.Merge(c)
	}
	return sum
}

// Resources returns the resource nicknames with counters, sorted.
func (t *Tally) Resources() []string {
	names := make([]string, 0, len(t.ByResource))
	for name := range t.ByResource {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kernels returns the kernel basenames recorded for a resource, sorted.
func (t *Tally) Kernels(nickname string) []string {
	kernels := t.ByResource[nickname]
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loaded returns the number of instances stored complete in this run.
func (t *Tally) Loaded() int64 {
	return t.Global.Get(OutcomeLoaded)
}

// StorageFailures returns the number of instances whose storage failed,
// whether reported by the database or by the transport.
func (t *Tally) StorageFailures() int64 {
	return t.Global.Get(OutcomeStorageError) + t.Global.Get(OutcomeSQLError)
}
