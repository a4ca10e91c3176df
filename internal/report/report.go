// Package report renders the counters of an ingestion run.
package report

import (
	"fmt"
	"strings"

	"github.com/gyeh/akload/internal/model"
)

// Summary renders c as one line listing every counter kind in canonical
// order, zeros included.
func Summary(c model.Counters) string {
	parts := make([]string, len(model.AllOutcomes))
	for i, o := range model.AllOutcomes {
		parts[i] = fmt.Sprintf("%s=%d", o, c.Get(o))
	}
	return strings.Join(parts, " ")
}

// Breakdown renders the per-resource, per-kernel counters, one resource
// header followed by one indented line per kernel.
func Breakdown(t *model.Tally) string {
	var b strings.Builder
	for _, res := range t.Resources() {
		fmt.Fprintf(&b, "%s: %s\n", res, Summary(t.Resource(res)))
		for _, kernel := range t.Kernels(res) {
			fmt.Fprintf(&b, "  %s: %s\n", kernel, Summary(t.ByResource[res][kernel]))
		}
	}
	if len(t.SkippedResources) > 0 {
		fmt.Fprintf(&b, "skipped resources: %s\n", strings.Join(t.SkippedResources, ", "))
	}
	return b.String()
}

// Nested is the JSON form of a run's counters.
type Nested struct {
	Global           map[string]int64                       `json:"global"`
	Resources        map[string]map[string]map[string]int64 `json:"resources"`
	SkippedResources []string                               `json:"skipped_resources,omitempty"`
}

// Build converts t into its JSON form. Every counter kind is present in every
// scope so consumers need no defaulting.
func Build(t *model.Tally) Nested {
	n := Nested{
		Global:           counts(t.Global),
		Resources:        make(map[string]map[string]map[string]int64, len(t.ByResource)),
		SkippedResources: t.SkippedResources,
	}
	for res, kernels := range t.ByResource {
		byKernel := make(map[string]map[string]int64, len(kernels))
		for kernel, c := range kernels {
			byKernel[kernel] = counts(c)
		}
		n.Resources[res] = byKernel
	}
	return n
}

func counts(c model.Counters) map[string]int64 {
	out := make(map[string]int64, len(model.AllOutcomes))
	for _, o := range model.AllOutcomes {
		out[string(o)] = c.Get(o)
	}
	return out
}
