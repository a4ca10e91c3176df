package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/gyeh/akload/internal/model"
)

func sampleTally() *model.Tally {
	t := model.NewTally()
	for _, o := range []model.Outcome{model.OutcomeExamined, model.OutcomeLoaded} {
		t.Record("edge", "namd", o)
		t.Record("edge", "namd", o)
	}
	t.Record("edge", "hpcc", model.OutcomeExamined)
	t.Record("edge", "hpcc", model.OutcomeIncomplete)
	t.Record("edge", "hpcc", model.OutcomeStoredIncomplete)
	t.Record("lakeeffect", "namd", model.OutcomeExamined)
	t.Record("lakeeffect", "namd", model.OutcomeDuplicate)
	t.SkipResource("ub-hpc")
	return t
}

func TestSummary(t *testing.T) {
	c := model.Counters{model.OutcomeExamined: 3, model.OutcomeLoaded: 2, model.OutcomeParseError: 1}

	got := Summary(c)

	want := "examined=3 loaded=2 incomplete=0 stored_incomplete=0 parse_error=1 queued=0 error=0 " +
		"unknown_type=0 unmapped=0 duplicate=0 storage_error=0 sql_error=0 exception=0"
	if got != want {
		t.Errorf("Summary:\n got %q\nwant %q", got, want)
	}
}

func TestSummary_Empty(t *testing.T) {
	got := Summary(model.Counters{})
	if strings.Count(got, "=0") != len(model.AllOutcomes) {
		t.Errorf("expected every kind at zero, got %q", got)
	}
}

func TestBreakdown(t *testing.T) {
	got := Breakdown(sampleTally())
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")

	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), got)
	}
	prefixes := []string{
		"edge: examined=3 loaded=2 incomplete=1 stored_incomplete=1 ",
		"  hpcc: examined=1 loaded=0 ",
		"  namd: examined=2 loaded=2 ",
		"lakeeffect: examined=1 ",
		"  namd: examined=1 ",
		"skipped resources: ub-hpc",
	}
	for i, p := range prefixes {
		if !strings.HasPrefix(lines[i], p) {
			t.Errorf("line %d: got %q, want prefix %q", i, lines[i], p)
		}
	}
}

func TestBuild_JSON(t *testing.T) {
	tally := sampleTally()

	data, err := json.Marshal(Build(tally))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Nested
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Global["examined"] != 4 || back.Global["duplicate"] != 1 {
		t.Errorf("unexpected global counters: %v", back.Global)
	}
	if back.Resources["edge"]["hpcc"]["stored_incomplete"] != 1 {
		t.Errorf("unexpected edge/hpcc counters: %v", back.Resources["edge"]["hpcc"])
	}
	if len(back.Resources["lakeeffect"]["namd"]) != len(model.AllOutcomes) {
		t.Errorf("every kind should be present per scope: %v", back.Resources["lakeeffect"]["namd"])
	}
	if len(back.SkippedResources) != 1 || back.SkippedResources[0] != "ub-hpc" {
		t.Errorf("skipped: %v", back.SkippedResources)
	}
}

func TestBuild_GlobalEqualsSumOfScopes(t *testing.T) {
	n := Build(sampleTally())
	for _, o := range model.AllOutcomes {
		var sum int64
		for _, kernels := range n.Resources {
			for _, c := range kernels {
				sum += c[string(o)]
			}
		}
		if sum != n.Global[string(o)] {
			t.Errorf("%s: global %d, sum of scopes %d", o, n.Global[string(o)], sum)
		}
	}
}
