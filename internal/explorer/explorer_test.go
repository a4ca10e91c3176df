package explorer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/model"
	"github.com/gyeh/akload/internal/testpg"
	"github.com/gyeh/akload/internal/window"
)

func TestMain(m *testing.M) {
	testpg.Main(m, "akexplorer", 15434)
}

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestInstancesSQL(t *testing.T) {
	w := window.Window{Start: base.Unix(), End: base.Add(time.Hour).Unix()}

	query, args, err := InstancesSQL("edge", w, "na'md")
	if err != nil {
		t.Fatalf("InstancesSQL: %v", err)
	}
	if strings.Contains(query, "na'md") || strings.Contains(query, "edge") {
		t.Errorf("filter values must be bound, got %s", query)
	}
	if !strings.Contains(query, `"collected" >= $2`) || !strings.Contains(query, `"collected" < $3`) {
		t.Errorf("unexpected window condition: %s", query)
	}
	if len(args) != 4 || args[3] != "%na'md%" {
		t.Fatalf("unexpected args: %v", args)
	}
	if upper, ok := args[2].(time.Time); !ok || !upper.Equal(base.Add(time.Hour+time.Second)) {
		t.Errorf("upper bound must be one second past the end, got %v", args[2])
	}
}

func TestInstancesSQL_EscapesLikeWildcards(t *testing.T) {
	w := window.Window{Start: base.Unix(), End: base.Add(time.Hour).Unix()}
	for filter, want := range map[string]string{
		"namd_":    `%namd\_%`,
		"100%":     `%100\%%`,
		`dir\name`: `%dir\\name%`,
	} {
		_, args, err := InstancesSQL("edge", w, filter)
		if err != nil {
			t.Fatalf("InstancesSQL: %v", err)
		}
		if args[3] != want {
			t.Errorf("filter %q: got pattern %v, want %s", filter, args[3], want)
		}
	}
}

func TestListInstances(t *testing.T) {
	pool := testpg.Explorer(t)
	ctx := context.Background()

	insert := `INSERT INTO akrr.completed_tasks
		(task_id, resource, app, nodes, collected, completed, job_id, body, message, stderr)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	rows := []struct {
		id        int64
		resource  string
		app       string
		nodes     int
		offset    time.Duration
		completed bool
		body      *string
	}{
		{1, "edge", "namd", 1, 10 * time.Minute, true, strPtr("{}")},
		{2, "edge", "namd", 2, 20 * time.Minute, true, strPtr("{}")},
		{3, "edge", "namd", 1, 30 * time.Minute, false, nil},
		{4, "edge", "hpcc", 8, 40 * time.Minute, true, strPtr("{}")},
		{5, "edge", "namd", 1, time.Hour, true, strPtr("{}")},                        // at end
		{6, "edge", "namd", 1, -time.Minute, true, strPtr("{}")},                     // before start
		{7, "lakeeffect", "namd", 1, 10 * time.Minute, true, strPtr("{}")},           // other resource
		{8, "edge", "namd", 1, time.Hour + 500*time.Millisecond, true, strPtr("{}")}, // inside the end second
		{9, "edge", "namd", 1, time.Hour + time.Second, true, strPtr("{}")},          // next window
		{10, "frontier", "namd_gpu", 1, 10 * time.Minute, true, strPtr("{}")},        // literal underscore
		{11, "frontier", "namdxgpu", 1, 20 * time.Minute, true, strPtr("{}")},        // would match an unescaped _
	}
	for _, r := range rows {
		if _, err := pool.Exec(ctx, insert, r.id, r.resource, r.app, r.nodes, base.Add(r.offset), r.completed,
			"job", r.body, nil, nil); err != nil {
			t.Fatalf("insert task %d: %v", r.id, err)
		}
	}

	ex := New(pool, zerolog.Nop())
	w := window.Window{Start: base.Unix(), End: base.Add(time.Hour).Unix()}
	edge := model.Resource{ID: 1, Nickname: "edge"}

	t.Run("groups_by_kernel_and_scale", func(t *testing.T) {
		got, err := ex.ListInstances(ctx, edge, w, "")
		if err != nil {
			t.Fatalf("ListInstances: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 kernels, got %d", len(got))
		}
		namd1 := got["namd"][1]
		var ids []int64
		for _, in := range namd1 {
			ids = append(ids, in.InstanceID)
		}
		if fmt.Sprint(ids) != "[1 3 5 8]" {
			t.Errorf("unexpected namd/1 ids: %v", ids)
		}
		if namd1[1].Completed || namd1[1].Body != "" {
			t.Errorf("incomplete task should carry no body: %+v", namd1[1])
		}
		if len(got["namd"][2]) != 1 || len(got["hpcc"][8]) != 1 {
			t.Errorf("unexpected grouping: %+v", got)
		}
		if !got["hpcc"][8][0].Collected.Equal(base.Add(40 * time.Minute)) {
			t.Errorf("collected: %v", got["hpcc"][8][0].Collected)
		}
	})

	t.Run("kernel_filter_is_case_insensitive_substring", func(t *testing.T) {
		got, err := ex.ListInstances(ctx, edge, w, "PCC")
		if err != nil {
			t.Fatalf("ListInstances: %v", err)
		}
		if len(got) != 1 || len(got["hpcc"][8]) != 1 {
			t.Errorf("unexpected filtered result: %+v", got)
		}
	})

	t.Run("checkpoint_runs_share_no_gap", func(t *testing.T) {
		req, err := window.NewRequest(window.Options{SinceLast: window.SinceCheckpoint})
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		next, err := req.Resolve(ctx, base.Add(2*time.Hour), func(context.Context) (int64, bool, error) {
			return w.End, true, nil
		})
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}

		first, err := ex.ListInstances(ctx, edge, w, "namd")
		if err != nil {
			t.Fatalf("ListInstances first: %v", err)
		}
		second, err := ex.ListInstances(ctx, edge, next, "namd")
		if err != nil {
			t.Fatalf("ListInstances second: %v", err)
		}
		seen := map[int64]int{}
		for _, runs := range []map[string]map[int][]model.RawInstance{first, second} {
			for _, in := range runs["namd"][1] {
				seen[in.InstanceID]++
			}
		}
		for _, id := range []int64{1, 3, 5, 8, 9} {
			if seen[id] != 1 {
				t.Errorf("task %d discovered %d times across consecutive runs, want 1", id, seen[id])
			}
		}
	})

	t.Run("kernel_filter_underscore_is_literal", func(t *testing.T) {
		got, err := ex.ListInstances(ctx, model.Resource{ID: 3, Nickname: "frontier"}, w, "namd_")
		if err != nil {
			t.Fatalf("ListInstances: %v", err)
		}
		if len(got) != 1 || len(got["namd_gpu"][1]) != 1 {
			t.Errorf("unexpected filtered result: %+v", got)
		}
	})

	t.Run("unreachable_database", func(t *testing.T) {
		pool.Close()
		if _, err := ex.ListInstances(ctx, edge, w, ""); err == nil {
			t.Fatal("expected error from closed pool")
		}
	})
}

func strPtr(s string) *string { return &s }
