package warehouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/model"
	"github.com/gyeh/akload/internal/testpg"
	"github.com/gyeh/akload/internal/warehouse"
)

// ---------- helpers ----------

type seed struct {
	edgeID  int64
	lakeID  int64
	namdDef int64
	hpccDef int64
	namd1   int64
	namd2   int64
	hpcc8   int64
}

func seedCatalog(t *testing.T, pool *pgxpool.Pool) seed {
	t.Helper()
	ctx := context.Background()
	var s seed
	mustScan := func(dst *int64, sql string, args ...any) {
		t.Helper()
		if err := pool.QueryRow(ctx, sql, args...).Scan(dst); err != nil {
			t.Fatalf("seed %q: %v", sql, err)
		}
	}
	mustScan(&s.edgeID, `INSERT INTO ak.resource (resource, nickname) VALUES ('Edge', 'edge') RETURNING resource_id`)
	mustScan(&s.lakeID, `INSERT INTO ak.resource (resource, nickname) VALUES ('Lake Effect', 'lakeeffect') RETURNING resource_id`)
	if _, err := pool.Exec(ctx, `INSERT INTO ak.resource (resource, nickname, enabled) VALUES ('Retired', 'retired', false)`); err != nil {
		t.Fatalf("seed disabled resource: %v", err)
	}
	mustScan(&s.namdDef, `INSERT INTO ak.app_kernel_def (name, ak_base_name) VALUES ('NAMD', 'namd') RETURNING ak_def_id`)
	mustScan(&s.hpccDef, `INSERT INTO ak.app_kernel_def (name, ak_base_name, processor_unit) VALUES ('HPCC', 'hpcc', 'core') RETURNING ak_def_id`)
	mustScan(&s.namd1, `INSERT INTO ak.app_kernel (ak_def_id, num_units, name) VALUES ($1, 1, 'namd.1') RETURNING ak_id`, s.namdDef)
	mustScan(&s.namd2, `INSERT INTO ak.app_kernel (ak_def_id, num_units, name) VALUES ($1, 2, 'namd.2') RETURNING ak_id`, s.namdDef)
	mustScan(&s.hpcc8, `INSERT INTO ak.app_kernel (ak_def_id, num_units, name) VALUES ($1, 8, 'hpcc.8') RETURNING ak_id`, s.hpccDef)
	return s
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func parsedInstance(s seed, minutes int, wallClock float64) *model.ParsedInstance {
	return &model.ParsedInstance{
		ResourceID:       s.edgeID,
		ResourceName:     "Edge",
		ResourceNickname: "edge",
		ResourceVisible:  true,
		ProcessorUnit:    model.ProcessorUnitNode,
		KernelDefID:      s.namdDef,
		KernelName:       "NAMD",
		KernelBasename:   "namd",
		KernelID:         s.namd1,
		NumUnits:         1,
		InstanceID:       int64(1000 + minutes),
		Collected:        baseTime.Add(time.Duration(minutes) * time.Minute),
		Completed:        true,
		Status:           model.StatusSuccess,
		JobID:            "12345",
		Body:             `{"reporter":"app_kernel"}`,
		EnvVersion:       "2.14",
		Metrics: []model.MetricValue{
			{Name: "Wall Clock Time", Unit: "Second", Value: wallClock},
			{Name: "Simulation Speed", Unit: "Nanosecond per Day", Value: 3.5},
		},
		Parameters: []model.ParameterValue{{Name: "App:Version", Value: "2.14"}},
	}
}

func count(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := pool.QueryRow(context.Background(), sql, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", sql, err)
	}
	return n
}

// ---------- catalog ----------

func TestCatalog(t *testing.T) {
	pool := testpg.Warehouse(t)
	s := seedCatalog(t, pool)
	cat := warehouse.NewCatalog(pool)
	ctx := context.Background()

	t.Run("resources_enabled_only", func(t *testing.T) {
		res, err := cat.LoadResources(ctx, "")
		if err != nil {
			t.Fatalf("LoadResources: %v", err)
		}
		if len(res) != 2 {
			t.Fatalf("expected 2 enabled resources, got %d: %v", len(res), res)
		}
		if res["edge"].ID != s.edgeID || res["edge"].Name != "Edge" || !res["edge"].Visible {
			t.Errorf("unexpected edge: %+v", res["edge"])
		}
		if _, ok := res["retired"]; ok {
			t.Error("disabled resource should not be loaded")
		}
	})

	t.Run("resources_filtered", func(t *testing.T) {
		res, err := cat.LoadResources(ctx, "lakeeffect")
		if err != nil {
			t.Fatalf("LoadResources: %v", err)
		}
		if len(res) != 1 || res["lakeeffect"].ID != s.lakeID {
			t.Errorf("unexpected filtered resources: %v", res)
		}
	})

	t.Run("kernel_definitions", func(t *testing.T) {
		if _, err := pool.Exec(ctx, `INSERT INTO ak.app_kernel_def (name, ak_base_name, enabled) VALUES ('IOR', 'ior', false)`); err != nil {
			t.Fatalf("seed disabled kernel: %v", err)
		}
		defs, err := cat.LoadKernelDefinitions(ctx)
		if err != nil {
			t.Fatalf("LoadKernelDefinitions: %v", err)
		}
		if defs["hpcc"].ProcessorUnit != model.ProcessorUnitCore || defs["hpcc"].ID != s.hpccDef {
			t.Errorf("unexpected hpcc: %+v", defs["hpcc"])
		}
		if ior, ok := defs["ior"]; !ok || ior.Enabled {
			t.Errorf("disabled kernel must be loaded with its flag, got %+v (present=%v)", ior, ok)
		}
	})

	t.Run("kernel_index", func(t *testing.T) {
		idx, err := cat.LoadKernelIDIndex(ctx)
		if err != nil {
			t.Fatalf("LoadKernelIDIndex: %v", err)
		}
		if idx["namd"][2] != s.namd2 || idx["hpcc"][8] != s.hpcc8 {
			t.Errorf("unexpected index: %v", idx)
		}
	})
}

// ---------- store ----------

func TestStore_InsertDuplicateReplace(t *testing.T) {
	pool := testpg.Warehouse(t)
	s := seedCatalog(t, pool)
	store := warehouse.NewStore(pool, zerolog.Nop())
	ctx := context.Background()

	res := store.Store(ctx, parsedInstance(s, 0, 100), model.StoreOptions{AddToHistory: true, RecalcEligible: true})
	if res.Kind != model.StoreOK {
		t.Fatalf("first store: %+v", res)
	}
	if n := count(t, pool, "SELECT count(*) FROM ak.metric_data"); n != 2 {
		t.Errorf("metric rows: got %d, want 2", n)
	}

	t.Run("duplicate_without_replace", func(t *testing.T) {
		res := store.Store(ctx, parsedInstance(s, 0, 200), model.StoreOptions{})
		if res.Kind != model.StoreDuplicate {
			t.Fatalf("expected duplicate, got %+v", res)
		}
		if n := count(t, pool, "SELECT count(*) FROM ak.instance"); n != 1 {
			t.Errorf("instance rows: got %d, want 1", n)
		}
	})

	t.Run("replace_overwrites", func(t *testing.T) {
		res := store.Store(ctx, parsedInstance(s, 0, 300), model.StoreOptions{Replace: true})
		if res.Kind != model.StoreOK {
			t.Fatalf("replace: %+v", res)
		}
		if n := count(t, pool, "SELECT count(*) FROM ak.instance"); n != 1 {
			t.Errorf("instance rows: got %d, want 1", n)
		}
		var v float64
		err := pool.QueryRow(ctx, `SELECT md.value FROM ak.metric_data md
			JOIN ak.metric m ON m.metric_id = md.metric_id WHERE m.name = 'Wall Clock Time'`).Scan(&v)
		if err != nil {
			t.Fatalf("read metric: %v", err)
		}
		if v != 300 {
			t.Errorf("metric value after replace: got %v, want 300", v)
		}
	})

	t.Run("dry_run_writes_nothing", func(t *testing.T) {
		res := store.Store(ctx, parsedInstance(s, 5, 100), model.StoreOptions{DryRun: true})
		if res.Kind != model.StoreOK {
			t.Fatalf("dry run: %+v", res)
		}
		if n := count(t, pool, "SELECT count(*) FROM ak.instance"); n != 1 {
			t.Errorf("instance rows after dry run: got %d, want 1", n)
		}
	})

	t.Run("dry_run_still_detects_duplicates", func(t *testing.T) {
		res := store.Store(ctx, parsedInstance(s, 0, 100), model.StoreOptions{DryRun: true})
		if res.Kind != model.StoreDuplicate {
			t.Fatalf("expected duplicate in dry run, got %+v", res)
		}
	})

	t.Run("dry_run_replace_rolls_back", func(t *testing.T) {
		res := store.Store(ctx, parsedInstance(s, 0, 999), model.StoreOptions{Replace: true, DryRun: true})
		if res.Kind != model.StoreOK {
			t.Fatalf("dry run replace: %+v", res)
		}
		var v float64
		err := pool.QueryRow(ctx, `SELECT md.value FROM ak.metric_data md
			JOIN ak.metric m ON m.metric_id = md.metric_id WHERE m.name = 'Wall Clock Time'`).Scan(&v)
		if err != nil {
			t.Fatalf("read metric: %v", err)
		}
		if v != 300 {
			t.Errorf("metric value after dry run replace: got %v, want 300", v)
		}
	})
}

func TestStore_RegistersUnknownKernelHidden(t *testing.T) {
	pool := testpg.Warehouse(t)
	s := seedCatalog(t, pool)
	store := warehouse.NewStore(pool, zerolog.Nop())
	ctx := context.Background()

	inst := parsedInstance(s, 0, 50)
	inst.KernelDefID = 0
	inst.KernelID = 0
	inst.KernelBasename = "gromacs"
	inst.KernelName = "gromacs"
	inst.NumUnits = 4

	if res := store.Store(ctx, inst, model.StoreOptions{}); res.Kind != model.StoreOK {
		t.Fatalf("store: %+v", res)
	}

	var visible bool
	if err := pool.QueryRow(ctx, "SELECT visible FROM ak.app_kernel_def WHERE ak_base_name = 'gromacs'").Scan(&visible); err != nil {
		t.Fatalf("read definition: %v", err)
	}
	if visible {
		t.Error("auto-registered kernel should be hidden")
	}
	if n := count(t, pool, `SELECT count(*) FROM ak.app_kernel k JOIN ak.app_kernel_def d ON d.ak_def_id = k.ak_def_id
		WHERE d.ak_base_name = 'gromacs' AND k.num_units = 4`); n != 1 {
		t.Errorf("scale rows: got %d, want 1", n)
	}

	// A second instance reuses the registered rows.
	inst2 := *inst
	inst2.Collected = inst.Collected.Add(time.Hour)
	if res := store.Store(ctx, &inst2, model.StoreOptions{}); res.Kind != model.StoreOK {
		t.Fatalf("second store: %+v", res)
	}
	if n := count(t, pool, "SELECT count(*) FROM ak.app_kernel_def WHERE ak_base_name = 'gromacs'"); n != 1 {
		t.Errorf("definitions: got %d, want 1", n)
	}
}

func TestStore_ClassifiesFailures(t *testing.T) {
	pool := testpg.Warehouse(t)
	s := seedCatalog(t, pool)
	ctx := context.Background()

	t.Run("server_error_is_storage_error", func(t *testing.T) {
		store := warehouse.NewStore(pool, zerolog.Nop())
		inst := parsedInstance(s, 0, 1)
		inst.ResourceID = 99999 // violates the resource foreign key
		res := store.Store(ctx, inst, model.StoreOptions{})
		if res.Kind != model.StoreFailed {
			t.Fatalf("expected storage error, got %+v", res)
		}
	})

	t.Run("closed_pool_is_transport_error", func(t *testing.T) {
		closed, err := pgxpool.New(ctx, testpg.DSN())
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		closed.Close()
		store := warehouse.NewStore(closed, zerolog.Nop())
		res := store.Store(ctx, parsedInstance(s, 0, 1), model.StoreOptions{})
		if res.Kind != model.StoreTransport {
			t.Fatalf("expected transport error, got %+v", res)
		}
	})
}

// ---------- removal ----------

func TestStore_RemoveWindow(t *testing.T) {
	pool := testpg.Warehouse(t)
	s := seedCatalog(t, pool)
	store := warehouse.NewStore(pool, zerolog.Nop())
	ctx := context.Background()

	// Three namd instances on edge, one hpcc on edge, one namd on lakeeffect.
	for _, m := range []int{0, 10, 20} {
		if res := store.Store(ctx, parsedInstance(s, m, 100), model.StoreOptions{}); res.Kind != model.StoreOK {
			t.Fatalf("store: %+v", res)
		}
	}
	hpcc := parsedInstance(s, 10, 7)
	hpcc.KernelDefID, hpcc.KernelID, hpcc.KernelBasename, hpcc.NumUnits = s.hpccDef, s.hpcc8, "hpcc", 8
	lake := parsedInstance(s, 10, 7)
	lake.ResourceID, lake.ResourceNickname = s.lakeID, "lakeeffect"
	for _, inst := range []*model.ParsedInstance{hpcc, lake} {
		if res := store.Store(ctx, inst, model.StoreOptions{}); res.Kind != model.StoreOK {
			t.Fatalf("store: %+v", res)
		}
	}

	window := model.RemoveFilter{Start: baseTime.Add(5 * time.Minute), End: baseTime.Add(20*time.Minute + time.Second)}

	t.Run("dry_run_counts_only", func(t *testing.T) {
		n, err := store.RemoveWindow(ctx, window, true)
		if err != nil {
			t.Fatalf("RemoveWindow: %v", err)
		}
		if n != 4 {
			t.Errorf("matching rows: got %d, want 4", n)
		}
		if got := count(t, pool, "SELECT count(*) FROM ak.instance"); got != 5 {
			t.Errorf("rows after dry run: got %d, want 5", got)
		}
	})

	t.Run("scoped_to_resource_and_kernel", func(t *testing.T) {
		f := window
		f.ResourceID = &s.edgeID
		f.KernelDefID = &s.namdDef
		n, err := store.RemoveWindow(ctx, f, false)
		if err != nil {
			t.Fatalf("RemoveWindow: %v", err)
		}
		if n != 2 {
			t.Errorf("deleted: got %d, want 2 (namd at +10 and +20 on edge)", n)
		}
		if got := count(t, pool, "SELECT count(*) FROM ak.instance"); got != 3 {
			t.Errorf("rows left: got %d, want 3", got)
		}
		if got := count(t, pool, "SELECT count(*) FROM ak.metric_data WHERE collected > $1 AND resource_id = $2 AND ak_id = $3",
			baseTime, s.edgeID, s.namd1); got != 0 {
			t.Errorf("metric data should cascade, %d rows left", got)
		}
	})

	t.Run("reload_after_remove", func(t *testing.T) {
		for _, m := range []int{10, 20} {
			if res := store.Store(ctx, parsedInstance(s, m, 100), model.StoreOptions{}); res.Kind != model.StoreOK {
				t.Fatalf("reload: %+v", res)
			}
		}
		if got := count(t, pool, "SELECT count(*) FROM ak.instance"); got != 5 {
			t.Errorf("rows after reload: got %d, want 5", got)
		}
	})
}

// ---------- controls ----------

func TestControls(t *testing.T) {
	pool := testpg.Warehouse(t)
	s := seedCatalog(t, pool)
	store := warehouse.NewStore(pool, zerolog.Nop())
	controls := warehouse.NewControls(pool, zerolog.Nop())
	ctx := context.Background()

	for i, v := range []float64{90, 100, 110} {
		if res := store.Store(ctx, parsedInstance(s, i, v), model.StoreOptions{RecalcEligible: true}); res.Kind != model.StoreOK {
			t.Fatalf("store: %+v", res)
		}
	}

	readBand := func() (mean, lower, upper float64, n int) {
		t.Helper()
		err := pool.QueryRow(ctx, `SELECT cb.mean, cb.lower_bound, cb.upper_bound, cb.sample_size
			FROM ak.control_band cb JOIN ak.metric m ON m.metric_id = cb.metric_id
			WHERE m.name = 'Wall Clock Time' AND cb.resource_id = $1 AND cb.ak_id = $2`, s.edgeID, s.namd1).
			Scan(&mean, &lower, &upper, &n)
		if err != nil {
			t.Fatalf("read band: %v", err)
		}
		return
	}

	if err := controls.Recalculate(ctx, model.ControlScope{}); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	mean, lower, upper, n := readBand()
	if mean != 100 || n != 3 {
		t.Errorf("band: mean=%v n=%d, want 100 and 3", mean, n)
	}
	// stddev_samp of 90,100,110 is 10
	if lower != 80 || upper != 120 {
		t.Errorf("band bounds: [%v, %v], want [80, 120]", lower, upper)
	}

	// Calculate-only leaves existing bands alone even once the control
	// window covers a new outlier.
	if res := store.Store(ctx, parsedInstance(s, 30, 1000), model.StoreOptions{RecalcEligible: true}); res.Kind != model.StoreOK {
		t.Fatalf("store: %+v", res)
	}
	controls.Window = 4
	if err := controls.Recalculate(ctx, model.ControlScope{}); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if mean, _, _, _ := readBand(); mean != 100 {
		t.Errorf("calculate-only changed existing band: mean=%v", mean)
	}

	otherRes := s.lakeID
	if err := controls.Recalculate(ctx, model.ControlScope{Recalculate: true, ResourceID: &otherRes}); err != nil {
		t.Fatalf("Recalculate scoped: %v", err)
	}
	if mean, _, _, _ := readBand(); mean != 100 {
		t.Errorf("recalculation scoped to another resource changed edge band: mean=%v", mean)
	}

	if err := controls.Recalculate(ctx, model.ControlScope{Recalculate: true}); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if mean, _, _, n := readBand(); mean != 325 || n != 4 {
		t.Errorf("recalculated band: mean=%v n=%d, want 325 and 4", mean, n)
	}
}
