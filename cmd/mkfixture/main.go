// mkfixture seeds an explorer database with synthetic completed app kernel
// tasks, covering every outcome the ingestion pipeline classifies.
// Usage: go run ./cmd/mkfixture --dsn $AKLOAD_EXPLORER_URL --resources edge,lakeeffect --per-scale 5
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/gyeh/akload/internal/db"
	"github.com/gyeh/akload/internal/parse"
)

var taskColumns = []string{"task_id", "resource", "app", "nodes", "collected", "completed", "job_id", "body", "message", "stderr"}

type metric struct {
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

type report struct {
	Reporter      string   `json:"reporter"`
	Kernel        string   `json:"kernel"`
	Status        string   `json:"status"`
	Error         string   `json:"error,omitempty"`
	Version       string   `json:"version"`
	ProcessorUnit string   `json:"processor_unit"`
	Metrics       []metric `json:"metrics,omitempty"`
}

func main() {
	dsn := flag.String("dsn", os.Getenv("AKLOAD_EXPLORER_URL"), "explorer connection string")
	resources := flag.String("resources", "edge", "comma separated resource nicknames")
	kernels := flag.String("kernels", "namd,hpcc,ior", "comma separated kernel basenames")
	scales := flag.String("scales", "1,2,4", "comma separated node counts")
	perScale := flag.Int("per-scale", 4, "tasks per resource, kernel and scale")
	startAt := flag.String("start", "", "collection time of the first task, RFC3339 (default one day ago)")
	step := flag.Duration("step", 10*time.Minute, "time between consecutive tasks")
	firstID := flag.Int64("first-id", 1, "task id of the first task")
	schema := flag.Bool("schema", false, "create the explorer tables first")
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "--dsn or AKLOAD_EXPLORER_URL is required")
		os.Exit(1)
	}
	start := time.Now().Add(-24 * time.Hour).Truncate(time.Minute)
	if *startAt != "" {
		t, err := time.Parse(time.RFC3339, *startAt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse --start: %v\n", err)
			os.Exit(1)
		}
		start = t
	}
	nodeCounts, err := parseInts(*scales)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse --scales: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if *schema {
		if err := db.ApplyExplorerSchema(ctx, pool, zerolog.Nop()); err != nil {
			fmt.Fprintf(os.Stderr, "schema: %v\n", err)
			os.Exit(1)
		}
	}

	// Every fifth task varies so the fixture exercises the non-loaded paths.
	kinds := []string{"done", "queued", "done", "error", "incomplete", "done", "garbage", "foreign"}
	kindCounts := make(map[string]int)

	var rows [][]any
	id := *firstID
	collected := start
	for _, res := range splitList(*resources) {
		for _, kernel := range splitList(*kernels) {
			for _, nodes := range nodeCounts {
				for i := 0; i < *perScale; i++ {
					kind := "done"
					if id%5 == 0 {
						kind = kinds[(id/5)%int64(len(kinds))]
					}
					kindCounts[kind]++
					rows = append(rows, taskRow(id, res, kernel, nodes, collected, kind))
					id++
					collected = collected.Add(*step)
				}
			}
		}
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{"akrr", "completed_tasks"}, taskColumns, pgx.CopyFromRows(rows))
	if err != nil {
		fmt.Fprintf(os.Stderr, "copy tasks: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d tasks collected %s .. %s\n", n,
		start.UTC().Format(time.RFC3339), collected.Add(-*step).UTC().Format(time.RFC3339))
	fmt.Println("Task kinds:")
	for _, k := range []string{"done", "queued", "error", "incomplete", "garbage", "foreign"} {
		if c := kindCounts[k]; c > 0 {
			fmt.Printf("  %-10s %d\n", k, c)
		}
	}
}

func taskRow(id int64, resource, kernel string, nodes int, collected time.Time, kind string) []any {
	r := report{
		Reporter:      parse.ReporterAppKernel,
		Kernel:        kernel,
		Status:        parse.StatusDone,
		Version:       "1.0",
		ProcessorUnit: "node",
		Metrics: []metric{
			{Name: "Wall Clock Time", Unit: "Second", Value: 100 + float64(id%17)},
			{Name: "Performance", Unit: "GFLOP/s", Value: float64(nodes) * (40 + float64(id%7))},
		},
	}
	completed := true
	var message, stderr *string

	switch kind {
	case "queued":
		r.Status = parse.StatusQueued
		r.Metrics = nil
	case "error":
		r.Status = parse.StatusError
		r.Error = "application exited with status 137"
		r.Metrics = nil
	case "incomplete":
		completed = false
		r.Metrics = r.Metrics[:1]
		message = strPtr("walltime exceeded")
		stderr = strPtr("slurmstepd: error: *** JOB CANCELLED DUE TO TIME LIMIT ***")
	case "foreign":
		r.Reporter = "xdmod.benchmark"
	}

	body, _ := json.Marshal(r)
	bodyText := string(body)
	if kind == "garbage" {
		bodyText = bodyText[:len(bodyText)/2]
	}

	return []any{id, resource, kernel, nodes, collected, completed, strconv.FormatInt(900000+id, 10), bodyText, message, stderr}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func strPtr(s string) *string { return &s }
