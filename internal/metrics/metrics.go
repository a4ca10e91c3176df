// Package metrics exposes run outcome counters in the Prometheus text format
// for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gyeh/akload/internal/model"
)

const prefix = "akload_"

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	instances     *prometheus.CounterVec
	removed       prometheus.Counter
	skipped       prometheus.Counter
	lastSuccess   prometheus.Gauge
	lastTimestamp prometheus.Gauge
	lastDuration  prometheus.Gauge
	lastWindowEnd prometheus.Gauge
}

// New registers the akload collectors on a fresh registry.
func New(source string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"source": source}, reg))

	return &Metrics{
		registry: reg,
		instances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "instances_total",
			Help: "Number of app kernel instances by ingestion outcome",
		}, []string{"outcome"}),
		removed: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "removed_instances_total",
			Help: "Number of stored instances removed before reingestion",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "skipped_resources_total",
			Help: "Number of resources skipped because discovery failed",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "last_run_success",
			Help: "1 if the last ingestion run succeeded, 0 otherwise",
		}),
		lastTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "last_run_timestamp_seconds",
			Help: "Unix time the last ingestion run finished",
		}),
		lastDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "last_run_duration_seconds",
			Help: "Wall time of the last ingestion run",
		}),
		lastWindowEnd: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "last_run_window_end_seconds",
			Help: "End of the window covered by the last ingestion run",
		}),
	}
}

// RecordRun records the counters and status of a finished run.
func (m *Metrics) RecordRun(tally *model.Tally, removed int64, success bool, windowEnd int64, duration time.Duration, finished time.Time) {
	for _, o := range model.AllOutcomes {
		m.instances.With(prometheus.Labels{"outcome": string(o)}).Add(float64(tally.Global.Get(o)))
	}
	m.removed.Add(float64(removed))
	m.skipped.Add(float64(len(tally.SkippedResources)))
	m.RecordStatus(success, finished)
	m.lastDuration.Set(duration.Seconds())
	m.lastWindowEnd.Set(float64(windowEnd))
}

// RecordStatus records only the run status, for runs that aborted.
func (m *Metrics) RecordStatus(success bool, finished time.Time) {
	if success {
		m.lastSuccess.Set(1)
	} else {
		m.lastSuccess.Set(0)
	}
	m.lastTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes every collector to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
