// Package metrics collects run metrics with Prometheus.
//
// harvest is a batch job, so nothing is scraped: the collector uses its own
// registry and WriteFile dumps it in text exposition format for the node
// exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/harvest/internal/runner"
)

const namespace = "harvest"

// Collector holds every metric of one process.
type Collector struct {
	// Counters
	units     *prometheus.CounterVec
	records   *prometheus.CounterVec
	dropped   prometheus.Counter
	persisted *prometheus.GaugeVec

	// Histograms
	unitDuration prometheus.Histogram
	runDuration  prometheus.Histogram

	// Gauges
	lastSuccess prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector creates a collector with a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Units finished, by outcome",
		}, []string{"status"}),

		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_records_total",
			Help:      "Validated records produced by units, by unit",
		}, []string{"unit"}),

		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_elements_total",
			Help:      "Unit output elements rejected by validation",
		}),

		persisted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "persisted_records",
			Help:      "Canonical records written by the last run, by kind",
		}, []string{"kind"}),

		unitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Wall time of one unit from load to validation",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~45min
		}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a whole ingestion run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
		}),

		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run whose commit succeeded",
		}),
	}

	c.registry.MustRegister(
		c.units,
		c.records,
		c.dropped,
		c.persisted,
		c.unitDuration,
		c.runDuration,
		c.lastSuccess,
	)

	// Expose every status from the first run on.
	for _, s := range runner.Statuses {
		c.units.WithLabelValues(string(s))
	}
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// UnitFinished implements runner.Observer.
func (c *Collector) UnitFinished(r runner.UnitReport) {
	c.units.WithLabelValues(string(r.Status)).Inc()
	c.unitDuration.Observe(r.Duration.Seconds())
	if r.Records > 0 {
		c.records.WithLabelValues(r.Name).Add(float64(r.Records))
	}
	if r.Dropped > 0 {
		c.dropped.Add(float64(r.Dropped))
	}
}

// RunFinished records the outcome of a whole run.
func (c *Collector) RunFinished(d time.Duration, persisted map[string]int, committed bool, at time.Time) {
	c.runDuration.Observe(d.Seconds())
	for kind, n := range persisted {
		c.persisted.WithLabelValues(kind).Set(float64(n))
	}
	if committed {
		c.lastSuccess.Set(float64(at.Unix()))
	}
}

// WriteFile writes the registry to path in text format. The file is
// replaced atomically.
func (c *Collector) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
