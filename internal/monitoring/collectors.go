package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	entries          prometheus.Gauge
	staleEntries     prometheus.Gauge
	reportRuns       *prometheus.CounterVec
	reportLastRun    prometheus.Gauge
}

func newCollectors(namespace string) *collectors {
	buckets := []float64{
		0.0005, 0.001, 0.0025, 0.005, 0.01, // sub-millisecond to 10ms
		0.025, 0.05, 0.1, 0.25, 0.5,
		1, 2.5, 5,
	}

	return &collectors{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Cache operations grouped by operation and result",
			},
			[]string{"operation", "result"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Cache operation latency including the store round trip",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entries",
				Help:      "Entries stored in the cache table at the last report",
			},
		),
		staleEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stale_entries",
				Help:      "Entries older than the freshness window at the last report",
			},
		),
		reportRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stats_reports_total",
				Help:      "Stats report executions",
			},
			[]string{"result"},
		),
		reportLastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stats_report_last_success_timestamp",
				Help:      "Timestamp of the last successful stats report (seconds since epoch)",
			},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.operations,
		c.operationLatency,
		c.entries,
		c.staleEntries,
		c.reportRuns,
		c.reportLastRun,
	}
}

// observeDuration records a duration in seconds on the supplied histogram observer.
func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
