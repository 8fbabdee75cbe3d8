package monitoring

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options control monitoring module configuration.
type Options struct {
	// Namespace configures the Prometheus namespace. Defaults to "urlcache".
	Namespace string
	// DisableGoCollector skips registration of the Go runtime collector when true.
	DisableGoCollector bool
	// DisableProcessCollector skips registration of the process collector when true.
	DisableProcessCollector bool
}

// Module coordinates Prometheus metrics collectors and health probes for the cache.
type Module struct {
	registry *prometheus.Registry
	metrics  *collectors
	health   *HealthManager
}

// NewModule constructs a monitoring module with its own Prometheus registry.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "urlcache"
	}

	registry := prometheus.NewRegistry()
	if !opts.DisableGoCollector {
		if err := registry.Register(prometheus.NewGoCollector()); err != nil {
			return nil, err
		}
	}
	if !opts.DisableProcessCollector {
		if err := registry.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
			return nil, err
		}
	}

	metrics := newCollectors(namespace)
	for _, collector := range metrics.all() {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return &Module{
		registry: registry,
		metrics:  metrics,
		health:   NewHealthManager(),
	}, nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Health exposes the health manager responsible for readiness probes.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

// Handler returns an http.Handler serving Prometheus metrics for this module.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HealthHandler serves the readiness report as JSON, answering 503 unless every probe is up.
func (m *Module) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := m.Health().EvaluateReadiness(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !report.Success {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}

// Mux routes the metrics endpoint and /healthz.
func (m *Module) Mux(endpoint string) *http.ServeMux {
	if endpoint == "" {
		endpoint = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(endpoint, m.Handler())
	mux.Handle("/healthz", m.HealthHandler())
	return mux
}

// RecordOperation counts one cache operation and observes its latency.
func (m *Module) RecordOperation(op, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	op = normalizeLabel(op)
	m.metrics.operations.WithLabelValues(op, normalizeLabel(result)).Inc()
	observeDuration(m.metrics.operationLatency.WithLabelValues(op), elapsed)
}

// SetEntryStats publishes the latest entry counts.
func (m *Module) SetEntryStats(entries, stale int64) {
	if m == nil {
		return
	}
	m.metrics.entries.Set(float64(entries))
	m.metrics.staleEntries.Set(float64(stale))
}

// RecordReport counts a stats report run; successful runs also stamp the last-success gauge.
func (m *Module) RecordReport(result string, at time.Time) {
	if m == nil {
		return
	}
	result = normalizeLabel(result)
	m.metrics.reportRuns.WithLabelValues(result).Inc()
	if result == "success" {
		m.metrics.reportLastRun.Set(float64(at.Unix()))
	}
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
