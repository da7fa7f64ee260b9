package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/profiledir/internal/directory"
)

// Metrics holds the directory collectors on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	operations     *prometheus.CounterVec
	profiles       prometheus.Gauge
	searchDuration prometheus.Histogram
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiledir_operations_total",
				Help: "Total number of directory operations",
			},
			[]string{"op", "result"}, // result: ok/invalid/not_found/error
		),
		profiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "profiledir_profiles",
				Help: "Current number of profiles in the directory",
			},
		),
		searchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "profiledir_search_duration_seconds",
				Help:    "Time spent filtering the directory",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Operation counts one call of op with the given result label.
func (m *Metrics) Operation(op, result string) {
	m.operations.WithLabelValues(op, result).Inc()
}

// ObserveSearch records how long a filter pass took.
func (m *Metrics) ObserveSearch(d time.Duration) {
	m.searchDuration.Observe(d.Seconds())
}

// SetProfiles sets the profile gauge, used after a load.
func (m *Metrics) SetProfiles(n int) {
	m.profiles.Set(float64(n))
}

// Notify implements directory.Notifier and keeps the profile gauge current.
func (m *Metrics) Notify(c directory.Change) {
	switch c.Kind {
	case directory.ChangeAdded:
		m.profiles.Inc()
	case directory.ChangeRemoved:
		m.profiles.Dec()
	}
}
