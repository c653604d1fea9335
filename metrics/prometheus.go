// Package metrics exposes environment lifecycle measurements in the
// Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "testenv"

var phases = []string{"uninitialized", "initializing", "ready", "tearing-down", "stopped", "failed"}

// MetricsCollector records container and lifecycle metrics on its own
// registry. It satisfies core.MetricsRecorder.
type MetricsCollector struct {
	registry *prometheus.Registry

	containersStarted *prometheus.CounterVec
	provisionDuration *prometheus.HistogramVec
	provisionFailures *prometheus.CounterVec
	stopFailures      *prometheus.CounterVec
	phase             *prometheus.GaugeVec
}

// NewMetricsCollector creates a collector with every metric registered.
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		containersStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "containers_started_total",
			Help:      "Service containers that became ready.",
		}, []string{"service"}),
		provisionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provision_duration_seconds",
			Help:      "Time from create to ready per service.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"service"}),
		provisionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provision_failures_total",
			Help:      "Services that failed to provision, by reason.",
		}, []string{"service", "reason"}),
		stopFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_failures_total",
			Help:      "Stop capabilities that failed during teardown.",
		}, []string{"hook"}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "1 for the current environment phase, 0 otherwise.",
		}, []string{"phase"}),
	}

	mc.registry.MustRegister(
		mc.containersStarted,
		mc.provisionDuration,
		mc.provisionFailures,
		mc.stopFailures,
		mc.phase,
		collectors.NewGoCollector(),
	)
	mc.PhaseChanged("uninitialized")
	return mc
}

// ContainerStarted records a service that became ready after took.
func (mc *MetricsCollector) ContainerStarted(service string, took time.Duration) {
	mc.containersStarted.WithLabelValues(service).Inc()
	mc.provisionDuration.WithLabelValues(service).Observe(took.Seconds())
}

// ProvisionFailed records a provisioning failure.
func (mc *MetricsCollector) ProvisionFailed(service, reason string) {
	mc.provisionFailures.WithLabelValues(service, reason).Inc()
}

// StopFailed records a failed stop capability.
func (mc *MetricsCollector) StopFailed(hook string) {
	mc.stopFailures.WithLabelValues(hook).Inc()
}

// PhaseChanged marks phase as the current one.
func (mc *MetricsCollector) PhaseChanged(phase string) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		mc.phase.WithLabelValues(p).Set(v)
	}
}

// Registry returns the underlying registry.
func (mc *MetricsCollector) Registry() *prometheus.Registry { return mc.registry }

// Handler serves the collected metrics.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}
