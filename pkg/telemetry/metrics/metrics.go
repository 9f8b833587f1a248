// Package metrics exposes the stack's operational state as Prometheus
// metrics: per-backend liveness and probe latency from the health monitor,
// supervised-process state and resource usage, and stack uptime.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relaystack-hq/saturn/pkg/health"
	"relaystack-hq/saturn/pkg/supervisor"
)

const namespace = "saturn"

// Metrics owns the registry and every collector the endpoint serves. The
// health monitor and supervisor push into it after each sweep; scrapes read
// the current gauge values without touching either component.
type Metrics struct {
	registry *prometheus.Registry

	backendUp      *prometheus.GaugeVec
	backendLatency *prometheus.GaugeVec
	probesTotal    *prometheus.CounterVec
	flipsTotal     *prometheus.CounterVec

	healthyBackends prometheus.Gauge
	totalBackends   prometheus.Gauge

	processUp          *prometheus.GaugeVec
	processCPUPercent  *prometheus.GaugeVec
	processRSSBytes    *prometheus.GaugeVec
	processConnections *prometheus.GaugeVec

	sampler *resourceSampler
}

// New builds a Metrics with its own registry so tests and embedded uses
// never collide with the default global registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		backendUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "Whether the backend port passed hysteresis (1 healthy, 0 otherwise).",
		}, []string{"backend", "protocol"}),
		backendLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_probe_latency_seconds",
			Help:      "Latency of the most recent successful TCP probe.",
		}, []string{"backend", "protocol"}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "TCP probes performed, by outcome.",
		}, []string{"backend", "protocol", "result"}),
		flipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_state_changes_total",
			Help:      "Backend status transitions that cleared hysteresis.",
		}, []string{"backend", "protocol", "to"}),
		healthyBackends: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "healthy_backends",
			Help:      "Number of backends whose every port is healthy.",
		}),
		totalBackends: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_backends",
			Help:      "Number of configured backends.",
		}),
		processUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_up",
			Help:      "Whether the supervised process is running (1) or not (0).",
		}, []string{"process", "kind"}),
		processCPUPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU usage of the supervised process since the last sample.",
		}, []string{"process"}),
		processRSSBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_resident_memory_bytes",
			Help:      "Resident set size of the supervised process.",
		}, []string{"process"}),
		processConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_open_connections",
			Help:      "Open socket descriptors held by the supervised process.",
		}, []string{"process"}),
		sampler: newResourceSampler(),
	}

	start := time.Now()
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the orchestrator started.",
	}, func() float64 { return time.Since(start).Seconds() })

	m.registry.MustRegister(
		m.backendUp, m.backendLatency, m.probesTotal, m.flipsTotal,
		m.healthyBackends, m.totalBackends,
		m.processUp, m.processCPUPercent, m.processRSSBytes, m.processConnections,
		uptime,
	)
	return m
}

// Handler returns the scrape handler for the metrics path.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHealth folds a health snapshot into the backend gauges.
func (m *Metrics) ObserveHealth(snap health.Snapshot) {
	m.healthyBackends.Set(float64(snap.Healthy))
	m.totalBackends.Set(float64(snap.Total))
	for name, b := range snap.Backends {
		for proto, port := range b.Ports {
			labels := prometheus.Labels{"backend": name, "protocol": string(proto)}
			if port.Alive {
				m.backendUp.With(labels).Set(1)
			} else {
				m.backendUp.With(labels).Set(0)
			}
			m.backendLatency.With(labels).Set(port.LatencyMS / 1000)
		}
	}
}

// ObserveProbe counts a single probe outcome.
func (m *Metrics) ObserveProbe(backend, protocol string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.probesTotal.WithLabelValues(backend, protocol, result).Inc()
}

// ObserveTransition counts a hysteresis flip.
func (m *Metrics) ObserveTransition(tr health.Transition) {
	m.flipsTotal.WithLabelValues(tr.Backend, string(tr.Protocol), string(tr.To)).Inc()
}

// ObserveProcesses updates process state gauges and samples CPU, memory and
// open socket counts for every running process via /proc.
func (m *Metrics) ObserveProcesses(handles []supervisor.Handle) {
	for _, h := range handles {
		up := 0.0
		if h.State == supervisor.StateRunning {
			up = 1
		}
		m.processUp.WithLabelValues(h.Name, string(h.Kind)).Set(up)

		if up == 1 && h.PID > 0 {
			if usage, err := m.sampler.sample(h.PID); err == nil {
				m.processCPUPercent.WithLabelValues(h.Name).Set(usage.cpuPercent)
				m.processRSSBytes.WithLabelValues(h.Name).Set(float64(usage.rssBytes))
				m.processConnections.WithLabelValues(h.Name).Set(float64(usage.openSockets))
			}
		} else {
			m.processCPUPercent.DeleteLabelValues(h.Name)
			m.processRSSBytes.DeleteLabelValues(h.Name)
			m.processConnections.DeleteLabelValues(h.Name)
			m.sampler.forget(h.PID)
		}
	}
}

// Registry exposes the underlying registry for additional registrations.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
