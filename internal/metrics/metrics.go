// Package metrics exposes a prometheus.Registry-backed Collector for
// the core's own domain events (task runs, extension activations,
// collaboration fanout), in the teacher's MetricsCollector idiom:
// a config-gated constructor, Record* methods per concern, and a
// Shutdown that is safe to call even when metrics were never enabled.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config gates whether metrics are collected and served at all; a
// disabled Collector's Record* methods are no-ops.
type Config struct {
	Enabled bool
	Addr    string // e.g. "127.0.0.1:9091"; empty disables the HTTP server
}

// Collector records counters and histograms across the core's
// components. The zero Collector (Enabled: false) is always safe to
// call.
type Collector struct {
	enabled bool
	server  *http.Server

	taskRuns          *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	extensionActivations *prometheus.CounterVec
	broadcastFanout   *prometheus.CounterVec
	diagnosticsPushed *prometheus.CounterVec
}

// NewCollector builds a Collector. If cfg.Enabled is false, every
// Record* call is a no-op and no HTTP server starts.
func NewCollector(cfg Config) (*Collector, error) {
	if !cfg.Enabled {
		return &Collector{enabled: false}, nil
	}

	registry := prometheus.NewRegistry()
	c := &Collector{
		enabled: true,
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_task_runs_total",
			Help: "Task Engine runs by label and terminal status.",
		}, []string{"label", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cortex_task_duration_seconds",
			Help:    "Task Engine run duration by label.",
			Buckets: prometheus.DefBuckets,
		}, []string{"label"}),
		extensionActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_extension_activations_total",
			Help: "Extension Runtime activations by outcome.",
		}, []string{"extension_id", "outcome"}),
		broadcastFanout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_collab_broadcast_messages_total",
			Help: "Collaboration broadcast messages fanned out by type.",
		}, []string{"message_type"}),
		diagnosticsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_diagnostics_pushed_total",
			Help: "Diagnostics pushed by source.",
		}, []string{"source"}),
	}
	registry.MustRegister(c.taskRuns, c.taskDuration, c.extensionActivations, c.broadcastFanout, c.diagnosticsPushed)

	if cfg.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		c.server = &http.Server{Addr: cfg.Addr, Handler: mux}
		go c.server.ListenAndServe() //nolint:errcheck // logged by the caller's own readiness probe, not fatal here
	}

	return c, nil
}

// RecordTaskRun records one terminal task run.
func (c *Collector) RecordTaskRun(label, status string, d time.Duration) {
	if !c.enabled {
		return
	}
	c.taskRuns.WithLabelValues(label, status).Inc()
	c.taskDuration.WithLabelValues(label).Observe(d.Seconds())
}

// RecordExtensionActivation records one extension activation attempt.
func (c *Collector) RecordExtensionActivation(extensionID, outcome string) {
	if !c.enabled {
		return
	}
	c.extensionActivations.WithLabelValues(extensionID, outcome).Inc()
}

// RecordBroadcastMessage records one fanned-out collaboration message.
func (c *Collector) RecordBroadcastMessage(messageType string) {
	if !c.enabled {
		return
	}
	c.broadcastFanout.WithLabelValues(messageType).Inc()
}

// RecordDiagnosticsPush records one diagnostics push by source.
func (c *Collector) RecordDiagnosticsPush(source string) {
	if !c.enabled {
		return
	}
	c.diagnosticsPushed.WithLabelValues(source).Inc()
}

// Shutdown stops the metrics HTTP server, if one was started.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
