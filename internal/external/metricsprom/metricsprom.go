// Package metricsprom implements the external MetricsSink collaborator
// (spec §6) as a Prometheus CounterVec/HistogramVec surface, grounded on
// the rest of the retrieval pack's observability package (the teacher
// itself carries no metrics stack of its own).
package metricsprom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink implements supervisor.MetricsSink over a private Prometheus
// registry, so a host process can mount it on its own /metrics handler
// without colliding with prometheus.DefaultRegisterer.
type Sink struct {
	registry *prometheus.Registry

	spawns            *prometheus.CounterVec
	completions       *prometheus.CounterVec
	failures          *prometheus.CounterVec
	timeouts          *prometheus.CounterVec
	messages          *prometheus.CounterVec
	checkpoints       *prometheus.CounterVec
	heartbeatInterval *prometheus.HistogramVec
	agentDuration     *prometheus.HistogramVec
}

// New constructs a Sink registered under namespace (e.g. "apmas").
func New(namespace string) *Sink {
	s := &Sink{registry: prometheus.NewRegistry()}

	s.spawns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "agent", Name: "spawns_total", Help: "Total agent spawn attempts.",
	}, []string{"role"})
	s.completions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "agent", Name: "completions_total", Help: "Total agent completions.",
	}, []string{"role"})
	s.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "agent", Name: "failures_total", Help: "Total agent failures.",
	}, []string{"role"})
	s.timeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "agent", Name: "timeouts_total", Help: "Total agent watchdog timeouts.",
	}, []string{"role"})
	s.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "bus", Name: "messages_total", Help: "Total messages published to the bus.",
	}, []string{"type"})
	s.checkpoints = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "checkpoint", Name: "saved_total", Help: "Total checkpoints recorded.",
	}, []string{"role"})
	s.heartbeatInterval = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "agent", Name: "heartbeat_interval_seconds", Help: "Seconds between consecutive heartbeats.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
	}, []string{"role"})
	s.agentDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "agent", Name: "duration_seconds", Help: "Wall-clock time from spawn to completion.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 18), // 1s to ~36h
	}, []string{"role"})

	s.registry.MustRegister(s.spawns, s.completions, s.failures, s.timeouts, s.messages, s.checkpoints, s.heartbeatInterval, s.agentDuration)
	return s
}

// Handler returns an http.Handler serving this Sink's registry in the
// Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Sink) IncSpawn(role string)      { s.spawns.WithLabelValues(role).Inc() }
func (s *Sink) IncCompletion(role string) { s.completions.WithLabelValues(role).Inc() }
func (s *Sink) IncFailure(role string)    { s.failures.WithLabelValues(role).Inc() }
func (s *Sink) IncTimeout(role string)    { s.timeouts.WithLabelValues(role).Inc() }
func (s *Sink) IncMessage(msgType string) { s.messages.WithLabelValues(msgType).Inc() }
func (s *Sink) IncCheckpoint(role string) { s.checkpoints.WithLabelValues(role).Inc() }

func (s *Sink) ObserveHeartbeatInterval(role string, d time.Duration) {
	s.heartbeatInterval.WithLabelValues(role).Observe(d.Seconds())
}

func (s *Sink) ObserveAgentDuration(role string, d time.Duration) {
	s.agentDuration.WithLabelValues(role).Observe(d.Seconds())
}
