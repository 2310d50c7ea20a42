// Package metrics exposes prometheus collectors for the coordination core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crew"

// Metrics groups every collector the core updates. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	activeAgents        prometheus.Gauge
	heldLocks           prometheus.Gauge
	admissionRejections prometheus.Counter
	lockConflicts       prometheus.Counter
	turns               *prometheus.CounterVec
	reschedules         *prometheus.CounterVec
	toolCalls           *prometheus.CounterVec
	droppedEvents       prometheus.Counter
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		activeAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_agents",
			Help:      "Agents currently holding an admission slot.",
		}),
		heldLocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "held_locks",
			Help:      "Resource locks currently held.",
		}),
		admissionRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_rejections_total",
			Help:      "Turns refused because the agent was busy or capacity was full.",
		}),
		lockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_conflicts_total",
			Help:      "Lock acquisitions refused because another agent held a resource.",
		}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Agent turns executed, by scheduling reason.",
		}, []string{"reason"}),
		reschedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reschedules_total",
			Help:      "Turns discarded and re-enqueued, by cause.",
		}, []string{"cause"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool dispatches, by tool and outcome.",
		}, []string{"tool", "success"}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Outbound events dropped because no subscriber drained the channel.",
		}),
	}
	reg.MustRegister(
		m.activeAgents,
		m.heldLocks,
		m.admissionRejections,
		m.lockConflicts,
		m.turns,
		m.reschedules,
		m.toolCalls,
		m.droppedEvents,
	)
	return m
}

// Registry returns the underlying registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// SetActiveAgents records the size of the active set.
func (m *Metrics) SetActiveAgents(n int) {
	if m != nil {
		m.activeAgents.Set(float64(n))
	}
}

// SetHeldLocks records the number of held locks.
func (m *Metrics) SetHeldLocks(n int) {
	if m != nil {
		m.heldLocks.Set(float64(n))
	}
}

// AdmissionRejected counts one refused admission.
func (m *Metrics) AdmissionRejected() {
	if m != nil {
		m.admissionRejections.Inc()
	}
}

// LockConflict counts one refused lock acquisition.
func (m *Metrics) LockConflict() {
	if m != nil {
		m.lockConflicts.Inc()
	}
}

// Turn counts one executed turn.
func (m *Metrics) Turn(reason string) {
	if m != nil {
		m.turns.WithLabelValues(reason).Inc()
	}
}

// Rescheduled counts one discard-and-re-enqueue.
func (m *Metrics) Rescheduled(cause string) {
	if m != nil {
		m.reschedules.WithLabelValues(cause).Inc()
	}
}

// ToolCall counts one tool dispatch.
func (m *Metrics) ToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := "false"
	if success {
		outcome = "true"
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// EventDropped counts one dropped outbound event.
func (m *Metrics) EventDropped() {
	if m != nil {
		m.droppedEvents.Inc()
	}
}
