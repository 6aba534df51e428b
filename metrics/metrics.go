// Package metrics exposes Prometheus instrumentation for the engine. All
// collectors are optional: components accept a nil *Metrics and skip
// recording, so embedding hosts without a scrape endpoint pay nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's Prometheus collectors.
type Metrics struct {
	MessagesDelivered *prometheus.CounterVec
	TasksProcessed    *prometheus.CounterVec
	RetryAttempts     prometheus.Counter
	RefinementTasks   prometheus.Counter
}

// New creates the collectors and registers them on reg. Pass
// prometheus.DefaultRegisterer for the default registry or a private registry
// in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkmesh",
			Name:      "messages_delivered_total",
			Help:      "Messages the engine delivered to agent queues (host tasks, results, errors, feedback and refinement tasks), by message type.",
		}, []string{"type"}),
		TasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inkmesh",
			Name:      "tasks_processed_total",
			Help:      "Tasks handled by agents, by agent id and terminal status.",
		}, []string{"agent", "status"}),
		RetryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inkmesh",
			Name:      "retry_attempts_total",
			Help:      "Failed provider call attempts that triggered a retry.",
		}),
		RefinementTasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inkmesh",
			Name:      "refinement_tasks_total",
			Help:      "Refinement tasks synthesized from negative feedback.",
		}),
	}
	reg.MustRegister(m.MessagesDelivered, m.TasksProcessed, m.RetryAttempts, m.RefinementTasks)
	return m
}

// ObserveDelivery records one delivered message. Nil-safe.
func (m *Metrics) ObserveDelivery(msgType string) {
	if m == nil {
		return
	}
	m.MessagesDelivered.WithLabelValues(msgType).Inc()
}

// ObserveTask records one terminally handled task. Nil-safe.
func (m *Metrics) ObserveTask(agentID, status string) {
	if m == nil {
		return
	}
	m.TasksProcessed.WithLabelValues(agentID, status).Inc()
}

// ObserveRetry records one retried provider attempt. Nil-safe.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.RetryAttempts.Inc()
}

// ObserveRefinement records one synthesized refinement task. Nil-safe.
func (m *Metrics) ObserveRefinement() {
	if m == nil {
		return
	}
	m.RefinementTasks.Inc()
}
