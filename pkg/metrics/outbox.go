package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts relay outcomes per event type.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewOutboxMetrics registers the relay counters. A nil registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events handled by the relay, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(outcomes)
	return &OutboxMetrics{outcomes: outcomes}
}

// Inc records one relay outcome: published, retry or dead_lettered.
func (o *OutboxMetrics) Inc(eventType, outcome string) {
	if o == nil || o.outcomes == nil {
		return
	}
	o.outcomes.WithLabelValues(labelOr(eventType, "unknown"), outcome).Inc()
}
