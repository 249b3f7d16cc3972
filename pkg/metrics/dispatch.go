package metrics

import "github.com/prometheus/client_golang/prometheus"

// Assignment outcomes recorded by the dispatch service.
const (
	OutcomeAssigned        = "assigned"
	OutcomeAlreadyAssigned = "already_assigned"
	OutcomeNoRiders        = "no_riders"
	OutcomeError           = "error"
)

// Delivery confirmation outcomes.
const (
	OutcomeDelivered        = "delivered"
	OutcomeAlreadyDelivered = "already_delivered"
	OutcomeRejected         = "rejected"
)

// DispatchMetrics tracks rider assignment and delivery confirmation results.
type DispatchMetrics struct {
	assignments *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	riderPool   prometheus.Histogram
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "rider_assignments_total",
		Help:      "Rider assignment attempts by outcome.",
	}, []string{"outcome"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "delivery_confirmations_total",
		Help:      "Delivery confirmation attempts by outcome.",
	}, []string{"outcome"})
	riderPool := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "active_riders",
		Help:      "Active riders seen in the area at assignment time.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
	reg.MustRegister(assignments, deliveries, riderPool)
	return &DispatchMetrics{
		assignments: assignments,
		deliveries:  deliveries,
		riderPool:   riderPool,
	}
}

// IncAssignment counts one assignment attempt.
func (d *DispatchMetrics) IncAssignment(outcome string) {
	if d == nil || d.assignments == nil {
		return
	}
	d.assignments.WithLabelValues(labelOr(outcome, "unknown")).Inc()
}

// IncDelivery counts one delivery confirmation attempt.
func (d *DispatchMetrics) IncDelivery(outcome string) {
	if d == nil || d.deliveries == nil {
		return
	}
	d.deliveries.WithLabelValues(labelOr(outcome, "unknown")).Inc()
}

// ObserveRiderPool records how many riders were eligible for an assignment.
func (d *DispatchMetrics) ObserveRiderPool(count int) {
	if d == nil || d.riderPool == nil {
		return
	}
	d.riderPool.Observe(float64(count))
}
