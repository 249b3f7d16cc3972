package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "homechef"

// CronJobMetrics tracks maintenance job runs. A nil value records nothing.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of cron job runs.",
			Buckets:   []float64{.05, .25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration)
	return m
}

// Observe records one run; a non-nil err counts as a failure.
func (m *CronJobMetrics) Observe(job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	job = labelOr(job, "unknown")
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.runs.WithLabelValues(job, outcome).Inc()
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func labelOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
