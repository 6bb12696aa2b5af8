package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the processor's Prometheus collectors.
type Metrics struct {
	submitted  *prometheus.CounterVec
	completed  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	retried    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "webhook",
			Name:      "jobs_submitted_total",
			Help:      "Webhook jobs accepted for processing.",
		}, []string{"priority"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "webhook",
			Name:      "jobs_completed_total",
			Help:      "Webhook jobs processed successfully.",
		}, []string{"priority"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "webhook",
			Name:      "jobs_failed_total",
			Help:      "Webhook jobs that failed permanently.",
		}, []string{"priority"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "webhook",
			Name:      "jobs_retried_total",
			Help:      "Webhook job attempts scheduled for retry.",
		}, []string{"priority"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "webhook",
			Name:      "job_duration_seconds",
			Help:      "Time spent in the webhook job handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"priority"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "billing",
			Subsystem: "webhook",
			Name:      "queue_depth",
			Help:      "Pending plus retrying webhook jobs.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.submitted, m.completed, m.failed, m.retried, m.duration, m.queueDepth)
	}
	return m
}
