package reminder

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the scheduler's Prometheus collectors.
type Metrics struct {
	runs   *prometheus.CounterVec
	sent   *prometheus.CounterVec
	failed *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg unless it is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "reminder",
			Name:      "runs_total",
			Help:      "Reminder routine runs by result.",
		}, []string{"result"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "reminder",
			Name:      "sent_total",
			Help:      "Reminders delivered.",
		}, []string{"kind"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "reminder",
			Name:      "failed_total",
			Help:      "Reminders that could not be delivered.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.sent, m.failed)
	}
	return m
}
