// Package metrics exposes Prometheus instrumentation for notification delivery.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for submission, fan-out and lifecycle.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Accepted notifications by type and priority
	Submitted *prometheus.CounterVec

	// Dispatch outcomes: DELIVERED, NO_RECIPIENTS, ALL_FAILED
	DispatchOutcome *prometheus.CounterVec

	// Fan-out latency across all of a recipient's connections
	DispatchLatency prometheus.Histogram

	// Persisted status transitions by target status
	Transitions *prometheus.CounterVec

	// Currently present recipients and open connections
	PresentRecipients prometheus.Gauge
	OpenConnections   prometheus.Gauge

	// Records removed by the retention sweep
	CleanedUp prometheus.Counter
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyd_notifications_submitted_total",
			Help: "Total notifications accepted by type and priority",
		}, []string{"type", "priority"}),

		DispatchOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyd_dispatch_outcomes_total",
			Help: "Total fan-out attempts by outcome",
		}, []string{"outcome"}),

		DispatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "notifyd_dispatch_duration_seconds",
			Help:    "Duration of a fan-out to all of a recipient's connections",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyd_status_transitions_total",
			Help: "Total persisted status transitions by target status",
		}, []string{"status"}),

		PresentRecipients: f.NewGauge(prometheus.GaugeOpts{
			Name: "notifyd_present_recipients",
			Help: "Recipients with at least one open connection",
		}),

		OpenConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "notifyd_open_connections",
			Help: "Open realtime connections across all recipients",
		}),

		CleanedUp: f.NewCounter(prometheus.CounterOpts{
			Name: "notifyd_retention_deleted_total",
			Help: "Total notifications deleted by the retention sweep",
		}),
	}
}

func (m *Metrics) IncSubmitted(typ, priority string) {
	if m != nil {
		m.Submitted.WithLabelValues(typ, priority).Inc()
	}
}

// ObserveDispatch records one fan-out outcome and its duration.
func (m *Metrics) ObserveDispatch(outcome string, d time.Duration) {
	if m != nil {
		m.DispatchOutcome.WithLabelValues(outcome).Inc()
		m.DispatchLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// SetPresence records the current registry size.
func (m *Metrics) SetPresence(recipients, connections int) {
	if m != nil {
		m.PresentRecipients.Set(float64(recipients))
		m.OpenConnections.Set(float64(connections))
	}
}

func (m *Metrics) AddCleanedUp(n int64) {
	if m != nil {
		m.CleanedUp.Add(float64(n))
	}
}
