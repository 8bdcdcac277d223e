package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatal("metric is neither counter nor gauge")
	return 0
}

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncSubmitted("GEOFENCE_EXIT", "HIGH")
	m.IncSubmitted("GEOFENCE_EXIT", "HIGH")
	m.ObserveDispatch("DELIVERED", 3*time.Millisecond)
	m.IncTransition("SENT")
	m.SetPresence(2, 5)
	m.AddCleanedUp(4)

	if got := counterValue(t, m.Submitted.WithLabelValues("GEOFENCE_EXIT", "HIGH")); got != 2 {
		t.Errorf("submitted = %v, want 2", got)
	}
	if got := counterValue(t, m.DispatchOutcome.WithLabelValues("DELIVERED")); got != 1 {
		t.Errorf("dispatch outcome = %v, want 1", got)
	}
	if got := counterValue(t, m.Transitions.WithLabelValues("SENT")); got != 1 {
		t.Errorf("transitions = %v, want 1", got)
	}
	if got := counterValue(t, m.OpenConnections); got != 5 {
		t.Errorf("open connections = %v, want 5", got)
	}
	if got := counterValue(t, m.CleanedUp); got != 4 {
		t.Errorf("cleaned up = %v, want 4", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncSubmitted("LOW_BATTERY", "LOW")
	m.ObserveDispatch("ALL_FAILED", time.Second)
	m.IncTransition("FAILED")
	m.SetPresence(1, 1)
	m.AddCleanedUp(1)
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
