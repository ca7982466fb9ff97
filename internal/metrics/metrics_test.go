package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/scalebridge/bf700/internal/scale"
)

func TestSessionOutcomeCounter(t *testing.T) {
	m := New()

	m.SessionFinished(scale.OutcomeCompleted, 2*time.Second)
	m.SessionFinished(scale.OutcomeTimeout, 8*time.Second)
	m.SessionFinished(scale.OutcomeTimeout, 8*time.Second)
	m.SessionFinished(scale.OutcomeNotReady, 0)

	if got := testutil.ToFloat64(m.sessions.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sessions.WithLabelValues("timeout")); got != 2 {
		t.Errorf("timeout counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sessions.WithLabelValues("not_ready")); got != 1 {
		t.Errorf("not_ready counter = %v, want 1", got)
	}
}

func TestSnapshotGauges(t *testing.T) {
	m := New()

	water := 53.1
	m.SnapshotUpdated(scale.Snapshot{
		Measurement: scale.Measurement{Weight: 58.12, BodyWater: &water},
		CapturedAt:  time.Unix(1700000000, 0),
	})

	if got := testutil.ToFloat64(m.weight); got != 58.12 {
		t.Errorf("weight gauge = %v, want 58.12", got)
	}
	if got := testutil.ToFloat64(m.bodyWater); got != 53.1 {
		t.Errorf("body water gauge = %v, want 53.1", got)
	}
	// Absent fields leave the gauge at its previous value (zero here).
	if got := testutil.ToFloat64(m.bodyFat); got != 0 {
		t.Errorf("body fat gauge = %v, want 0 for absent field", got)
	}
	if got := testutil.ToFloat64(m.capturedAt); got != 1700000000 {
		t.Errorf("timestamp gauge = %v, want 1700000000", got)
	}
}

func TestDeviceSightedGauge(t *testing.T) {
	m := New()

	m.DeviceSighted(true)
	if got := testutil.ToFloat64(m.scaleReady); got != 1 {
		t.Errorf("ready gauge = %v, want 1", got)
	}
	m.DeviceSighted(false)
	if got := testutil.ToFloat64(m.scaleReady); got != 0 {
		t.Errorf("ready gauge = %v, want 0", got)
	}
}
