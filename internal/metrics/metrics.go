// Package metrics exposes the bridge's prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scalebridge/bf700/internal/scale"
)

// Metrics implements scale.Observer on top of a prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	sessions        *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	scaleReady      prometheus.Gauge

	weight     prometheus.Gauge
	bodyFat    prometheus.Gauge
	bodyWater  prometheus.Gauge
	muscleMass prometheus.Gauge
	boneMass   prometheus.Gauge
	capturedAt prometheus.Gauge
}

// New creates and registers the metric set on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bf700_sessions_total",
			Help: "Poll outcomes by kind.",
		}, []string{"outcome"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bf700_session_duration_seconds",
			Help:    "Duration of connect-to-disconnect sessions.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		scaleReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bf700_scale_ready",
			Help: "1 while the latest advertisement passes the readiness heuristic.",
		}),
		weight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bf700_weight_kilograms",
			Help: "Last measured weight.",
		}),
		bodyFat: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bf700_body_fat_percent",
			Help: "Last measured body fat percentage.",
		}),
		bodyWater: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bf700_body_water_percent",
			Help: "Last measured body water percentage.",
		}),
		muscleMass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bf700_muscle_mass_percent",
			Help: "Last measured muscle mass percentage.",
		}),
		boneMass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bf700_bone_mass_percent",
			Help: "Last measured bone mass percentage.",
		}),
		capturedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bf700_snapshot_timestamp_seconds",
			Help: "Unix time of the last snapshot.",
		}),
	}

	m.registry.MustRegister(
		m.sessions, m.sessionDuration, m.scaleReady,
		m.weight, m.bodyFat, m.bodyWater, m.muscleMass, m.boneMass,
		m.capturedAt,
	)
	return m
}

func (m *Metrics) DeviceSighted(ready bool) {
	if ready {
		m.scaleReady.Set(1)
	} else {
		m.scaleReady.Set(0)
	}
}

func (m *Metrics) SessionFinished(kind scale.OutcomeKind, duration time.Duration) {
	m.sessions.WithLabelValues(kind.String()).Inc()
	if kind != scale.OutcomeNotReady {
		m.sessionDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) SnapshotUpdated(snap scale.Snapshot) {
	m.weight.Set(snap.Weight)
	setOptional(m.bodyFat, snap.BodyFat)
	setOptional(m.bodyWater, snap.BodyWater)
	setOptional(m.muscleMass, snap.MuscleMass)
	setOptional(m.boneMass, snap.BoneMass)
	m.capturedAt.Set(float64(snap.CapturedAt.Unix()))
}

// setOptional leaves the gauge untouched for absent fields; there is no
// meaningful zero for a percentage the scale never reported.
func setOptional(g prometheus.Gauge, v *float64) {
	if v != nil {
		g.Set(*v)
	}
}

// Handler returns the scrape endpoint for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var _ scale.Observer = (*Metrics)(nil)
