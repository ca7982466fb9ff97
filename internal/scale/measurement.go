// Package scale implements the Beurer BF 700 measurement protocol: the
// notification frame codec, the advertisement readiness heuristic, the
// connect/sync/await session, and the poll loop that drives them.
package scale

import "time"

// Measurement is one decoded body-composition reading. Weight is always
// present; the percentage fields are nil when the scale did not report
// them (not every firmware supports every field).
type Measurement struct {
	Weight     float64 // kilograms
	BodyFat    *float64
	BodyWater  *float64
	MuscleMass *float64
	BoneMass   *float64
}

// Snapshot pairs a Measurement with the time it was captured.
type Snapshot struct {
	Measurement
	CapturedAt time.Time
}
