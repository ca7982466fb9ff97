package scale

import "github.com/scalebridge/bf700/internal/ble"

// DefaultServiceCountThreshold matches the behavior observed on the
// BF 700: while idle it advertises a handful of services, and the list
// jumps past this count while a user is standing on it. Advertisement
// stacks differ, so the value is tunable via config.
const DefaultServiceCountThreshold = 14

// IsReady reports whether the advertisement suggests the scale is inside
// its connectable window. A true result is a heuristic, not a guarantee:
// the window may close before the connect attempt lands, which surfaces
// as an ordinary ConnectFailed outcome.
func IsReady(adv ble.Advertisement, serviceCountThreshold int) bool {
	if adv.Connectable {
		return true
	}
	return adv.ServiceCount >= serviceCountThreshold
}
