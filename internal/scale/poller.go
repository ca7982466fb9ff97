package scale

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scalebridge/bf700/internal/ble"
)

// AdvertisementSource supplies the most recent sighting of the target
// address. Satisfied by ble.Watcher.
type AdvertisementSource interface {
	Latest() (ble.Advertisement, bool)
}

// Observer receives poll-loop events for instrumentation. Implementations
// must be safe for concurrent use.
type Observer interface {
	// DeviceSighted reports the readiness verdict of a tick that saw the
	// device.
	DeviceSighted(ready bool)
	// SessionFinished reports a terminal outcome and how long the tick
	// took. NotReady ticks are reported with zero duration.
	SessionFinished(kind OutcomeKind, duration time.Duration)
	// SnapshotUpdated reports a newly stored snapshot.
	SnapshotUpdated(snap Snapshot)
}

// PollerConfig carries the poll-loop tunables.
type PollerConfig struct {
	Interval              time.Duration
	ServiceCountThreshold int
	Session               SessionConfig
}

// Poller drives the readiness check and session on a fixed period. It
// owns the single "last known good" snapshot: failures never clear it, so
// consumers keep seeing the previous value through transient BLE trouble.
type Poller struct {
	adapter ble.Adapter
	source  AdvertisementSource
	cfg     PollerConfig
	deliver func(Snapshot)
	obs     Observer

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu       sync.Mutex
	snapshot *Snapshot
}

// NewPoller creates a poller. deliver is invoked on every successful
// session with the new snapshot; it may be nil. obs may be nil.
func NewPoller(adapter ble.Adapter, source AdvertisementSource, cfg PollerConfig, deliver func(Snapshot), obs Observer) *Poller {
	return &Poller{
		adapter: adapter,
		source:  source,
		cfg:     cfg,
		deliver: deliver,
		obs:     obs,
	}
}

// Seed installs an initial snapshot, typically restored from the host's
// store at startup. It is treated as an opaque previous value and never
// re-validated. A snapshot already captured over the air wins over a seed.
func (p *Poller) Seed(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot == nil {
		s := snap
		p.snapshot = &s
	}
}

// LastKnown returns the current snapshot, if any session ever completed
// (or a seed was installed).
func (p *Poller) LastKnown() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot == nil {
		return Snapshot{}, false
	}
	return *p.snapshot, true
}

// Run polls until ctx is cancelled. It blocks, and on cancellation waits
// for an in-flight session to finish its cleanup before returning, so the
// caller can safely release the transport afterwards.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one tick: readiness check, then at most one session. If a
// previous session is still running the tick is skipped outright, never
// queued, so two connect attempts to the scale cannot overlap.
func (p *Poller) Poll(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		slog.Debug("[poll] session still in flight, skipping tick")
		return
	}
	p.wg.Add(1)
	defer p.wg.Done()
	defer p.inFlight.Store(false)

	adv, seen := p.source.Latest()
	if !seen {
		p.finish(Outcome{Kind: OutcomeNotReady}, 0)
		return
	}

	ready := IsReady(adv, p.cfg.ServiceCountThreshold)
	if p.obs != nil {
		p.obs.DeviceSighted(ready)
	}
	if !ready {
		slog.Debug("[poll] scale not ready", "services", adv.ServiceCount, "connectable", adv.Connectable)
		p.finish(Outcome{Kind: OutcomeNotReady}, 0)
		return
	}

	slog.Info("[poll] scale active, starting session", "services", adv.ServiceCount, "rssi", adv.RSSI)
	start := time.Now()
	outcome := RunSession(ctx, p.adapter, p.cfg.Session)
	p.finish(outcome, time.Since(start))
}

// finish applies one outcome: store and deliver on success, log and keep
// the previous snapshot on failure. Nothing escapes the poll loop.
func (p *Poller) finish(outcome Outcome, duration time.Duration) {
	if p.obs != nil {
		p.obs.SessionFinished(outcome.Kind, duration)
	}

	switch outcome.Kind {
	case OutcomeCompleted:
		snap := *outcome.Snapshot
		p.mu.Lock()
		p.snapshot = outcome.Snapshot
		p.mu.Unlock()

		slog.Info("[poll] measurement received",
			"weight_kg", snap.Weight, "duration", duration.Round(time.Millisecond))
		if p.obs != nil {
			p.obs.SnapshotUpdated(snap)
		}
		if p.deliver != nil {
			p.deliver(snap)
		}
	case OutcomeNotReady:
		// Quiet path: the scale is simply not in its window.
	default:
		slog.Warn("[poll] session failed, keeping previous snapshot",
			"outcome", outcome.Kind.String(), "error", outcome.Err,
			"duration", duration.Round(time.Millisecond))
	}
}
