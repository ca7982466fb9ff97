package ble

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// scanRestartDelay is how long the watcher waits before restarting a scan
// that ended with an error.
const scanRestartDelay = 2 * time.Second

// Watcher runs a background scan and caches the most recent advertisement
// seen from one target address. Pollers query Latest instead of scanning
// themselves, matching how BlueZ hands out cached discovery state.
type Watcher struct {
	adapter Adapter
	address string

	mu     sync.Mutex
	latest Advertisement
	seen   bool
}

// NewWatcher creates a watcher for the given target address.
func NewWatcher(adapter Adapter, address string) *Watcher {
	return &Watcher{adapter: adapter, address: address}
}

// Run scans until ctx is cancelled, restarting on scan errors. It blocks;
// callers run it in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	for {
		err := w.adapter.Scan(ctx, w.observe)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("[ble] scan ended, restarting", "error", err, "delay", scanRestartDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(scanRestartDelay):
		}
	}
}

// observe records a sighting if it belongs to the target address.
// Addresses are compared case-insensitively.
func (w *Watcher) observe(adv Advertisement) {
	if !strings.EqualFold(adv.Address, w.address) {
		return
	}
	if adv.SeenAt.IsZero() {
		adv.SeenAt = time.Now()
	}
	w.mu.Lock()
	w.latest = adv
	w.seen = true
	w.mu.Unlock()
}

// Latest returns the most recent sighting of the target address, and
// whether the device has been seen at all since startup.
func (w *Watcher) Latest() (Advertisement, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest, w.seen
}
