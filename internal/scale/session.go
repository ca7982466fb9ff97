package scale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scalebridge/bf700/internal/ble"
)

// interCommandDelay separates the optional Init write from the Sync
// write, matching the pacing the scale firmware tolerates.
const interCommandDelay = 500 * time.Millisecond

// OutcomeKind classifies how a session ended.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeNotReady
	OutcomeConnectFailed
	OutcomeTimeout
	OutcomeProtocolError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeConnectFailed:
		return "connect_failed"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of one session. Snapshot is non-nil exactly when
// Kind is OutcomeCompleted. Outcomes live for one poll cycle; the poller
// consumes them and moves on.
type Outcome struct {
	Kind     OutcomeKind
	Snapshot *Snapshot
	Err      error
}

// SessionConfig carries the per-session tunables. The timeout values
// differ between firmware and adapter combinations, so they come from
// configuration rather than constants.
type SessionConfig struct {
	Address        string
	ConnectTimeout time.Duration
	FrameTimeout   time.Duration
	SendInit       bool
}

// RunSession drives one connect, subscribe, sync, await-frame,
// disconnect cycle against the scale. Retry policy lives in the poller;
// a session either completes or fails exactly once. Whatever was opened
// is released on every exit path.
func RunSession(ctx context.Context, adapter ble.Adapter, cfg SessionConfig) Outcome {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := adapter.Connect(connectCtx, cfg.Address)
	if err != nil {
		return Outcome{Kind: OutcomeConnectFailed, Err: err}
	}

	var notifyChar ble.Characteristic
	defer func() {
		if notifyChar != nil {
			if err := notifyChar.Unsubscribe(); err != nil {
				slog.Debug("[scale] unsubscribe failed", "error", err)
			}
		}
		if err := conn.Disconnect(); err != nil {
			slog.Debug("[scale] disconnect failed", "error", err)
		}
	}()

	notifyChar, err = conn.DiscoverCharacteristic(ble.ServiceUUID, ble.NotifyCharUUID)
	if err != nil {
		return Outcome{Kind: OutcomeProtocolError, Err: fmt.Errorf("scale: discover notify characteristic: %w", err)}
	}

	// Buffered so a late notification never blocks the BLE callback; only
	// the first decodable frame counts.
	frames := make(chan Measurement, 1)
	if err := notifyChar.Subscribe(func(buf []byte) {
		m, err := DecodeNotification(buf)
		if err != nil {
			// Intermediate packets before the real frame are expected;
			// keep waiting.
			slog.Debug("[scale] ignoring notification", "len", len(buf), "error", err)
			return
		}
		select {
		case frames <- m:
		default:
		}
	}); err != nil {
		return Outcome{Kind: OutcomeProtocolError, Err: fmt.Errorf("scale: subscribe: %w", err)}
	}

	writeChar, err := conn.DiscoverCharacteristic(ble.ServiceUUID, ble.WriteCharUUID)
	if err != nil {
		return Outcome{Kind: OutcomeProtocolError, Err: fmt.Errorf("scale: discover write characteristic: %w", err)}
	}

	// The scale does not reliably ack writes; both commands go out
	// without response.
	if cfg.SendInit {
		if err := writeChar.Write(EncodeCommand(CmdInit), false); err != nil {
			return Outcome{Kind: OutcomeProtocolError, Err: fmt.Errorf("scale: write init: %w", err)}
		}
		select {
		case <-ctx.Done():
			return Outcome{Kind: OutcomeProtocolError, Err: ctx.Err()}
		case <-time.After(interCommandDelay):
		}
	}
	if err := writeChar.Write(EncodeCommand(CmdSync), false); err != nil {
		return Outcome{Kind: OutcomeProtocolError, Err: fmt.Errorf("scale: write sync: %w", err)}
	}

	// First of frame arrival or timeout wins; the loser is ignored and
	// the deferred cleanup runs either way.
	select {
	case m := <-frames:
		snap := &Snapshot{Measurement: m, CapturedAt: time.Now()}
		return Outcome{Kind: OutcomeCompleted, Snapshot: snap}
	case <-time.After(cfg.FrameTimeout):
		return Outcome{Kind: OutcomeTimeout, Err: fmt.Errorf("scale: no frame within %s", cfg.FrameTimeout)}
	case <-ctx.Done():
		return Outcome{Kind: OutcomeProtocolError, Err: ctx.Err()}
	}
}
