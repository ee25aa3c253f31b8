package notify

import (
	"context"
	"fmt"
	"log/slog"

	"ptl/internal/trace"
)

// bridgeQueueSize bounds the channel the ring's write hook feeds. A slow
// or hanging notifier must never stall the tick-driven producer side, so
// the bridge drops records rather than growing the queue.
const bridgeQueueSize = 64

// Bridge watches a trace ring for DEADLINE_MISS and OVERRUN_KILL records
// and forwards them to a Notifier off the real-time path. The core engine
// only ever calls trace.Ring.Log; it has no notion of notifiers.
type Bridge struct {
	notifier Notifier
	logger   *slog.Logger
	records  chan trace.Record
	dropped  uint64
}

// NewBridge constructs a Bridge and installs its write hook on ring.
// Call Run in a goroutine to start draining it.
func NewBridge(ring *trace.Ring, notifier Notifier, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		notifier: notifier,
		logger:   logger,
		records:  make(chan trace.Record, bridgeQueueSize),
	}
	ring.SetWriteHook(b.onWrite)
	return b
}

func (b *Bridge) onWrite(rec trace.Record) {
	if rec.Event != trace.DeadlineMiss && rec.Event != trace.OverrunKill {
		return
	}
	select {
	case b.records <- rec:
	default:
		b.dropped++
	}
}

// Run drains queued records and sends notifications until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-b.records:
			title, body := formatAlert(rec)
			if err := b.notifier.Send(ctx, title, body); err != nil {
				b.logger.Warn("notification send failed", "event", rec.Event, "task", rec.TaskName, "err", err)
			}
		}
	}
}

// Dropped returns the number of records discarded because the queue was
// full; a nonzero value means the notifier is falling behind.
func (b *Bridge) Dropped() uint64 {
	return b.dropped
}

func formatAlert(rec trace.Record) (title, body string) {
	switch rec.Event {
	case trace.DeadlineMiss:
		return "PTL deadline miss", fmt.Sprintf("task %q missed its deadline at tick %d", rec.TaskName, rec.Timestamp)
	case trace.OverrunKill:
		return "PTL task killed", fmt.Sprintf("task %q was destroyed and recreated after an overrun at tick %d", rec.TaskName, rec.Timestamp)
	default:
		return "PTL event", fmt.Sprintf("task %q: %s at tick %d", rec.TaskName, rec.Event, rec.Timestamp)
	}
}
