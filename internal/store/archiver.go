package store

import (
	"context"
	"log/slog"
	"time"

	"ptl/internal/core"
)

// defaultRetention bounds how many trace records the archive keeps.
const defaultRetention = 5000

// Archiver periodically drains the engine's task registry and trace ring
// into the Store. It runs alongside the real-time tick loop and never
// touches engine-internal locks beyond the read-only accessors Engine
// already exposes for introspection.
type Archiver struct {
	store    *Store
	engine   *core.Engine
	logger   *slog.Logger
	interval time.Duration
	retain   int
}

// NewArchiver constructs an Archiver. interval defaults to one minute if
// zero.
func NewArchiver(store *Store, engine *core.Engine, logger *slog.Logger, interval time.Duration) *Archiver {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: store, engine: engine, logger: logger, interval: interval, retain: defaultRetention}
}

// Run archives on a fixed interval until ctx is canceled.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.archiveOnce(ctx)
		}
	}
}

func (a *Archiver) archiveOnce(ctx context.Context) {
	now := time.Now()

	for _, state := range a.engine.TaskList() {
		policy := a.engine.EffectivePolicy(state)
		snap := a.engine.TaskSnapshot(state)
		if err := a.store.InsertRegistrySnapshot(ctx, &snap, policy, now); err != nil {
			a.logger.Warn("archive registry snapshot failed", "task", state.Config.Name, "err", err)
		}
	}

	// The ring only ever exposes its currently-valid window, and older
	// entries are silently overwritten as it wraps, so each archive tick
	// re-inserts whatever is visible now rather than trying to track a
	// watermark into a buffer that rewrites itself. Consumers dedupe on
	// (task_name, event, tick) downstream if they need exactly-once rows.
	if a.engine.IsTracingEnabled() {
		for _, rec := range a.engine.Trace().Records() {
			if err := a.store.InsertTraceRecord(ctx, rec, now); err != nil {
				a.logger.Warn("archive trace record failed", "task", rec.TaskName, "err", err)
			}
		}
	}

	if err := a.store.PruneTraceRecords(ctx, a.retain); err != nil {
		a.logger.Warn("prune trace records failed", "err", err)
	}
}
