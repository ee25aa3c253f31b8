package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ptl/internal/core"
	"ptl/internal/trace"
)

// InsertRegistrySnapshot records one row per registered task, capturing
// its configuration and counters at the moment of the archive tick.
func (s *Store) InsertRegistrySnapshot(ctx context.Context, state *core.TaskState, policy core.Policy, capturedAt time.Time) error {
	stats := core.Stats{
		JobsCompleted:  state.JobsCompleted,
		DeadlineMisses: state.DeadlineMisses,
		Overruns:       state.OverrunSkips + state.OverrunKills + state.OverrunCatchUps,
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO registry_snapshots
			(id, task_name, period_ticks, deadline_ticks, policy, jobs_completed, deadline_misses, overruns, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), state.Config.Name, int64(state.Config.Period), int64(state.Config.EffectiveDeadline()),
		policy.String(), stats.JobsCompleted, stats.DeadlineMisses, stats.Overruns,
		capturedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert registry snapshot: %w", err)
	}
	return nil
}

// InsertTraceRecord archives one trace ring record.
func (s *Store) InsertTraceRecord(ctx context.Context, rec trace.Record, capturedAt time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO trace_records (id, task_name, event, tick, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), rec.TaskName, rec.Event.String(), int64(rec.Timestamp),
		capturedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert trace record: %w", err)
	}
	return nil
}

// PruneTraceRecords deletes archived trace records beyond keep most-recent
// rows, applying a single retention policy to the whole archive rather
// than per task.
func (s *Store) PruneTraceRecords(ctx context.Context, keep int) error {
	_, err := s.DB.ExecContext(ctx, `
		DELETE FROM trace_records
		WHERE id NOT IN (
			SELECT id FROM trace_records ORDER BY captured_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("prune trace records: %w", err)
	}
	return nil
}
