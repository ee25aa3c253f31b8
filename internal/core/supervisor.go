package core

import (
	"context"

	"ptl/internal/trace"
)

// runSupervisor is the tick-driven scheduling loop. Each tick it releases
// every task whose period has elapsed, applies the configured overrun
// policy to any task still running from a prior release, and tracks CPU
// idle time for the offline statistics reducer. It returns when ctx is
// canceled.
func (e *Engine) runSupervisor(ctx context.Context) {
	e.mu.Lock()
	tasks := e.tasks
	e.mu.Unlock()

	now := e.clock.Now()
	for _, state := range tasks {
		state.NextRelease = now
	}

	idle := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now = e.clock.SleepUntil(now + 1)
		tracing := e.IsTracingEnabled()

		for _, state := range tasks {
			e.checkDeadline(state, now, tracing)
		}

		for _, state := range tasks {
			if now < state.NextRelease {
				continue
			}
			e.releaseTask(state, now, tracing)
			state.NextRelease += state.Config.Period
		}

		if tracing {
			anyActive := false
			for _, state := range tasks {
				e.enterCritical()
				active := state.IsActive
				e.exitCritical()
				if active {
					anyActive = true
					break
				}
			}
			switch {
			case !anyActive && !idle:
				e.trace.TrackIdleEntry(now)
				idle = true
			case anyActive && idle:
				e.trace.TrackIdleExit(now)
				idle = false
			}
		}
	}
}

// checkDeadline runs the per-tick surveillance pass: independent of
// release timing, a task still active past its own current release's
// deadline gets exactly one DEADLINE_MISS, at the tick it actually
// happens rather than whenever its next release or overrun policy
// happens to notice. DeadlineMissed guards against logging the same miss
// on every subsequent tick until the next release clears it.
func (e *Engine) checkDeadline(state *TaskState, now trace.Tick, tracing bool) {
	e.enterCritical()
	overdue := state.IsActive && !state.DeadlineMissed && now >= state.CurrentRelease+state.Config.EffectiveDeadline()
	if overdue {
		state.DeadlineMissed = true
		state.DeadlineMisses++
	}
	e.exitCritical()

	if overdue && tracing {
		e.trace.Log(state.Config.Name, trace.DeadlineMiss, now)
	}
}

// releaseTask handles one task's release point: a normal release if the
// task is idle, or the effective overrun policy if the previous job is
// still running. DeadlineMissed is cleared here, as the first state
// change of every release transition, so that a fresh job always starts
// clean regardless of what its predecessor did.
func (e *Engine) releaseTask(state *TaskState, now trace.Tick, tracing bool) {
	e.enterCritical()
	overrun := state.IsActive
	state.DeadlineMissed = false
	e.exitCritical()

	if !overrun {
		e.enterCritical()
		state.CurrentRelease = now
		e.exitCritical()
		state.handle.give()
		if tracing {
			e.trace.Log(state.Config.Name, trace.Release, now)
		}
		return
	}

	switch e.EffectivePolicy(state) {
	case PolicySkip:
		e.enterCritical()
		state.OverrunSkips++
		e.exitCritical()
		if tracing {
			e.trace.Log(state.Config.Name, trace.OverrunSkip, now)
		}

	case PolicyCatchUp:
		// The previous job is forced inactive; the new release is handed
		// out immediately. Any deadline miss on the superseded job was
		// already recorded by the surveillance pass, not here. The
		// superseded job's own wrapper goroutine keeps running to
		// completion independently and still updates its own completion
		// counters when it eventually returns.
		e.enterCritical()
		state.IsActive = false
		state.OverrunCatchUps++
		state.CurrentRelease = now
		e.exitCritical()
		state.handle.give()
		if tracing {
			e.trace.Log(state.Config.Name, trace.OverrunCatchUp, now)
			e.trace.Log(state.Config.Name, trace.Release, now)
		}

	case PolicyKill:
		e.killAndRecreate(state, now, tracing)

	default:
		e.fatal("unknown overrun policy", state.Config.Name)
	}
}

// killAndRecreate destroys the task's current wrapper goroutine and spawns
// a fresh one in its place. There is no primitive to stop and discard a
// single execution while keeping the task, so the old goroutine is
// canceled and abandoned rather than synchronously stopped; if its entry
// function ignores ctx.Done() it may keep running orphaned in the
// background.
func (e *Engine) killAndRecreate(state *TaskState, now trace.Tick, tracing bool) {
	old := state.handle
	old.destroy()

	e.enterCritical()
	state.IsActive = false
	state.OverrunKills++
	state.CurrentRelease = now
	e.exitCritical()

	if tracing {
		e.trace.Log(state.Config.Name, trace.OverrunKill, now)
	}

	if err := e.spawnWrapper(e.rootCtx, state); err != nil {
		e.fatal("failed to recreate task after kill", state.Config.Name)
		return
	}
	state.handle.give()
	if tracing {
		e.trace.Log(state.Config.Name, trace.Release, now)
	}
}
