package core

import (
	"fmt"

	"ptl/internal/trace"
)

// wrapperLoop is the per-task wrapper body: block on the task's
// notification, run one job, stamp completion and deadline status, then
// loop. It returns only when the handle's context is canceled, which
// happens on shutdown or on a KILL policy destroying this task.
func (e *Engine) wrapperLoop(state *TaskState, handle *taskHandle) {
	for {
		if err := handle.take(); err != nil {
			return
		}
		e.enterCritical()
		release := state.CurrentRelease
		e.exitCritical()
		e.runJob(state, handle, release)
	}
}

// runJob executes one release: mark active, invoke the entry with panic
// recovery, stamp completion, and latch a deadline miss if the completion
// tick is past the release's absolute deadline and no miss is latched yet
// (the supervisor's surveillance pass may already have recorded it). This
// completion path
// always runs to conclusion and always updates the counters, even for a
// release the supervisor has since forced inactive out from under it via
// CATCH_UP.
func (e *Engine) runJob(state *TaskState, handle *taskHandle, release trace.Tick) {
	start := e.clock.Now()

	e.enterCritical()
	state.IsActive = true
	e.exitCritical()

	tracing := e.IsTracingEnabled()
	if tracing {
		e.trace.Log(state.Config.Name, trace.Start, start)
	}

	e.invokeEntry(state, handle)

	end := e.clock.Now()
	deadlineTick := release + state.Config.EffectiveDeadline()
	missed := end > deadlineTick

	e.enterCritical()
	state.IsActive = false
	state.JobsCompleted++
	missed = missed && !state.DeadlineMissed
	if missed {
		state.DeadlineMissed = true
		state.DeadlineMisses++
	}
	e.exitCritical()

	if tracing {
		e.trace.Log(state.Config.Name, trace.Complete, end)
		if missed {
			e.trace.Log(state.Config.Name, trace.DeadlineMiss, end)
		}
	}
}

// invokeEntry runs the user job body, converting a panic into the same
// fatal spin-halt a stack-overflow hook would trigger on real hardware: a
// corrupted task is not something the supervisor can recover from, so the
// process stops advancing rather than silently dropping jobs.
func (e *Engine) invokeEntry(state *TaskState, handle *taskHandle) {
	defer func() {
		if r := recover(); r != nil {
			e.fatal("task entry panicked", fmt.Sprintf("%s: %v", state.Config.Name, r))
		}
	}()
	state.Config.Entry(handle.ctx, state.Config.Argument)
}
