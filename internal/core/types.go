// Package core implements the Periodic Task Layer engine: the task
// registry, the per-task wrapper loop, and the tick-driven supervisor
// state machine.
package core

import (
	"context"
	"fmt"
	"strings"

	"ptl/internal/trace"
)

// Policy is the per-task or global overrun-recovery policy.
type Policy int

const (
	PolicyUseGlobal Policy = iota - 1
	PolicySkip
	PolicyKill
	PolicyCatchUp
)

// ParsePolicy parses one of "SKIP", "KILL", or "CATCH_UP" (case
// insensitive). It is used to turn the string-typed configuration field
// into a Policy at bootstrap.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToUpper(name) {
	case "SKIP":
		return PolicySkip, nil
	case "KILL":
		return PolicyKill, nil
	case "CATCH_UP", "CATCHUP":
		return PolicyCatchUp, nil
	default:
		return PolicyUseGlobal, fmt.Errorf("ptl: unknown overrun policy %q", name)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyUseGlobal:
		return "USE_GLOBAL"
	case PolicySkip:
		return "SKIP"
	case PolicyKill:
		return "KILL"
	case PolicyCatchUp:
		return "CATCH_UP"
	default:
		return "UNKNOWN"
	}
}

// MaxTasks is the compile-time cap on registered tasks, matching
// PTL_MAX_TASKS in the original source.
const MaxTasks = 8

// Job is a user job body: it runs between a release and a completion
// stamp. Implementations should observe ctx.Done() for long-running work
// so that a KILL policy can actually reclaim the goroutine.
type Job func(ctx context.Context, arg any)

// TaskConfig is the immutable, application-provided description of one
// periodic task.
type TaskConfig struct {
	Name      string
	Period    trace.Tick // T, in ticks; > 0
	Deadline  trace.Tick // D; 0 means "use Period"
	Priority  int        // strictly less than the supervisor's priority
	StackHint int        // advisory; carried for parity with the source, unused by the goroutine-based kernel
	Entry     Job
	Argument  any
	Policy    Policy
}

// EffectiveDeadline returns D if set, otherwise the period T.
func (c TaskConfig) EffectiveDeadline() trace.Tick {
	if c.Deadline > 0 {
		return c.Deadline
	}
	return c.Period
}

// GlobalConfig is the process-wide configuration supplied to Init.
type GlobalConfig struct {
	DefaultPolicy  Policy
	TracingEnabled bool
	MaxTasks       int
}

// TaskState is the mutable runtime state the registry owns for one
// registered task. NextRelease/CurrentRelease and the counters are only
// ever written by the supervisor goroutine (except JobsCompleted and
// DeadlineMisses, which the wrapper also increments on its own completion
// path); IsActive and DeadlineMissed are shared between the wrapper and
// the supervisor and must only be touched while holding the engine's
// critical section.
type TaskState struct {
	Config TaskConfig

	handle *taskHandle

	NextRelease    trace.Tick
	CurrentRelease trace.Tick

	IsActive       bool
	DeadlineMissed bool

	JobsCompleted   uint32
	DeadlineMisses  uint32
	OverrunSkips    uint32
	OverrunKills    uint32
	OverrunCatchUps uint32
}

// Stats is the tuple returned by Engine.TaskStats.
type Stats struct {
	JobsCompleted  uint32
	DeadlineMisses uint32
	Overruns       uint32
}
