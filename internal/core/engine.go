package core

import (
	"context"
	"log/slog"
	"sync"

	"ptl/internal/trace"
)

// SupervisorPriority is the priority the supervisor asserts over every
// wrapper at Start time. Real priority-preemptive dominance is a hard
// precondition of the one-tick jitter guarantee; on the goroutine-based
// kernel this is checked, not enforced by the runtime, so Start refuses
// to run with a task configured at or above it.
const SupervisorPriority = 1<<31 - 1

// Engine owns the task registry, the trace ring, and the supervisor loop:
// the single value that gathers this process's scheduling state rather
// than scattering it across package-level globals.
type Engine struct {
	logger *slog.Logger
	clock  Clock
	trace  *trace.Ring

	crit sync.Mutex

	mu          sync.Mutex
	initialized bool
	started     bool
	global      GlobalConfig
	tasks       []*TaskState

	rootCtx context.Context
}

// NewEngine constructs an Engine. clock and traceRing are external
// collaborators supplied by the caller, keeping the core engine separate
// from its tick clock and trace-recording concerns.
func NewEngine(clock Clock, traceRing *trace.Ring, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger,
		clock:  clock,
		trace:  traceRing,
	}
}

// Init validates configuration and populates the registry. It returns an
// error and leaves the engine untouched on any violation.
func (e *Engine) Init(global GlobalConfig, tasks []TaskConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		e.logger.Error("ptl init failed", "reason", "already initialized")
		return ErrAlreadyInitialized
	}

	maxAllowed := MaxTasks
	if global.MaxTasks > 0 && global.MaxTasks < maxAllowed {
		maxAllowed = global.MaxTasks
	}
	if len(tasks) == 0 || len(tasks) > maxAllowed {
		e.logger.Error("ptl init failed", "reason", "invalid task count", "count", len(tasks), "max", maxAllowed)
		return ErrInvalidTaskCount
	}
	for _, t := range tasks {
		if t.Entry == nil {
			e.logger.Error("ptl init failed", "reason", "nil entry", "task", t.Name)
			return ErrNilEntry
		}
	}

	if global.TracingEnabled {
		e.trace = trace.NewRing()
	} else if e.trace == nil {
		e.trace = trace.NewRing()
	}

	states := make([]*TaskState, len(tasks))
	for i, cfg := range tasks {
		normalized := cfg
		if normalized.Deadline == 0 {
			normalized.Deadline = normalized.Period
		}
		states[i] = &TaskState{Config: normalized}
	}

	e.global = global
	e.tasks = states
	e.initialized = true

	e.logger.Info("ptl initialized", "tasks", len(states), "tracing", global.TracingEnabled, "default_policy", global.DefaultPolicy)
	return nil
}

// Start creates every wrapper task suspended on its notification, then the
// supervisor, and blocks running the supervisor loop until ctx is
// canceled. It returns ErrNotInitialized if Init has not succeeded; under
// normal operation it otherwise does not return until ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.rootCtx = ctx
	tasks := e.tasks
	e.mu.Unlock()

	for _, priorityHolder := range tasks {
		if priorityHolder.Config.Priority >= SupervisorPriority {
			e.fatal("task priority does not strictly dominate supervisor priority", priorityHolder.Config.Name)
			return nil
		}
	}

	for _, state := range tasks {
		if err := e.spawnWrapper(ctx, state); err != nil {
			e.logger.Error("wrapper creation failed", "task", state.Config.Name, "err", err)
			return err
		}
		e.logger.Info("wrapper created", "task", state.Config.Name, "period", state.Config.Period, "deadline", state.Config.EffectiveDeadline(), "policy", e.EffectivePolicy(state))
	}

	e.runSupervisor(ctx)
	return nil
}

func (e *Engine) spawnWrapper(parent context.Context, state *TaskState) error {
	handle := newTaskHandle(parent)
	state.handle = handle
	go e.wrapperLoop(state, handle)
	return nil
}

// fatal logs one explanatory line and then blocks the caller's goroutine
// forever, the Go analogue of the source's spin-halt on an unrecoverable
// condition.
func (e *Engine) fatal(reason, detail string) {
	e.logger.Error("ptl fatal", "reason", reason, "detail", detail)
	<-blockForever
}

var blockForever = make(chan struct{})

// TaskStats returns the counters for the task at index.
func (e *Engine) TaskStats(index int) (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.tasks) {
		return Stats{}, ErrUnknownTask
	}
	state := e.tasks[index]
	e.enterCritical()
	defer e.exitCritical()
	return Stats{
		JobsCompleted:  state.JobsCompleted,
		DeadlineMisses: state.DeadlineMisses,
		Overruns:       state.OverrunSkips + state.OverrunKills + state.OverrunCatchUps,
	}, nil
}

// TaskSnapshot returns a point-in-time copy of state's fields, taken
// under the same critical section the wrapper and supervisor hold while
// writing IsActive/DeadlineMissed and the counters. Callers outside this
// package (the admin API, the MCP introspection server) must read a
// task's mutable state through this rather than dereferencing the
// *TaskState returned by TaskList directly.
func (e *Engine) TaskSnapshot(state *TaskState) TaskState {
	e.enterCritical()
	defer e.exitCritical()
	return *state
}

// TaskList returns the registered task states in registration order.
func (e *Engine) TaskList() []*TaskState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*TaskState, len(e.tasks))
	copy(out, e.tasks)
	return out
}

// IsTracingEnabled reports whether tracing was enabled at Init.
func (e *Engine) IsTracingEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global.TracingEnabled
}

// GlobalPolicy returns the configured default overrun policy.
func (e *Engine) GlobalPolicy() Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global.DefaultPolicy
}

// EffectivePolicy returns the per-task policy if set, otherwise the
// global default.
func (e *Engine) EffectivePolicy(state *TaskState) Policy {
	if state.Config.Policy != PolicyUseGlobal {
		return state.Config.Policy
	}
	return e.GlobalPolicy()
}

// Trace exposes the trace ring for statistics extraction and dumps.
func (e *Engine) Trace() *trace.Ring {
	return e.trace
}
