package core

import (
	"context"
	"testing"
	"time"

	"ptl/internal/trace"
)

func newTestEngine(t *testing.T) (*Engine, *VirtualClock) {
	t.Helper()
	clock := NewVirtualClock()
	engine := NewEngine(clock, trace.NewRing(), nil)
	return engine, clock
}

func TestInit_RejectsEmptyTaskSet(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Init(GlobalConfig{}, nil); err != ErrInvalidTaskCount {
		t.Fatalf("want ErrInvalidTaskCount, got %v", err)
	}
}

func TestInit_RejectsTaskCountAboveMax(t *testing.T) {
	engine, _ := newTestEngine(t)
	tasks := make([]TaskConfig, MaxTasks+1)
	for i := range tasks {
		tasks[i] = TaskConfig{Name: "t", Period: 10, Entry: func(context.Context, any) {}}
	}
	if err := engine.Init(GlobalConfig{}, tasks); err != ErrInvalidTaskCount {
		t.Fatalf("want ErrInvalidTaskCount, got %v", err)
	}
}

func TestInit_RejectsNilEntry(t *testing.T) {
	engine, _ := newTestEngine(t)
	tasks := []TaskConfig{{Name: "t", Period: 10}}
	if err := engine.Init(GlobalConfig{}, tasks); err != ErrNilEntry {
		t.Fatalf("want ErrNilEntry, got %v", err)
	}
}

func TestInit_RejectsDoubleInit(t *testing.T) {
	engine, _ := newTestEngine(t)
	tasks := []TaskConfig{{Name: "t", Period: 10, Entry: func(context.Context, any) {}}}
	if err := engine.Init(GlobalConfig{}, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := engine.Init(GlobalConfig{}, tasks); err != ErrAlreadyInitialized {
		t.Fatalf("want ErrAlreadyInitialized, got %v", err)
	}
}

func TestInit_DefaultsDeadlineToPeriod(t *testing.T) {
	engine, _ := newTestEngine(t)
	tasks := []TaskConfig{{Name: "t", Period: 42, Entry: func(context.Context, any) {}}}
	if err := engine.Init(GlobalConfig{}, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := engine.TaskList()[0]
	if state.Config.EffectiveDeadline() != 42 {
		t.Fatalf("want deadline defaulted to period 42, got %d", state.Config.EffectiveDeadline())
	}
}

func TestStart_RejectsUninitialized(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.Start(context.Background()); err != ErrNotInitialized {
		t.Fatalf("want ErrNotInitialized, got %v", err)
	}
}

func TestEffectivePolicy_FallsBackToGlobal(t *testing.T) {
	engine, _ := newTestEngine(t)
	tasks := []TaskConfig{
		{Name: "inherits", Period: 10, Entry: func(context.Context, any) {}, Policy: PolicyUseGlobal},
		{Name: "overrides", Period: 10, Entry: func(context.Context, any) {}, Policy: PolicyKill},
	}
	if err := engine.Init(GlobalConfig{DefaultPolicy: PolicySkip}, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	states := engine.TaskList()
	if got := engine.EffectivePolicy(states[0]); got != PolicySkip {
		t.Fatalf("want inherited SKIP, got %v", got)
	}
	if got := engine.EffectivePolicy(states[1]); got != PolicyKill {
		t.Fatalf("want overridden KILL, got %v", got)
	}
}

// runUntil advances the virtual clock in single-tick steps, giving the
// supervisor goroutine a chance to run between each, until the given
// number of ticks have elapsed.
func runUntil(clock *VirtualClock, ticks trace.Tick) {
	for i := trace.Tick(0); i < ticks; i++ {
		clock.Advance(1)
		time.Sleep(time.Millisecond)
	}
}

func TestSupervisor_ReleasesTaskAfterStart(t *testing.T) {
	engine, clock := newTestEngine(t)
	completed := make(chan struct{}, 10)
	tasks := []TaskConfig{
		{
			Name:     "well-behaved",
			Period:   5,
			Priority: 1,
			Entry: func(ctx context.Context, _ any) {
				completed <- struct{}{}
			},
		},
	}
	if err := engine.Init(GlobalConfig{DefaultPolicy: PolicySkip}, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Start(ctx)

	runUntil(clock, 12)

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("task never released")
	}
}

func TestSupervisor_SkipPolicy_DropsReleaseUnderOverrun(t *testing.T) {
	engine, clock := newTestEngine(t)
	release := make(chan struct{})
	unblock := make(chan struct{})
	tasks := []TaskConfig{
		{
			Name:     "slow",
			Period:   1,
			Priority: 1,
			Policy:   PolicySkip,
			Entry: func(ctx context.Context, _ any) {
				release <- struct{}{}
				<-unblock
			},
		},
	}
	if err := engine.Init(GlobalConfig{}, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Start(ctx)

	go runUntil(clock, 20)

	select {
	case <-release:
	case <-time.After(time.Second):
		t.Fatal("first release never started")
	}

	// While the job is blocked, further tick advances should count as
	// overrun skips rather than starting a second concurrent run.
	time.Sleep(50 * time.Millisecond)
	state := engine.TaskList()[0]
	engine.enterCritical()
	skips := state.OverrunSkips
	engine.exitCritical()
	if skips == 0 {
		t.Fatal("want at least one overrun skip while job was blocked")
	}

	close(unblock)
}
