package core

import (
	"context"
	"testing"
	"time"
)

func TestSupervisor_CatchUpPolicy_ForcesInactiveButOldJobStillCompletes(t *testing.T) {
	engine, clock := newTestEngine(t)
	started := make(chan struct{})
	finish := make(chan struct{})
	tasks := []TaskConfig{
		{
			Name:     "catchup",
			Period:   1,
			Priority: 1,
			Policy:   PolicyCatchUp,
			Entry: func(ctx context.Context, _ any) {
				started <- struct{}{}
				<-finish
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
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first job never started")
	}

	// Give the supervisor a chance to observe the overrun and force this
	// release inactive via CATCH_UP.
	time.Sleep(50 * time.Millisecond)
	state := engine.TaskList()[0]
	engine.enterCritical()
	forcedInactive := !state.IsActive
	catchUps := state.OverrunCatchUps
	engine.exitCritical()
	if !forcedInactive {
		t.Fatal("want CATCH_UP to force IsActive false while the old job is still blocked")
	}
	if catchUps == 0 {
		t.Fatal("want at least one recorded catch-up overrun")
	}

	// Now let the original (superseded) job body return. Its own
	// completion path must still run to conclusion and still record a
	// completed job, independent of the supervisor having already forced
	// it inactive.
	close(finish)
	time.Sleep(50 * time.Millisecond)
	engine.enterCritical()
	completed := state.JobsCompleted
	engine.exitCritical()
	if completed == 0 {
		t.Fatal("want the superseded job's own completion path to still increment jobs_completed")
	}
}

func TestSupervisor_DeadlineSurveillance_FiresAtDeadlineNotAtNextRelease(t *testing.T) {
	engine, clock := newTestEngine(t)
	started := make(chan struct{})
	finish := make(chan struct{})
	tasks := []TaskConfig{
		{
			Name:     "long-running",
			Period:   20,
			Deadline: 5,
			Priority: 1,
			Policy:   PolicySkip,
			Entry: func(ctx context.Context, _ any) {
				started <- struct{}{}
				<-finish
			},
		},
	}
	if err := engine.Init(GlobalConfig{}, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Start(ctx)
	defer close(finish)

	go runUntil(clock, 8)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}

	// By tick 8 the job is still running (it's blocked on <-finish) and
	// its deadline, five ticks after its first release at tick 1, has
	// already elapsed at tick 6, well before its next release at tick 20. The miss must be visible by then, independent of any
	// release or overrun-policy branch.
	time.Sleep(50 * time.Millisecond)
	state := engine.TaskList()[0]
	engine.enterCritical()
	missed := state.DeadlineMissed
	misses := state.DeadlineMisses
	skips := state.OverrunSkips
	engine.exitCritical()
	if !missed || misses != 1 {
		t.Fatalf("want one deadline miss recorded by tick 8, got missed=%v misses=%d", missed, misses)
	}
	if skips != 0 {
		t.Fatalf("want no overrun policy applied yet (next release is tick 20), got %d skips", skips)
	}
}

func TestSupervisor_KillPolicy_RecreatesWrapperAndOrphansOld(t *testing.T) {
	engine, clock := newTestEngine(t)
	started := make(chan struct{}, 10)
	blocked := make(chan struct{})
	tasks := []TaskConfig{
		{
			Name:     "kill-me",
			Period:   1,
			Priority: 1,
			Policy:   PolicyKill,
			Entry: func(ctx context.Context, _ any) {
				started <- struct{}{}
				<-blocked
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
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first job never started")
	}

	time.Sleep(50 * time.Millisecond)
	state := engine.TaskList()[0]
	engine.enterCritical()
	kills := state.OverrunKills
	engine.exitCritical()
	if kills == 0 {
		t.Fatal("want at least one recorded kill overrun")
	}

	// The recreated wrapper should still receive releases and run new job
	// bodies, even though the original body is permanently orphaned on
	// <-blocked.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("recreated wrapper never started a fresh job body")
	}

	close(blocked)
}
