package main

import (
	"context"
	"log/slog"

	"ptl/internal/burn"
	"ptl/internal/core"
)

// defaultTasks reproduces the three demonstration jobs from the original
// project's main.c: a well-behaved periodic sensor read, a rogue
// image-processing job that always exceeds its deadline (KILL), and a
// logger that runs late but is allowed to finish (SKIP). Burn simulates
// real CPU-bound work in place of a sleep, exactly as the source does, so
// the supervisor has to manage real preemption and overruns.
func defaultTasks(logger *slog.Logger) []core.TaskConfig {
	return []core.TaskConfig{
		{
			Name:     "Sensor",
			Period:   100,
			Deadline: 100,
			Priority: 2,
			Policy:   core.PolicyUseGlobal,
			Entry:    sensorJob(logger),
		},
		{
			Name:     "ImgProc",
			Period:   200,
			Deadline: 50,
			Priority: 1,
			Policy:   core.PolicyKill,
			Entry:    imgProcJob(logger),
		},
		{
			Name:     "Logger",
			Period:   200,
			Deadline: 50,
			Priority: 3,
			Policy:   core.PolicySkip,
			Entry:    loggerJob(logger),
		},
	}
}

func sensorJob(logger *slog.Logger) core.Job {
	return func(ctx context.Context, _ any) {
		logger.Info("[SENSOR] reading data (10ms work)")
		burn.Burn(10)
		logger.Info("[SENSOR] done")
	}
}

func imgProcJob(logger *slog.Logger) core.Job {
	return func(ctx context.Context, _ any) {
		logger.Info("[IMG_PROC] processing heavy frame, will exceed deadline")
		burn.Burn(80)
		// Reached whenever the burn completes. KILL applies only when the
		// job is still running at its next release; with an 80ms burn and a
		// 200-tick period that does not happen, and Burn does not observe
		// ctx, so an orphaned killed goroutine would reach this line too.
		logger.Warn("[IMG_PROC] finished without being killed")
	}
}

func loggerJob(logger *slog.Logger) core.Job {
	return func(ctx context.Context, _ any) {
		logger.Info("[LOG] writing to archive, running late")
		burn.Burn(60)
		logger.Info("[LOG] done (late but safe)")
	}
}
