// Package diag implements a periodic statistics heartbeat: a background
// job, scheduled by a cron expression rather than the tick clock, that
// logs a trace statistics snapshot. It is an application-level consumer
// of the trace reducer that never touches the registry's release
// bookkeeping.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"ptl/internal/core"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule validates a 5-field cron expression, mirroring the
// teacher's ParseCron.
func ParseSchedule(expr string) (cron.Schedule, error) {
	if strings.HasPrefix(strings.TrimSpace(expr), "@") {
		return nil, fmt.Errorf("only 5-field cron expressions are supported")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// Heartbeat runs a cron-scheduled statistics dump against an engine's
// trace ring.
type Heartbeat struct {
	engine *core.Engine
	logger *slog.Logger
	cron   *cron.Cron
	expr   string
}

// NewHeartbeat constructs a Heartbeat. expr must be a valid 5-field cron
// expression; it is validated eagerly so bootstrap fails fast on a typo.
func NewHeartbeat(engine *core.Engine, logger *slog.Logger, expr string) (*Heartbeat, error) {
	if _, err := ParseSchedule(expr); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		engine: engine,
		logger: logger,
		cron:   cron.New(),
		expr:   expr,
	}, nil
}

// Start registers the heartbeat job and begins the cron scheduler. It
// does not block; cancel ctx to end it.
func (h *Heartbeat) Start(ctx context.Context) error {
	_, err := h.cron.AddFunc(h.expr, func() { h.tick() })
	if err != nil {
		return fmt.Errorf("register diagnostics heartbeat: %w", err)
	}
	h.cron.Start()
	go func() {
		<-ctx.Done()
		h.cron.Stop()
	}()
	return nil
}

func (h *Heartbeat) tick() {
	if !h.engine.IsTracingEnabled() {
		return
	}
	stats := h.engine.Trace().Reduce()
	h.logger.Info("ptl diagnostics",
		"releases", stats.TotalReleases,
		"completions", stats.TotalCompletions,
		"deadline_misses", stats.DeadlineMisses,
		"overruns", stats.OverrunCount,
		"cpu_utilization", stats.CPUUtilization,
		"overhead", stats.Overhead(),
	)
}
