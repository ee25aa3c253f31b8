// Package mcp exposes the PTL engine's introspection surface as MCP tools
// over stdio, built on mark3labs/mcp-go. Every tool wraps a read-only
// Engine accessor; none can mutate scheduling state.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ptl/internal/core"
)

// Server represents the MCP server that handles protocol communication.
type Server struct {
	engine *core.Engine
	logger *slog.Logger
}

// NewServer creates a new MCP introspection server.
func NewServer(engine *core.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger}
}

// Run starts the MCP server using stdio transport. It blocks until stdin
// is closed or an unrecoverable transport error occurs.
func (s *Server) Run() error {
	mcpServer := server.NewMCPServer(
		"ptl",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(mcpServer)
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("ptl_list_tasks",
		mcp.WithDescription("List every registered periodic task with its configuration and counters"),
	), s.handleListTasks)

	mcpServer.AddTool(mcp.NewTool("ptl_get_task_stats",
		mcp.WithDescription("Get jobs-completed, deadline-miss, and overrun counters for one task"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.handleGetTaskStats)

	mcpServer.AddTool(mcp.NewTool("ptl_get_effective_policy",
		mcp.WithDescription("Get the effective overrun-recovery policy applied to one task"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Task name"),
		),
	), s.handleGetEffectivePolicy)

	mcpServer.AddTool(mcp.NewTool("ptl_get_trace_statistics",
		mcp.WithDescription("Get the reduced scheduling statistics (CPU utilization, idle time, overhead) from the trace ring"),
	), s.handleGetTraceStatistics)

	mcpServer.AddTool(mcp.NewTool("ptl_print_trace",
		mcp.WithDescription("Render the chronological scheduling trace in the human-readable dump format"),
	), s.handlePrintTrace)

	s.logger.Info("MCP tools registered", "count", 5)
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := s.engine.TaskList()
	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s)\n", len(tasks))
	for _, t := range tasks {
		snap := s.engine.TaskSnapshot(t)
		fmt.Fprintf(&b, "- %s: period=%d deadline=%d priority=%d policy=%s active=%t jobs=%d misses=%d\n",
			snap.Config.Name, snap.Config.Period, snap.Config.EffectiveDeadline(), snap.Config.Priority,
			s.engine.EffectivePolicy(t), snap.IsActive, snap.JobsCompleted, snap.DeadlineMisses)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGetTaskStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	state := s.findTask(name)
	if state == nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown task %q", name)), nil
	}
	snap := s.engine.TaskSnapshot(state)
	return mcp.NewToolResultText(fmt.Sprintf(
		"task %s\njobs_completed=%d\ndeadline_misses=%d\noverrun_skips=%d\noverrun_kills=%d\noverrun_catch_ups=%d\nis_active=%t\ndeadline_missed=%t",
		snap.Config.Name, snap.JobsCompleted, snap.DeadlineMisses,
		snap.OverrunSkips, snap.OverrunKills, snap.OverrunCatchUps,
		snap.IsActive, snap.DeadlineMissed,
	)), nil
}

func (s *Server) handleGetEffectivePolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	state := s.findTask(name)
	if state == nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown task %q", name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("task %s: effective policy is %s (configured %s, global default %s)",
		name, s.engine.EffectivePolicy(state), state.Config.Policy, s.engine.GlobalPolicy())), nil
}

func (s *Server) handleGetTraceStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.engine.IsTracingEnabled() {
		return mcp.NewToolResultError("tracing is not enabled"), nil
	}
	stats := s.engine.Trace().Reduce()
	return mcp.NewToolResultText(fmt.Sprintf(
		"releases=%d completions=%d deadline_misses=%d overruns=%d total_time_ms=%d idle_time_ms=%d cpu_utilization=%.2f%% overhead=%.2f%%",
		stats.TotalReleases, stats.TotalCompletions, stats.DeadlineMisses, stats.OverrunCount,
		stats.TotalTimeMs, stats.IdleTimeMs, stats.CPUUtilization*100, stats.Overhead()*100,
	)), nil
}

func (s *Server) handlePrintTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.engine.IsTracingEnabled() {
		return mcp.NewToolResultError("tracing is not enabled"), nil
	}
	var b strings.Builder
	s.engine.Trace().PrintTrace(&b)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) findTask(name string) *core.TaskState {
	for _, t := range s.engine.TaskList() {
		if t.Config.Name == name {
			return t
		}
	}
	return nil
}
