package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ptl/internal/core"
)

type taskResponse struct {
	Name            string `json:"name"`
	PeriodTicks     uint64 `json:"period_ticks"`
	DeadlineTicks   uint64 `json:"deadline_ticks"`
	Priority        int    `json:"priority"`
	Policy          string `json:"policy"`
	IsActive        bool   `json:"is_active"`
	DeadlineMissed  bool   `json:"deadline_missed"`
	JobsCompleted   uint32 `json:"jobs_completed"`
	DeadlineMisses  uint32 `json:"deadline_misses"`
	OverrunSkips    uint32 `json:"overrun_skips"`
	OverrunKills    uint32 `json:"overrun_kills"`
	OverrunCatchUps uint32 `json:"overrun_catch_ups"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.engine.TaskList()
	res := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskToResponse(s.engine, t))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	state := s.findTask(name)
	if state == nil {
		writeError(w, http.StatusNotFound, "not_found", "task not found")
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(s.engine, state))
}

func (s *Server) handleGetTaskPolicy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	state := s.findTask(name)
	if state == nil {
		writeError(w, http.StatusNotFound, "not_found", "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"task":              name,
		"effective_policy":  s.engine.EffectivePolicy(state).String(),
		"configured_policy": state.Config.Policy.String(),
		"global_policy":     s.engine.GlobalPolicy().String(),
	})
}

func (s *Server) handleTraceStatistics(w http.ResponseWriter, r *http.Request) {
	if !s.engine.IsTracingEnabled() {
		writeError(w, http.StatusConflict, "tracing_disabled", "tracing is not enabled")
		return
	}
	stats := s.engine.Trace().Reduce()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTraceDump(w http.ResponseWriter, r *http.Request) {
	if !s.engine.IsTracingEnabled() {
		writeError(w, http.StatusConflict, "tracing_disabled", "tracing is not enabled")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	mw := io.MultiWriter(w, s.console)
	s.engine.Trace().PrintTrace(mw)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tracing_enabled": s.engine.IsTracingEnabled(),
		"default_policy":  s.engine.GlobalPolicy().String(),
		"task_count":      len(s.engine.TaskList()),
	})
}

func (s *Server) findTask(name string) *core.TaskState {
	for _, t := range s.engine.TaskList() {
		if t.Config.Name == name {
			return t
		}
	}
	return nil
}

func taskToResponse(e *core.Engine, t *core.TaskState) taskResponse {
	snap := e.TaskSnapshot(t)
	return taskResponse{
		Name:            snap.Config.Name,
		PeriodTicks:     uint64(snap.Config.Period),
		DeadlineTicks:   uint64(snap.Config.EffectiveDeadline()),
		Priority:        snap.Config.Priority,
		Policy:          e.EffectivePolicy(t).String(),
		IsActive:        snap.IsActive,
		DeadlineMissed:  snap.DeadlineMissed,
		JobsCompleted:   snap.JobsCompleted,
		DeadlineMisses:  snap.DeadlineMisses,
		OverrunSkips:    snap.OverrunSkips,
		OverrunKills:    snap.OverrunKills,
		OverrunCatchUps: snap.OverrunCatchUps,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
