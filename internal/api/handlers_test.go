package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ptl/internal/core"
	"ptl/internal/trace"
)

func newTestServer(t *testing.T, tracing bool) *Server {
	t.Helper()
	clock := core.NewVirtualClock()
	engine := core.NewEngine(clock, trace.NewRing(), nil)
	tasks := []core.TaskConfig{
		{Name: "Sensor", Period: 10, Priority: 1, Policy: core.PolicyUseGlobal, Entry: func(context.Context, any) {}},
	}
	if err := engine.Init(core.GlobalConfig{TracingEnabled: tracing, DefaultPolicy: core.PolicySkip}, tasks); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return NewServer("127.0.0.1:0", "", engine, nil)
}

func TestHandleListTasks_ReturnsRegisteredTasks(t *testing.T) {
	s := newTestServer(t, true)
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var got []taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Sensor" {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestHandleGetTask_NotFound(t *testing.T) {
	s := newTestServer(t, true)
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/DoesNotExist", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func TestHandleTraceStatistics_ConflictWhenTracingDisabled(t *testing.T) {
	s := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/v1/trace", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}
}

func TestHandleGetTaskPolicy_ReportsEffectivePolicy(t *testing.T) {
	s := newTestServer(t, true)
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/Sensor/policy", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["effective_policy"] != "SKIP" {
		t.Fatalf("want inherited global SKIP policy, got %q", got["effective_policy"])
	}
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	clock := core.NewVirtualClock()
	engine := core.NewEngine(clock, trace.NewRing(), nil)
	tasks := []core.TaskConfig{{Name: "Sensor", Period: 10, Entry: func(context.Context, any) {}}}
	if err := engine.Init(core.GlobalConfig{}, tasks); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	s := NewServer("127.0.0.1:0", "secret-token", engine, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 without a token, got %d", rec.Code)
	}
}
