package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"eventline/internal/config"
	"eventline/internal/types"
)

// --- Mock Health Probe ---

// mockHealthProbe implements HealthProbe for testing.
type mockHealthProbe struct {
	name     string
	checkErr error
	// delay simulates slow subsystems; Check blocks for this duration.
	delay  time.Duration
	called atomic.Bool
}

func (m *mockHealthProbe) Name() string { return m.name }

func (m *mockHealthProbe) Check(ctx context.Context) error {
	m.called.Store(true)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.checkErr
}

// --- Mock Scheduler Status ---

type mockStatusProvider struct {
	status types.SchedulerStatus
}

func (m *mockStatusProvider) Status() types.SchedulerStatus { return m.status }

// --- Helper ---

func newTestServerForHealth(probes []HealthProbe, status types.SchedulerStatus) *Server {
	cfg := &config.Config{Environment: "local"}
	srv, _ := NewServer(cfg, &mockStatusProvider{status: status}, slog.Default())
	srv.HealthProbes = probes
	return srv
}

// --- Tests ---

func TestHandleHealth_AllHealthy(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "database"},
		&mockHealthProbe{name: "transition_queue"},
	}

	srv := newTestServerForHealth(probes, types.SchedulerStatus{Running: true, PendingCount: 3})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	for _, name := range []string{"database", "transition_queue"} {
		comp, ok := resp.Components[name]
		if !ok {
			t.Errorf("expected component %q in response", name)
			continue
		}
		if comp.Status != "healthy" {
			t.Errorf("component %q: expected 'healthy', got %q", name, comp.Status)
		}
	}
}

func TestHandleHealth_ReportsSchedulerStatus(t *testing.T) {
	next := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	status := types.SchedulerStatus{Running: true, PendingCount: 7, NextFireAt: &next}

	srv := newTestServerForHealth(nil, status)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !resp.Scheduler.Running {
		t.Error("expected scheduler.running true")
	}
	if resp.Scheduler.PendingCount != 7 {
		t.Errorf("expected pending_count 7, got %d", resp.Scheduler.PendingCount)
	}
	if resp.Scheduler.NextFireAt == nil || !resp.Scheduler.NextFireAt.Equal(next) {
		t.Errorf("expected next_fire_at %v, got %v", next, resp.Scheduler.NextFireAt)
	}
}

func TestHandleHealth_SchedulerStoppedStillReported(t *testing.T) {
	srv := newTestServerForHealth(nil, types.SchedulerStatus{Running: false})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	// A stopped scheduler is an operational state, not an unhealthy one.
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Scheduler.Running {
		t.Error("expected scheduler.running false")
	}
}

func TestHandleHealth_OneUnhealthy(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "database", checkErr: errors.New("connection refused")},
		&mockHealthProbe{name: "transition_queue"},
	}

	srv := newTestServerForHealth(probes, types.SchedulerStatus{Running: true})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %q", resp.Status)
	}
	if resp.Components["database"].Message != "connection refused" {
		t.Errorf("unexpected message: %q", resp.Components["database"].Message)
	}
}

func TestHandleHealth_SlowProbeTimesOut(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "database", delay: 5 * time.Second},
	}

	srv := newTestServerForHealth(probes, types.SchedulerStatus{Running: true})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}
