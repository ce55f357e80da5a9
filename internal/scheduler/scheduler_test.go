package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeValidator struct {
	mu     sync.Mutex
	issues [][]string
	err    error
	calls  int
}

// ValidateCurrentMonth pops the next configured issue set; the last one
// repeats once the script runs out.
func (f *fakeValidator) ValidateCurrentMonth(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	if len(f.issues) == 0 {
		return nil, nil
	}
	next := f.issues[0]
	if len(f.issues) > 1 {
		f.issues = f.issues[1:]
	}
	return next, nil
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(&fakeValidator{}, time.Hour, "", 2)

	if s.IsRunning() {
		t.Fatalf("expected scheduler to start stopped")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}
	if !s.IsRunning() {
		t.Fatalf("expected scheduler to be running after start")
	}

	// Double start is a no-op, not an error.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second start should be a no-op, got %v", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("failed to stop scheduler: %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("expected scheduler to be stopped")
	}
}

func TestScheduler_RunsValidationOnStart(t *testing.T) {
	validator := &fakeValidator{issues: [][]string{{"Carrier total mismatch"}}}
	s := NewScheduler(validator, time.Hour, "", 2)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		status := s.GetStatus()
		if status.RunsCount >= 1 {
			if len(status.LastIssues) != 1 {
				t.Fatalf("expected 1 issue recorded, got %v", status.LastIssues)
			}
			if status.ConsecutiveDiscrepancyCount != 1 {
				t.Fatalf("expected consecutive count 1, got %d", status.ConsecutiveDiscrepancyCount)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("validation never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_ConsecutiveCountResets(t *testing.T) {
	validator := &fakeValidator{issues: [][]string{
		{"Carrier total mismatch"},
		nil,
	}}
	s := NewScheduler(validator, time.Hour, "", 5)

	s.runValidation(context.Background())
	if got := s.GetStatus().ConsecutiveDiscrepancyCount; got != 1 {
		t.Fatalf("expected count 1 after a dirty run, got %d", got)
	}

	s.runValidation(context.Background())
	if got := s.GetStatus().ConsecutiveDiscrepancyCount; got != 0 {
		t.Fatalf("expected count reset after a clean run, got %d", got)
	}
}

func TestScheduler_AlertsAfterThreshold(t *testing.T) {
	received := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			received <- payload
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	validator := &fakeValidator{issues: [][]string{
		{"Multiple MAU charges for same number in same month (+27821234567|2025-05, count 2)"},
	}}
	s := NewScheduler(validator, time.Hour, server.URL, 2)

	s.runValidation(context.Background())
	select {
	case <-received:
		t.Fatalf("alert sent before threshold reached")
	case <-time.After(100 * time.Millisecond):
	}

	s.runValidation(context.Background())
	select {
	case payload := <-received:
		if payload["alert"] != "billing_validation_discrepancy" {
			t.Fatalf("unexpected alert type %v", payload["alert"])
		}
		if payload["consecutiveRuns"] != float64(2) {
			t.Fatalf("expected 2 consecutive runs in alert, got %v", payload["consecutiveRuns"])
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an alert after the second dirty run")
	}

	if s.GetStatus().LastAlertSentAt.IsZero() {
		t.Fatalf("expected alert timestamp recorded")
	}
}

func TestScheduler_ValidatorErrorDoesNotCountAsDiscrepancy(t *testing.T) {
	validator := &fakeValidator{err: errors.New("db unreachable")}
	s := NewScheduler(validator, time.Hour, "", 2)

	s.runValidation(context.Background())
	status := s.GetStatus()
	if status.ConsecutiveDiscrepancyCount != 0 {
		t.Fatalf("expected validation errors to leave the count alone, got %d", status.ConsecutiveDiscrepancyCount)
	}
	if status.RunsCount != 1 {
		t.Fatalf("expected the run to be counted, got %d", status.RunsCount)
	}
}
