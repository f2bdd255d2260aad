package monitor

import (
	"errors"
	"testing"
	"time"
)

func TestRefreshMonitor_RecordSuccess(t *testing.T) {
	m := NewRefreshMonitor(time.Hour)
	m.RecordSuccess("run-1", 250*time.Millisecond, 12)

	status := m.Status()
	if !status.Healthy {
		t.Error("Status should be healthy after success")
	}
	if status.LastRunID != "run-1" {
		t.Errorf("LastRunID = %q, want %q", status.LastRunID, "run-1")
	}
	if status.LastNewEvents != 12 {
		t.Errorf("LastNewEvents = %d, want 12", status.LastNewEvents)
	}
	if status.LastDuration != "250ms" {
		t.Errorf("LastDuration = %q, want %q", status.LastDuration, "250ms")
	}
	if status.ConsecutiveErrors != 0 || status.LastError != "" {
		t.Errorf("unexpected error state: %d %q", status.ConsecutiveErrors, status.LastError)
	}
}

func TestRefreshMonitor_RecordFailure(t *testing.T) {
	m := NewRefreshMonitor(time.Hour)
	m.RecordFailure("run-2", errors.New("log unavailable"))

	status := m.Status()
	if status.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", status.ConsecutiveErrors)
	}
	if status.LastError != "log unavailable" {
		t.Errorf("LastError = %q, want %q", status.LastError, "log unavailable")
	}
	if m.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1", m.Runs())
	}
}

func TestRefreshMonitor_IsHealthy(t *testing.T) {
	tests := []struct {
		name       string
		staleAfter time.Duration
		setup      func(*RefreshMonitor)
		expected   bool
	}{
		{
			name:     "never succeeded",
			setup:    func(*RefreshMonitor) {},
			expected: false,
		},
		{
			name:       "recent success",
			staleAfter: time.Hour,
			setup: func(m *RefreshMonitor) {
				m.RecordSuccess("a", time.Second, 0)
			},
			expected: true,
		},
		{
			name:       "stale success",
			staleAfter: time.Hour,
			setup: func(m *RefreshMonitor) {
				m.RecordSuccess("a", time.Second, 0)
				m.mu.Lock()
				m.lastSuccess = time.Now().Add(-2 * time.Hour)
				m.mu.Unlock()
			},
			expected: false,
		},
		{
			name: "stale check disabled",
			setup: func(m *RefreshMonitor) {
				m.RecordSuccess("a", time.Second, 0)
				m.mu.Lock()
				m.lastSuccess = time.Now().Add(-48 * time.Hour)
				m.mu.Unlock()
			},
			expected: true,
		},
		{
			name:       "a few failures are tolerated",
			staleAfter: time.Hour,
			setup: func(m *RefreshMonitor) {
				m.RecordSuccess("a", time.Second, 0)
				m.RecordFailure("b", errors.New("error 1"))
			},
			expected: true,
		},
		{
			name:       "too many consecutive errors",
			staleAfter: time.Hour,
			setup: func(m *RefreshMonitor) {
				m.RecordSuccess("a", time.Second, 0)
				for i := 0; i <= MaxConsecutiveFailures; i++ {
					m.RecordFailure("b", errors.New("error"))
				}
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRefreshMonitor(tt.staleAfter)
			tt.setup(m)
			if got := m.IsHealthy(); got != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expected)
			}
		})
	}
}
