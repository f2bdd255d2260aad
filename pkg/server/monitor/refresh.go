package monitor

import (
	"sync"
	"time"
)

// MaxConsecutiveFailures is the number of failed refreshes tolerated before
// the service reports itself degraded.
const MaxConsecutiveFailures = 3

// RefreshMonitor tracks refresh health and failures.
type RefreshMonitor struct {
	mu                sync.RWMutex
	staleAfter        time.Duration
	lastSuccess       time.Time
	lastAttempt       time.Time
	lastRunID         string
	lastDuration      time.Duration
	lastEvents        int
	consecutiveErrors int
	lastError         string
	runs              int
}

// NewRefreshMonitor creates a monitor that treats a refresh older than
// staleAfter as unhealthy. Zero disables the staleness check.
func NewRefreshMonitor(staleAfter time.Duration) *RefreshMonitor {
	return &RefreshMonitor{staleAfter: staleAfter}
}

// RecordSuccess records a completed refresh run.
func (m *RefreshMonitor) RecordSuccess(runID string, duration time.Duration, newEvents int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.lastSuccess = now
	m.lastAttempt = now
	m.lastRunID = runID
	m.lastDuration = duration
	m.lastEvents = newEvents
	m.consecutiveErrors = 0
	m.lastError = ""
	m.runs++
}

// RecordFailure records a failed refresh run.
func (m *RefreshMonitor) RecordFailure(runID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = time.Now()
	m.lastRunID = runID
	m.consecutiveErrors++
	if err != nil {
		m.lastError = err.Error()
	}
	m.runs++
}

// IsHealthy returns true if refreshes are working.
// Unhealthy conditions:
//   - Never succeeded
//   - Last success older than staleAfter
//   - More than MaxConsecutiveFailures consecutive failures
func (m *RefreshMonitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy()
}

func (m *RefreshMonitor) healthy() bool {
	if m.lastSuccess.IsZero() {
		return false
	}
	if m.staleAfter > 0 && time.Since(m.lastSuccess) > m.staleAfter {
		return false
	}
	return m.consecutiveErrors <= MaxConsecutiveFailures
}

// Runs returns how many refreshes have been attempted
func (m *RefreshMonitor) Runs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs
}

// RefreshStatus is the refresh section of the health check.
type RefreshStatus struct {
	Healthy           bool   `json:"healthy"`
	Runs              int    `json:"runs"`
	LastRunID         string `json:"last_run_id,omitempty"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastDuration      string `json:"last_duration,omitempty"`
	LastNewEvents     int    `json:"last_new_events"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current refresh status for health checks.
func (m *RefreshMonitor) Status() RefreshStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := RefreshStatus{
		Healthy:       m.healthy(),
		Runs:          m.runs,
		LastRunID:     m.lastRunID,
		LastNewEvents: m.lastEvents,
	}

	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(m.lastSuccess).Round(time.Second).String()
		status.LastDuration = m.lastDuration.Round(time.Millisecond).String()
	}

	if !m.lastAttempt.IsZero() {
		status.LastAttempt = m.lastAttempt.Format(time.RFC3339)
	}

	if m.consecutiveErrors > 0 {
		status.ConsecutiveErrors = m.consecutiveErrors
		status.LastError = m.lastError
	}

	return status
}
