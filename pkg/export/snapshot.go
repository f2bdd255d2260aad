package export

import (
	"sync/atomic"
	"time"
)

// Collection is one published set of estimates
type Collection struct {
	RunID       string    `json:"run_id"`
	Day         string    `json:"day"`
	SessionType string    `json:"session_type"`
	GeneratedAt time.Time `json:"generated_at"`
	Estimates   Estimates `json:"estimates"`
}

// Snapshot holds the live estimate collection. Readers never observe a
// partially built collection; a failed refresh leaves the previous one.
type Snapshot struct {
	current atomic.Pointer[Collection]
}

// Load returns the live collection, nil before the first Swap.
func (s *Snapshot) Load() *Collection {
	return s.current.Load()
}

// Swap publishes c and returns the collection it replaced.
func (s *Snapshot) Swap(c *Collection) *Collection {
	return s.current.Swap(c)
}
