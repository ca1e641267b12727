package scheduler

import (
	"sync"
	"time"
)

// historyDepth is how many cycle outcomes the health endpoint can see.
const historyDepth = 50

// Outcome is one completed cycle's summary.
type Outcome struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Failover  bool          `json:"failover"`
	Terminals int           `json:"terminals"`
	Error     string        `json:"error,omitempty"`
}

// History is a fixed-depth ring of cycle outcomes, newest first on
// read. Safe for concurrent use; the ops listener reads it while the
// scheduler writes.
type History struct {
	mu       sync.RWMutex
	outcomes []Outcome
	depth    int
}

// NewHistory builds a ring holding up to depth outcomes.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = historyDepth
	}
	return &History{depth: depth}
}

// Record appends an outcome, evicting the oldest past the depth.
func (h *History) Record(o Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, o)
	if len(h.outcomes) > h.depth {
		h.outcomes = h.outcomes[len(h.outcomes)-h.depth:]
	}
}

// Recent returns the stored outcomes newest first.
func (h *History) Recent() []Outcome {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Outcome, len(h.outcomes))
	for i, o := range h.outcomes {
		out[len(h.outcomes)-1-i] = o
	}
	return out
}

// Last returns the most recent outcome, if any.
func (h *History) Last() (Outcome, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.outcomes) == 0 {
		return Outcome{}, false
	}
	return h.outcomes[len(h.outcomes)-1], true
}

// Len returns how many outcomes are stored.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.outcomes)
}
