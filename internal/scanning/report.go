package scanning

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/probe"
)

// Report is the aggregated result set of a scan, keyed by (address, port).
// A single aggregator goroutine is the only writer; readers may query it
// for partial results while the scan is still running. Once frozen it never
// changes again.
type Report struct {
	// ID identifies the scan this report belongs to.
	ID uuid.UUID
	// StartTime is when the scan started.
	StartTime time.Time

	mu       sync.RWMutex
	entries  map[string]probe.Result
	stats    Stats
	state    State
	endTime  time.Time
	duration time.Duration

	logger *logging.Logger
}

// NewReport creates an empty report in the pending state.
func NewReport(logger *logging.Logger) *Report {
	if logger == nil {
		logger = logging.Default()
	}
	return &Report{
		ID:        uuid.New(),
		StartTime: time.Now(),
		entries:   make(map[string]probe.Result),
		state:     StatePending,
		logger:    logger.WithComponent("aggregator"),
	}
}

// add records a probe result. The first result for a (address, port) key
// wins; later arrivals for the same key are ignored with a logged warning.
// Returns whether the result was recorded.
func (r *Report) add(result probe.Result) bool {
	key := result.Target.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateCompleted || r.state == StateAborted {
		r.logger.Warn("result arrived after report was frozen, ignoring",
			"target", key, "status", result.Status)
		return false
	}
	if _, exists := r.entries[key]; exists {
		r.logger.Warn("duplicate result ignored", "target", key, "status", result.Status)
		return false
	}

	r.entries[key] = result
	r.stats.count(result.Status)
	return true
}

// setState transitions the scan lifecycle state.
func (r *Report) setState(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// freeze finalizes the report with the given terminal state.
func (r *Report) freeze(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.endTime = time.Now()
	r.duration = r.endTime.Sub(r.StartTime)
}

// State returns the current lifecycle state.
func (r *Report) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Stats returns the current outcome summary.
func (r *Report) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Len returns the number of recorded results.
func (r *Report) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Duration returns how long the scan took. Zero until the report is frozen.
func (r *Report) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.duration
}

// EndTime returns when the scan finished. Zero until the report is frozen.
func (r *Report) EndTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endTime
}

// Lookup returns the recorded result for a (address, port) key.
func (r *Report) Lookup(key string) (probe.Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.entries[key]
	return result, ok
}

// Snapshot returns the recorded results sorted by address, then port. The
// ordering is deterministic regardless of probe completion order, and
// sorting the same report twice yields identical output. Safe to call
// before the scan completes for partial results.
func (r *Report) Snapshot() []probe.Result {
	r.mu.RLock()
	results := make([]probe.Result, 0, len(r.entries))
	for _, result := range r.entries {
		results = append(results, result)
	}
	r.mu.RUnlock()

	slices.SortFunc(results, func(a, b probe.Result) int {
		return a.Target.Compare(b.Target)
	})
	return results
}
