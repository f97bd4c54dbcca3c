// Package history records the snapshot stream of one simulation run for
// external collectors. The store is append-only: snapshots go in as values
// and come back out as copies, so no consumer can reach engine state.
package history

import (
	"sync"

	"github.com/google/uuid"
	"github.com/signalsfoundry/permit-simulator/core"
)

// Store is an in-memory, thread-safe recorder for one run.
type Store struct {
	mu sync.RWMutex

	runID    string
	scenario string
	seed     int64

	rounds []core.RoundSnapshot
	subs   []func(core.RoundSnapshot)
}

// NewStore creates an empty recorder tagged with a fresh run id.
func NewStore(scenario string, seed int64) *Store {
	return &Store{
		runID:    uuid.NewString(),
		scenario: scenario,
		seed:     seed,
	}
}

// RunID returns the unique identifier of this run.
func (s *Store) RunID() string { return s.runID }

// Scenario returns the scenario name the run was started from.
func (s *Store) Scenario() string { return s.scenario }

// Seed returns the seed the run was constructed with.
func (s *Store) Seed() int64 { return s.seed }

// Append records a snapshot and notifies subscribers. Subscribers run on the
// caller's goroutine, after the snapshot is stored.
func (s *Store) Append(snap core.RoundSnapshot) {
	s.mu.Lock()
	s.rounds = append(s.rounds, snap.Clone())
	subs := append(([]func(core.RoundSnapshot))(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap.Clone())
	}
}

// Subscribe registers a callback invoked for every subsequently appended
// snapshot.
func (s *Store) Subscribe(fn func(core.RoundSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Len returns the number of recorded rounds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rounds)
}

// Round returns the snapshot for the given 1-based round number.
func (s *Store) Round(n int) (core.RoundSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 1 || n > len(s.rounds) {
		return core.RoundSnapshot{}, false
	}
	return s.rounds[n-1].Clone(), true
}

// Latest returns the most recent snapshot.
func (s *Store) Latest() (core.RoundSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rounds) == 0 {
		return core.RoundSnapshot{}, false
	}
	return s.rounds[len(s.rounds)-1].Clone(), true
}

// All returns copies of every recorded snapshot in round order.
func (s *Store) All() []core.RoundSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.RoundSnapshot, 0, len(s.rounds))
	for _, snap := range s.rounds {
		out = append(out, snap.Clone())
	}
	return out
}

// Summary aggregates a whole run for reporting.
type Summary struct {
	RunID           string  `json:"run_id"`
	Scenario        string  `json:"scenario"`
	Seed            int64   `json:"seed"`
	Rounds          int     `json:"rounds"`
	MeanCompliance  float64 `json:"mean_compliance"`
	FinalCompliance float64 `json:"final_compliance"`
	MeanPrice       float64 `json:"mean_price"`
	TotalPenalties  float64 `json:"total_penalties"`
	TotalAudits     int     `json:"total_audits"`
	TotalCaught     int     `json:"total_caught"`
}

// Summarize reduces the recorded rounds to run-level aggregates.
func (s *Store) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		RunID:    s.runID,
		Scenario: s.scenario,
		Seed:     s.seed,
		Rounds:   len(s.rounds),
	}
	if len(s.rounds) == 0 {
		return sum
	}

	for _, snap := range s.rounds {
		sum.MeanCompliance += snap.ComplianceRate()
		sum.MeanPrice += snap.ClearingPrice
		sum.TotalPenalties += snap.TotalPenalties
		sum.TotalAudits += snap.AuditedCount
		sum.TotalCaught += snap.CaughtCount
	}
	n := float64(len(s.rounds))
	sum.MeanCompliance /= n
	sum.MeanPrice /= n
	sum.FinalCompliance = s.rounds[len(s.rounds)-1].ComplianceRate()
	return sum
}
