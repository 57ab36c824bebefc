// Package scheduler runs the scheduled trades: a tight poll loop that
// dispatches due descriptors to the executor, plans their recurrence and
// rebuilds the schedule once a day.
package scheduler

import (
	"sync/atomic"
	"time"

	"theoption-trader/internal/schedule"
	"theoption-trader/internal/types"
)

// State is the scheduler's process-wide state. The schedule and the reset
// marker belong to the loop goroutine; other goroutines only flip the
// running flag, request reloads and read published snapshots.
type State struct {
	schedule schedule.Set
	reset    DailyReset

	running         atomic.Bool
	reloadRequested atomic.Bool
	snapshot        atomic.Pointer[Snapshot]
}

// Snapshot is a read-only copy of the schedule for other goroutines.
type Snapshot struct {
	Running   bool                    `json:"running"`
	LastReset string                  `json:"last_reset,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
	Pending   []types.TradeDescriptor `json:"pending"`
}

func NewState(resetHour int) *State {
	return &State{reset: DailyReset{hour: resetHour}}
}

// Stop asks the loop to stop at the top of its next cycle.
func (s *State) Stop() {
	s.running.Store(false)
}

func (s *State) Running() bool {
	return s.running.Load()
}

// RequestReload asks the loop to reload the config on its next cycle.
func (s *State) RequestReload() {
	s.reloadRequested.Store(true)
}

// Snapshot returns the last published schedule copy.
func (s *State) Snapshot() Snapshot {
	snap := s.snapshot.Load()
	if snap == nil {
		return Snapshot{Running: s.Running()}
	}
	out := *snap
	out.Running = s.Running()
	return out
}

// publish stores a copy of the schedule. Loop goroutine only.
func (s *State) publish(now time.Time) {
	snap := &Snapshot{
		UpdatedAt: now,
		Pending:   s.schedule.Clone(),
	}
	if last, ok := s.reset.LastResetDate(); ok {
		snap.LastReset = last.Format("2006-01-02")
	}
	s.snapshot.Store(snap)
}
