// Package events carries structured outcome events from the scheduler and
// the executor to whoever reports on them.
package events

import (
	"context"
	"time"

	"theoption-trader/internal/types"
)

type Kind string

const (
	ScheduleCreated Kind = "schedule-created"
	ScheduleReset   Kind = "schedule-reset"
	ScheduleError   Kind = "schedule-error"
	TradeStarted    Kind = "trade-started"
	TradeRetry      Kind = "trade-retry"
	TradeCompleted  Kind = "trade-completed"
)

type Event struct {
	Kind       Kind                    `json:"kind"`
	Time       time.Time               `json:"time"`
	RunID      string                  `json:"run_id,omitempty"`
	Descriptor *types.TradeDescriptor  `json:"descriptor,omitempty"`
	Outcome    *types.ExecutionOutcome `json:"outcome,omitempty"`
	Iteration  int                     `json:"iteration,omitempty"`
	Elapsed    time.Duration           `json:"elapsed_ns,omitempty"`
	Asset      string                  `json:"asset,omitempty"`
	ErrorKind  string                  `json:"error_kind,omitempty"`
	Message    string                  `json:"message,omitempty"`
	// Count is the schedule size for schedule-created and schedule-reset.
	Count int `json:"count,omitempty"`
}

type Reporter interface {
	Report(ctx context.Context, ev Event)
}

type ReporterFunc func(ctx context.Context, ev Event)

func (f ReporterFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }

// Discard drops every event.
type Discard struct{}

func (Discard) Report(context.Context, Event) {}

type multi []Reporter

// Multi reports each event to every non-nil reporter in order.
func Multi(rs ...Reporter) Reporter {
	out := make(multi, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		r.Report(ctx, ev)
	}
}

func Created(at time.Time, d types.TradeDescriptor) Event {
	return Event{Kind: ScheduleCreated, Time: at, Descriptor: &d}
}

func Started(at time.Time, runID string, d types.TradeDescriptor, asset string) Event {
	return Event{Kind: TradeStarted, Time: at, RunID: runID, Descriptor: &d, Asset: asset}
}

func Retry(at time.Time, runID string, iteration int, elapsed time.Duration) Event {
	return Event{Kind: TradeRetry, Time: at, RunID: runID, Iteration: iteration, Elapsed: elapsed}
}

func Completed(at time.Time, d types.TradeDescriptor, o types.ExecutionOutcome) Event {
	return Event{Kind: TradeCompleted, Time: at, RunID: o.RunID, Descriptor: &d, Outcome: &o}
}

func Failed(at time.Time, err error) Event {
	return Event{Kind: ScheduleError, Time: at, ErrorKind: types.ErrorKind(err), Message: err.Error()}
}

func Reset(at time.Time, size int) Event {
	return Event{Kind: ScheduleReset, Time: at, Count: size}
}
