package engine

import (
	"context"
	"time"

	"theoption-trader/internal/events"
	"theoption-trader/internal/logger"
)

type entryState int

const (
	stateIdle entryState = iota
	stateSubmitting
	stateConfirmRetry
	stateConfirmed
	stateTimedOut
	// stateAbandoned: the amount could not be entered, nothing was clicked.
	stateAbandoned
)

func (s entryState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSubmitting:
		return "submitting"
	case stateConfirmRetry:
		return "confirm_retry"
	case stateConfirmed:
		return "confirmed"
	case stateTimedOut:
		return "timed_out"
	case stateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// entryAttempt tracks one requested entry from Idle to a terminal state.
type entryAttempt struct {
	iteration int
	expected  int
	state     entryState
	retries   int
}

func newEntryAttempt(iteration, expected int) *entryAttempt {
	return &entryAttempt{iteration: iteration, expected: expected, state: stateIdle}
}

func (a *entryAttempt) done() bool {
	return a.state >= stateConfirmed
}

// afterCount decides the state that follows an entry count read.
func afterCount(count, expected int, now, deadline time.Time) entryState {
	if count >= expected {
		return stateConfirmed
	}
	if !now.Before(deadline) {
		return stateTimedOut
	}
	return stateConfirmRetry
}

// step performs the work of a.state and returns the next state.
func (r *run) step(ctx context.Context, a *entryAttempt) entryState {
	switch a.state {
	case stateIdle:
		return r.enterAmount(ctx, a)
	case stateSubmitting:
		return r.submit(ctx, a)
	case stateConfirmRetry:
		return r.retryConfirm(ctx, a)
	default:
		return a.state
	}
}

func (r *run) enterAmount(ctx context.Context, a *entryAttempt) entryState {
	if err := r.setAmount(ctx, r.req.Descriptor.Amount); err != nil {
		logger.Warn(ctx, "Amount entry failed, skipping iteration",
			"run_id", r.out.RunID,
			"iteration", a.iteration+1,
			"error", err,
		)
		return stateAbandoned
	}
	r.pause(ctx, r.actionWait(0.3))
	return stateSubmitting
}

// submit places the order. In one-click mode the direction button places
// it directly; otherwise the direction button opens the ticket once and
// the purchase button submits it every iteration.
func (r *run) submit(ctx context.Context, a *entryAttempt) entryState {
	if r.oneClick {
		r.tryClick(ctx, r.directionSel, oneClickTimeout)
		r.pause(ctx, r.actionWait(0.5))
	} else {
		if a.iteration == 0 {
			r.tryClick(ctx, r.directionSel, firstClickTimeout)
			r.pause(ctx, r.actionWait(1))
		}
		r.tryClick(ctx, r.site.PurchaseButtonSelector, firstClickTimeout)
		r.pause(ctx, r.actionWait(1))
	}

	r.pause(ctx, r.exec.timing.Settle)
	return r.confirm(ctx, a)
}

// retryConfirm re-clicks the placing action once and checks the count.
func (r *run) retryConfirm(ctx context.Context, a *entryAttempt) entryState {
	if r.expired() || ctx.Err() != nil {
		return stateTimedOut
	}

	a.retries++
	r.exec.reporter.Report(ctx, events.Retry(r.exec.clock.Now(), r.out.RunID, a.iteration, r.elapsed()))

	r.tryClick(ctx, r.retrySelector(), retryClickTimeout)
	r.pause(ctx, r.actionWait(0.5))

	next := r.confirm(ctx, a)
	if next == stateConfirmRetry {
		r.pause(ctx, r.exec.timing.ConfirmInterval)
	}
	return next
}

func (r *run) confirm(ctx context.Context, a *entryAttempt) entryState {
	n, err := r.count(ctx, r.site.EntrySelector)
	if err != nil {
		logger.Debug(ctx, "Entry count read failed", "run_id", r.out.RunID, "error", err)
		n = r.observed
	} else {
		r.observed = n
	}
	return afterCount(n, a.expected, r.exec.clock.Now(), r.deadline)
}

func (r *run) retrySelector() string {
	if r.oneClick {
		return r.directionSel
	}
	return r.site.PurchaseButtonSelector
}
