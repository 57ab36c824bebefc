package scheduler

import (
	"context"
	"fmt"
	"time"

	"theoption-trader/internal/clock"
	"theoption-trader/internal/events"
	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/schedule"
	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

// DefaultPollInterval is the loop cadence. It must stay well under a
// second to honour millisecond trigger times.
const DefaultPollInterval = time.Millisecond

// resetFailureLogEvery throttles logging of a failing daily reset, which
// is retried every cycle.
const resetFailureLogEvery = 30 * time.Second

// Loop is the scheduler loop. Run it on one goroutine only; it is the sole
// owner of the schedule and the only caller of the executor.
type Loop struct {
	state    *State
	exec     interfaces.Executor
	source   interfaces.ConfigSource
	clock    clock.Clock
	reporter events.Reporter

	cfg   *store.Config
	poll  time.Duration
	order string

	lastResetFailure time.Time
	// AfterReset runs after each successful daily reset.
	AfterReset func(ctx context.Context, now time.Time)
}

func NewLoop(cfg *store.Config, state *State, exec interfaces.Executor, source interfaces.ConfigSource, clk clock.Clock, reporter events.Reporter) *Loop {
	if clk == nil {
		clk = clock.Real{}
	}
	if reporter == nil {
		reporter = events.Discard{}
	}
	l := &Loop{
		state:    state,
		exec:     exec,
		source:   source,
		clock:    clk,
		reporter: reporter,
	}
	l.setConfig(cfg)
	return l
}

func (l *Loop) setConfig(cfg *store.Config) {
	l.cfg = cfg
	l.poll = cfg.Scheduler.PollInterval()
	if l.poll <= 0 {
		l.poll = DefaultPollInterval
	}
	l.order = cfg.Scheduler.DispatchOrder
}

// Prime builds the schedule from the current config. It returns the
// entries that could not be scheduled.
func (l *Loop) Prime(ctx context.Context) (schedule.Set, []error) {
	errs := l.build(ctx, l.clock.Now())
	return l.state.schedule.Clone(), errs
}

// Run cycles until ctx is done or the state is stopped. A trade that is
// executing when that happens runs to completion first.
func (l *Loop) Run(ctx context.Context) error {
	l.state.running.Store(true)
	defer l.state.running.Store(false)

	logger.Info(ctx, "Scheduler loop started",
		"pending", len(l.state.schedule),
		"poll_interval", l.poll.String(),
		"dispatch_order", l.order,
	)
	for {
		if ctx.Err() != nil || !l.state.running.Load() {
			logger.Info(ctx, "Scheduler loop stopped")
			return nil
		}
		l.Cycle(ctx)
		if err := l.clock.Sleep(ctx, l.poll); err != nil {
			logger.Info(ctx, "Scheduler loop stopped")
			return nil
		}
	}
}

// Cycle runs one scheduler pass at the current time.
func (l *Loop) Cycle(ctx context.Context) {
	now := l.clock.Now()

	l.checkReset(ctx, now)
	l.checkReload(ctx, now)

	due, remaining := l.state.schedule.Partition(now)
	if len(due) == 0 {
		return
	}
	if l.order == store.DispatchChronological {
		due.SortChronological()
	}

	for i, d := range due {
		if ctx.Err() != nil {
			remaining = append(remaining, due[i:]...)
			break
		}
		l.dispatch(ctx, d)

		next, err := schedule.NextOccurrence(d, now)
		if err != nil {
			l.reporter.Report(ctx, events.Failed(l.clock.Now(), err))
			continue
		}
		remaining = append(remaining, next)
	}

	l.state.schedule = remaining
	l.state.publish(l.clock.Now())
}

// dispatch executes d and reports its outcome. Nothing escapes it: errors
// and panics become events.
func (l *Loop) dispatch(ctx context.Context, d types.TradeDescriptor) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("trade execution panicked: %v", p)
			logger.ErrorWithErr(ctx, "Trade execution panicked", err, "direction", d.Direction.Label())
			l.reporter.Report(ctx, events.Failed(l.clock.Now(), err))
		}
	}()

	out, err := l.exec.Execute(context.WithoutCancel(ctx), types.TradeRequest{
		Descriptor:    d,
		ResetBaseline: true,
	})
	if err != nil {
		l.reporter.Report(ctx, events.Failed(l.clock.Now(), err))
	}
	l.reporter.Report(ctx, events.Completed(l.clock.Now(), d, out))
}

func (l *Loop) checkReset(ctx context.Context, now time.Time) {
	if !l.state.reset.Due(now) {
		return
	}

	cfg, err := l.source.Load(ctx)
	if err != nil {
		if l.lastResetFailure.IsZero() || now.Sub(l.lastResetFailure) >= resetFailureLogEvery {
			l.lastResetFailure = now
			logger.ErrorWithErr(ctx, "Daily reset failed, will retry", err)
			l.reporter.Report(ctx, events.Failed(now, &types.ConfigurationError{Setting: "config", Reason: err.Error()}))
		}
		return
	}
	l.lastResetFailure = time.Time{}

	op := logger.StartOperation(ctx, "scheduler.daily_reset", "date", now.Format("2006-01-02"))
	ctx = op.GetContext()

	l.setConfig(cfg)
	l.exec.Reconfigure(cfg.Site)
	l.build(ctx, now)
	l.state.reset.Mark(now)
	l.state.publish(now)

	l.reporter.Report(ctx, events.Reset(now, len(l.state.schedule)))
	if l.AfterReset != nil {
		l.AfterReset(ctx, now)
	}
	op.End("scheduled", len(l.state.schedule))
}

func (l *Loop) checkReload(ctx context.Context, now time.Time) {
	if !l.state.reloadRequested.CompareAndSwap(true, false) {
		return
	}
	cfg, err := l.source.Load(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Config reload failed, keeping current schedule", err)
		l.reporter.Report(ctx, events.Failed(now, &types.ConfigurationError{Setting: "config", Reason: err.Error()}))
		return
	}
	l.setConfig(cfg)
	l.exec.Reconfigure(cfg.Site)
	l.build(ctx, now)
	logger.Info(ctx, "Config reloaded", "pending", len(l.state.schedule))
}

// build replaces the schedule with one built from scratch from l.cfg.
func (l *Loop) build(ctx context.Context, now time.Time) []error {
	set, errs := schedule.FromConfig(l.cfg.Trading.Trades, l.cfg.Site, now)
	for _, err := range errs {
		l.reporter.Report(ctx, events.Failed(now, err))
	}
	for _, d := range set {
		if shadowedByReset(d, l.state.reset.hour, l.poll) {
			logger.Warn(ctx, "Trade time falls on the daily reset and will be rescheduled before it runs",
				"time", d.OriginalTimeOfDay,
				"daily_reset_hour", l.state.reset.hour,
			)
		}
		l.reporter.Report(ctx, events.Created(now, d))
	}
	l.state.schedule = set
	l.state.publish(now)
	return errs
}

// shadowedByReset reports whether d triggers within one poll interval
// after the reset hour. The reset rebuilds the schedule before the due
// check, so such a trade is always moved to the next day.
func shadowedByReset(d types.TradeDescriptor, resetHour int, poll time.Duration) bool {
	tod, err := schedule.ParseTimeOfDay(d.OriginalTimeOfDay)
	if err != nil || tod.Hour != resetHour {
		return false
	}
	offset := time.Duration(tod.Minute)*time.Minute +
		time.Duration(tod.Second)*time.Second +
		time.Duration(tod.Nanosecond)
	return offset < poll
}
