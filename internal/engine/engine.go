package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"theoption-trader/internal/clock"
	"theoption-trader/internal/events"
	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

// Element waits. Every wait is also capped by the remaining retry budget.
const (
	firstClickTimeout = 5 * time.Second
	oneClickTimeout   = 2 * time.Second
	retryClickTimeout = 1 * time.Second
	amountTimeout     = 5 * time.Second
	dropdownTimeout   = 5 * time.Second
	toggleTimeout     = 5 * time.Second

	dropdownOpenDelay = 500 * time.Millisecond
	selectionDelay    = 300 * time.Millisecond
	toggleSettle      = time.Second
)

// Timing holds the executor's tunable pauses.
type Timing struct {
	// ConfirmInterval is the pause between confirmation retries.
	ConfirmInterval time.Duration
	// Settle is the pause before reading the entry count after a submission.
	Settle time.Duration
}

func TimingFrom(s store.SchedulerSettings) Timing {
	return Timing{ConfirmInterval: s.ConfirmInterval(), Settle: s.Settle()}
}

// Executor places the entries of one trade request through the browser
// and confirms them by counting entry markers. It owns the browser handle
// and runs one request at a time.
type Executor struct {
	site     store.SiteSettings
	timing   Timing
	browser  interfaces.Browser
	clock    clock.Clock
	reporter events.Reporter

	busy atomic.Bool
	// lastCount is the entry count seen at the end of the previous run,
	// or -1 when unknown.
	lastCount int
}

func newExecutor(site store.SiteSettings, timing Timing, browser interfaces.Browser, clk clock.Clock, reporter events.Reporter) *Executor {
	if clk == nil {
		clk = clock.Real{}
	}
	if reporter == nil {
		reporter = events.Discard{}
	}
	if timing.ConfirmInterval <= 0 {
		timing.ConfirmInterval = 100 * time.Millisecond
	}
	return &Executor{
		site:      site,
		timing:    timing,
		browser:   browser,
		clock:     clk,
		reporter:  reporter,
		lastCount: -1,
	}
}

// Reconfigure swaps the site settings. Call it from the goroutine that
// calls Execute.
func (e *Executor) Reconfigure(site store.SiteSettings) {
	e.site = site
	e.lastCount = -1
}

// Execute runs one trade request. The returned outcome is always filled;
// configuration problems and unusable page states come back as errors with
// a skipped outcome, never as panics.
func (e *Executor) Execute(ctx context.Context, req types.TradeRequest) (types.ExecutionOutcome, error) {
	d := req.Descriptor
	out := types.ExecutionOutcome{
		RunID:          uuid.NewString(),
		Direction:      d.Direction,
		Amount:         d.Amount,
		RequestedCount: d.Count,
	}

	if !e.busy.CompareAndSwap(false, true) {
		out.Skipped = true
		out.Reason = types.ErrExecutorBusy.Error()
		return out, types.ErrExecutorBusy
	}
	defer e.busy.Store(false)

	start := e.clock.Now()
	r := &run{
		exec:     e,
		req:      req,
		out:      &out,
		site:     e.site,
		start:    start,
		deadline: start.Add(d.Budget(e.site.RetryBudget())),
		oneClick: e.site.UseOneClickTrading,
	}

	err := r.execute(ctx)
	out.Elapsed = e.clock.Now().Sub(start)
	if err != nil {
		out.Skipped = true
		out.Reason = err.Error()
	}
	return out, err
}

// run is the state of one Execute call.
type run struct {
	exec *Executor
	req  types.TradeRequest
	out  *types.ExecutionOutcome
	site store.SiteSettings

	start    time.Time
	deadline time.Time
	oneClick bool

	directionSel string
	baseline     int
	observed     int
	timedOut     bool
}

func (r *run) execute(ctx context.Context) error {
	d := r.req.Descriptor

	if err := r.checkSettings(); err != nil {
		logger.ErrorWithErr(ctx, "Trade not executed", err, "run_id", r.out.RunID)
		return err
	}

	if !r.oneClick {
		n, err := r.count(ctx, r.site.PurchaseButtonSelector)
		if err != nil {
			return fmt.Errorf("checking purchase button: %w", err)
		}
		if n == 0 {
			logger.Warn(ctx, "Purchase button missing, skipping trade",
				"run_id", r.out.RunID,
				"selector", r.site.PurchaseButtonSelector,
			)
			return types.ErrSubmitUnavailable
		}
	}

	baseline, err := r.baselineCount(ctx)
	if err != nil {
		return fmt.Errorf("reading entry count: %w", err)
	}
	r.baseline = baseline
	r.observed = baseline
	r.out.Baseline = baseline
	target := baseline + d.Count

	logger.Debug(ctx, "Baseline entry count read",
		"run_id", r.out.RunID,
		"baseline", baseline,
		"target", target,
		"reset_baseline", r.req.ResetBaseline,
	)

	r.exec.reporter.Report(ctx, events.Started(r.exec.clock.Now(), r.out.RunID, d, r.readAsset(ctx)))

	if !r.req.KeepDuration {
		if err := r.selectDuration(ctx, d.TradingDuration); err != nil {
			logger.Warn(ctx, "Could not select expiry, keeping current one",
				"run_id", r.out.RunID,
				"expiry", d.TradingDuration,
				"error", err,
			)
		}
	}

	if r.oneClick {
		if err := r.ensureOneClick(ctx); err != nil {
			logger.Warn(ctx, "One-click trading unavailable, skipping trade",
				"run_id", r.out.RunID,
				"error", err,
			)
			return err
		}
	}

	for i := 0; i < d.Count; i++ {
		if r.expired() || ctx.Err() != nil {
			logger.Warn(ctx, "Retry budget exhausted, remaining entries abandoned",
				"run_id", r.out.RunID,
				"placed", i,
				"requested", d.Count,
			)
			r.timedOut = true
			break
		}

		a := newEntryAttempt(i, baseline+i+1)
		for !a.done() {
			a.state = r.step(ctx, a)
		}

		logger.Debug(ctx, "Entry attempt finished",
			"run_id", r.out.RunID,
			"iteration", i+1,
			"state", a.state.String(),
			"retries", a.retries,
		)
		if a.state == stateTimedOut {
			r.timedOut = true
			break
		}
	}

	final, err := r.count(ctx, r.site.EntrySelector)
	if err != nil {
		logger.Warn(ctx, "Final entry count unavailable, using last observed",
			"run_id", r.out.RunID,
			"error", err,
		)
		final = r.observed
	}
	r.exec.lastCount = final

	confirmed := final - baseline
	if confirmed < 0 {
		confirmed = 0
	}
	r.out.ConfirmedCount = confirmed
	r.out.TimedOut = r.timedOut
	return nil
}

func (r *run) checkSettings() error {
	d := r.req.Descriptor
	if d.Count < 1 {
		return &types.ConfigurationError{Setting: "count", Reason: fmt.Sprintf("must be at least 1, got %d", d.Count)}
	}
	r.directionSel = r.site.DirectionSelector(d.Direction)
	if r.directionSel == "" {
		return &types.ConfigurationError{
			Setting: string(d.Direction) + "_button_selector",
			Reason:  "no action selector configured",
		}
	}
	if r.site.AmountInputSelector == "" {
		return &types.ConfigurationError{Setting: "amount_input_selector", Reason: "not configured"}
	}
	if r.site.EntrySelector == "" {
		return &types.ConfigurationError{Setting: "entry_selector", Reason: "not configured"}
	}
	if !r.oneClick && r.site.PurchaseButtonSelector == "" {
		return &types.ConfigurationError{Setting: "purchase_button_selector", Reason: "required when one-click trading is off"}
	}
	return nil
}

func (r *run) baselineCount(ctx context.Context) (int, error) {
	if !r.req.ResetBaseline && r.exec.lastCount >= 0 {
		return r.exec.lastCount, nil
	}
	return r.count(ctx, r.site.EntrySelector)
}

func (r *run) expired() bool {
	return !r.exec.clock.Now().Before(r.deadline)
}

func (r *run) elapsed() time.Duration {
	return r.exec.clock.Now().Sub(r.start)
}

// IsConfigError reports whether err came from missing settings.
func IsConfigError(err error) bool {
	var cfgErr *types.ConfigurationError
	return errors.As(err, &cfgErr)
}
