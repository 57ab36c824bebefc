package tradelog

import (
	"context"

	"theoption-trader/internal/events"
	"theoption-trader/internal/logger"
)

// Reporter journals every trade-completed event.
type Reporter struct{}

func (Reporter) Report(ctx context.Context, ev events.Event) {
	if ev.Kind != events.TradeCompleted || ev.Outcome == nil {
		return
	}
	o := ev.Outcome
	e := Entry{
		RunID:     o.RunID,
		Direction: o.Direction.Label(),
		Amount:    o.Amount,
		Baseline:  o.Baseline,
		Requested: o.RequestedCount,
		Confirmed: o.ConfirmedCount,
		ElapsedMs: o.Elapsed.Milliseconds(),
		TimedOut:  o.TimedOut,
		Skipped:   o.Skipped,
		Reason:    o.Reason,
	}
	if d := ev.Descriptor; d != nil {
		e.Scheduled = d.OriginalTimeOfDay
		e.Expiry = d.TradingDuration
		e.Comment = d.Comment
	}
	if err := AppendAt(ev.Time, e); err != nil {
		logger.ErrorWithErr(ctx, "Failed to append trade journal", err, "run_id", o.RunID)
	}
}
