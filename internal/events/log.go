package events

import (
	"context"

	"theoption-trader/internal/logger"
)

// LogReporter writes every event to the structured log.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, ev Event) {
	switch ev.Kind {
	case ScheduleCreated:
		d := ev.Descriptor
		logger.Info(ctx, "Trade scheduled",
			"trigger", d.TriggerTime.Format("2006-01-02 15:04:05.000"),
			"direction", d.Direction.Label(),
			"count", d.Count,
			"amount", d.Amount,
			"expiry", d.TradingDuration,
			"comment", d.Comment,
		)
	case ScheduleReset:
		logger.Info(ctx, "Daily reset completed", "scheduled", ev.Count)
	case TradeStarted:
		d := ev.Descriptor
		logger.Info(ctx, "Trade started",
			"run_id", ev.RunID,
			"direction", d.Direction.Label(),
			"count", d.Count,
			"amount", d.Amount,
			"expiry", d.TradingDuration,
			"asset", ev.Asset,
			"comment", d.Comment,
		)
	case TradeRetry:
		logger.Debug(ctx, "Confirmation retry",
			"run_id", ev.RunID,
			"iteration", ev.Iteration+1,
			"elapsed_ms", ev.Elapsed.Milliseconds(),
		)
	case TradeCompleted:
		o := ev.Outcome
		fields := []any{"baseline", o.Baseline, "timed_out", o.TimedOut}
		if o.Skipped {
			fields = append(fields, "skipped", true, "reason", o.Reason)
		}
		logger.Trade(ctx, o.RunID, o.Direction.Label(), o.RequestedCount, o.ConfirmedCount, o.Elapsed, fields...)
		if o.TimedOut && o.ConfirmedCount < o.RequestedCount {
			logger.Warn(ctx, "Retry budget exhausted before all entries confirmed",
				"run_id", o.RunID,
				"requested", o.RequestedCount,
				"confirmed", o.ConfirmedCount,
			)
		}
	case ScheduleError:
		logger.Error(ctx, "Schedule error", "kind", ev.ErrorKind, "message", ev.Message)
	}
}
