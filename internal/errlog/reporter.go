package errlog

import (
	"context"

	"go.uber.org/zap"

	"theoption-trader/internal/events"
)

// Reporter journals schedule-error events and skipped trades.
type Reporter struct {
	Journal *Journal
}

func (r Reporter) Report(_ context.Context, ev events.Event) {
	switch ev.Kind {
	case events.ScheduleError:
		r.Journal.Record(categoryFor(ev.ErrorKind), ev.Message, nil,
			zap.String("error_kind", ev.ErrorKind))
	case events.TradeCompleted:
		if ev.Outcome == nil || !ev.Outcome.Skipped {
			return
		}
		r.Journal.Record(Trading, "trade skipped", nil,
			zap.String("run_id", ev.RunID),
			zap.String("direction", ev.Outcome.Direction.Label()),
			zap.String("reason", ev.Outcome.Reason),
		)
	}
}

func categoryFor(kind string) Category {
	switch kind {
	case "configuration":
		return Config
	case "schedule_parse":
		return Schedule
	case "element_timeout", "ui_state":
		return Automation
	default:
		return Trading
	}
}
