package engineobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/store"
	"theoption-trader/internal/trace"
	"theoption-trader/internal/types"
)

type observableExecutor struct {
	exec interfaces.Executor
}

var _ interfaces.Executor = (*observableExecutor)(nil)

func Wrap(exec interfaces.Executor) interfaces.Executor {
	return &observableExecutor{
		exec: exec,
	}
}

func (oe *observableExecutor) Execute(ctx context.Context, req types.TradeRequest) (types.ExecutionOutcome, error) {
	ctx, span := trace.StartSpan(ctx, "executor.Execute")
	defer span.End()

	d := req.Descriptor
	start := time.Now()

	span.SetAttributes(
		attribute.String("direction", string(d.Direction)),
		attribute.Int("count", d.Count),
		attribute.String("amount", d.Amount),
	)

	logger.InfoSkip(ctx, 1, "Starting trade execution",
		"direction", d.Direction.Label(),
		"count", d.Count,
		"amount", d.Amount,
		"expiry", d.TradingDuration,
		"reset_baseline", req.ResetBaseline,
	)

	out, err := oe.exec.Execute(ctx, req)
	span.SetAttributes(
		attribute.String("run_id", out.RunID),
		attribute.Int("confirmed", out.ConfirmedCount),
		attribute.Bool("timed_out", out.TimedOut),
	)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trade execution failed", err,
			"run_id", out.RunID,
			"direction", d.Direction.Label(),
			"error_kind", types.ErrorKind(err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return out, err
	}

	fields := []any{
		"run_id", out.RunID,
		"direction", d.Direction.Label(),
		"requested", out.RequestedCount,
		"confirmed", out.ConfirmedCount,
		"timed_out", out.TimedOut,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if out.TimedOut || out.Skipped {
		logger.WarnSkip(ctx, 1, "Trade execution incomplete", append(fields, "reason", out.Reason)...)
		return out, nil
	}
	logger.InfoSkip(ctx, 1, "Trade execution completed", fields...)

	return out, nil
}

func (oe *observableExecutor) Reconfigure(site store.SiteSettings) {
	logger.Debug(context.Background(), "Executor reconfigured",
		"one_click", site.UseOneClickTrading,
		"retry_seconds", site.RetrySeconds,
	)
	oe.exec.Reconfigure(site)
}
