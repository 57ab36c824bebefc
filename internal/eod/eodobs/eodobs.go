package eodobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"theoption-trader/internal/eod"
	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "summary.SummarizeDay")
	defer span.End()

	date := t.Format("2006-01-02")
	span.SetAttributes(attribute.String("date", date))
	logger.InfoSkip(ctx, 1, "Starting daily trade summary", "date", date)

	csvPath, err := oes.summarizer.SummarizeDay(t)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Daily trade summary failed", err, "date", date)
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No trades journaled for the day", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "Daily trade summary written",
		append([]any{"date", date, "csv_path", csvPath}, totalsFields(ctx, span, csvPath)...)...,
	)
	return csvPath, nil
}

func (oes *observableEodSummarizer) SummarizeToday() (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "summary.SummarizeToday")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Starting today's trade summary")

	csvPath, err := oes.summarizer.SummarizeToday()
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Today's trade summary failed", err)
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No trades journaled today")
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "Today's trade summary written",
		append([]any{"csv_path", csvPath}, totalsFields(ctx, span, csvPath)...)...,
	)
	return csvPath, nil
}

// totalsFields puts the summary's TOTAL row on the span and returns it as
// log fields. An unreadable summary only costs the attributes.
func totalsFields(ctx context.Context, span oteltrace.Span, csvPath string) []any {
	totals, err := eod.ReadTotals(csvPath)
	if err != nil {
		logger.Warn(ctx, "Could not read summary totals", "csv_path", csvPath, "error", err)
		return nil
	}
	span.SetAttributes(
		attribute.Int("executions", totals.Executions),
		attribute.Int("requested", totals.Requested),
		attribute.Int("confirmed", totals.Confirmed),
		attribute.Int("timed_out", totals.TimedOut),
		attribute.Int("skipped", totals.Skipped),
		attribute.String("stake", totals.Stake.String()),
	)
	return []any{
		"executions", totals.Executions,
		"confirmed", totals.Confirmed,
		"requested", totals.Requested,
		"stake", totals.Stake.String(),
	}
}
