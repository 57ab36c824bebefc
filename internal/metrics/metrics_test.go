package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"theoption-trader/internal/events"
	"theoption-trader/internal/types"
)

func TestResult(t *testing.T) {
	tests := []struct {
		name string
		o    types.ExecutionOutcome
		want string
	}{
		{"confirmed", types.ExecutionOutcome{RequestedCount: 2, ConfirmedCount: 2}, "confirmed"},
		{"timeout", types.ExecutionOutcome{RequestedCount: 3, ConfirmedCount: 2, TimedOut: true}, "timeout"},
		{"partial", types.ExecutionOutcome{RequestedCount: 3, ConfirmedCount: 1}, "partial"},
		{"skipped", types.ExecutionOutcome{RequestedCount: 1, Skipped: true}, "skipped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Result(tt.o); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestReporterCounts(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := Reporter{}

	before := testutil.ToFloat64(mtxTrades.WithLabelValues("sell", "timeout"))
	confirmedBefore := testutil.ToFloat64(mtxConfirmed.WithLabelValues("sell"))
	retriesBefore := testutil.ToFloat64(mtxRetries)

	d := types.TradeDescriptor{Direction: types.Sell, Count: 3}
	r.Report(ctx, events.Completed(now, d, types.ExecutionOutcome{
		Direction:      types.Sell,
		RequestedCount: 3,
		ConfirmedCount: 2,
		TimedOut:       true,
		Elapsed:        5 * time.Second,
	}))
	r.Report(ctx, events.Retry(now, "run", 1, time.Second))
	r.Report(ctx, events.Reset(now, 4))

	if got := testutil.ToFloat64(mtxTrades.WithLabelValues("sell", "timeout")) - before; got != 1 {
		t.Errorf("Expected 1 timeout trade, got %v", got)
	}
	if got := testutil.ToFloat64(mtxConfirmed.WithLabelValues("sell")) - confirmedBefore; got != 2 {
		t.Errorf("Expected 2 confirmed entries, got %v", got)
	}
	if got := testutil.ToFloat64(mtxRetries) - retriesBefore; got != 1 {
		t.Errorf("Expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(mtxScheduleSize); got != 4 {
		t.Errorf("Expected schedule size 4, got %v", got)
	}
}
