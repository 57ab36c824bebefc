// Package metrics exposes Prometheus metrics for the scheduler and the
// executor. Metrics are registered in init() and served at /metrics by the
// status server.
//
//   - trader_trades_total{direction,result}   executions by result (confirmed|partial|timeout|skipped)
//   - trader_entries_confirmed_total{direction} confirmed entries
//   - trader_execution_seconds{direction}      execution wall time
//   - trader_retry_iterations_total             confirmation retries
//   - trader_schedule_errors_total{kind}        schedule-error events by error kind
//   - trader_schedule_size                      pending descriptors after the last rebuild
//   - trader_daily_resets_total                 successful daily resets
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"theoption-trader/internal/events"
	"theoption-trader/internal/types"
)

var (
	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_trades_total",
			Help: "Trade executions by result",
		},
		[]string{"direction", "result"},
	)

	mtxConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_entries_confirmed_total",
			Help: "Entries confirmed by the page entry count",
		},
		[]string{"direction"},
	)

	mtxElapsed = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trader_execution_seconds",
			Help:    "Wall time of a trade execution",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"direction"},
	)

	mtxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_retry_iterations_total",
			Help: "Confirmation retry iterations",
		},
	)

	mtxScheduleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_schedule_errors_total",
			Help: "Schedule errors by kind",
		},
		[]string{"kind"},
	)

	mtxScheduleSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_schedule_size",
			Help: "Pending descriptors after the last schedule rebuild",
		},
	)

	mtxResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_daily_resets_total",
			Help: "Successful daily resets",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxTrades,
		mtxConfirmed,
		mtxElapsed,
		mtxRetries,
		mtxScheduleErrors,
		mtxScheduleSize,
		mtxResets,
	)
}

// Result classifies an outcome for the trades counter.
func Result(o types.ExecutionOutcome) string {
	switch {
	case o.Skipped:
		return "skipped"
	case o.Complete():
		return "confirmed"
	case o.TimedOut:
		return "timeout"
	default:
		return "partial"
	}
}

// Reporter updates the metrics from events.
type Reporter struct{}

func (Reporter) Report(_ context.Context, ev events.Event) {
	switch ev.Kind {
	case events.TradeCompleted:
		if ev.Outcome == nil {
			return
		}
		o := *ev.Outcome
		dir := string(o.Direction)
		mtxTrades.WithLabelValues(dir, Result(o)).Inc()
		if o.ConfirmedCount > 0 {
			mtxConfirmed.WithLabelValues(dir).Add(float64(o.ConfirmedCount))
		}
		if !o.Skipped {
			mtxElapsed.WithLabelValues(dir).Observe(o.Elapsed.Seconds())
		}
	case events.TradeRetry:
		mtxRetries.Inc()
	case events.ScheduleError:
		mtxScheduleErrors.WithLabelValues(ev.ErrorKind).Inc()
	case events.ScheduleReset:
		mtxResets.Inc()
		mtxScheduleSize.Set(float64(ev.Count))
	}
}
