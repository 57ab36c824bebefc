package types

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// ParseDirection accepts buy/sell in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return "", fmt.Errorf("invalid direction '%s': must be 'buy' or 'sell'", s)
	}
}

func (d Direction) Label() string {
	if d == Buy {
		return "BUY"
	}
	return "SELL"
}

// TradeDescriptor is one scheduled or in-flight trade request. Values are
// never mutated; rescheduling produces a new descriptor.
type TradeDescriptor struct {
	TriggerTime       time.Time      `json:"trigger_time"`
	OriginalTimeOfDay string         `json:"time"`
	Direction         Direction      `json:"direction"`
	Count             int            `json:"count"`
	Amount            string         `json:"amount"`
	TradingDuration   string         `json:"trading_time"`
	RetryBudget       *time.Duration `json:"retry_budget,omitempty"`
	Comment           string         `json:"comment,omitempty"`
}

// Budget returns the descriptor's retry budget or def when none is set.
func (d TradeDescriptor) Budget(def time.Duration) time.Duration {
	if d.RetryBudget != nil && *d.RetryBudget > 0 {
		return *d.RetryBudget
	}
	return def
}

// TradeRequest is what the executor receives for a single run.
type TradeRequest struct {
	Descriptor TradeDescriptor
	// ResetBaseline rereads the entry count before any click and uses it as
	// the zero point. Scheduled runs always set it.
	ResetBaseline bool
	// KeepDuration leaves the currently selected expiry untouched.
	KeepDuration bool
}

// ExecutionOutcome is produced once per executed descriptor.
type ExecutionOutcome struct {
	RunID          string        `json:"run_id"`
	Direction      Direction     `json:"direction"`
	Amount         string        `json:"amount"`
	Baseline       int           `json:"baseline"`
	RequestedCount int           `json:"requested_count"`
	ConfirmedCount int           `json:"confirmed_count"`
	Elapsed        time.Duration `json:"elapsed"`
	TimedOut       bool          `json:"timed_out"`
	Skipped        bool          `json:"skipped"`
	Reason         string        `json:"reason,omitempty"`
}

func (o ExecutionOutcome) ElapsedSeconds() float64 {
	return o.Elapsed.Seconds()
}

// Succeeded reports whether at least one entry was confirmed.
func (o ExecutionOutcome) Succeeded() bool {
	return o.ConfirmedCount > 0
}

// Complete reports whether every requested entry was confirmed.
func (o ExecutionOutcome) Complete() bool {
	return o.ConfirmedCount >= o.RequestedCount
}
