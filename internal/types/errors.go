package types

import (
	"errors"
	"fmt"
)

var (
	// ErrElementTimeout is returned when an element did not become
	// clickable before its wait expired.
	ErrElementTimeout = errors.New("element not clickable before timeout")
	// ErrSubmitUnavailable means the purchase button is required but absent.
	ErrSubmitUnavailable = errors.New("purchase button not available")
	// ErrOneClickUnavailable means one-click mode could not be switched on.
	ErrOneClickUnavailable = errors.New("one-click trading not active")
	// ErrExecutorBusy is returned when Execute is entered concurrently.
	ErrExecutorBusy = errors.New("executor already running a trade")
)

// ConfigurationError reports a missing or invalid setting. It is fatal to
// the affected descriptor only.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// ScheduleParseError reports a trade entry that could not be scheduled.
type ScheduleParseError struct {
	Index int
	Value string
	Err   error
}

func (e *ScheduleParseError) Error() string {
	return fmt.Sprintf("trade %d: cannot schedule %q: %v", e.Index+1, e.Value, e.Err)
}

func (e *ScheduleParseError) Unwrap() error { return e.Err }

// ErrorKind classifies an error for event reporting.
func ErrorKind(err error) string {
	var cfgErr *ConfigurationError
	var parseErr *ScheduleParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &parseErr):
		return "schedule_parse"
	case errors.Is(err, ErrElementTimeout):
		return "element_timeout"
	case errors.Is(err, ErrSubmitUnavailable), errors.Is(err, ErrOneClickUnavailable):
		return "ui_state"
	case errors.Is(err, ErrExecutorBusy):
		return "busy"
	default:
		return "internal"
	}
}
