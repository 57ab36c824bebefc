package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour, Minute, Second int
	Nanosecond           int
}

// ParseTimeOfDay parses "HH:MM:SS" with an optional fractional part
// ("HH:MM:SS.fff"). The fraction is read as a decimal fraction of a second.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("expected HH:MM:SS[.fff], got %q", s)
	}

	hour, err := parseField(parts[0], "hour", 23)
	if err != nil {
		return TimeOfDay{}, err
	}
	minute, err := parseField(parts[1], "minute", 59)
	if err != nil {
		return TimeOfDay{}, err
	}

	secPart, fracPart, hasFrac := strings.Cut(parts[2], ".")
	second, err := parseField(secPart, "second", 59)
	if err != nil {
		return TimeOfDay{}, err
	}

	nanos := 0
	if hasFrac {
		if fracPart == "" || len(fracPart) > 9 || !allDigits(fracPart) {
			return TimeOfDay{}, fmt.Errorf("invalid fractional seconds %q", fracPart)
		}
		n, err := strconv.Atoi(fracPart)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid fractional seconds %q", fracPart)
		}
		for i := len(fracPart); i < 9; i++ {
			n *= 10
		}
		nanos = n
	}

	return TimeOfDay{Hour: hour, Minute: minute, Second: second, Nanosecond: nanos}, nil
}

func parseField(s, name string, max int) (int, error) {
	if s == "" || len(s) > 2 || !allDigits(s) {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	v, err := strconv.Atoi(s)
	if err != nil || v > max {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

// allDigits rejects signs and spaces that strconv.Atoi would accept.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// On returns this time of day on the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, t.Nanosecond, day.Location())
}

// Next returns the first instant strictly after now at this time of day.
func (t TimeOfDay) Next(now time.Time) time.Time {
	at := t.On(now)
	if !at.After(now) {
		y, m, d := now.Date()
		at = time.Date(y, m, d+1, t.Hour, t.Minute, t.Second, t.Nanosecond, now.Location())
	}
	return at
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour, t.Minute, t.Second, t.Nanosecond/int(time.Millisecond))
}
