// Package schedule holds pending trade descriptors and plans their daily
// recurrence.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

// Set is the collection of pending descriptors. It is owned by the
// scheduler loop and replaced wholesale every cycle.
type Set []types.TradeDescriptor

// FromConfig builds a descriptor for every raw trade entry. Entries that
// fail to parse are returned as *types.ScheduleParseError and skipped; the
// remaining entries are still scheduled.
func FromConfig(entries []store.TradeEntry, site store.SiteSettings, now time.Time) (Set, []error) {
	set := make(Set, 0, len(entries))
	var errs []error
	for i, e := range entries {
		d, err := descriptorFor(e, site, now)
		if err != nil {
			errs = append(errs, &types.ScheduleParseError{Index: i, Value: e.Time, Err: err})
			continue
		}
		set = append(set, d)
	}
	return set, errs
}

func descriptorFor(e store.TradeEntry, site store.SiteSettings, now time.Time) (types.TradeDescriptor, error) {
	tod, err := ParseTimeOfDay(e.Time)
	if err != nil {
		return types.TradeDescriptor{}, err
	}
	dir, err := types.ParseDirection(e.Direction)
	if err != nil {
		return types.TradeDescriptor{}, err
	}

	count := 1
	if e.Count != nil {
		count = *e.Count
	}
	if count < 1 {
		return types.TradeDescriptor{}, fmt.Errorf("count must be at least 1, got %d", count)
	}

	amount := strings.TrimSpace(e.Amount)
	if amount == "" {
		amount = site.DefaultAmount
	}
	if amount == "" {
		return types.TradeDescriptor{}, errors.New("no amount and no default_amount configured")
	}
	if err := store.ValidateAmount(amount); err != nil {
		return types.TradeDescriptor{}, err
	}

	duration := e.TradingTime
	if duration == "" {
		duration = site.DefaultTime
	}

	var budget *time.Duration
	if e.RetrySeconds != nil {
		if *e.RetrySeconds <= 0 {
			return types.TradeDescriptor{}, fmt.Errorf("retry_seconds must be positive, got %v", *e.RetrySeconds)
		}
		b := time.Duration(*e.RetrySeconds * float64(time.Second))
		budget = &b
	}

	return types.TradeDescriptor{
		TriggerTime:       tod.Next(now),
		OriginalTimeOfDay: strings.TrimSpace(e.Time),
		Direction:         dir,
		Count:             count,
		Amount:            amount,
		TradingDuration:   duration,
		RetryBudget:       budget,
		Comment:           e.Comment,
	}, nil
}

// NextOccurrence returns d rescheduled for the day after now at its
// original time of day. Every other field is carried over unchanged.
func NextOccurrence(d types.TradeDescriptor, now time.Time) (types.TradeDescriptor, error) {
	tod, err := ParseTimeOfDay(d.OriginalTimeOfDay)
	if err != nil {
		return types.TradeDescriptor{}, fmt.Errorf("rescheduling %q: %w", d.OriginalTimeOfDay, err)
	}
	y, m, day := now.Date()
	next := d
	next.TriggerTime = tod.On(time.Date(y, m, day+1, 0, 0, 0, 0, now.Location()))
	return next, nil
}

// Partition splits the set into descriptors due at now (trigger <= now)
// and the rest. Both keep the set's order.
func (s Set) Partition(now time.Time) (due, remaining Set) {
	for _, d := range s {
		if d.TriggerTime.After(now) {
			remaining = append(remaining, d)
		} else {
			due = append(due, d)
		}
	}
	return due, remaining
}

// SortChronological orders the set by trigger time, keeping the existing
// order among equal triggers.
func (s Set) SortChronological() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].TriggerTime.Before(s[j].TriggerTime)
	})
}

// Clone returns a copy safe to hand to other goroutines.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// NextTrigger returns the earliest trigger time in the set.
func (s Set) NextTrigger() (time.Time, bool) {
	var next time.Time
	for _, d := range s {
		if next.IsZero() || d.TriggerTime.Before(next) {
			next = d.TriggerTime
		}
	}
	return next, !next.IsZero()
}
