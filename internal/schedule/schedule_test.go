package schedule

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

var site = store.SiteSettings{DefaultAmount: "1000", DefaultTime: "1分"}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:30:00", TimeOfDay{Hour: 9, Minute: 30}, false},
		{"23:59:59.999", TimeOfDay{Hour: 23, Minute: 59, Second: 59, Nanosecond: 999_000_000}, false},
		{"07:00:00.5", TimeOfDay{Hour: 7, Nanosecond: 500_000_000}, false},
		{"7:05:01", TimeOfDay{Hour: 7, Minute: 5, Second: 1}, false},
		{"25:99:00", TimeOfDay{}, true},
		{"12:60:00", TimeOfDay{}, true},
		{"12:00", TimeOfDay{}, true},
		{"12:00:00.", TimeOfDay{}, true},
		{"ab:cd:ef", TimeOfDay{}, true},
		{"+7:00:00", TimeOfDay{}, true},
		{"07:+5:00", TimeOfDay{}, true},
		{"07:00:-1", TimeOfDay{}, true},
		{"07:00:00.+5", TimeOfDay{}, true},
		{"07:00:00.-5", TimeOfDay{}, true},
		{"07: 5:00", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Expected error for %q, got %+v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Expected no error for %q, got %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Expected %+v for %q, got %+v", tt.want, tt.in, got)
		}
	}
}

func TestTriggerAlwaysAfterSchedulingInstant(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	entries := []store.TradeEntry{
		{Time: "11:59:59.999", Direction: "buy"},
		{Time: "12:00:00", Direction: "buy"},
		{Time: "12:00:00.001", Direction: "sell"},
		{Time: "18:00:00", Direction: "sell"},
	}

	set, errs := FromConfig(entries, site, now)
	if len(errs) != 0 {
		t.Fatalf("Expected no errors, got %v", errs)
	}

	today := func(h, m, s, ms int) time.Time {
		return time.Date(2024, 3, 10, h, m, s, ms*int(time.Millisecond), time.Local)
	}
	want := []time.Time{
		today(11, 59, 59, 999).AddDate(0, 0, 1),
		today(12, 0, 0, 0).AddDate(0, 0, 1),
		today(12, 0, 0, 1),
		today(18, 0, 0, 0),
	}
	for i, d := range set {
		if !d.TriggerTime.After(now) {
			t.Errorf("Expected trigger %d after now, got %v", i, d.TriggerTime)
		}
		if !d.TriggerTime.Equal(want[i]) {
			t.Errorf("Expected trigger %d at %v, got %v", i, want[i], d.TriggerTime)
		}
	}
}

func TestFromConfigSkipsMalformedEntry(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.Local)
	entries := []store.TradeEntry{
		{Time: "09:00:00", Direction: "buy"},
		{Time: "25:99:00", Direction: "sell"},
		{Time: "10:00:00", Direction: "sell"},
	}

	set, errs := FromConfig(entries, site, now)
	if len(set) != 2 {
		t.Errorf("Expected 2 scheduled descriptors, got %d", len(set))
	}
	if len(errs) != 1 {
		t.Fatalf("Expected 1 parse error, got %d", len(errs))
	}
	var perr *types.ScheduleParseError
	if !errors.As(errs[0], &perr) {
		t.Fatalf("Expected ScheduleParseError, got %T", errs[0])
	}
	if perr.Index != 1 || perr.Value != "25:99:00" {
		t.Errorf("Expected index 1 value 25:99:00, got %d %q", perr.Index, perr.Value)
	}
}

func TestFromConfigDefaultsAndOverrides(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.Local)
	entries := []store.TradeEntry{
		{Time: "09:00:00", Direction: "buy"},
		{Time: "09:00:00", Direction: "sell", Count: intp(3), Amount: "2,500", TradingTime: "5分", RetrySeconds: floatp(2.5), Comment: "x"},
	}

	set, errs := FromConfig(entries, site, now)
	if len(errs) != 0 {
		t.Fatalf("Expected no errors, got %v", errs)
	}

	d := set[0]
	if d.Count != 1 || d.Amount != "1000" || d.TradingDuration != "1分" || d.RetryBudget != nil {
		t.Errorf("Expected defaults applied, got %+v", d)
	}
	if d.Budget(10*time.Second) != 10*time.Second {
		t.Errorf("Expected default budget 10s, got %v", d.Budget(10*time.Second))
	}

	d = set[1]
	if d.Count != 3 || d.Amount != "2,500" || d.TradingDuration != "5分" || d.Comment != "x" {
		t.Errorf("Expected overrides applied, got %+v", d)
	}
	if d.Budget(10*time.Second) != 2500*time.Millisecond {
		t.Errorf("Expected budget 2.5s, got %v", d.Budget(10*time.Second))
	}
}

func TestFromConfigRejectsInvalidEntries(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.Local)
	entries := []store.TradeEntry{
		{Time: "09:00:00", Direction: "up"},
		{Time: "09:00:00", Direction: "buy", Count: intp(0)},
		{Time: "09:00:00", Direction: "buy", Amount: "-5"},
		{Time: "09:00:00", Direction: "buy", RetrySeconds: floatp(0)},
	}

	set, errs := FromConfig(entries, site, now)
	if len(set) != 0 {
		t.Errorf("Expected no descriptors, got %d", len(set))
	}
	if len(errs) != 4 {
		t.Errorf("Expected 4 errors, got %d", len(errs))
	}
}

func TestNextOccurrenceAdvancesOneDay(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 500_000_000, time.Local)
	budget := 4 * time.Second
	d := types.TradeDescriptor{
		TriggerTime:       time.Date(2024, 3, 10, 9, 0, 0, 250_000_000, time.Local),
		OriginalTimeOfDay: "09:00:00.250",
		Direction:         types.Sell,
		Count:             2,
		Amount:            "1500",
		TradingDuration:   "3分",
		RetryBudget:       &budget,
		Comment:           "morning",
	}

	first, err := NextOccurrence(d, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := NextOccurrence(first, now.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !first.TriggerTime.Equal(d.TriggerTime.AddDate(0, 0, 1)) {
		t.Errorf("Expected first recurrence one day later, got %v", first.TriggerTime)
	}
	if !second.TriggerTime.Equal(first.TriggerTime.AddDate(0, 0, 1)) {
		t.Errorf("Expected second recurrence one day after first, got %v", second.TriggerTime)
	}

	for _, got := range []types.TradeDescriptor{first, second} {
		if got.Direction != d.Direction || got.Count != d.Count || got.Amount != d.Amount ||
			got.TradingDuration != d.TradingDuration || got.Comment != d.Comment ||
			got.OriginalTimeOfDay != d.OriginalTimeOfDay || got.RetryBudget != d.RetryBudget {
			t.Errorf("Expected payload unchanged, got %+v", got)
		}
	}
}

func TestNextOccurrenceBadTime(t *testing.T) {
	d := types.TradeDescriptor{OriginalTimeOfDay: "99:00:00"}
	if _, err := NextOccurrence(d, time.Now()); err == nil {
		t.Error("Expected error for unparsable time, got nil")
	}
}

func TestPartitionKeepsOrder(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)
	at := func(sec int, c string) types.TradeDescriptor {
		return types.TradeDescriptor{TriggerTime: now.Add(time.Duration(sec) * time.Second), Comment: c}
	}
	s := Set{at(0, "a"), at(5, "b"), at(-3, "c"), at(-1, "d"), at(1, "e")}

	due, remaining := s.Partition(now)
	if got := comments(due); got != "a,c,d" {
		t.Errorf("Expected due a,c,d, got %s", got)
	}
	if got := comments(remaining); got != "b,e" {
		t.Errorf("Expected remaining b,e, got %s", got)
	}

	due.SortChronological()
	if got := comments(due); got != "c,d,a" {
		t.Errorf("Expected chronological c,d,a, got %s", got)
	}
}

func TestSortChronologicalStable(t *testing.T) {
	now := time.Now()
	s := Set{
		{TriggerTime: now, Comment: "x"},
		{TriggerTime: now.Add(-time.Second), Comment: "y"},
		{TriggerTime: now, Comment: "z"},
	}
	s.SortChronological()
	if got := comments(s); got != "y,x,z" {
		t.Errorf("Expected y,x,z, got %s", got)
	}
}

func TestPrint(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.Local)
	set, _ := FromConfig([]store.TradeEntry{
		{Time: "10:00:00", Direction: "sell", Comment: "late"},
		{Time: "09:00:00", Direction: "buy", Comment: "early"},
	}, site, now)

	var buf bytes.Buffer
	if err := Print(&buf, set); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	out := buf.String()
	if strings.Index(out, "early") > strings.Index(out, "late") {
		t.Errorf("Expected rows ordered by time of day, got\n%s", out)
	}
	if !strings.Contains(out, "total: 2 trades") {
		t.Errorf("Expected total line, got\n%s", out)
	}
}

func comments(s Set) string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.Comment
	}
	return strings.Join(parts, ",")
}
