package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"theoption-trader/internal/clock"
	"theoption-trader/internal/events"
	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

var day = time.Date(2026, 10, 19, 0, 0, 0, 0, time.Local)

func at(h, m int, s ...int) time.Time {
	sec := 0
	if len(s) > 0 {
		sec = s[0]
	}
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second)
}

func testConfig(trades ...store.TradeEntry) *store.Config {
	cfg := store.Default()
	cfg.Mode = "DRY_RUN"
	cfg.Trading.Trades = trades
	return &cfg
}

type fakeExecutor struct {
	mu        sync.Mutex
	requests  []types.TradeRequest
	reconfigs int
	onExecute func(n int, req types.TradeRequest) (types.ExecutionOutcome, error)
}

func (f *fakeExecutor) Execute(_ context.Context, req types.TradeRequest) (types.ExecutionOutcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	fn := f.onExecute
	f.mu.Unlock()
	if fn != nil {
		return fn(n, req)
	}
	return types.ExecutionOutcome{Direction: req.Descriptor.Direction, RequestedCount: req.Descriptor.Count, ConfirmedCount: req.Descriptor.Count}, nil
}

func (f *fakeExecutor) Reconfigure(store.SiteSettings) {
	f.mu.Lock()
	f.reconfigs++
	f.mu.Unlock()
}

func (f *fakeExecutor) executed() []types.TradeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.TradeRequest(nil), f.requests...)
}

type fakeSource struct {
	mu    sync.Mutex
	cfg   *store.Config
	fails int
	loads int
}

func (s *fakeSource) Load(context.Context) (*store.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.fails > 0 {
		s.fails--
		return nil, errors.New("config file unreadable")
	}
	return s.cfg, nil
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Report(_ context.Context, ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	loop   *Loop
	state  *State
	exec   *fakeExecutor
	source *fakeSource
	clock  *clock.Manual
	rec    *recorder
}

func newFixture(start time.Time, cfg *store.Config) *fixture {
	f := &fixture{
		state:  NewState(cfg.Scheduler.DailyResetHour),
		exec:   &fakeExecutor{},
		source: &fakeSource{cfg: cfg},
		clock:  clock.NewManual(start),
		rec:    &recorder{},
	}
	f.loop = NewLoop(cfg, f.state, f.exec, f.source, f.clock, f.rec)
	return f
}

func TestDailyResetRunsOncePerDay(t *testing.T) {
	cfg := testConfig(store.TradeEntry{Time: "09:00:00", Direction: "buy"})
	f := newFixture(at(6, 0), cfg)
	hooks := 0
	f.loop.AfterReset = func(context.Context, time.Time) { hooks++ }

	f.loop.Cycle(context.Background())
	if f.source.count() != 0 {
		t.Fatalf("Expected no reset before 07:00, got %d loads", f.source.count())
	}

	steps := []struct {
		now    time.Time
		resets int
	}{
		{at(7, 0), 1},
		{at(7, 0).Add(time.Millisecond), 1},
		{at(12, 0), 1},
		{at(23, 59, 59), 1},
		{at(24+6, 59), 1},
		{at(24+7, 0), 2},
		{at(24+20, 0), 2},
	}
	for _, s := range steps {
		f.clock.Set(s.now)
		f.loop.Cycle(context.Background())
		if got := f.rec.count(events.ScheduleReset); got != s.resets {
			t.Errorf("At %s: expected %d resets, got %d", s.now.Format(time.DateTime), s.resets, got)
		}
	}
	if hooks != 2 {
		t.Errorf("Expected AfterReset to run 2 times, got %d", hooks)
	}
	if f.exec.reconfigs != 2 {
		t.Errorf("Expected executor reconfigured 2 times, got %d", f.exec.reconfigs)
	}
	if got := f.state.Snapshot().LastReset; got != "2026-10-20" {
		t.Errorf("Expected last reset 2026-10-20, got %q", got)
	}
}

func TestDailyResetFailureIsRetried(t *testing.T) {
	cfg := testConfig(store.TradeEntry{Time: "09:00:00", Direction: "buy"})
	f := newFixture(at(8, 0), cfg)
	f.source.fails = 2

	f.loop.Cycle(context.Background())
	f.clock.Advance(time.Millisecond)
	f.loop.Cycle(context.Background())
	if _, ok := f.state.reset.LastResetDate(); ok {
		t.Fatal("Expected last reset date to stay unset after a failed reset")
	}
	if got := f.rec.count(events.ScheduleError); got != 1 {
		t.Errorf("Expected failure reported once within the throttle window, got %d", got)
	}

	f.clock.Advance(time.Millisecond)
	f.loop.Cycle(context.Background())
	if f.source.count() != 3 {
		t.Errorf("Expected 3 load attempts, got %d", f.source.count())
	}
	if _, ok := f.state.reset.LastResetDate(); !ok {
		t.Error("Expected last reset date set after a successful retry")
	}
	if got := len(f.state.Snapshot().Pending); got != 1 {
		t.Errorf("Expected 1 pending trade after reset, got %d", got)
	}
}

func TestResetReportsParseErrors(t *testing.T) {
	cfg := testConfig(
		store.TradeEntry{Time: "09:00:00", Direction: "buy"},
		store.TradeEntry{Time: "25:99:00", Direction: "buy"},
		store.TradeEntry{Time: "10:00:00", Direction: "sell"},
	)
	f := newFixture(at(8, 0), cfg)

	f.loop.Cycle(context.Background())

	if got := f.rec.count(events.ScheduleCreated); got != 2 {
		t.Errorf("Expected 2 schedule-created events, got %d", got)
	}
	if got := f.rec.count(events.ScheduleError); got != 1 {
		t.Errorf("Expected 1 schedule-error event, got %d", got)
	}
	if got := len(f.state.Snapshot().Pending); got != 2 {
		t.Errorf("Expected 2 pending trades, got %d", got)
	}
}

func TestCycleDispatchesAndReschedules(t *testing.T) {
	cfg := testConfig(
		store.TradeEntry{Time: "06:30:00", Direction: "buy", Count: intp(2)},
		store.TradeEntry{Time: "06:45:00", Direction: "sell"},
	)
	f := newFixture(at(6, 0), cfg)
	if _, errs := f.loop.Prime(context.Background()); len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}

	f.clock.Set(at(6, 29, 59))
	f.loop.Cycle(context.Background())
	if got := len(f.exec.executed()); got != 0 {
		t.Fatalf("Expected nothing executed before trigger, got %d", got)
	}

	f.clock.Set(at(6, 30))
	f.loop.Cycle(context.Background())
	reqs := f.exec.executed()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 execution, got %d", len(reqs))
	}
	if reqs[0].Descriptor.Direction != types.Buy || reqs[0].Descriptor.Count != 2 {
		t.Errorf("Expected BUY x2, got %s x%d", reqs[0].Descriptor.Direction.Label(), reqs[0].Descriptor.Count)
	}
	if !reqs[0].ResetBaseline {
		t.Error("Expected scheduled trades to reset the baseline")
	}

	pending := f.state.Snapshot().Pending
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending trades, got %d", len(pending))
	}
	if pending[0].Direction != types.Sell {
		t.Errorf("Expected the untouched SELL first, got %s", pending[0].Direction.Label())
	}
	want := at(24+6, 30)
	if !pending[1].TriggerTime.Equal(want) {
		t.Errorf("Expected rescheduled trigger %s, got %s", want, pending[1].TriggerTime)
	}
	if pending[1].Count != 2 || pending[1].OriginalTimeOfDay != "06:30:00" {
		t.Errorf("Expected fields carried over, got %+v", pending[1])
	}

	f.clock.Advance(time.Millisecond)
	f.loop.Cycle(context.Background())
	if got := len(f.exec.executed()); got != 1 {
		t.Errorf("Expected trade to run once per day, got %d executions", got)
	}
	if got := f.rec.count(events.TradeCompleted); got != 1 {
		t.Errorf("Expected 1 trade-completed event, got %d", got)
	}
}

func TestDispatchOrder(t *testing.T) {
	tests := []struct {
		order string
		want  []types.Direction
	}{
		{store.DispatchInsertion, []types.Direction{types.Sell, types.Buy}},
		{store.DispatchChronological, []types.Direction{types.Buy, types.Sell}},
	}
	for _, tt := range tests {
		t.Run(tt.order, func(t *testing.T) {
			cfg := testConfig(
				store.TradeEntry{Time: "06:45:00", Direction: "sell"},
				store.TradeEntry{Time: "06:30:00", Direction: "buy"},
			)
			cfg.Scheduler.DispatchOrder = tt.order
			f := newFixture(at(6, 0), cfg)
			f.loop.Prime(context.Background())

			f.clock.Set(at(6, 50))
			f.loop.Cycle(context.Background())

			reqs := f.exec.executed()
			if len(reqs) != len(tt.want) {
				t.Fatalf("Expected %d executions, got %d", len(tt.want), len(reqs))
			}
			for i, d := range tt.want {
				if reqs[i].Descriptor.Direction != d {
					t.Errorf("Execution %d: expected %s, got %s", i, d.Label(), reqs[i].Descriptor.Direction.Label())
				}
			}
		})
	}
}

func TestFailuresDoNotStopTheCycle(t *testing.T) {
	cfg := testConfig(
		store.TradeEntry{Time: "06:30:00", Direction: "buy"},
		store.TradeEntry{Time: "06:31:00", Direction: "sell"},
		store.TradeEntry{Time: "06:32:00", Direction: "buy"},
	)
	f := newFixture(at(6, 0), cfg)
	f.exec.onExecute = func(n int, req types.TradeRequest) (types.ExecutionOutcome, error) {
		switch n {
		case 1:
			panic("driver crashed")
		case 2:
			return types.ExecutionOutcome{Skipped: true, Reason: "no purchase button"}, types.ErrSubmitUnavailable
		}
		return types.ExecutionOutcome{RequestedCount: 1, ConfirmedCount: 1}, nil
	}
	f.loop.Prime(context.Background())

	f.clock.Set(at(6, 40))
	f.loop.Cycle(context.Background())

	if got := len(f.exec.executed()); got != 3 {
		t.Fatalf("Expected 3 executions, got %d", got)
	}
	if got := f.rec.count(events.ScheduleError); got != 2 {
		t.Errorf("Expected 2 schedule-error events, got %d", got)
	}
	if got := f.rec.count(events.TradeCompleted); got != 2 {
		t.Errorf("Expected 2 trade-completed events, got %d", got)
	}
	if got := len(f.state.Snapshot().Pending); got != 3 {
		t.Errorf("Expected every trade rescheduled, got %d pending", got)
	}
}

func TestCancelStopsBetweenTrades(t *testing.T) {
	cfg := testConfig(
		store.TradeEntry{Time: "06:30:00", Direction: "buy"},
		store.TradeEntry{Time: "06:31:00", Direction: "sell"},
	)
	f := newFixture(at(6, 0), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.onExecute = func(int, types.TradeRequest) (types.ExecutionOutcome, error) {
		cancel()
		return types.ExecutionOutcome{RequestedCount: 1, ConfirmedCount: 1}, nil
	}
	f.loop.Prime(ctx)

	f.clock.Set(at(6, 40))
	f.loop.Cycle(ctx)

	if got := len(f.exec.executed()); got != 1 {
		t.Fatalf("Expected 1 execution, got %d", got)
	}
	pending := f.state.Snapshot().Pending
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending trades, got %d", len(pending))
	}
	if pending[0].Direction != types.Buy || !pending[0].TriggerTime.Equal(at(24+6, 30)) {
		t.Errorf("Expected the executed BUY moved to tomorrow, got %s at %s", pending[0].Direction.Label(), pending[0].TriggerTime)
	}
	if pending[1].Direction != types.Sell || !pending[1].TriggerTime.Equal(at(6, 31)) {
		t.Errorf("Expected the unexecuted SELL kept at its trigger, got %s at %s", pending[1].Direction.Label(), pending[1].TriggerTime)
	}
}

func TestReloadRebuildsSchedule(t *testing.T) {
	cfg := testConfig(store.TradeEntry{Time: "06:30:00", Direction: "buy"})
	f := newFixture(at(6, 0), cfg)
	f.loop.Prime(context.Background())

	f.source.cfg = testConfig(
		store.TradeEntry{Time: "06:10:00", Direction: "sell"},
		store.TradeEntry{Time: "06:20:00", Direction: "sell"},
	)
	f.state.RequestReload()
	f.loop.Cycle(context.Background())

	if got := len(f.state.Snapshot().Pending); got != 2 {
		t.Errorf("Expected 2 pending trades after reload, got %d", got)
	}
	if f.exec.reconfigs != 1 {
		t.Errorf("Expected executor reconfigured once, got %d", f.exec.reconfigs)
	}

	f.loop.Cycle(context.Background())
	if f.source.count() != 1 {
		t.Errorf("Expected a single reload, got %d loads", f.source.count())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(store.TradeEntry{Time: "06:00:00.005", Direction: "buy"})
	f := newFixture(at(6, 0), cfg)
	f.loop.Prime(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.onExecute = func(int, types.TradeRequest) (types.ExecutionOutcome, error) {
		cancel()
		return types.ExecutionOutcome{RequestedCount: 1, ConfirmedCount: 1}, nil
	}

	if err := f.loop.Run(ctx); err != nil {
		t.Fatalf("Expected clean stop, got %v", err)
	}
	if f.state.Running() {
		t.Error("Expected running flag cleared")
	}
	if got := len(f.exec.executed()); got != 1 {
		t.Errorf("Expected 1 execution, got %d", got)
	}
}

func TestCoordinatorStopsLoop(t *testing.T) {
	cfg := testConfig(store.TradeEntry{Time: "06:00:00.005", Direction: "buy"})
	f := newFixture(at(6, 0), cfg)
	f.loop.Prime(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.onExecute = func(int, types.TradeRequest) (types.ExecutionOutcome, error) {
		cancel()
		return types.ExecutionOutcome{RequestedCount: 1, ConfirmedCount: 1}, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- NewCoordinator(f.loop, f.state, 5*time.Second).Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Coordinator did not return")
	}
	if f.state.Running() {
		t.Error("Expected loop stopped")
	}
}

func TestTradeAtResetHourIsMovedToTomorrow(t *testing.T) {
	cfg := testConfig(store.TradeEntry{Time: "07:00:00", Direction: "buy"})
	f := newFixture(at(6, 59, 59), cfg)
	f.loop.Prime(context.Background())

	f.clock.Set(at(7, 0))
	f.loop.Cycle(context.Background())

	if got := len(f.exec.executed()); got != 0 {
		t.Errorf("Expected no execution at the reset instant, got %d", got)
	}
	pending := f.state.Snapshot().Pending
	if len(pending) != 1 || !pending[0].TriggerTime.Equal(at(24+7, 0)) {
		t.Errorf("Expected the trade moved to tomorrow 07:00, got %+v", pending)
	}
}

func TestShadowedByReset(t *testing.T) {
	poll := 5 * time.Millisecond
	tests := []struct {
		time string
		want bool
	}{
		{"07:00:00", true},
		{"07:00:00.004", true},
		{"07:00:00.005", false},
		{"07:00:01", false},
		{"06:59:59.999", false},
		{"08:00:00", false},
	}
	for _, tt := range tests {
		d := types.TradeDescriptor{OriginalTimeOfDay: tt.time}
		if got := shadowedByReset(d, 7, poll); got != tt.want {
			t.Errorf("Expected %v for %s, got %v", tt.want, tt.time, got)
		}
	}
}

func intp(v int) *int { return &v }
