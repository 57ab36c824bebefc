// Package testmode places one random trade per operator keypress against
// whatever asset and expiry the page currently shows.
package testmode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"theoption-trader/internal/clock"
	"theoption-trader/internal/events"
	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/pageinfo"
	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

var ErrDisabled = errors.New("test mode is disabled in test_mode_settings")

// Picker draws random directions and amounts from the configured pools.
type Picker struct {
	directions []types.Direction
	amounts    []string
	rnd        *rand.Rand
}

func NewPicker(cfg store.TestModeSettings, seed uint64) (*Picker, error) {
	p := &Picker{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	for _, s := range cfg.Directions {
		d, err := types.ParseDirection(s)
		if err != nil {
			return nil, err
		}
		p.directions = append(p.directions, d)
	}
	if len(p.directions) == 0 {
		p.directions = []types.Direction{types.Buy, types.Sell}
	}
	for _, a := range cfg.RandomAmounts {
		if err := store.ValidateAmount(a); err != nil {
			return nil, err
		}
		p.amounts = append(p.amounts, strings.TrimSpace(a))
	}
	if len(p.amounts) == 0 {
		p.amounts = []string{"1000"}
	}
	return p, nil
}

func (p *Picker) Direction() types.Direction {
	return p.directions[p.rnd.IntN(len(p.directions))]
}

func (p *Picker) Amount() string {
	return p.amounts[p.rnd.IntN(len(p.amounts))]
}

type Runner struct {
	cfg      *store.Config
	exec     interfaces.Executor
	page     interfaces.Session
	picker   *Picker
	clock    clock.Clock
	reporter events.Reporter
}

func NewRunner(cfg *store.Config, exec interfaces.Executor, page interfaces.Session, picker *Picker, clk clock.Clock, reporter events.Reporter) (*Runner, error) {
	if !cfg.TestMode.Enabled {
		return nil, ErrDisabled
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if reporter == nil {
		reporter = events.Discard{}
	}
	return &Runner{cfg: cfg, exec: exec, page: page, picker: picker, clock: clk, reporter: reporter}, nil
}

// Fire places one random trade of count 1 with the page's current expiry.
func (r *Runner) Fire(ctx context.Context) (types.ExecutionOutcome, pageinfo.Info, error) {
	info, err := pageinfo.Read(ctx, r.page, pageinfo.SelectorsFrom(r.cfg.Site))
	if err != nil {
		logger.Warn(ctx, "Could not read page state", "error", err.Error())
	}

	now := r.clock.Now()
	duration := info.Expiry
	if duration == "" {
		duration = r.cfg.Site.DefaultTime
	}
	d := types.TradeDescriptor{
		TriggerTime:       now,
		OriginalTimeOfDay: now.Format("15:04:05.000"),
		Direction:         r.picker.Direction(),
		Count:             1,
		Amount:            r.picker.Amount(),
		TradingDuration:   duration,
		Comment:           "test mode",
	}

	out, err := r.exec.Execute(ctx, types.TradeRequest{Descriptor: d, KeepDuration: true})
	if err != nil {
		r.reporter.Report(ctx, events.Failed(r.clock.Now(), err))
	}
	r.reporter.Report(ctx, events.Completed(r.clock.Now(), d, out))
	return out, info, err
}

// Loop fires a trade on every empty line read from in until "q", EOF or
// ctx cancellation.
func (r *Runner) Loop(ctx context.Context, in io.Reader, w io.Writer) error {
	fmt.Fprintln(w, "=== Test mode ===")
	fmt.Fprintln(w, "Press Enter to place a random trade, q + Enter to quit")
	fmt.Fprintf(w, "Directions: %v  Amounts: %v\n", r.picker.directions, r.picker.amounts)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "q":
			fmt.Fprintln(w, "Leaving test mode")
			return nil
		case "":
			out, info, err := r.Fire(ctx)
			printOutcome(w, out, info, err)
		default:
			fmt.Fprintln(w, "Press Enter or q")
		}
	}
}

func printOutcome(w io.Writer, out types.ExecutionOutcome, info pageinfo.Info, err error) {
	asset := info.Asset
	if asset == "" {
		asset = "(current asset)"
	}
	fmt.Fprintf(w, "%s %s on %s, expiry %s\n", out.Direction.Label(), out.Amount, asset, info.Expiry)
	if err != nil {
		fmt.Fprintf(w, "  skipped: %v\n", err)
		return
	}
	fmt.Fprintf(w, "  confirmed %d/%d in %.2fs", out.ConfirmedCount, out.RequestedCount, out.ElapsedSeconds())
	if out.TimedOut {
		fmt.Fprint(w, " (timed out)")
	}
	fmt.Fprintln(w)
}
