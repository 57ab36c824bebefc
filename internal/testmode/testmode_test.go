package testmode

import (
	"context"
	"strings"
	"testing"
	"time"

	"theoption-trader/internal/browser/sim"
	"theoption-trader/internal/clock"
	"theoption-trader/internal/engine"
	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

func testConfig() *store.Config {
	cfg := store.Default()
	cfg.Mode = "DRY_RUN"
	cfg.Site = store.SiteSettings{
		AmountInputSelector:    "#amount",
		BuyButtonSelector:      "#high",
		SellButtonSelector:     "#low",
		PurchaseButtonSelector: "#purchase",
		OneClickToggleSelector: "#oneclick",
		TimeDropdownSelector:   "#expiry",
		TimeListSelector:       "#expiry li",
		EntrySelector:          "div.timer-area",
		AssetSelector:          "div.assetsListWrap li.selected .assetName",
		DefaultTime:            "1分",
		RetrySeconds:           5,
		WaitBetweenActions:     0.5,
		UseOneClickTrading:     true,
	}
	cfg.TestMode = store.TestModeSettings{
		Enabled:       true,
		Directions:    []string{"sell"},
		RandomAmounts: []string{"2000", "5000"},
	}
	return &cfg
}

func newRunner(t *testing.T, cfg *store.Config) (*Runner, *sim.Page) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 10, 19, 10, 0, 0, 0, time.Local))
	page := sim.New(sim.LayoutFrom(cfg.Site), clk, sim.Setup{OneClick: true, Asset: "GBP/JPY", Expiry: "5分"})
	picker, err := NewPicker(cfg.TestMode, 42)
	if err != nil {
		t.Fatalf("NewPicker failed: %v", err)
	}
	r, err := NewRunner(cfg, engine.New(cfg, page, clk, nil), page, picker, clk, nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r, page
}

func TestPickerDrawsFromPools(t *testing.T) {
	p, err := NewPicker(store.TestModeSettings{Directions: []string{"buy", "sell"}, RandomAmounts: []string{"1000", "3,000"}}, 7)
	if err != nil {
		t.Fatalf("NewPicker failed: %v", err)
	}
	seen := map[types.Direction]bool{}
	for i := 0; i < 200; i++ {
		seen[p.Direction()] = true
		if a := p.Amount(); a != "1000" && a != "3,000" {
			t.Fatalf("Unexpected amount %q", a)
		}
	}
	if !seen[types.Buy] || !seen[types.Sell] {
		t.Errorf("Expected both directions drawn, got %v", seen)
	}
}

func TestPickerRejectsBadPools(t *testing.T) {
	if _, err := NewPicker(store.TestModeSettings{Directions: []string{"up"}}, 1); err == nil {
		t.Error("Expected error for invalid direction")
	}
	if _, err := NewPicker(store.TestModeSettings{RandomAmounts: []string{"-5"}}, 1); err == nil {
		t.Error("Expected error for invalid amount")
	}
}

func TestRunnerDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.TestMode.Enabled = false
	if _, err := NewRunner(cfg, nil, nil, nil, nil, nil); err != ErrDisabled {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

func TestFireKeepsCurrentExpiry(t *testing.T) {
	r, page := newRunner(t, testConfig())

	out, info, err := r.Fire(context.Background())
	if err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if info.Asset != "GBP/JPY" || info.Expiry != "5分" {
		t.Errorf("Expected GBP/JPY 5分, got %+v", info)
	}
	if out.Direction != types.Sell || out.RequestedCount != 1 || out.ConfirmedCount != 1 {
		t.Errorf("Expected one confirmed SELL, got %+v", out)
	}
	if page.Expiry() != "5分" {
		t.Errorf("Expected expiry untouched, got %s", page.Expiry())
	}
	if page.Clicks("#expiry") != 0 {
		t.Errorf("Expected no dropdown clicks, got %d", page.Clicks("#expiry"))
	}
}

func TestLoop(t *testing.T) {
	r, page := newRunner(t, testConfig())
	var out strings.Builder

	if err := r.Loop(context.Background(), strings.NewReader("\nx\n\nq\n\n"), &out); err != nil {
		t.Fatalf("Loop failed: %v", err)
	}
	if got := page.Entries(); got != 2 {
		t.Errorf("Expected 2 trades placed, got %d", got)
	}
	if !strings.Contains(out.String(), "Press Enter or q") {
		t.Errorf("Expected hint for invalid input, got %q", out.String())
	}
	if !strings.Contains(out.String(), "SELL") {
		t.Errorf("Expected outcome lines, got %q", out.String())
	}
}
