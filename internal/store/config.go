package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"theoption-trader/internal/types"
)

type Config struct {
	Mode      string            `yaml:"mode"`
	Browser   BrowserSettings   `yaml:"browser_settings"`
	Site      SiteSettings      `yaml:"theoption_settings"`
	Trading   TradingSettings   `yaml:"trading_settings"`
	Scheduler SchedulerSettings `yaml:"scheduler_settings"`
	TestMode  TestModeSettings  `yaml:"test_mode_settings"`
	Logging   LoggingSettings   `yaml:"logging"`
	Status    StatusSettings    `yaml:"status"`

	// MissingKeys lists keys present in the defaults file but absent from
	// the user file. Filled by LoadConfig.
	MissingKeys []string `yaml:"-"`
}

type BrowserSettings struct {
	ProfileDirectory string `yaml:"profile_directory"`
	Headless         bool   `yaml:"headless"`
	ChromePath       string `yaml:"chrome_path"`
}

// SiteSettings describes the trading page: URLs, selectors and timings.
type SiteSettings struct {
	LoginURL               string  `yaml:"login_url"`
	TradingURL             string  `yaml:"trading_url"`
	AmountInputSelector    string  `yaml:"amount_input_selector"`
	BuyButtonSelector      string  `yaml:"buy_button_selector"`
	SellButtonSelector     string  `yaml:"sell_button_selector"`
	PurchaseButtonSelector string  `yaml:"purchase_button_selector"`
	OneClickToggleSelector string  `yaml:"oneclick_toggle_selector"`
	TimeDropdownSelector   string  `yaml:"time_dropdown_selector"`
	TimeListSelector       string  `yaml:"time_list_selector"`
	EntrySelector          string  `yaml:"entry_selector"`
	AssetSelector          string  `yaml:"asset_selector"`
	DefaultAmount          string  `yaml:"default_amount"`
	DefaultTime            string  `yaml:"default_time"`
	RetrySeconds           float64 `yaml:"retry_seconds"`
	WaitBetweenActions     float64 `yaml:"wait_time_between_actions"`
	UseOneClickTrading     bool    `yaml:"use_oneclick_trading"`
}

type TradingSettings struct {
	Trades []TradeEntry `yaml:"trades"`
}

// TradeEntry is one raw trade as written in the config file.
type TradeEntry struct {
	Time         string   `yaml:"time"`
	Direction    string   `yaml:"direction"`
	Count        *int     `yaml:"count"`
	Amount       string   `yaml:"amount"`
	TradingTime  string   `yaml:"trading_time"`
	RetrySeconds *float64 `yaml:"retry_seconds"`
	Comment      string   `yaml:"comment"`
}

type SchedulerSettings struct {
	PollIntervalMs    int    `yaml:"poll_interval_ms"`
	ConfirmIntervalMs int    `yaml:"confirm_interval_ms"`
	SettleMs          int    `yaml:"settle_ms"`
	DailyResetHour    int    `yaml:"daily_reset_hour"`
	DispatchOrder     string `yaml:"dispatch_order"`
	WatchConfig       bool   `yaml:"watch_config"`
}

type TestModeSettings struct {
	Enabled       bool     `yaml:"enabled"`
	Directions    []string `yaml:"directions"`
	RandomAmounts []string `yaml:"random_amounts"`
}

type LoggingSettings struct {
	Dir        string `yaml:"dir"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type StatusSettings struct {
	Addr string `yaml:"addr"`
}

const (
	DispatchInsertion     = "insertion"
	DispatchChronological = "chronological"
)

// Default returns a config holding every built-in default. Decoding a file
// on top of it only overrides the keys the file sets.
func Default() Config {
	return Config{
		Mode: "LIVE",
		Browser: BrowserSettings{
			ProfileDirectory: "chrome_profile",
		},
		Site: SiteSettings{
			EntrySelector:      "div.timer-area",
			AssetSelector:      "div.assetsListWrap li.selected .assetName",
			DefaultAmount:      "1000",
			DefaultTime:        "1分",
			RetrySeconds:       10,
			WaitBetweenActions: 0.5,
		},
		Scheduler: SchedulerSettings{
			PollIntervalMs:    1,
			ConfirmIntervalMs: 100,
			SettleMs:          500,
			DailyResetHour:    7,
			DispatchOrder:     DispatchInsertion,
		},
		TestMode: TestModeSettings{
			Directions:    []string{"buy", "sell"},
			RandomAmounts: []string{"1000", "2000", "5000"},
		},
		Logging: LoggingSettings{
			Dir:        "logs",
			File:       "theoption_trader.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
		Status: StatusSettings{
			Addr: "127.0.0.1:6062",
		},
	}
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Mode == "LIVE" {
		if c.Site.LoginURL == "" {
			return errors.New("theoption_settings.login_url cannot be empty in LIVE mode")
		}
		if c.Site.TradingURL == "" {
			return errors.New("theoption_settings.trading_url cannot be empty in LIVE mode")
		}
	}
	if c.Site.RetrySeconds <= 0 {
		return fmt.Errorf("theoption_settings.retry_seconds must be positive, got %.2f", c.Site.RetrySeconds)
	}
	if c.Site.WaitBetweenActions < 0 {
		return fmt.Errorf("theoption_settings.wait_time_between_actions cannot be negative, got %.2f", c.Site.WaitBetweenActions)
	}
	if c.Site.EntrySelector == "" {
		return errors.New("theoption_settings.entry_selector cannot be empty")
	}
	if c.Site.DefaultAmount != "" {
		if err := ValidateAmount(c.Site.DefaultAmount); err != nil {
			return fmt.Errorf("theoption_settings.default_amount: %w", err)
		}
	}
	if c.Scheduler.PollIntervalMs <= 0 {
		return fmt.Errorf("scheduler_settings.poll_interval_ms must be positive, got %d", c.Scheduler.PollIntervalMs)
	}
	if c.Scheduler.ConfirmIntervalMs <= 0 {
		return fmt.Errorf("scheduler_settings.confirm_interval_ms must be positive, got %d", c.Scheduler.ConfirmIntervalMs)
	}
	if c.Scheduler.DailyResetHour < 0 || c.Scheduler.DailyResetHour > 23 {
		return fmt.Errorf("scheduler_settings.daily_reset_hour must be between 0-23, got %d", c.Scheduler.DailyResetHour)
	}
	if c.Scheduler.DispatchOrder != DispatchInsertion && c.Scheduler.DispatchOrder != DispatchChronological {
		return fmt.Errorf("scheduler_settings.dispatch_order must be '%s' or '%s', got '%s'",
			DispatchInsertion, DispatchChronological, c.Scheduler.DispatchOrder)
	}
	for _, d := range c.TestMode.Directions {
		if _, err := types.ParseDirection(d); err != nil {
			return fmt.Errorf("test_mode_settings.directions: %w", err)
		}
	}
	for _, a := range c.TestMode.RandomAmounts {
		if err := ValidateAmount(a); err != nil {
			return fmt.Errorf("test_mode_settings.random_amounts: %w", err)
		}
	}
	return nil
}

// ValidateAmount checks that s is a positive number. Thousands separators
// are tolerated; the literal text is what gets typed into the page.
func ValidateAmount(s string) error {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return fmt.Errorf("invalid amount '%s'", s)
	}
	if !d.IsPositive() {
		return fmt.Errorf("amount must be positive, got '%s'", s)
	}
	return nil
}

// DirectionSelector returns the action selector for d, or "" when unset.
func (s SiteSettings) DirectionSelector(d types.Direction) string {
	switch d {
	case types.Buy:
		return s.BuyButtonSelector
	case types.Sell:
		return s.SellButtonSelector
	default:
		return ""
	}
}

func (s SiteSettings) RetryBudget() time.Duration {
	return secondsToDuration(s.RetrySeconds)
}

func (s SiteSettings) ActionWait() time.Duration {
	return secondsToDuration(s.WaitBetweenActions)
}

func (s SchedulerSettings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

func (s SchedulerSettings) ConfirmInterval() time.Duration {
	return time.Duration(s.ConfirmIntervalMs) * time.Millisecond
}

func (s SchedulerSettings) Settle() time.Duration {
	return time.Duration(s.SettleMs) * time.Millisecond
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// LoadConfig reads path, merges it over the defaults file when one exists,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	user, err := readTree(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var missing []string
	merged := user
	if defaultsPath := findDefaults(path); defaultsPath != "" {
		defaults, derr := readTree(defaultsPath)
		if derr != nil {
			return nil, fmt.Errorf("reading defaults %s: %w", defaultsPath, derr)
		}
		missing = MissingKeys(defaults, user)
		merged = DeepMerge(defaults, user)
	} else if err != nil {
		return nil, err
	}

	c := Default()
	if merged != nil {
		if err := merged.Decode(&c); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	c.MissingKeys = missing

	if v := os.Getenv("TRADER_MODE"); v != "" {
		c.Mode = strings.ToUpper(v)
	}
	if v, ok := os.LookupEnv("TRADER_STATUS_ADDR"); ok {
		c.Status.Addr = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func findDefaults(path string) string {
	if p := os.Getenv("CONFIG_DEFAULTS"); p != "" {
		return p
	}
	dir := filepath.Dir(path)
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		p := filepath.Join(dir, "opt", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FileSource reloads the config from a fixed path.
type FileSource struct {
	Path string
}

func (f FileSource) Load(_ context.Context) (*Config, error) {
	return LoadConfig(f.Path)
}
