package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"theoption-trader/internal/browser"
	"theoption-trader/internal/browser/sim"
	"theoption-trader/internal/clock"
	"theoption-trader/internal/engine"
	"theoption-trader/internal/engine/engineobs"
	"theoption-trader/internal/eod"
	"theoption-trader/internal/eod/eodobs"
	"theoption-trader/internal/errlog"
	"theoption-trader/internal/events"
	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/metrics"
	"theoption-trader/internal/preflight"
	"theoption-trader/internal/scheduler"
	"theoption-trader/internal/status"
	"theoption-trader/internal/store"
	"theoption-trader/internal/trace"
	"theoption-trader/internal/tradelog"

	"github.com/joho/godotenv"
)

const preflightTimeout = 10 * time.Second

// initializeSystem loads .env and starts console logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	initializeEOD()
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	if len(cfg.MissingKeys) > 0 {
		logger.Warn(ctx, "Config is missing keys, defaults are used", "keys", cfg.MissingKeys)
	}
	logger.Info(ctx, "Config loaded", "path", path, "mode", cfg.Mode, "trades", len(cfg.Trading.Trades))
	return cfg, nil
}

// initializeLogging adds the rotating file sink once the log dir is known.
func initializeLogging(ctx context.Context, cfg *store.Config) {
	if cfg.Logging.Dir != "" {
		tradelog.SetDir(cfg.Logging.Dir)
	}
	lc := logger.LoadConfigFromEnv()
	lc.Dir = tradelog.LogDir()
	if cfg.Logging.File != "" {
		lc.File = cfg.Logging.File
	}
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = cfg.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxBackups > 0 {
		lc.MaxBackups = cfg.Logging.MaxBackups
	}
	if err := logger.InitWithConfig(lc); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file, logging to console only: %v\n", err)
		return
	}
	logger.Debug(ctx, "File logging enabled", "dir", lc.Dir, "file", lc.File)
}

// defaultRetentionDays is how many days of trade journals stay uncompressed.
const defaultRetentionDays = 7

// compressOldLogs gzips trade journals older than the retention window.
func compressOldLogs(ctx context.Context) {
	n := retentionDays(ctx)
	op := logger.StartOperation(ctx, "tradelog.compress_older", "retention_days", n)
	if err := tradelog.CompressOlder(n); err != nil {
		op.EndWithError(err)
		return
	}
	op.End()
}

// retentionDays reads TRADER_LOG_RETENTION_DAYS. An unset or invalid value
// falls back to the default.
func retentionDays(ctx context.Context) int {
	v := strings.TrimSpace(os.Getenv("TRADER_LOG_RETENTION_DAYS"))
	if v == "" {
		return defaultRetentionDays
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Warn(ctx, "Invalid TRADER_LOG_RETENTION_DAYS, using default",
			"value", v,
			"default", defaultRetentionDays,
		)
		return defaultRetentionDays
	}
	return n
}

func openErrorJournal(ctx context.Context, cfg *store.Config) *errlog.Journal {
	j, err := errlog.Open(errorJournalPath(), cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	if err != nil {
		logger.Warn(ctx, "Error journal unavailable", "error", err.Error())
		return nil
	}
	return j
}

func errorJournalPath() string {
	return filepath.Join(tradelog.LogDir(), errlog.DefaultFile)
}

// initializeReporter fans events out to the log, the live hub, metrics and
// both journals.
func initializeReporter(hub *events.Hub, journal *errlog.Journal) events.Reporter {
	rs := []events.Reporter{
		events.LogReporter{},
		hub,
		metrics.Reporter{},
		tradelog.Reporter{},
	}
	if journal != nil {
		rs = append(rs, errlog.Reporter{Journal: journal})
	}
	return events.Multi(rs...)
}

// startSession opens the trading page. LIVE drives Chrome and waits for
// the operator to log in; DRY_RUN uses the simulated page.
func startSession(ctx context.Context, cfg *store.Config, in *bufio.Reader, journal *errlog.Journal) (interfaces.Session, error) {
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - trades go to a simulated page")
		return sim.New(sim.LayoutFrom(cfg.Site), clock.Real{}, sim.Setup{
			OneClick: cfg.Site.UseOneClickTrading,
		}), nil
	}

	if _, err := preflight.Probe(ctx, cfg.Site.LoginURL, preflightTimeout); err != nil {
		logger.Warn(ctx, "Login page did not answer cleanly, starting the browser anyway", "error", err.Error())
		journal.Record(errlog.Browser, "preflight failed", err)
	}

	session, err := browser.Launch(ctx, browser.Options{
		ProfileDir: cfg.Browser.ProfileDirectory,
		Headless:   cfg.Browser.Headless,
		ExecPath:   cfg.Browser.ChromePath,
	})
	if err != nil {
		journal.Record(errlog.Driver, "chrome launch failed", err)
		return nil, err
	}

	if err := session.Navigate(ctx, cfg.Site.LoginURL); err != nil {
		journal.Record(errlog.Browser, "login page navigation failed", err)
		return nil, err
	}
	fmt.Println("Log in to the site in the browser window, then press Enter.")
	_, _ = in.ReadString('\n')

	if err := session.Navigate(ctx, cfg.Site.TradingURL); err != nil {
		journal.Record(errlog.Browser, "trading page navigation failed", err)
		return nil, err
	}
	if err := session.ResetStorage(ctx); err != nil {
		logger.Warn(ctx, "Could not clear browser storage", "error", err.Error())
		journal.Record(errlog.Browser, "storage reset failed", err)
	}
	logger.Info(ctx, "Trading page ready", "url", cfg.Site.TradingURL)
	return session, nil
}

// initializeExecutor builds the executor with observability
func initializeExecutor(cfg *store.Config, session interfaces.Session, reporter events.Reporter) interfaces.Executor {
	exec := engine.New(cfg, session, clock.Real{}, reporter)
	return engineobs.Wrap(exec)
}

// initializeEOD wraps the default summarizer with observability
func initializeEOD() {
	eod.SetDefaultSummarizer(eodobs.Wrap(eod.NewSummarizer()))
}

func startStatusServer(ctx context.Context, cfg *store.Config, state *scheduler.State, hub *events.Hub) *http.Server {
	return status.Start(ctx, cfg.Status.Addr, status.NewServer(state, hub, cfg.Mode))
}
