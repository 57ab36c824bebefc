package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"theoption-trader/internal/clock"
	"theoption-trader/internal/eod"
	"theoption-trader/internal/errlog"
	"theoption-trader/internal/events"
	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/schedule"
	"theoption-trader/internal/scheduler"
	"theoption-trader/internal/store"
	"theoption-trader/internal/testmode"
	"theoption-trader/internal/trace"
)

const (
	modeSchedule = "schedule"
	modeTest     = "test"
	modeLogs     = "logs"
	modeExit     = "exit"

	// stopGrace is how long the foreground waits for an in-flight trade
	// after the first interrupt.
	stopGrace = 30 * time.Second
)

type app struct {
	cfg        *store.Config
	configPath string
	yes        bool
	in         *bufio.Reader

	hub      *events.Hub
	journal  *errlog.Journal
	reporter events.Reporter

	session interfaces.Session
	exec    interfaces.Executor
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	mode := flag.String("mode", "", "run mode: schedule, test, logs or exit (default: interactive menu)")
	yes := flag.Bool("yes", false, "skip confirmation prompts")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer func() {
		_ = trace.Shutdown(ctx)
		_ = logger.Shutdown(ctx)
	}()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	initializeLogging(ctx, cfg)
	compressOldLogs(ctx)

	a := &app{
		cfg:        cfg,
		configPath: *configPath,
		yes:        *yes,
		in:         bufio.NewReader(os.Stdin),
		hub:        events.NewHub(),
		journal:    openErrorJournal(ctx, cfg),
	}
	defer a.journal.Close()
	a.reporter = initializeReporter(a.hub, a.journal)

	if err := a.run(ctx, strings.ToLower(*mode)); err != nil {
		logger.ErrorWithErr(ctx, "Trader stopped with error", err)
		os.Exit(1)
	}
}

// run executes mode, or the interactive menu when mode is empty.
func (a *app) run(ctx context.Context, mode string) error {
	if mode != "" {
		return a.runMode(ctx, mode)
	}
	for {
		fmt.Println()
		fmt.Println("=== theoption trader ===")
		fmt.Println("1. Run schedule")
		fmt.Println("2. Test mode")
		fmt.Println("3. Logs and summaries")
		fmt.Println("4. Exit")
		fmt.Print("Select (1-4): ")

		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			return nil
		}
		choice := map[string]string{"1": modeSchedule, "2": modeTest, "3": modeLogs, "4": modeExit}[strings.TrimSpace(line)]
		if choice == "" {
			fmt.Println("Invalid choice")
			continue
		}
		if choice == modeExit {
			return nil
		}
		if err := a.runMode(ctx, choice); err != nil {
			return err
		}
		if choice == modeSchedule {
			return nil
		}
	}
}

func (a *app) runMode(ctx context.Context, mode string) error {
	switch mode {
	case modeSchedule:
		return a.runSchedule(ctx)
	case modeTest:
		return a.runTest(ctx)
	case modeLogs:
		return showLogs(os.Stdout, errorJournalPath())
	case modeExit:
		return nil
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// ensureSession starts the browser session and the executor on first use.
func (a *app) ensureSession(ctx context.Context) error {
	if a.session != nil {
		return nil
	}
	session, err := startSession(ctx, a.cfg, a.in, a.journal)
	if err != nil {
		return fmt.Errorf("browser session: %w", err)
	}
	a.session = session
	a.exec = initializeExecutor(a.cfg, session, a.reporter)
	return nil
}

func (a *app) runSchedule(ctx context.Context) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	state := scheduler.NewState(a.cfg.Scheduler.DailyResetHour)
	loop := scheduler.NewLoop(a.cfg, state, a.exec, store.FileSource{Path: a.configPath}, clock.Real{}, a.reporter)
	loop.AfterReset = func(ctx context.Context, now time.Time) {
		if _, err := eod.SummarizeDay(now.AddDate(0, 0, -1)); err != nil {
			a.journal.Record(errlog.Trading, "daily summary failed", err)
		}
	}

	set, errs := loop.Prime(ctx)
	for _, err := range errs {
		fmt.Printf("Skipped entry: %v\n", err)
	}
	if len(set) == 0 {
		fmt.Println("No trades scheduled.")
	} else if err := schedule.Print(os.Stdout, set); err != nil {
		return err
	}
	if !a.confirm("Start the scheduler?") {
		return nil
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if a.cfg.Scheduler.WatchConfig {
		if err := store.Watch(watchCtx, a.configPath, state.RequestReload); err != nil {
			logger.Warn(ctx, "Config watch unavailable", "error", err.Error())
		}
	}

	server := startStatusServer(ctx, a.cfg, state, a.hub)

	fmt.Println("Scheduler running. Press Ctrl+C to stop.")
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	err := scheduler.NewCoordinator(loop, state, stopGrace).Run(sigCtx)
	stop()
	if err != nil {
		return err
	}

	if _, err := eod.SummarizeToday(); err != nil {
		a.journal.Record(errlog.Trading, "daily summary failed", err)
	}

	fmt.Println("Scheduling stopped. The browser stays open; press Ctrl+C again to exit.")
	waitForInterrupt(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	return nil
}

func (a *app) runTest(ctx context.Context) error {
	if !a.cfg.TestMode.Enabled {
		fmt.Println("Test mode is disabled. Set test_mode_settings.enabled in the config.")
		return nil
	}
	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	picker, err := testmode.NewPicker(a.cfg.TestMode, uint64(time.Now().UnixNano()))
	if err != nil {
		return err
	}
	runner, err := testmode.NewRunner(a.cfg, a.exec, a.session, picker, clock.Real{}, a.reporter)
	if err != nil {
		return err
	}
	return runner.Loop(ctx, a.in, os.Stdout)
}

func (a *app) confirm(question string) bool {
	if a.yes {
		return true
	}
	fmt.Printf("%s (y/n): ", question)
	line, _ := a.in.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func waitForInterrupt(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
}

// showLogs prints the error summary, the latest error entries and today's
// trade summary.
func showLogs(w io.Writer, journalPath string) error {
	summary, err := errlog.Summarize(journalPath, 5)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "=== Error summary ===")
	summary.Print(w)

	entries, err := errlog.Tail(journalPath, 50)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n=== Latest %d errors ===\n", len(entries))
	for _, e := range entries {
		fmt.Fprintln(w, e)
	}

	path, err := eod.SummarizeToday()
	switch {
	case err != nil:
		return err
	case path == "":
		fmt.Fprintln(w, "\nNo trades journaled today.")
	default:
		fmt.Fprintf(w, "\nToday's trade summary: %s\n", path)
	}
	return nil
}
