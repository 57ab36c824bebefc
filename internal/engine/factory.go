package engine

import (
	"theoption-trader/internal/clock"
	"theoption-trader/internal/events"
	"theoption-trader/internal/interfaces"
	"theoption-trader/internal/store"
)

// New builds the executor for cfg. The executor takes ownership of the
// browser handle; nothing else may drive it while the executor is in use.
func New(cfg *store.Config, browser interfaces.Browser, clk clock.Clock, reporter events.Reporter) *Executor {
	return newExecutor(cfg.Site, TimingFrom(cfg.Scheduler), browser, clk, reporter)
}

var _ interfaces.Executor = (*Executor)(nil)
