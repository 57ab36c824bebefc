package scheduler

import (
	"context"
	"time"

	"theoption-trader/internal/logger"
)

// Coordinator runs the loop on its own goroutine and turns an interrupt
// into a cooperative stop. It never touches the browser session.
type Coordinator struct {
	loop  *Loop
	state *State
	grace time.Duration
}

// NewCoordinator returns a coordinator that waits up to grace for an
// in-flight trade after a stop request.
func NewCoordinator(loop *Loop, state *State, grace time.Duration) *Coordinator {
	return &Coordinator{loop: loop, state: state, grace: grace}
}

// Run blocks until ctx is done or the loop exits. On ctx cancellation the
// loop is stopped between descriptors; if it is still busy after the
// grace period Run returns and the loop finishes on its own.
func (c *Coordinator) Run(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.loop.Run(loopCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "Stop requested, waiting for the current trade to finish")
	c.state.Stop()
	cancel()

	t := time.NewTimer(c.grace)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		logger.Warn(ctx, "Scheduler still busy after grace period, leaving it to finish", "grace", c.grace.String())
		return nil
	}
}
