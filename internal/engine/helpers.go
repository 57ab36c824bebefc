package engine

import (
	"context"
	"time"
)

// capped limits d to the time left before the deadline.
func (r *run) capped(d time.Duration) time.Duration {
	left := r.deadline.Sub(r.exec.clock.Now())
	if left < 0 {
		left = 0
	}
	if d > left {
		return left
	}
	return d
}

// pause sleeps for d, cut short at the deadline.
func (r *run) pause(ctx context.Context, d time.Duration) {
	if d = r.capped(d); d > 0 {
		_ = r.exec.clock.Sleep(ctx, d)
	}
}

// actionWait returns a fraction of the configured wait between actions.
func (r *run) actionWait(fraction float64) time.Duration {
	return time.Duration(float64(r.site.ActionWait()) * fraction)
}
