package scheduler

import "time"

// DailyReset fires once per calendar day, on the first check at or after
// the reset hour.
type DailyReset struct {
	hour int
	last time.Time
}

// Due reports whether a reset should run at now.
func (r *DailyReset) Due(now time.Time) bool {
	if now.Hour() < r.hour {
		return false
	}
	return r.last.IsZero() || !sameDate(r.last, now)
}

// Mark records a successful reset at now.
func (r *DailyReset) Mark(now time.Time) {
	y, m, d := now.Date()
	r.last = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// LastResetDate returns the date of the last successful reset.
func (r *DailyReset) LastResetDate() (time.Time, bool) {
	return r.last, !r.last.IsZero()
}

func sameDate(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
