package interfaces

import (
	"context"

	"theoption-trader/internal/store"
	"theoption-trader/internal/types"
)

// Executor runs one trade request against the browser session. It always
// returns an outcome; a non-nil error marks the run as failed or skipped.
type Executor interface {
	Execute(ctx context.Context, req types.TradeRequest) (types.ExecutionOutcome, error)
	// Reconfigure swaps site settings after a config reload.
	Reconfigure(site store.SiteSettings)
}
