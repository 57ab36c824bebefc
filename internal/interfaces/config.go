package interfaces

import (
	"context"

	"theoption-trader/internal/store"
)

// ConfigSource reloads configuration on demand.
type ConfigSource interface {
	Load(ctx context.Context) (*store.Config, error)
}
