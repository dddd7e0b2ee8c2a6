// Package aggregates supplies read-only snapshots of pre-aggregated claims
// data and reshapes them into the chart slices the insight rules consume.
package aggregates

import (
	"context"

	"github.com/openmedicaid/claimlens/internal/models"
)

// Store supplies one immutable aggregate snapshot per call.
type Store interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
}

// Closer is implemented by stores that hold connections.
type Closer interface {
	Close()
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context) (*models.Snapshot, error)

// Snapshot calls f(ctx).
func (f StoreFunc) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	return f(ctx)
}
