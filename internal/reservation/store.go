package reservation

import (
	"context"
	"time"

	"reservation-service/internal/models"
)

// HoldStore is the injected store abstraction for active holds. Implementations
// must make Reserve an atomic decision per product: two concurrent calls for
// the last unit must not both succeed.
type HoldStore interface {
	// Reserve upserts the hold for (sessionID, productID) if the requested
	// quantity fits within stock minus other sessions' active holds. On
	// success it returns the availability remaining after the hold; on
	// capacity failure it returns the availability computed at decision time.
	Reserve(ctx context.Context, sessionID string, productID int64, productName string, quantity int, stock int, ttl time.Duration) (available int, ok bool, err error)

	// ReleaseSession deletes every hold owned by the session and returns the
	// number removed. Releasing a session with no holds returns zero.
	ReleaseSession(ctx context.Context, sessionID string) (int, error)

	// ReleaseItem deletes the session's hold on a single product, if any.
	ReleaseItem(ctx context.Context, sessionID string, productID int64) error

	// List returns all active (unexpired) holds.
	List(ctx context.Context) ([]models.Hold, error)

	// Sweep removes expired holds and returns the number removed. Safe to
	// call concurrently with Reserve and ReleaseSession.
	Sweep(ctx context.Context) (int, error)
}
