package reservation

import (
	"context"
	"time"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
	"reservation-service/internal/redisclient"
)

// RedisStore backs holds with Redis so multiple instances share one view and
// holds survive process restarts. Expiry rides on native key TTLs; the
// reserve decision runs inside a Lua script, which Redis executes atomically.
type RedisStore struct {
	client *redisclient.Client
	clk    clock.Clock
}

// NewRedisStore creates a Redis-backed hold store.
func NewRedisStore(client *redisclient.Client, clk clock.Clock) *RedisStore {
	return &RedisStore{client: client, clk: clk}
}

// Reserve implements HoldStore.
func (s *RedisStore) Reserve(ctx context.Context, sessionID string, productID int64, productName string, quantity int, stock int, ttl time.Duration) (int, bool, error) {
	expiresAt := s.clk.Now().Add(ttl)
	return s.client.ReserveHold(ctx, sessionID, productID, productName, quantity, stock, ttl, expiresAt)
}

// ReleaseSession implements HoldStore.
func (s *RedisStore) ReleaseSession(ctx context.Context, sessionID string) (int, error) {
	return s.client.ReleaseSession(ctx, sessionID)
}

// ReleaseItem implements HoldStore.
func (s *RedisStore) ReleaseItem(ctx context.Context, sessionID string, productID int64) error {
	return s.client.ReleaseHold(ctx, sessionID, productID)
}

// List implements HoldStore.
func (s *RedisStore) List(ctx context.Context) ([]models.Hold, error) {
	records, err := s.client.ListHolds(ctx)
	if err != nil {
		return nil, err
	}

	holds := make([]models.Hold, 0, len(records))
	for _, r := range records {
		holds = append(holds, models.Hold{
			SessionID:   r.SessionID,
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			ExpiresAt:   r.ExpiresAt,
		})
	}
	return holds, nil
}

// Sweep implements HoldStore. Redis expires hold keys natively, so the sweep
// only prunes dangling index members.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	return s.client.SweepHolds(ctx)
}
