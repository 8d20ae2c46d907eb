package service

import (
	"context"
	"errors"
	"fmt"

	"reservation-service/internal/models"
	"reservation-service/internal/redisclient"
	"reservation-service/internal/store"
	"reservation-service/internal/util"

	"go.uber.org/zap"
)

// StockClient adapts the persisted stock store: Redis-cached reads with the
// database as the authority, and clamped atomic decrements.
type StockClient struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewStockClient creates a new stock client
func NewStockClient(store *store.Store, redis *redisclient.Client) *StockClient {
	return &StockClient{
		store:  store,
		redis:  redis,
		logger: util.NamedLogger("stock"),
	}
}

// GetStock returns the persisted available-to-promise count (fast path via Redis)
func (sc *StockClient) GetStock(ctx context.Context, productID int64) (int, error) {
	ctx, span := util.StartSpan(ctx, "StockClient.GetStock")
	defer span.End()

	if sc.redis != nil {
		count, found, err := sc.redis.GetStock(ctx, productID)
		if err == nil && found {
			return count, nil
		}
		if err != nil {
			sc.logger.Warn("Redis stock read failed, falling back to DB",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	count, err := sc.store.GetStockCount(ctx, productID)
	if err != nil {
		return 0, err
	}

	if sc.redis != nil {
		if err := sc.redis.SetStock(ctx, productID, count); err != nil {
			sc.logger.Warn("Failed to backfill stock cache",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	return count, nil
}

// DecrementStock subtracts from the persisted count, clamped at zero,
// returning the remaining count and the units actually removed. The database
// write is authoritative; the cache follows by the same clamped decrement so
// concurrent cache readers never see a read-modify-write gap.
func (sc *StockClient) DecrementStock(ctx context.Context, productID int64, amount int) (int, int, error) {
	ctx, span := util.StartSpan(ctx, "StockClient.DecrementStock")
	defer span.End()

	remaining, removed, err := sc.store.DecrementStock(ctx, productID, amount)
	if err != nil {
		return 0, 0, err
	}

	if sc.redis != nil {
		cached, cacheErr := sc.redis.DecrementStock(ctx, productID, removed)
		if cacheErr != nil || cached != remaining {
			// Cache miss or drift: overwrite with the authoritative count.
			if err := sc.redis.SetStock(ctx, productID, remaining); err != nil {
				sc.logger.Error("Failed to sync stock cache after decrement",
					zap.Int64("product_id", productID),
					zap.Error(err))
			}
		}
	}

	return remaining, removed, nil
}

// SyncStockToRedis warms the cache from the database on startup
func (sc *StockClient) SyncStockToRedis(ctx context.Context) error {
	if sc.redis == nil {
		return nil
	}

	sc.logger.Info("Starting stock sync to Redis")

	products, err := sc.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	for _, product := range products {
		inv, err := sc.store.GetInventory(ctx, product.ID)
		if err != nil {
			if !errors.Is(err, models.ErrProductNotFound) {
				sc.logger.Error("Failed to get inventory",
					zap.Int64("product_id", product.ID),
					zap.Error(err))
			}
			continue
		}

		if err := sc.redis.SetStock(ctx, product.ID, inv.Count); err != nil {
			sc.logger.Error("Failed to warm stock cache",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
		}
	}

	sc.logger.Info("Stock sync completed", zap.Int("count", len(products)))
	return nil
}
