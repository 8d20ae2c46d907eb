package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_hold.lua
var reserveHoldScript string

//go:embed scripts/release_session.lua
var releaseSessionScript string

//go:embed scripts/decrement_stock.lua
var decrementStockScript string

// Key layout:
//
//	hold:{productID}:{sessionID} -> "qty|expiresUnix|name"  (native TTL)
//	holds:product:{productID}    -> set of session ids
//	holds:session:{sessionID}    -> set of product ids
//	stock:{productID}            -> cached persisted count
type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	decrScript    *redis.Script
}

// HoldRecord is a hold as stored in Redis.
type HoldRecord struct {
	SessionID   string
	ProductID   int64
	ProductName string
	Quantity    int
	ExpiresAt   time.Time
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveHoldScript),
		releaseScript: redis.NewScript(releaseSessionScript),
		decrScript:    redis.NewScript(decrementStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func holdKey(productID int64, sessionID string) string {
	return fmt.Sprintf("hold:%d:%s", productID, sessionID)
}

func productIndexKey(productID int64) string {
	return fmt.Sprintf("holds:product:%d", productID)
}

func sessionIndexKey(sessionID string) string {
	return fmt.Sprintf("holds:session:%s", sessionID)
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// ReserveHold atomically upserts a hold for (sessionID, productID) if the
// quantity fits within stock minus other sessions' holds. Returns the
// availability after the decision and whether the hold was placed.
func (c *Client) ReserveHold(ctx context.Context, sessionID string, productID int64, productName string, quantity int, stock int, ttl time.Duration, expiresAt time.Time) (int, bool, error) {
	keys := []string{
		productIndexKey(productID),
		holdKey(productID, sessionID),
		sessionIndexKey(sessionID),
	}
	args := []interface{}{
		sessionID,
		quantity,
		int(ttl.Seconds()),
		stock,
		productName,
		expiresAt.Unix(),
		fmt.Sprintf("hold:%d:", productID),
		productID,
	}

	result, err := c.reserveScript.Run(ctx, c.rdb, keys, args...).Result()
	if err != nil {
		return 0, false, fmt.Errorf("reserve hold script failed: %w", err)
	}

	vals, ok := result.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, false, fmt.Errorf("unexpected script result: %v", result)
	}

	success, _ := vals[0].(int64)
	available, _ := vals[1].(int64)
	return int(available), success == 1, nil
}

// ReleaseSession deletes every hold owned by the session, returning the count.
func (c *Client) ReleaseSession(ctx context.Context, sessionID string) (int, error) {
	result, err := c.releaseScript.Run(ctx, c.rdb, []string{sessionIndexKey(sessionID)}, sessionID).Result()
	if err != nil {
		return 0, fmt.Errorf("release session script failed: %w", err)
	}

	removed, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return int(removed), nil
}

// ReleaseHold deletes the session's hold on a single product.
func (c *Client) ReleaseHold(ctx context.Context, sessionID string, productID int64) error {
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, holdKey(productID, sessionID))
	pipe.SRem(ctx, productIndexKey(productID), sessionID)
	pipe.SRem(ctx, sessionIndexKey(sessionID), productID)
	_, err := pipe.Exec(ctx)
	return err
}

// ListHolds scans all live hold keys.
func (c *Client) ListHolds(ctx context.Context) ([]HoldRecord, error) {
	var (
		holds  []HoldRecord
		cursor uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, "hold:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan holds: %w", err)
		}
		for _, key := range keys {
			rec, err := c.getHold(ctx, key)
			if err != nil {
				continue
			}
			holds = append(holds, rec)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return holds, nil
}

func (c *Client) getHold(ctx context.Context, key string) (HoldRecord, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return HoldRecord{}, err
	}

	// key = hold:{productID}:{sessionID}
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return HoldRecord{}, fmt.Errorf("malformed hold key: %s", key)
	}
	productID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return HoldRecord{}, fmt.Errorf("malformed hold key: %s", key)
	}

	// value = qty|expiresUnix|name
	fields := strings.SplitN(val, "|", 3)
	if len(fields) != 3 {
		return HoldRecord{}, fmt.Errorf("malformed hold value: %s", val)
	}
	qty, _ := strconv.Atoi(fields[0])
	expires, _ := strconv.ParseInt(fields[1], 10, 64)

	return HoldRecord{
		SessionID:   parts[2],
		ProductID:   productID,
		ProductName: fields[2],
		Quantity:    qty,
		ExpiresAt:   time.Unix(expires, 0),
	}, nil
}

// SweepHolds prunes index members whose hold keys have expired natively.
// Returns the number of dangling entries removed.
func (c *Client) SweepHolds(ctx context.Context) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, "holds:product:*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan hold indexes: %w", err)
		}
		for _, indexKey := range keys {
			productID := strings.TrimPrefix(indexKey, "holds:product:")
			members, err := c.rdb.SMembers(ctx, indexKey).Result()
			if err != nil {
				continue
			}
			for _, sid := range members {
				exists, err := c.rdb.Exists(ctx, fmt.Sprintf("hold:%s:%s", productID, sid)).Result()
				if err != nil || exists > 0 {
					continue
				}
				if err := c.rdb.SRem(ctx, indexKey, sid).Err(); err == nil {
					removed++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

// GetStock reads the cached persisted count. The second return reports
// whether a cached value exists.
func (c *Client) GetStock(ctx context.Context, productID int64) (int, bool, error) {
	val, err := c.rdb.Get(ctx, stockKey(productID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("malformed stock value for product %d: %q", productID, val)
	}
	return count, true, nil
}

// SetStock writes the cached persisted count.
func (c *Client) SetStock(ctx context.Context, productID int64, count int) error {
	return c.rdb.Set(ctx, stockKey(productID), count, 0).Err()
}

// DecrementStock atomically subtracts from the cached count, clamped at zero.
// Returns the new cached count, or -1 when no cached count exists.
func (c *Client) DecrementStock(ctx context.Context, productID int64, amount int) (int, error) {
	result, err := c.decrScript.Run(ctx, c.rdb, []string{stockKey(productID)}, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("decrement stock script failed: %w", err)
	}
	remaining, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return int(remaining), nil
}
