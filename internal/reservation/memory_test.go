package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"reservation-service/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = 2 * time.Minute

func newTestStore() (*MemoryStore, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	return NewMemoryStore(clk), clk
}

func TestMemoryStore_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("holds stock and reports post-hold availability", func(t *testing.T) {
		s, _ := newTestStore()

		avail, ok, err := s.Reserve(ctx, "sess-a", 1, "sourdough", 2, 5, testTTL)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, avail)
	})

	t.Run("rejects when other sessions hold the stock", func(t *testing.T) {
		s, _ := newTestStore()

		_, ok, err := s.Reserve(ctx, "sess-a", 1, "sourdough", 1, 1, testTTL)
		require.NoError(t, err)
		require.True(t, ok)

		avail, ok, err := s.Reserve(ctx, "sess-b", 1, "sourdough", 1, 1, testTTL)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, avail)
	})

	t.Run("release frees the last unit for the next session", func(t *testing.T) {
		s, _ := newTestStore()

		_, ok, err := s.Reserve(ctx, "sess-a", 1, "sourdough", 1, 1, testTTL)
		require.NoError(t, err)
		require.True(t, ok)

		removed, err := s.ReleaseSession(ctx, "sess-a")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		avail, ok, err := s.Reserve(ctx, "sess-b", 1, "sourdough", 1, 1, testTTL)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0, avail)
	})

	t.Run("session can re-affirm up to persisted count", func(t *testing.T) {
		s, _ := newTestStore()

		_, ok, err := s.Reserve(ctx, "sess-a", 1, "sourdough", 2, 5, testTTL)
		require.NoError(t, err)
		require.True(t, ok)

		// Own hold is excluded, so 5 units are still reachable.
		avail, ok, err := s.Reserve(ctx, "sess-a", 1, "sourdough", 5, 5, testTTL)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0, avail)

		holds, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, holds, 1, "upsert must not create a second hold")
		assert.Equal(t, 5, holds[0].Quantity)
	})

	t.Run("upsert refreshes expiry", func(t *testing.T) {
		s, clk := newTestStore()

		_, _, err := s.Reserve(ctx, "sess-a", 1, "sourdough", 1, 5, testTTL)
		require.NoError(t, err)

		clk.Advance(time.Minute)
		_, _, err = s.Reserve(ctx, "sess-a", 1, "sourdough", 1, 5, testTTL)
		require.NoError(t, err)

		holds, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, holds, 1)
		assert.Equal(t, clk.Now().Add(testTTL), holds[0].ExpiresAt)
	})
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore()

	_, ok, err := s.Reserve(ctx, "sess-a", 1, "sourdough", 1, 1, testTTL)
	require.NoError(t, err)
	require.True(t, ok)

	clk.Advance(testTTL + time.Second)

	holds, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, holds, "expired hold must not be listed")

	// Capacity is available to other sessions once the TTL has passed.
	avail, ok, err := s.Reserve(ctx, "sess-b", 1, "sourdough", 1, 1, testTTL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, avail)

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "sweep removes the expired hold")
}

func TestMemoryStore_ReleaseIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, _, err := s.Reserve(ctx, "sess-a", 1, "sourdough", 1, 5, testTTL)
	require.NoError(t, err)
	_, _, err = s.Reserve(ctx, "sess-a", 2, "rye", 1, 5, testTTL)
	require.NoError(t, err)

	removed, err := s.ReleaseSession(ctx, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = s.ReleaseSession(ctx, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestMemoryStore_NoOversell(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	const (
		stock    = 10
		sessions = 50
	)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sessionID := "sess-" + string(rune('a'+n%26)) + string(rune('a'+n/26))
			_, ok, err := s.Reserve(ctx, sessionID, 1, "sourdough", 1, stock, testTTL)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, stock, succeeded, "exactly one hold per unit of stock")

	holds, err := s.List(ctx)
	require.NoError(t, err)
	total := 0
	for _, h := range holds {
		total += h.Quantity
	}
	assert.LessOrEqual(t, total, stock, "held quantity must never exceed persisted stock")
}

func TestMemoryStore_SweepConcurrentWithReserve(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			sessionID := "sess-" + string(rune('a'+n))
			_, _, _ = s.Reserve(ctx, sessionID, int64(n%3), "loaf", 1, 100, testTTL)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Sweep(ctx)
		}()
	}
	wg.Wait()
}
