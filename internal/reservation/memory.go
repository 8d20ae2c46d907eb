package reservation

import (
	"context"
	"sync"
	"time"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
)

type holdKey struct {
	sessionID string
	productID int64
}

// MemoryStore keeps holds in process memory. The availability check and the
// hold upsert run under a mutex keyed by product, so concurrent Reserve calls
// for the same product serialize while different products proceed in parallel.
type MemoryStore struct {
	clk clock.Clock

	mu    sync.RWMutex
	holds map[holdKey]models.Hold

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory hold store.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clk:   clk,
		holds: make(map[holdKey]models.Hold),
		locks: make(map[int64]*sync.Mutex),
	}
}

func (s *MemoryStore) productLock(productID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[productID] = l
	}
	return l
}

// Reserve implements HoldStore.
func (s *MemoryStore) Reserve(_ context.Context, sessionID string, productID int64, productName string, quantity int, stock int, ttl time.Duration) (int, bool, error) {
	l := s.productLock(productID)
	l.Lock()
	defer l.Unlock()

	now := s.clk.Now()

	s.mu.RLock()
	active := make([]models.Hold, 0, len(s.holds))
	for _, h := range s.holds {
		active = append(active, h)
	}
	s.mu.RUnlock()

	available := Available(stock, active, sessionID, productID, now)
	if quantity > available {
		return available, false, nil
	}

	s.mu.Lock()
	s.holds[holdKey{sessionID, productID}] = models.Hold{
		SessionID:   sessionID,
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		ExpiresAt:   now.Add(ttl),
	}
	s.mu.Unlock()

	return available - quantity, true, nil
}

// ReleaseSession implements HoldStore.
func (s *MemoryStore) ReleaseSession(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.holds {
		if k.sessionID == sessionID {
			delete(s.holds, k)
			removed++
		}
	}
	return removed, nil
}

// ReleaseItem implements HoldStore.
func (s *MemoryStore) ReleaseItem(_ context.Context, sessionID string, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holds, holdKey{sessionID, productID})
	return nil
}

// List implements HoldStore.
func (s *MemoryStore) List(_ context.Context) ([]models.Hold, error) {
	now := s.clk.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	holds := make([]models.Hold, 0, len(s.holds))
	for _, h := range s.holds {
		if h.Expired(now) {
			continue
		}
		holds = append(holds, h)
	}
	return holds, nil
}

// Sweep implements HoldStore.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, h := range s.holds {
		if h.Expired(now) {
			delete(s.holds, k)
			removed++
		}
	}
	return removed, nil
}
