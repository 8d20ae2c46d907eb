package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
	"reservation-service/internal/pickup"
	"reservation-service/internal/reservation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	products map[int64]models.Product

	orders   []*models.Order
	items    []models.OrderItem
	failures []*models.ReconciliationFailure

	createOrderErr error
	nextOrderID    int64
}

func newFakeOrderStore(products ...models.Product) *fakeOrderStore {
	m := make(map[int64]models.Product)
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeOrderStore{products: m, nextOrderID: 100}
}

func (f *fakeOrderStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, order *models.Order) error {
	if f.createOrderErr != nil {
		return f.createOrderErr
	}
	f.nextOrderID++
	order.ID = f.nextOrderID
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrderStore) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	item.ID = int64(len(f.items) + 1)
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeOrderStore) RecordReconciliationFailure(_ context.Context, failure *models.ReconciliationFailure) error {
	f.failures = append(f.failures, failure)
	return nil
}

func newTestReconciler(store *fakeOrderStore, stock *fakeStock) (*Reconciler, *fakeEvents, reservation.HoldStore, *clock.Fake) {
	// Monday 2025-06-02: before the Wednesday 18:00 cutoff, pickup 2025-06-06.
	clk := clock.NewFake(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	holds := reservation.NewMemoryStore(clk)
	events := &fakeEvents{}
	scheduler := pickup.NewScheduler(time.Friday, time.Wednesday, 18)
	r := NewReconciler(store, stock, holds, scheduler, events, clk)
	return r, events, holds, clk
}

func baseRequest() *ReconcileRequest {
	return &ReconcileRequest{
		SessionID:     "sess-a",
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		CustomerPhone: "555-0100",
		OrderType:     models.OrderTypeReservation,
		Items: []ReconcileItemRequest{
			{ProductID: 1, ProductName: "sourdough", Quantity: 2},
		},
	}
}

func TestReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	product := models.Product{ID: 1, SKU: "SRD-1", Name: "sourdough", Price: 700}

	t.Run("creates order, decrements stock, releases hold", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, events, holds, _ := newTestReconciler(store, stock)

		_, ok, err := holds.Reserve(ctx, "sess-a", 1, "sourdough", 2, 5, 2*time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		resp, err := r.Reconcile(ctx, baseRequest())
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusPending, resp.Order.Status)
		assert.Equal(t, models.PaymentStatusReserved, resp.Order.PaymentStatus)
		assert.Equal(t, int64(1400), resp.Order.TotalAmount)
		assert.Equal(t, "2025-06-06", resp.Order.PickupDate)
		assert.Len(t, resp.Items, 1)
		assert.Equal(t, "sourdough", resp.Items[0].ProductName)

		assert.Equal(t, 3, stock.counts[1], "stock decremented by the ordered quantity")

		active, err := holds.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, active, "the session's hold is gone after reconciliation")

		require.Len(t, events.reconciled, 1)
		assert.Equal(t, resp.Order.ID, events.reconciled[0].OrderID)
	})

	t.Run("pickup code generated for reservation orders", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, _, _, _ := newTestReconciler(store, stock)

		resp, err := r.Reconcile(ctx, baseRequest())
		require.NoError(t, err)

		assert.Len(t, resp.Order.PickupCode, 6)
		for _, c := range resp.Order.PickupCode {
			assert.Contains(t, pickupCodeAlphabet, string(c))
		}
	})

	t.Run("online orders carry no pickup code and are paid", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, _, _, _ := newTestReconciler(store, stock)

		req := baseRequest()
		req.OrderType = models.OrderTypeOnline

		resp, err := r.Reconcile(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, resp.Order.PickupCode)
		assert.Equal(t, models.PaymentStatusPaid, resp.Order.PaymentStatus)
	})

	t.Run("server recomputes total from catalog prices", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, _, _, _ := newTestReconciler(store, stock)

		req := baseRequest()
		req.TotalAmount = 1 // client lies

		resp, err := r.Reconcile(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(1400), resp.Order.TotalAmount)
	})

	t.Run("fails on out-of-band stock loss even with an active hold", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, _, holds, _ := newTestReconciler(store, stock)

		_, ok, err := holds.Reserve(ctx, "sess-a", 1, "sourdough", 2, 5, 2*time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		// Admin zeroes the shelf after the hold was placed.
		stock.counts[1] = 0

		_, err = r.Reconcile(ctx, baseRequest())
		require.Error(t, err)

		var ise *models.InsufficientStockError
		require.ErrorAs(t, err, &ise)
		assert.Equal(t, int64(1), ise.ProductID)
		assert.Equal(t, 0, ise.Available)
		assert.Equal(t, 2, ise.Requested)

		assert.Empty(t, store.orders, "no partial order is written")
		assert.Empty(t, store.items)

		active, err := holds.List(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1, "the hold is left untouched on failure")
	})

	t.Run("unknown product is not-found, not capacity", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, _, _, _ := newTestReconciler(store, stock)

		req := baseRequest()
		req.Items = append(req.Items, ReconcileItemRequest{ProductID: 42, Quantity: 1})

		_, err := r.Reconcile(ctx, req)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrProductNotFound)
		_, isCapacity := models.AsInsufficientStock(err)
		assert.False(t, isCapacity)
	})

	t.Run("duplicate lines for one product are validated as a sum", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, _, _, _ := newTestReconciler(store, stock)

		req := baseRequest()
		req.Items = []ReconcileItemRequest{
			{ProductID: 1, ProductName: "sourdough", Quantity: 3},
			{ProductID: 1, ProductName: "sourdough", Quantity: 3},
		}

		_, err := r.Reconcile(ctx, req)
		require.Error(t, err)

		ise, ok := models.AsInsufficientStock(err)
		require.True(t, ok)
		assert.Equal(t, int64(1), ise.ProductID)
		assert.Equal(t, 6, ise.Requested, "quantities for the same product are summed")
		assert.Equal(t, 5, ise.Available)

		assert.Empty(t, store.orders, "no order is written")
		assert.Empty(t, store.items)
		assert.Equal(t, 5, stock.counts[1], "stock is untouched")
	})

	t.Run("duplicate lines within capacity decrement once by the sum", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, _, _, _ := newTestReconciler(store, stock)

		req := baseRequest()
		req.Items = []ReconcileItemRequest{
			{ProductID: 1, ProductName: "sourdough", Quantity: 2},
			{ProductID: 1, ProductName: "sourdough", Quantity: 2},
		}

		resp, err := r.Reconcile(ctx, req)
		require.NoError(t, err)
		assert.Len(t, resp.Items, 2, "each request line keeps its own order item")
		assert.Equal(t, int64(2800), resp.Order.TotalAmount)
		assert.Equal(t, 1, stock.counts[1])
		assert.Empty(t, store.failures)
	})

	t.Run("clamped decrement shortfall is surfaced, not swallowed", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, _, _, _ := newTestReconciler(store, stock)

		// Stock drops between the availability check and the decrement, so
		// the clamp removes fewer units than the order promises.
		stock.beforeDecrement = func() { stock.counts[1] = 1 }

		resp, err := r.Reconcile(ctx, baseRequest())
		require.NoError(t, err, "the customer-facing commitment stands")

		require.Len(t, store.failures, 1)
		assert.Equal(t, resp.Order.ID, store.failures[0].OrderID)
		assert.Equal(t, int64(1), store.failures[0].ProductID)
		assert.Equal(t, 2, store.failures[0].Quantity)
		assert.Contains(t, store.failures[0].Detail, "removed 1 of 2")
	})

	t.Run("decrement failure after order write is surfaced, not swallowed", func(t *testing.T) {
		store := newFakeOrderStore(product)
		stock := newFakeStock(map[int64]int{1: 5})
		r, events, _, _ := newTestReconciler(store, stock)

		stock.decrementErr = errors.New("db connection lost")

		resp, err := r.Reconcile(ctx, baseRequest())
		require.NoError(t, err, "the customer-facing commitment stands")
		require.NotNil(t, resp.Order)

		require.Len(t, store.failures, 1)
		assert.Equal(t, resp.Order.ID, store.failures[0].OrderID)
		assert.Equal(t, int64(1), store.failures[0].ProductID)
		assert.Equal(t, 2, store.failures[0].Quantity)
		assert.Contains(t, store.failures[0].Detail, "db connection lost")

		require.Len(t, events.reconciled, 1)
	})
}

func TestNewPickupCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewPickupCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.False(t, strings.ContainsAny(code, "0O1IL"), "confusable characters excluded: %s", code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190, "codes should rarely collide")
}
