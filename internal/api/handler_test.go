package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"reservation-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderLookup struct {
	orders   map[int64]*models.Order
	items    map[int64][]models.OrderItem
	failures []models.ReconciliationFailure
}

func (f *fakeOrderLookup) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return nil, fmt.Errorf("order not found: %d", id)
}

func (f *fakeOrderLookup) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrderLookup) ListReconciliationFailures(_ context.Context) ([]models.ReconciliationFailure, error) {
	return f.failures, nil
}

func newTestRouter(lookup *fakeOrderLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(nil, nil, lookup).SetupRoutes(router)
	return router
}

func TestListReconciliationFailuresRoute(t *testing.T) {
	lookup := &fakeOrderLookup{failures: []models.ReconciliationFailure{
		{ID: 1, OrderID: 101, ProductID: 1, Quantity: 2, Detail: "stock shortfall: removed 1 of 2 units"},
	}}
	router := newTestRouter(lookup)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation-failures", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Failures []models.ReconciliationFailure `json:"failures"`
		Count    int                            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, int64(101), body.Failures[0].OrderID)
	assert.Contains(t, body.Failures[0].Detail, "removed 1 of 2")
}

func TestGetOrderRoute(t *testing.T) {
	lookup := &fakeOrderLookup{
		orders: map[int64]*models.Order{
			7: {ID: 7, CustomerName: "Ada Lovelace", PickupCode: "ABC234"},
		},
		items: map[int64][]models.OrderItem{
			7: {{ID: 1, OrderID: 7, ProductID: 1, ProductName: "sourdough", Quantity: 2}},
		},
	}
	router := newTestRouter(lookup)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/7", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/8", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/xyz", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
