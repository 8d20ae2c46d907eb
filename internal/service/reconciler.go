package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"reservation-service/internal/clock"
	"reservation-service/internal/models"
	"reservation-service/internal/pickup"
	"reservation-service/internal/reservation"
	"reservation-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockProvider is the persisted stock store boundary used by reconciliation.
// DecrementStock reports both the remaining count and the units actually
// removed, so a clamped shortfall is visible to the caller.
type StockProvider interface {
	StockReader
	DecrementStock(ctx context.Context, productID int64, amount int) (remaining, removed int, err error)
}

// OrderStore persists reconciled orders and their operator-path failures.
type OrderStore interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	RecordReconciliationFailure(ctx context.Context, f *models.ReconciliationFailure) error
}

// OrderEventSink publishes the reconciliation event, fire-and-forget.
type OrderEventSink interface {
	PublishOrderReconciled(ctx context.Context, event *models.OrderReconciledEvent) error
}

// Reconciler converts a shopper's reservation intent into a durable order
// plus a real stock decrement, releasing the session's holds on the way out.
type Reconciler struct {
	orders    OrderStore
	stock     StockProvider
	holds     reservation.HoldStore
	scheduler *pickup.Scheduler
	events    OrderEventSink
	clk       clock.Clock
	logger    *zap.Logger
}

// NewReconciler creates a new order reconciler
func NewReconciler(
	orders OrderStore,
	stock StockProvider,
	holds reservation.HoldStore,
	scheduler *pickup.Scheduler,
	events OrderEventSink,
	clk clock.Clock,
) *Reconciler {
	return &Reconciler{
		orders:    orders,
		stock:     stock,
		holds:     holds,
		scheduler: scheduler,
		events:    events,
		clk:       clk,
		logger:    util.NamedLogger("reconciler"),
	}
}

// ReconcileItemRequest is one line item of a checkout
type ReconcileItemRequest struct {
	ProductID   int64  `json:"product_id" binding:"required"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// ReconcileRequest carries the shopper's checkout intent
type ReconcileRequest struct {
	SessionID     string                 `json:"session_id" binding:"required"`
	CustomerName  string                 `json:"customer_name" binding:"required"`
	CustomerEmail string                 `json:"customer_email" binding:"required,email"`
	CustomerPhone string                 `json:"customer_phone"`
	OrderType     string                 `json:"order_type" binding:"required,oneof=reservation online"`
	Items         []ReconcileItemRequest `json:"items" binding:"required,min=1"`
	TotalAmount   int64                  `json:"total_amount"`
}

// ReconcileResponse returns the created order with its line items
type ReconcileResponse struct {
	Order *models.Order      `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// Reconcile re-validates the request against persisted stock, writes the
// order, decrements stock clamped at zero, and deletes the caller's holds.
// Quantities are summed per product first, so duplicate lines for the same
// product are checked and decremented as one total. A hold is a prediction,
// not a guarantee: stock moved out-of-band fails the request here even while
// the hold still shows as active, and no partial order is written.
func (r *Reconciler) Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileResponse, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	products, err := r.lookupProducts(ctx, req.Items)
	if err != nil {
		util.ReconcileFailedTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	totals := aggregateQuantities(req.Items)
	for _, tot := range totals {
		available, err := r.stock.GetStock(ctx, tot.productID)
		if err != nil {
			if errors.Is(err, models.ErrProductNotFound) {
				util.ReconcileFailedTotal.WithLabelValues("not_found").Inc()
				return nil, fmt.Errorf("product %d: %w", tot.productID, models.ErrProductNotFound)
			}
			util.ReconcileFailedTotal.WithLabelValues("stock_error").Inc()
			return nil, fmt.Errorf("failed to read stock for product %d: %w", tot.productID, err)
		}
		if available < tot.quantity {
			util.ReconcileFailedTotal.WithLabelValues("capacity").Inc()
			return nil, &models.InsufficientStockError{
				ProductID:   tot.productID,
				ProductName: products[tot.productID].Name,
				Requested:   tot.quantity,
				Available:   available,
			}
		}
	}

	total := r.calculateTotal(req.Items, products)
	if req.TotalAmount != 0 && req.TotalAmount != total {
		r.logger.Warn("Client total disagrees with catalog prices, using computed total",
			zap.Int64("client_total", req.TotalAmount),
			zap.Int64("computed_total", total))
	}

	now := r.clk.Now()
	order := &models.Order{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		OrderType:     req.OrderType,
		TotalAmount:   total,
		Status:        models.OrderStatusPending,
		PaymentStatus: paymentStatusFor(req.OrderType),
		PickupDate:    r.scheduler.PickupWeek(now),
	}
	if req.OrderType == models.OrderTypeReservation {
		code, err := NewPickupCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate pickup code: %w", err)
		}
		order.PickupCode = code
	}

	if err := r.orders.CreateOrder(ctx, order); err != nil {
		util.ReconcileFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	eventItems := make([]models.ReservationItemData, 0, len(req.Items))
	for _, item := range req.Items {
		product := products[item.ProductID]
		orderItem := models.OrderItem{
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
		}
		if err := r.orders.CreateOrderItem(ctx, &orderItem); err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		items = append(items, orderItem)
		eventItems = append(eventItems, models.ReservationItemData{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
		})
	}

	// Past this point the customer-facing commitment exists. Decrement
	// failures are surfaced for manual reconciliation, never rolled back. A
	// clamped decrement that removed fewer units than ordered is the same
	// partially-applied commitment and gets the same treatment.
	for _, tot := range totals {
		_, removed, err := r.stock.DecrementStock(ctx, tot.productID, tot.quantity)
		if err != nil {
			r.surfaceInconsistency(ctx, order.ID, tot.productID, tot.quantity, err)
			continue
		}
		if removed < tot.quantity {
			r.surfaceInconsistency(ctx, order.ID, tot.productID, tot.quantity,
				fmt.Errorf("stock shortfall: removed %d of %d units", removed, tot.quantity))
		}
	}

	for _, tot := range totals {
		if err := r.holds.ReleaseItem(ctx, req.SessionID, tot.productID); err != nil {
			r.logger.Warn("Failed to release hold after reconciliation",
				zap.String("session_id", req.SessionID),
				zap.Int64("product_id", tot.productID),
				zap.Error(err))
		}
	}

	util.OrdersReconciledTotal.Inc()
	r.logger.Info("Order reconciled",
		zap.Int64("order_id", order.ID),
		zap.String("order_type", order.OrderType),
		zap.String("pickup_date", order.PickupDate))

	event := &models.OrderReconciledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderReconciled,
			Timestamp: now,
		},
		OrderID:     order.ID,
		OrderType:   order.OrderType,
		TotalAmount: order.TotalAmount,
		PickupDate:  order.PickupDate,
		Items:       eventItems,
	}
	if err := r.events.PublishOrderReconciled(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderReconciled event", zap.Error(err))
	}

	return &ReconcileResponse{Order: order, Items: items}, nil
}

// surfaceInconsistency records a partially-applied commitment: the order row
// exists but its stock decrement failed. This is the one error class that
// must never be swallowed.
func (r *Reconciler) surfaceInconsistency(ctx context.Context, orderID, productID int64, quantity int, cause error) {
	util.ReconcileInconsistencyTotal.Inc()
	r.logger.Error("Stock decrement failed after order was written; manual reconciliation required",
		zap.Int64("order_id", orderID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Error(cause))

	failure := &models.ReconciliationFailure{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Detail:    cause.Error(),
	}
	if err := r.orders.RecordReconciliationFailure(ctx, failure); err != nil {
		r.logger.Error("Failed to record reconciliation failure",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
}

// quantityTotal is the requested quantity for one product, summed across
// duplicate request lines.
type quantityTotal struct {
	productID int64
	quantity  int
}

func aggregateQuantities(items []ReconcileItemRequest) []quantityTotal {
	index := make(map[int64]int, len(items))
	totals := make([]quantityTotal, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			totals[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(totals)
		totals = append(totals, quantityTotal{productID: item.ProductID, quantity: item.Quantity})
	}
	return totals
}

func (r *Reconciler) lookupProducts(ctx context.Context, items []ReconcileItemRequest) (map[int64]models.Product, error) {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := r.orders.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	productMap := make(map[int64]models.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	for _, item := range items {
		if _, ok := productMap[item.ProductID]; !ok {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, models.ErrProductNotFound)
		}
	}

	return productMap, nil
}

func (r *Reconciler) calculateTotal(items []ReconcileItemRequest, products map[int64]models.Product) int64 {
	var total int64
	for _, item := range items {
		total += products[item.ProductID].Price * int64(item.Quantity)
	}
	return total
}

func paymentStatusFor(orderType string) string {
	if orderType == models.OrderTypeOnline {
		return models.PaymentStatusPaid
	}
	return models.PaymentStatusReserved
}

// pickupCodeAlphabet avoids visually confusable characters (0/O, 1/I/L).
const pickupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const pickupCodeLength = 6

// NewPickupCode generates a human-readable code identifying a reservation at
// pickup.
func NewPickupCode() (string, error) {
	code := make([]byte, pickupCodeLength)
	max := big.NewInt(int64(len(pickupCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = pickupCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
