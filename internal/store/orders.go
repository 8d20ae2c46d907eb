package store

import (
	"context"
	"database/sql"
	"fmt"

	"reservation-service/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_name, customer_email, customer_phone, order_type,
			total_amount, status, payment_status, pickup_date, pickup_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.OrderType,
		order.TotalAmount, order.Status, order.PaymentStatus, order.PickupDate, order.PickupCode)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderPaymentStatus flips the payment status from a payment callback
func (s *Store) UpdateOrderPaymentStatus(ctx context.Context, orderID int64, paymentStatus string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2",
		paymentStatus, orderID)
	return err
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// RecordReconciliationFailure stores a partially-applied commitment for the
// operator path: the order row exists but its stock decrement failed.
func (s *Store) RecordReconciliationFailure(ctx context.Context, f *models.ReconciliationFailure) error {
	query := `
		INSERT INTO reconciliation_failures (order_id, product_id, quantity, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING id, recorded_at`

	return s.db.GetContext(ctx, f, query, f.OrderID, f.ProductID, f.Quantity, f.Detail)
}

// ListReconciliationFailures returns unresolved inconsistencies, newest first
func (s *Store) ListReconciliationFailures(ctx context.Context) ([]models.ReconciliationFailure, error) {
	var failures []models.ReconciliationFailure
	err := s.db.SelectContext(ctx, &failures,
		"SELECT * FROM reconciliation_failures ORDER BY recorded_at DESC")
	return failures, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
