package models

import "time"

// Event types
const (
	EventTypeReservationCreated  = "RESERVATION_CREATED"
	EventTypeReservationReleased = "RESERVATION_RELEASED"
	EventTypeOrderReconciled     = "ORDER_RECONCILED"
	EventTypePaymentCompleted    = "PAYMENT_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReservationItemData describes one held line in a reservation event.
type ReservationItemData struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// ReservationCreatedEvent published after a session successfully holds stock.
// Consumers (notification service) treat this as fire-and-forget.
type ReservationCreatedEvent struct {
	BaseEvent
	SessionID string                `json:"session_id"`
	Items     []ReservationItemData `json:"items"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// ReservationReleasedEvent published when a session drops its holds.
type ReservationReleasedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Released  int    `json:"released"`
}

// OrderReconciledEvent published once a reservation has been converted into a
// durable order with decremented stock.
type OrderReconciledEvent struct {
	BaseEvent
	OrderID     int64                 `json:"order_id"`
	OrderType   string                `json:"order_type"`
	TotalAmount int64                 `json:"total_amount"`
	PickupDate  string                `json:"pickup_date"`
	Items       []ReservationItemData `json:"items"`
}

// PaymentCompletedEvent is consumed from the payment processor's webhook
// bridge. The engine only flips the order's payment status.
type PaymentCompletedEvent struct {
	BaseEvent
	OrderID      int64  `json:"order_id"`
	ProviderTxID string `json:"provider_tx_id"`
	Amount       int64  `json:"amount"`
}
