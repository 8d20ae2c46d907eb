package models

import "time"

// Product represents a product in the catalog
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Inventory is the authoritative available-to-promise count for a product.
// Mutated only by order reconciliation and out-of-band restocking.
type Inventory struct {
	ProductID int64     `db:"product_id" json:"product_id"`
	Count     int       `db:"count" json:"count"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Hold is a provisional, time-limited claim on product stock made by a
// browsing session. At most one hold exists per (session, product) pair;
// repeat requests update quantity and refresh the expiry.
type Hold struct {
	SessionID   string    `json:"session_id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the hold is void at the given instant.
func (h Hold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// Order is the durable record created once a reservation is reconciled.
type Order struct {
	ID            int64     `db:"id" json:"id"`
	CustomerName  string    `db:"customer_name" json:"customer_name"`
	CustomerEmail string    `db:"customer_email" json:"customer_email"`
	CustomerPhone string    `db:"customer_phone" json:"customer_phone"`
	OrderType     string    `db:"order_type" json:"order_type"`
	TotalAmount   int64     `db:"total_amount" json:"total_amount"`
	Status        string    `db:"status" json:"status"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	PickupDate    string    `db:"pickup_date" json:"pickup_date"`
	PickupCode    string    `db:"pickup_code" json:"pickup_code,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem represents a line item in an order
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
}

// Order types
const (
	OrderTypeReservation = "reservation"
	OrderTypeOnline      = "online"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
)

// Payment statuses
const (
	PaymentStatusReserved = "reserved"
	PaymentStatusPaid     = "paid"
)

// ReconciliationFailure records an order whose stock decrement failed after
// the order row was already written. The commitment to the customer exists,
// so the row must be worked off manually rather than dropped.
type ReconciliationFailure struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	ProductID  int64     `db:"product_id" json:"product_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	Detail     string    `db:"detail" json:"detail"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
