package models

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrMissingProduct  = errors.New("product id required")
)

// InsufficientStockError reports a capacity failure together with the
// availability computed at decision time, so callers can retry smaller.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): available=%d, requested=%d",
		e.ProductID, e.ProductName, e.Available, e.Requested)
}

// AsInsufficientStock unwraps err as a capacity failure, if it is one.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
