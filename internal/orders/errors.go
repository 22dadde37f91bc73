package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("order not found")
	ErrInvalidInput       = errors.New("invalid order")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPaymentLocked      = errors.New("cash on delivery payments cannot be edited")
	ErrAlreadyPaid        = errors.New("order already paid")
	ErrAlreadyShipped     = errors.New("shipment already created")
	ErrNotConfirmed       = errors.New("order must be confirmed before shipping")
	ErrRequestInFlight    = errors.New("a checkout with this idempotency key is still in progress")
)

type Shortage struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

// StockError lists every line that could not be served.
type StockError struct {
	Details []Shortage
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s for %d product(s)", ErrInsufficientStock, len(e.Details))
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// UnavailableError names the product that is missing or hidden.
type UnavailableError struct {
	ProductID string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrProductUnavailable, e.ProductID)
}

func (e *UnavailableError) Unwrap() error { return ErrProductUnavailable }
