package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrProductsUnavailable means at least one requested product is missing
	// or inactive. Checkout is all-or-nothing, so nothing is persisted.
	ErrProductsUnavailable = errors.New("one or more products are unavailable")

	// ErrNoShippingRate means no configured rate is eligible for the order
	// subtotal. Checkout fails loudly instead of charging a made-up price.
	ErrNoShippingRate = errors.New("no shipping option available for this order")

	// ErrDuplicateOrderNumber signals a unique-index collision on the
	// generated order number; the caller regenerates and retries.
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

// ValidationError marks a user-correctable request problem.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// NotEligibleError marks an unmet precondition on a coupon or shipping rate.
type NotEligibleError struct {
	Reason string
}

func (e *NotEligibleError) Error() string { return e.Reason }

// OutOfStockError names the product whose stock cannot cover the request.
type OutOfStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s: requested %d, only %d in stock", e.ProductName, e.Requested, e.Available)
}

// InvalidTransitionError rejects an order status change the state machine
// does not allow.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// ExternalServiceError wraps a payment/email/carrier provider failure. The
// wrapped detail is for logs and admin surfaces, never for end users.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return e.Service + ": " + e.Err.Error()
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
