package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateActiveCart is returned when a create would produce a second
	// active cart for the same owner and instance. Callers re-read instead of failing.
	ErrDuplicateActiveCart = errors.New("active cart already exists for owner and instance")
	// ErrTransactionAborted means the store rolled back the whole unit of work
	// (conflict, deadlock or timeout). The operation may be retried by the caller.
	ErrTransactionAborted = errors.New("transaction aborted")
	// ErrCartNotActive is returned by item mutations on pending, expired or complete carts.
	ErrCartNotActive = errors.New("cart is not active")
	// ErrInvalidTransition is returned for status changes the cart lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid cart status transition")
	ErrInvalidProduct    = errors.New("product id required")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidPrice      = errors.New("invalid unit price")
)
