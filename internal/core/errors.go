package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error taxonomy of the fulfillment engine. Callers match with errors.Is; the typed
// errors below unwrap to these sentinels.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyAssigned   = errors.New("picking slip already assigned")
	ErrMissingEvidence   = errors.New("customer return requires at least one evidence photo")
	ErrNotFound          = errors.New("not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConcurrentUpdate  = errors.New("stock level was modified concurrently")
)

// InsufficientStockError reports a reservation that exceeds what is available.
// It is recoverable: the caller surfaces the shortfall to the user.
type InsufficientStockError struct {
	ItemID     uuid.UUID
	LocationID int
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

// Shortfall is the quantity that could not be satisfied.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientStockError) Error() string {
	if e.LocationID != 0 {
		return fmt.Sprintf("insufficient stock for item %s at location %d: available %s, requested %s",
			e.ItemID, e.LocationID, e.Available.String(), e.Requested.String())
	}
	return fmt.Sprintf("insufficient stock for item %s: available %s, requested %s",
		e.ItemID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// TransitionError reports an operation that is not valid for the current state.
// It signals an inconsistent caller (double confirm, over-commit) and is logged loudly.
type TransitionError struct {
	Op     string
	Detail string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s: %s", e.Op, e.Detail)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func invalidTransition(op, format string, args ...any) error {
	return &TransitionError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

func notFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}
