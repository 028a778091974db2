package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// nowFunc is the clock used for audit timestamps.
var nowFunc = func() time.Time { return time.Now().UTC() }

// ReserveSoft tentatively claims qty of the available stock.
func (s *StockLevel) ReserveSoft(qty decimal.Decimal, a Audit) error {
	if !qty.IsPositive() {
		return fmt.Errorf("reserve soft %s: %w", qty, ErrInvalidQuantity)
	}
	if qty.GreaterThan(s.Available()) {
		return &InsufficientStockError{
			ItemID:     s.ItemID,
			LocationID: s.LocationID,
			Requested:  qty,
			Available:  s.Available(),
		}
	}
	s.SoftReserved = s.SoftReserved.Add(qty)
	s.record(MovementReserveSoft, qty, decimal.Zero, qty, decimal.Zero, a)
	return nil
}

// ReleaseSoftReservation frees up to qty of the soft reservation back to available.
// Over-release is clamped, so retries are safe.
func (s *StockLevel) ReleaseSoftReservation(qty decimal.Decimal, a Audit) {
	released := decimal.Min(qty, s.SoftReserved)
	if !released.IsPositive() {
		return
	}
	s.SoftReserved = s.SoftReserved.Sub(released)
	s.record(MovementReleaseSoft, released, decimal.Zero, released.Neg(), decimal.Zero, a)
}

// CommitReservation moves qty from the soft to the hard bucket after a confirmed pick.
func (s *StockLevel) CommitReservation(qty decimal.Decimal, a Audit) error {
	if !qty.IsPositive() {
		return fmt.Errorf("commit %s: %w", qty, ErrInvalidQuantity)
	}
	if qty.GreaterThan(s.SoftReserved) {
		return invalidTransition("commit", "location %d has %s soft-reserved, cannot commit %s",
			s.LocationID, s.SoftReserved.String(), qty.String())
	}
	s.SoftReserved = s.SoftReserved.Sub(qty)
	s.HardReserved = s.HardReserved.Add(qty)
	s.record(MovementCommit, qty, decimal.Zero, qty.Neg(), qty, a)
	return nil
}

// ReleaseHardReservation frees up to qty of the hard reservation. Used for reversals
// where the stock never left the building. Over-release is clamped.
func (s *StockLevel) ReleaseHardReservation(qty decimal.Decimal, a Audit) {
	released := decimal.Min(qty, s.HardReserved)
	if !released.IsPositive() {
		return
	}
	s.HardReserved = s.HardReserved.Sub(released)
	s.record(MovementReleaseHard, released, decimal.Zero, decimal.Zero, released.Neg(), a)
}

// ShipReserved records the physical departure of hard-reserved stock.
// Not idempotent: callers guard it with the delivery note status.
func (s *StockLevel) ShipReserved(qty decimal.Decimal, a Audit) error {
	if !qty.IsPositive() {
		return fmt.Errorf("ship %s: %w", qty, ErrInvalidQuantity)
	}
	if qty.GreaterThan(s.HardReserved) {
		return invalidTransition("ship", "location %d has %s hard-reserved, cannot ship %s",
			s.LocationID, s.HardReserved.String(), qty.String())
	}
	s.HardReserved = s.HardReserved.Sub(qty)
	s.OnHand = s.OnHand.Sub(qty)
	s.record(MovementShip, qty, qty.Neg(), decimal.Zero, qty.Neg(), a)
	return nil
}

// Receive adds physically arrived stock (purchase receipts, customer returns).
func (s *StockLevel) Receive(qty decimal.Decimal, a Audit) error {
	if !qty.IsPositive() {
		return fmt.Errorf("receive %s: %w", qty, ErrInvalidQuantity)
	}
	s.OnHand = s.OnHand.Add(qty)
	s.record(MovementReceive, qty, qty, decimal.Zero, decimal.Zero, a)
	return nil
}

// DeductUnreserved removes free stock without a prior reservation. It backs the
// fallback-location deduction for rows that never carried a location-level reservation.
func (s *StockLevel) DeductUnreserved(qty decimal.Decimal, a Audit) error {
	if !qty.IsPositive() {
		return fmt.Errorf("fallback deduct %s: %w", qty, ErrInvalidQuantity)
	}
	if qty.GreaterThan(s.Available()) {
		return &InsufficientStockError{
			ItemID:     s.ItemID,
			LocationID: s.LocationID,
			Requested:  qty,
			Available:  s.Available(),
		}
	}
	s.OnHand = s.OnHand.Sub(qty)
	s.record(MovementFallbackDeduct, qty, qty.Neg(), decimal.Zero, decimal.Zero, a)
	return nil
}

// CheckInvariants reports the first violated quantity invariant, if any.
func (s *StockLevel) CheckInvariants() error {
	switch {
	case s.OnHand.IsNegative():
		return fmt.Errorf("stock level %d: on hand %s is negative", s.ID, s.OnHand)
	case s.SoftReserved.IsNegative():
		return fmt.Errorf("stock level %d: soft reserved %s is negative", s.ID, s.SoftReserved)
	case s.HardReserved.IsNegative():
		return fmt.Errorf("stock level %d: hard reserved %s is negative", s.ID, s.HardReserved)
	case s.SoftReserved.Add(s.HardReserved).GreaterThan(s.OnHand):
		return fmt.Errorf("stock level %d: reserved %s+%s exceeds on hand %s",
			s.ID, s.SoftReserved, s.HardReserved, s.OnHand)
	}
	return nil
}

func (s *StockLevel) record(kind MovementKind, qty, onHand, soft, hard decimal.Decimal, a Audit) {
	now := nowFunc()
	s.UpdatedAt = now
	s.pending = append(s.pending, StockMovement{
		StockLevelID: s.ID,
		CompanyID:    s.CompanyID,
		Kind:         kind,
		Quantity:     qty,
		OnHandDelta:  onHand,
		SoftDelta:    soft,
		HardDelta:    hard,
		OnHandAfter:  s.OnHand,
		SoftAfter:    s.SoftReserved,
		HardAfter:    s.HardReserved,
		ActorID:      a.ActorID,
		Memo:         a.Memo,
		Reference:    a.Reference,
		CreatedAt:    now,
	})
}
