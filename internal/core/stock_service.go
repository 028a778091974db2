package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockService exposes single-location stock transitions to outer layers. Each call runs
// in its own transaction; the workflow services drive the same transitions through plans.
type StockService interface {
	// Receive adds stock at a location, creating the row on first receipt.
	Receive(ctx context.Context, key StockKey, qty decimal.Decimal, a Audit) (*StockLevel, error)
	ReserveSoft(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error)
	ReleaseSoftReservation(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error)
	CommitReservation(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error)
	ReleaseHardReservation(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error)
	ShipReserved(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error)

	GetLevels(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*StockLevel, error)
	ListLevels(ctx context.Context, companyID int) ([]*StockLevel, error)
	// Movements returns the row together with its audit trail, oldest first.
	Movements(ctx context.Context, stockLevelID int) (*StockLevel, []StockMovement, error)
}

type stockService struct {
	store Store
}

func NewStockService(store Store) StockService {
	return &stockService{store: store}
}

func (s *stockService) Receive(ctx context.Context, key StockKey, qty decimal.Decimal, a Audit) (*StockLevel, error) {
	var out *StockLevel
	err := s.store.InTx(ctx, func(tx Tx) error {
		lvl, err := tx.Stock().GetOrCreate(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to load stock level: %w", err)
		}
		if err := lvl.Receive(qty, a); err != nil {
			return err
		}
		if err := tx.Stock().Save(ctx, lvl); err != nil {
			return err
		}
		out = lvl
		return nil
	})
	return out, err
}

func (s *stockService) ReserveSoft(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error) {
	return s.atLocation(ctx, companyID, itemID, locationID, func(lvl *StockLevel) error {
		return lvl.ReserveSoft(qty, a)
	})
}

func (s *stockService) ReleaseSoftReservation(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error) {
	return s.atLocation(ctx, companyID, itemID, locationID, func(lvl *StockLevel) error {
		if !qty.IsPositive() {
			return fmt.Errorf("release soft %s: %w", qty, ErrInvalidQuantity)
		}
		lvl.ReleaseSoftReservation(qty, a)
		return nil
	})
}

func (s *stockService) CommitReservation(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error) {
	return s.atLocation(ctx, companyID, itemID, locationID, func(lvl *StockLevel) error {
		return lvl.CommitReservation(qty, a)
	})
}

func (s *stockService) ReleaseHardReservation(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error) {
	return s.atLocation(ctx, companyID, itemID, locationID, func(lvl *StockLevel) error {
		if !qty.IsPositive() {
			return fmt.Errorf("release hard %s: %w", qty, ErrInvalidQuantity)
		}
		lvl.ReleaseHardReservation(qty, a)
		return nil
	})
}

func (s *stockService) ShipReserved(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, qty decimal.Decimal, a Audit) (*StockLevel, error) {
	return s.atLocation(ctx, companyID, itemID, locationID, func(lvl *StockLevel) error {
		return lvl.ShipReserved(qty, a)
	})
}

func (s *stockService) atLocation(ctx context.Context, companyID int, itemID uuid.UUID, locationID int, fn func(*StockLevel) error) (*StockLevel, error) {
	var out *StockLevel
	err := s.store.InTx(ctx, func(tx Tx) error {
		lvl, err := tx.Stock().FindByLocation(ctx, itemID, locationID, companyID)
		if err != nil {
			return fmt.Errorf("failed to load stock level: %w", err)
		}
		if lvl == nil {
			return notFound("stock level for item "+itemID.String()+" at location", locationID)
		}
		if err := fn(lvl); err != nil {
			return err
		}
		if err := tx.Stock().Save(ctx, lvl); err != nil {
			return err
		}
		out = lvl
		return nil
	})
	return out, err
}

func (s *stockService) GetLevels(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*StockLevel, error) {
	var out []*StockLevel
	err := s.store.InTx(ctx, func(tx Tx) error {
		levels, err := tx.Stock().FindByItemWarehouse(ctx, companyID, itemID, warehouseID)
		if err != nil {
			return fmt.Errorf("failed to load stock levels: %w", err)
		}
		out = levels
		return nil
	})
	return out, err
}

func (s *stockService) ListLevels(ctx context.Context, companyID int) ([]*StockLevel, error) {
	var out []*StockLevel
	err := s.store.InTx(ctx, func(tx Tx) error {
		levels, err := tx.Stock().List(ctx, companyID)
		if err != nil {
			return fmt.Errorf("failed to list stock levels: %w", err)
		}
		out = levels
		return nil
	})
	return out, err
}

func (s *stockService) Movements(ctx context.Context, stockLevelID int) (*StockLevel, []StockMovement, error) {
	var (
		lvl       *StockLevel
		movements []StockMovement
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if lvl, err = tx.Stock().Get(ctx, stockLevelID); err != nil {
			return err
		}
		if movements, err = tx.Stock().Movements(ctx, stockLevelID); err != nil {
			return fmt.Errorf("failed to load movements: %w", err)
		}
		return nil
	})
	return lvl, movements, err
}

// applyPlan runs op against every allocated row and saves it. Allocations come from rows
// loaded inside the same transaction, so their versions are current.
func applyPlan(ctx context.Context, repo StockLevelRepository, plan Plan, op func(*StockLevel, decimal.Decimal) error) error {
	for _, alloc := range plan.Allocations {
		lvl := alloc.Level()
		if lvl == nil {
			return fmt.Errorf("allocation at location %d has no loaded stock row", alloc.LocationID)
		}
		if err := op(lvl, alloc.Quantity); err != nil {
			return err
		}
		if err := repo.Save(ctx, lvl); err != nil {
			return err
		}
	}
	return nil
}
