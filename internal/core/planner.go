package core

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Basis selects which bucket of a stock level an allocation plan draws from.
type Basis string

const (
	BasisSoft      Basis = "soft"      // picking: consume soft reservations
	BasisHard      Basis = "hard"      // departure: consume hard reservations
	BasisAvailable Basis = "available" // demand entry: claim free stock
)

// ParseBasis validates a basis name from an outer surface.
func ParseBasis(s string) (Basis, error) {
	switch b := Basis(s); b {
	case BasisSoft, BasisHard, BasisAvailable:
		return b, nil
	}
	return "", fmt.Errorf("unknown allocation basis %q", s)
}

func (b Basis) balance(s *StockLevel) decimal.Decimal {
	switch b {
	case BasisSoft:
		return s.SoftReserved
	case BasisHard:
		return s.HardReserved
	default:
		return s.Available()
	}
}

// Allocation is one step of a plan: take Quantity from the row at LocationID.
type Allocation struct {
	LocationID   int             `json:"location_id"`
	LocationCode string          `json:"location_code"`
	Quantity     decimal.Decimal `json:"quantity"`
	Fallback     bool            `json:"fallback,omitempty"`

	level *StockLevel
}

// Level returns the stock row the allocation was planned against, when the plan was
// built from loaded rows.
func (a Allocation) Level() *StockLevel { return a.level }

// Plan is an ordered list of allocations. A plan that covers less than requested is a
// normal result; the caller decides whether the shortfall becomes a backorder.
type Plan struct {
	Requested   decimal.Decimal `json:"requested"`
	Basis       Basis           `json:"basis"`
	Allocations []Allocation    `json:"allocations"`
}

// Total is the planned quantity.
func (p Plan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.Quantity)
	}
	return total
}

// Shortfall is the requested quantity the plan could not cover.
func (p Plan) Shortfall() decimal.Decimal {
	return decimal.Max(p.Requested.Sub(p.Total()), decimal.Zero)
}

// SortForLocking orders rows by location code then id. Plans and row locks both use this
// order so concurrent plans over overlapping locations cannot deadlock.
func SortForLocking(levels []*StockLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].LocationCode != levels[j].LocationCode {
			return levels[i].LocationCode < levels[j].LocationCode
		}
		return levels[i].LocationID < levels[j].LocationID
	})
}

// PlanAllocation runs greedy first-fit over levels in location order. Each location
// contributes min(remaining, balance); the plan never exceeds a location's balance and
// sums to min(qty, total balance).
func PlanAllocation(levels []*StockLevel, qty decimal.Decimal, basis Basis) Plan {
	plan := Plan{Requested: qty, Basis: basis}
	if !qty.IsPositive() {
		return plan
	}

	ordered := make([]*StockLevel, len(levels))
	copy(ordered, levels)
	SortForLocking(ordered)

	remaining := qty
	for _, lvl := range ordered {
		if !remaining.IsPositive() {
			break
		}
		bal := basis.balance(lvl)
		if !bal.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, bal)
		plan.Allocations = append(plan.Allocations, Allocation{
			LocationID:   lvl.LocationID,
			LocationCode: lvl.LocationCode,
			Quantity:     take,
			level:        lvl,
		})
		remaining = remaining.Sub(take)
	}
	return plan
}

// PlanDeduction builds the departure plan from hard reservations. When no row carries a
// hard reservation for the item and a fallback row is given, the whole quantity is planned
// against the fallback location and flagged so the caller deducts unreserved stock.
func PlanDeduction(levels []*StockLevel, qty decimal.Decimal, fallback *StockLevel) Plan {
	plan := PlanAllocation(levels, qty, BasisHard)
	if len(plan.Allocations) > 0 || fallback == nil || !qty.IsPositive() {
		return plan
	}
	plan.Allocations = []Allocation{{
		LocationID:   fallback.LocationID,
		LocationCode: fallback.LocationCode,
		Quantity:     qty,
		Fallback:     true,
		level:        fallback,
	}}
	return plan
}

// PlannerService exposes allocation planning to outer layers.
type PlannerService interface {
	PlanAllocation(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int, qty decimal.Decimal, basis Basis) (Plan, error)
}

type plannerService struct {
	store Store
}

// NewPlannerService constructs a PlannerService over store.
func NewPlannerService(store Store) PlannerService {
	return &plannerService{store: store}
}

func (s *plannerService) PlanAllocation(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int, qty decimal.Decimal, basis Basis) (Plan, error) {
	var plan Plan
	err := s.store.InTx(ctx, func(tx Tx) error {
		levels, err := findByBasis(ctx, tx.Stock(), companyID, itemID, warehouseID, basis)
		if err != nil {
			return err
		}
		plan = PlanAllocation(levels, qty, basis)
		return nil
	})
	return plan, err
}

func findByBasis(ctx context.Context, repo StockLevelRepository, companyID int, itemID uuid.UUID, warehouseID int, basis Basis) ([]*StockLevel, error) {
	var (
		levels []*StockLevel
		err    error
	)
	switch basis {
	case BasisSoft:
		levels, err = repo.FindWithSoftReserve(ctx, companyID, itemID, warehouseID)
	case BasisHard:
		levels, err = repo.FindWithHardReserve(ctx, companyID, itemID, warehouseID)
	default:
		levels, err = repo.FindAvailable(ctx, companyID, itemID, warehouseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s stock for item %s: %w", basis, itemID, err)
	}
	return levels, nil
}

// sortByItem orders lines by item id, the order in which workflows over several items
// lock their stock rows.
func sortByItem[T any](lines []T, itemID func(T) uuid.UUID) {
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := itemID(lines[i]), itemID(lines[j])
		return bytes.Compare(a[:], b[:]) < 0
	})
}
