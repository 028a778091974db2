package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockKey identifies one stock level row: an item at a warehouse location, scoped to a company.
type StockKey struct {
	CompanyID    int
	ItemID       uuid.UUID
	WarehouseID  int
	LocationID   int
	LocationCode string // used for deterministic ordering; filled on creation
}

// StockLevel is the unit of truth for quantities of one item at one location.
//
//	Available = OnHand - SoftReserved - HardReserved
//
// Mutate it only through its transition methods; they enforce the invariants and record
// an audit movement for every change.
type StockLevel struct {
	ID           int             `json:"id"`
	CompanyID    int             `json:"company_id"`
	ItemID       uuid.UUID       `json:"item_id"`
	WarehouseID  int             `json:"warehouse_id"`
	LocationID   int             `json:"location_id"`
	LocationCode string          `json:"location_code"`
	OnHand       decimal.Decimal `json:"quantity_on_hand"`
	SoftReserved decimal.Decimal `json:"quantity_soft_reserved"`
	HardReserved decimal.Decimal `json:"quantity_hard_reserved"`
	Version      int64           `json:"version"`
	UpdatedAt    time.Time       `json:"updated_at"`

	pending []StockMovement
}

// Key returns the composite key of the row.
func (s *StockLevel) Key() StockKey {
	return StockKey{
		CompanyID:    s.CompanyID,
		ItemID:       s.ItemID,
		WarehouseID:  s.WarehouseID,
		LocationID:   s.LocationID,
		LocationCode: s.LocationCode,
	}
}

// Available is the quantity that can still be soft-reserved.
func (s *StockLevel) Available() decimal.Decimal {
	return s.OnHand.Sub(s.SoftReserved).Sub(s.HardReserved)
}

// PendingMovements returns the audit entries recorded since the last save.
func (s *StockLevel) PendingMovements() []StockMovement {
	return s.pending
}

// ClearPending drops pending movements after the repository has persisted them.
func (s *StockLevel) ClearPending() {
	s.pending = nil
}

// Clone returns a deep copy without pending movements.
func (s *StockLevel) Clone() *StockLevel {
	c := *s
	c.pending = nil
	return &c
}

// MovementKind classifies an audit entry.
type MovementKind string

const (
	MovementReserveSoft    MovementKind = "RESERVE_SOFT"
	MovementReleaseSoft    MovementKind = "RELEASE_SOFT"
	MovementCommit         MovementKind = "COMMIT"
	MovementReleaseHard    MovementKind = "RELEASE_HARD"
	MovementShip           MovementKind = "SHIP"
	MovementReceive        MovementKind = "RECEIVE"
	MovementFallbackDeduct MovementKind = "FALLBACK_DEDUCT"
)

// Audit carries who triggered a stock change and why. ActorID comes from the caller;
// the engine never reads it from ambient state.
type Audit struct {
	ActorID   int    `json:"actor_id"`
	Memo      string `json:"memo"`
	Reference string `json:"reference"` // e.g. "picking_slip:12"
}

// WithReference returns a copy of a with the reference replaced.
func (a Audit) WithReference(ref string) Audit {
	a.Reference = ref
	return a
}

// StockMovement is an immutable audit entry. Deltas are signed; the *After fields hold
// the resulting totals so any number can be explained from the trail alone.
type StockMovement struct {
	ID           int             `json:"id"`
	StockLevelID int             `json:"stock_level_id"`
	CompanyID    int             `json:"company_id"`
	Kind         MovementKind    `json:"kind"`
	Quantity     decimal.Decimal `json:"quantity"`
	OnHandDelta  decimal.Decimal `json:"on_hand_delta"`
	SoftDelta    decimal.Decimal `json:"soft_delta"`
	HardDelta    decimal.Decimal `json:"hard_delta"`
	OnHandAfter  decimal.Decimal `json:"on_hand_after"`
	SoftAfter    decimal.Decimal `json:"soft_after"`
	HardAfter    decimal.Decimal `json:"hard_after"`
	ActorID      int             `json:"actor_id"`
	Memo         string          `json:"memo"`
	Reference    string          `json:"reference"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CatalogItem is the fixed-shape result of the item catalog lookup.
type CatalogItem struct {
	UUID        uuid.UUID `json:"uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	PartNumber  string    `json:"part_number"`
}
