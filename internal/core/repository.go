package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the unit-of-work boundary. Every stock mutation sequence runs inside one
// InTx call: if fn returns an error nothing it wrote is visible.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx gives access to the repositories bound to one transaction.
type Tx interface {
	Stock() StockLevelRepository
	Slips() PickingSlipRepository
	DeliveryNotes() DeliveryNoteRepository
	Shipments() ShipmentRepository
	Returns() ReturnNoteRepository
	OrderLines() OrderLineLedger
	Sequences() SequenceGenerator
}

// StockLevelRepository loads and persists stock levels. Every Find* locks the returned
// rows for the rest of the transaction, in (location code, location id) order.
type StockLevelRepository interface {
	FindWithSoftReserve(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*StockLevel, error)
	FindWithHardReserve(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*StockLevel, error)
	FindAvailable(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*StockLevel, error)
	FindByItemWarehouse(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int) ([]*StockLevel, error)
	// FindByLocation returns nil, nil when the item has never been at the location.
	FindByLocation(ctx context.Context, itemID uuid.UUID, locationID, companyID int) (*StockLevel, error)
	// FindByLocationCode returns nil, nil when no row exists for the code.
	FindByLocationCode(ctx context.Context, companyID int, itemID uuid.UUID, warehouseID int, code string) (*StockLevel, error)
	// GetOrCreate returns the locked row for key, inserting a zero row first if needed.
	GetOrCreate(ctx context.Context, key StockKey) (*StockLevel, error)
	// Save writes quantities with an optimistic version check and appends pending movements.
	Save(ctx context.Context, level *StockLevel) error
	Movements(ctx context.Context, stockLevelID int) ([]StockMovement, error)
	// Get returns the row by id, locked.
	Get(ctx context.Context, id int) (*StockLevel, error)
	List(ctx context.Context, companyID int) ([]*StockLevel, error)
}

// PickingSlipRepository persists picking slips with their items.
type PickingSlipRepository interface {
	Create(ctx context.Context, slip *PickingSlip) error
	// Get returns the slip locked for update.
	Get(ctx context.Context, id int) (*PickingSlip, error)
	Update(ctx context.Context, slip *PickingSlip) error
}

// DeliveryNoteRepository persists delivery notes.
type DeliveryNoteRepository interface {
	Create(ctx context.Context, note *DeliveryNote) error
	Get(ctx context.Context, id int) (*DeliveryNote, error)
	GetBySlip(ctx context.Context, slipID int) (*DeliveryNote, error)
	ListByShipment(ctx context.Context, shipmentID int) ([]*DeliveryNote, error)
	Update(ctx context.Context, note *DeliveryNote) error
}

// ShipmentRepository persists shipments.
type ShipmentRepository interface {
	Create(ctx context.Context, shipment *Shipment) error
	Get(ctx context.Context, id int) (*Shipment, error)
	Update(ctx context.Context, shipment *Shipment) error
}

// ReturnNoteRepository persists return notes, their items and evidence.
type ReturnNoteRepository interface {
	Create(ctx context.Context, note *ReturnNote) error
	Get(ctx context.Context, id int) (*ReturnNote, error)
	Update(ctx context.Context, note *ReturnNote) error
	AddEvidence(ctx context.Context, ev *ReturnEvidence) error
	ListByDeliveryNote(ctx context.Context, deliveryNoteID int) ([]*ReturnNote, error)
}

// OrderLineLedger is the external sales-order accumulator of shipped quantities.
type OrderLineLedger interface {
	IncrementShipped(ctx context.Context, orderLineID int, qty decimal.Decimal) error
	// DecrementShipped clamps at zero.
	DecrementShipped(ctx context.Context, orderLineID int, qty decimal.Decimal) error
}

// SequenceGenerator hands out gapless document numbers per company and prefix.
type SequenceGenerator interface {
	Next(ctx context.Context, companyID int, prefix string) (string, error)
}

// ItemLookup resolves catalog items by part number. Read-only.
type ItemLookup interface {
	FindByPartNumber(ctx context.Context, companyID int, partNumber string) (*CatalogItem, error)
}
