package app

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fulfillment-engine/internal/core"
)

// ItemRef names an item either by catalog UUID or by part number. When both are given
// the UUID wins.
type ItemRef struct {
	ItemID     uuid.UUID `json:"item_id"`
	PartNumber string    `json:"part_number"`
}

// ReceiveStockRequest is the input for recording a goods receipt at a location.
type ReceiveStockRequest struct {
	CompanyID   int             `json:"company_id"`
	Item        ItemRef         `json:"item"`
	WarehouseID int             `json:"warehouse_id"`
	LocationID  int             `json:"location_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Actor       core.Audit      `json:"-"`
}

// Manual adjustments of a single stock row.
const (
	AdjustReserveSoft = "reserve_soft"
	AdjustReleaseSoft = "release_soft"
	AdjustCommit      = "commit"
	AdjustReleaseHard = "release_hard"
	AdjustShip        = "ship"
)

// AdjustStockRequest applies one reservation transition to the row of an item at a
// location, outside any picking or shipment document.
type AdjustStockRequest struct {
	CompanyID  int             `json:"company_id"`
	Item       ItemRef         `json:"item"`
	LocationID int             `json:"location_id"`
	Action     string          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	Actor      core.Audit      `json:"-"`
}

// StockQuery selects an item's rows in one warehouse.
type StockQuery struct {
	CompanyID   int     `json:"company_id"`
	Item        ItemRef `json:"item"`
	WarehouseID int     `json:"warehouse_id"`
}

// PlanRequest previews an allocation plan.
type PlanRequest struct {
	StockQuery
	Quantity decimal.Decimal `json:"quantity"`
	Basis    string          `json:"basis"`
}

// CreateSlipRequest is the demand for one sales order.
type CreateSlipRequest struct {
	CompanyID   int             `json:"company_id"`
	OrderID     int             `json:"order_id"`
	WarehouseID int             `json:"warehouse_id"`
	Lines       []SlipLineInput `json:"lines"`
	Actor       core.Audit      `json:"-"`
}

// SlipLineInput is a single line of a CreateSlipRequest.
type SlipLineInput struct {
	OrderLineID int             `json:"order_line_id"`
	Item        ItemRef         `json:"item"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// ConfirmPickRequest is the picker's confirmation of a slip.
type ConfirmPickRequest struct {
	SlipID          int               `json:"slip_id"`
	Lines           []core.PickedLine `json:"lines"`
	CreateBackorder bool              `json:"create_backorder"`
	Actor           core.Audit        `json:"-"`
}
