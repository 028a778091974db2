package app

import (
	"context"

	"fulfillment-engine/internal/ai"
	"fulfillment-engine/internal/core"
)

// ApplicationService is the single interface the CLI and web adapters call.
// It decouples presentation from the fulfillment core. Implementations contain no
// display logic of any kind.
type ApplicationService interface {
	// ReceiveStock records arrived goods at a location, creating the stock row if needed.
	ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.StockLevel, error)

	// AdjustStock applies a manual reservation transition to one row.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.StockLevel, error)

	// GetStockLevels returns an item's rows in one warehouse.
	GetStockLevels(ctx context.Context, req StockQuery) (*StockResult, error)

	// ListStockLevels returns every stock row of a company.
	ListStockLevels(ctx context.Context, companyID int) (*StockResult, error)

	// GetMovements returns a stock row and its audit trail.
	GetMovements(ctx context.Context, stockLevelID int) (*MovementsResult, error)

	// ExplainStockLevel asks the AI explainer to narrate a row's audit trail.
	ExplainStockLevel(ctx context.Context, stockLevelID int) (*ai.StockExplanation, error)

	// VerifyStock checks every row of a company against its invariants and trail.
	VerifyStock(ctx context.Context, companyID int) ([]core.Discrepancy, error)

	// PlanAllocation previews a plan without changing stock.
	PlanAllocation(ctx context.Context, req PlanRequest) (*core.Plan, error)

	// CreatePickingSlip soft-reserves an order's demand and opens a slip.
	CreatePickingSlip(ctx context.Context, req CreateSlipRequest) (*core.SlipResult, error)
	GetPickingSlip(ctx context.Context, slipID int) (*core.SlipResult, error)
	SuggestPicks(ctx context.Context, slipID int) ([]core.LineSuggestion, error)
	AssignPickingSlip(ctx context.Context, slipID, pickerID int, actor core.Audit) (*core.PickingSlip, error)
	ConfirmPickingSlip(ctx context.Context, req ConfirmPickRequest) (*core.ConfirmResult, error)

	CreateShipment(ctx context.Context, req core.CreateShipmentInput, actor core.Audit) (*core.Shipment, error)
	GetShipment(ctx context.Context, shipmentID int) (*ShipmentResult, error)
	LoadDeliveryNote(ctx context.Context, shipmentID, deliveryNoteID int, actor core.Audit) (*core.DeliveryNote, error)
	// UpdateShipmentStatus drives departure (stock deduction) and completion.
	UpdateShipmentStatus(ctx context.Context, shipmentID int, status string, actor core.Audit) (*core.Shipment, error)
	UnloadDeliveryNote(ctx context.Context, req core.UnloadInput, actor core.Audit) (*core.UnloadResult, error)

	GetDeliveryNote(ctx context.Context, deliveryNoteID int) (*core.DeliveryNote, error)
	MarkDelivered(ctx context.Context, deliveryNoteID int, actor core.Audit) (*core.DeliveryNote, error)
	CancelDeliveryNote(ctx context.Context, deliveryNoteID int, req core.CancelInput, actor core.Audit) (*core.ReturnNote, error)

	CreateCustomerReturn(ctx context.Context, req core.CustomerReturnInput, actor core.Audit) (*core.ReturnNote, error)
	GetReturnNote(ctx context.Context, returnNoteID int) (*core.ReturnNote, error)
	AddReturnEvidence(ctx context.Context, returnNoteID int, req core.EvidenceInput, actor core.Audit) (*core.ReturnNote, error)
	CompleteReturn(ctx context.Context, returnNoteID int, locationID *int, actor core.Audit) (*core.ReturnNote, error)
}
