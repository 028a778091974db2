package app

import (
	"context"
	"errors"
	"fmt"

	"fulfillment-engine/internal/ai"
	"fulfillment-engine/internal/core"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrExplainerDisabled is returned by ExplainStockLevel when no API key is configured.
var ErrExplainerDisabled = errors.New("AI explainer is not configured (set OPENAI_API_KEY)")

type appService struct {
	stock     core.StockService
	planner   core.PlannerService
	picking   core.PickingService
	shipments core.ShipmentService
	returns   core.ReturnService
	items     core.ItemLookup
	explainer ai.Explainer
	logger    *zap.Logger
}

// NewAppService wires the core services over store. explainer may be nil.
func NewAppService(store core.Store, items core.ItemLookup, explainer ai.Explainer, cfg *Config, logger *zap.Logger) ApplicationService {
	return &appService{
		stock:     core.NewStockService(store),
		planner:   core.NewPlannerService(store),
		picking:   core.NewPickingService(store, logger),
		shipments: core.NewShipmentService(store, logger, cfg.FallbackLocationCode),
		returns:   core.NewReturnService(store, logger),
		items:     items,
		explainer: explainer,
		logger:    logger,
	}
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.StockLevel, error) {
	itemID, err := s.resolveItem(ctx, req.CompanyID, req.Item)
	if err != nil {
		return nil, err
	}
	lvl, err := s.stock.Receive(ctx, core.StockKey{
		CompanyID:   req.CompanyID,
		ItemID:      itemID,
		WarehouseID: req.WarehouseID,
		LocationID:  req.LocationID,
	}, req.Quantity, req.Actor)
	return lvl, s.observe("receive stock", err)
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.StockLevel, error) {
	itemID, err := s.resolveItem(ctx, req.CompanyID, req.Item)
	if err != nil {
		return nil, err
	}
	var lvl *core.StockLevel
	switch req.Action {
	case AdjustReserveSoft:
		lvl, err = s.stock.ReserveSoft(ctx, req.CompanyID, itemID, req.LocationID, req.Quantity, req.Actor)
	case AdjustReleaseSoft:
		lvl, err = s.stock.ReleaseSoftReservation(ctx, req.CompanyID, itemID, req.LocationID, req.Quantity, req.Actor)
	case AdjustCommit:
		lvl, err = s.stock.CommitReservation(ctx, req.CompanyID, itemID, req.LocationID, req.Quantity, req.Actor)
	case AdjustReleaseHard:
		lvl, err = s.stock.ReleaseHardReservation(ctx, req.CompanyID, itemID, req.LocationID, req.Quantity, req.Actor)
	case AdjustShip:
		lvl, err = s.stock.ShipReserved(ctx, req.CompanyID, itemID, req.LocationID, req.Quantity, req.Actor)
	default:
		return nil, fmt.Errorf("unknown stock adjustment %q: %w", req.Action, core.ErrInvalidInput)
	}
	if err != nil {
		return nil, s.observe("adjust stock: "+req.Action, err)
	}
	s.logger.Info("stock adjusted",
		zap.String("action", req.Action),
		zap.Int("stock_level_id", lvl.ID),
		zap.String("quantity", req.Quantity.String()),
		zap.Int("actor_id", req.Actor.ActorID))
	return lvl, nil
}

func (s *appService) GetStockLevels(ctx context.Context, req StockQuery) (*StockResult, error) {
	itemID, err := s.resolveItem(ctx, req.CompanyID, req.Item)
	if err != nil {
		return nil, err
	}
	levels, err := s.stock.GetLevels(ctx, req.CompanyID, itemID, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	return &StockResult{CompanyID: req.CompanyID, Levels: levels}, nil
}

func (s *appService) ListStockLevels(ctx context.Context, companyID int) (*StockResult, error) {
	levels, err := s.stock.ListLevels(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &StockResult{CompanyID: companyID, Levels: levels}, nil
}

func (s *appService) GetMovements(ctx context.Context, stockLevelID int) (*MovementsResult, error) {
	lvl, movements, err := s.stock.Movements(ctx, stockLevelID)
	if err != nil {
		return nil, err
	}
	return &MovementsResult{Level: lvl, Movements: movements}, nil
}

func (s *appService) ExplainStockLevel(ctx context.Context, stockLevelID int) (*ai.StockExplanation, error) {
	if s.explainer == nil {
		return nil, ErrExplainerDisabled
	}
	lvl, movements, err := s.stock.Movements(ctx, stockLevelID)
	if err != nil {
		return nil, err
	}
	return s.explainer.ExplainStockLevel(ctx, lvl, movements)
}

func (s *appService) VerifyStock(ctx context.Context, companyID int) ([]core.Discrepancy, error) {
	levels, err := s.stock.ListLevels(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var out []core.Discrepancy
	for _, lvl := range levels {
		_, movements, err := s.stock.Movements(ctx, lvl.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load trail of stock level %d: %w", lvl.ID, err)
		}
		out = append(out, core.VerifyTrail(lvl, movements)...)
	}
	return out, nil
}

func (s *appService) PlanAllocation(ctx context.Context, req PlanRequest) (*core.Plan, error) {
	basis, err := core.ParseBasis(req.Basis)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrInvalidInput)
	}
	itemID, err := s.resolveItem(ctx, req.CompanyID, req.Item)
	if err != nil {
		return nil, err
	}
	plan, err := s.planner.PlanAllocation(ctx, req.CompanyID, itemID, req.WarehouseID, req.Quantity, basis)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ── Picking ───────────────────────────────────────────────────────────────────

func (s *appService) CreatePickingSlip(ctx context.Context, req CreateSlipRequest) (*core.SlipResult, error) {
	in := core.CreateSlipInput{
		CompanyID:   req.CompanyID,
		OrderID:     req.OrderID,
		WarehouseID: req.WarehouseID,
	}
	for _, line := range req.Lines {
		itemID, err := s.resolveItem(ctx, req.CompanyID, line.Item)
		if err != nil {
			return nil, err
		}
		in.Lines = append(in.Lines, core.SlipLineInput{
			OrderLineID: line.OrderLineID,
			ItemID:      itemID,
			PartNumber:  line.Item.PartNumber,
			Quantity:    line.Quantity,
		})
	}
	res, err := s.picking.CreateSlip(ctx, in, req.Actor)
	return res, s.observe("create picking slip", err)
}

func (s *appService) GetPickingSlip(ctx context.Context, slipID int) (*core.SlipResult, error) {
	return s.picking.GetSlip(ctx, slipID)
}

func (s *appService) SuggestPicks(ctx context.Context, slipID int) ([]core.LineSuggestion, error) {
	return s.picking.Suggest(ctx, slipID)
}

func (s *appService) AssignPickingSlip(ctx context.Context, slipID, pickerID int, actor core.Audit) (*core.PickingSlip, error) {
	slip, err := s.picking.Assign(ctx, slipID, pickerID, actor)
	return slip, s.observe("assign picking slip", err)
}

func (s *appService) ConfirmPickingSlip(ctx context.Context, req ConfirmPickRequest) (*core.ConfirmResult, error) {
	res, err := s.picking.Confirm(ctx, req.SlipID, req.Lines, req.CreateBackorder, req.Actor)
	return res, s.observe("confirm picking slip", err)
}

// ── Shipments ─────────────────────────────────────────────────────────────────

func (s *appService) CreateShipment(ctx context.Context, req core.CreateShipmentInput, actor core.Audit) (*core.Shipment, error) {
	sh, err := s.shipments.CreateShipment(ctx, req, actor)
	return sh, s.observe("create shipment", err)
}

func (s *appService) GetShipment(ctx context.Context, shipmentID int) (*ShipmentResult, error) {
	sh, notes, err := s.shipments.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh, DeliveryNotes: notes}, nil
}

func (s *appService) LoadDeliveryNote(ctx context.Context, shipmentID, deliveryNoteID int, actor core.Audit) (*core.DeliveryNote, error) {
	note, err := s.shipments.LoadDeliveryNote(ctx, shipmentID, deliveryNoteID, actor)
	return note, s.observe("load delivery note", err)
}

func (s *appService) UpdateShipmentStatus(ctx context.Context, shipmentID int, status string, actor core.Audit) (*core.Shipment, error) {
	sh, err := s.shipments.UpdateStatus(ctx, shipmentID, core.ShipmentStatus(status), actor)
	return sh, s.observe("update shipment status", err)
}

func (s *appService) UnloadDeliveryNote(ctx context.Context, req core.UnloadInput, actor core.Audit) (*core.UnloadResult, error) {
	res, err := s.shipments.Unload(ctx, req, actor)
	return res, s.observe("unload delivery note", err)
}

func (s *appService) GetDeliveryNote(ctx context.Context, deliveryNoteID int) (*core.DeliveryNote, error) {
	return s.shipments.GetDeliveryNote(ctx, deliveryNoteID)
}

func (s *appService) MarkDelivered(ctx context.Context, deliveryNoteID int, actor core.Audit) (*core.DeliveryNote, error) {
	note, err := s.shipments.MarkDelivered(ctx, deliveryNoteID, actor)
	return note, s.observe("mark delivered", err)
}

func (s *appService) CancelDeliveryNote(ctx context.Context, deliveryNoteID int, req core.CancelInput, actor core.Audit) (*core.ReturnNote, error) {
	rn, err := s.shipments.CancelAndReturn(ctx, deliveryNoteID, req, actor)
	return rn, s.observe("cancel delivery note", err)
}

// ── Returns ───────────────────────────────────────────────────────────────────

func (s *appService) CreateCustomerReturn(ctx context.Context, req core.CustomerReturnInput, actor core.Audit) (*core.ReturnNote, error) {
	rn, err := s.returns.CreateCustomerReturn(ctx, req, actor)
	return rn, s.observe("create customer return", err)
}

func (s *appService) GetReturnNote(ctx context.Context, returnNoteID int) (*core.ReturnNote, error) {
	return s.returns.Get(ctx, returnNoteID)
}

func (s *appService) AddReturnEvidence(ctx context.Context, returnNoteID int, req core.EvidenceInput, actor core.Audit) (*core.ReturnNote, error) {
	rn, err := s.returns.AddEvidence(ctx, returnNoteID, req, actor)
	return rn, s.observe("add return evidence", err)
}

func (s *appService) CompleteReturn(ctx context.Context, returnNoteID int, locationID *int, actor core.Audit) (*core.ReturnNote, error) {
	rn, err := s.returns.Complete(ctx, returnNoteID, locationID, actor)
	return rn, s.observe("complete return", err)
}

// ── private helpers ───────────────────────────────────────────────────────────

// resolveItem returns ref's UUID, looking the part number up in the catalog if needed.
func (s *appService) resolveItem(ctx context.Context, companyID int, ref ItemRef) (uuid.UUID, error) {
	if ref.ItemID != uuid.Nil {
		return ref.ItemID, nil
	}
	if ref.PartNumber == "" {
		return uuid.Nil, fmt.Errorf("item_id or part_number is required: %w", core.ErrInvalidInput)
	}
	item, err := s.items.FindByPartNumber(ctx, companyID, ref.PartNumber)
	if err != nil {
		return uuid.Nil, err
	}
	return item.UUID, nil
}

// observe logs workflow failures by severity. Invalid transitions point at an
// inconsistent caller or a bug and are logged at error level.
func (s *appService) observe(op string, err error) error {
	switch {
	case err == nil:
	case errors.Is(err, core.ErrInvalidTransition):
		s.logger.Error("invalid transition", zap.String("op", op), zap.Error(err))
	case errors.Is(err, core.ErrConcurrentUpdate):
		s.logger.Warn("concurrent stock update", zap.String("op", op), zap.Error(err))
	case errors.Is(err, core.ErrInsufficientStock), errors.Is(err, core.ErrAlreadyAssigned),
		errors.Is(err, core.ErrMissingEvidence), errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrInvalidQuantity):
		s.logger.Info("request rejected", zap.String("op", op), zap.Error(err))
	default:
		s.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}
