package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SlipLineInput is one line of demand for a new picking slip.
type SlipLineInput struct {
	OrderLineID int             `json:"order_line_id"`
	ItemID      uuid.UUID       `json:"item_id"`
	PartNumber  string          `json:"part_number"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// CreateSlipInput is the demand entry for one sales order at one warehouse.
type CreateSlipInput struct {
	CompanyID   int             `json:"company_id"`
	OrderID     int             `json:"order_id"`
	WarehouseID int             `json:"warehouse_id"`
	Lines       []SlipLineInput `json:"lines"`
}

// PickedLine is the picker's confirmed count for one slip line.
type PickedLine struct {
	SlipItemID int             `json:"slip_item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// LineSuggestion tells the picker where to pick a slip line from.
type LineSuggestion struct {
	SlipItemID int             `json:"slip_item_id"`
	ItemID     uuid.UUID       `json:"item_id"`
	PartNumber string          `json:"part_number"`
	Requested  decimal.Decimal `json:"requested"`
	Plan       Plan            `json:"plan"`
}

// SlipResult is a slip together with its delivery note.
type SlipResult struct {
	Slip         *PickingSlip  `json:"slip"`
	DeliveryNote *DeliveryNote `json:"delivery_note"`
}

// ConfirmResult is the outcome of a pick confirmation. Backorder is nil when every line
// was picked in full or the caller declined a backorder.
type ConfirmResult struct {
	Slip         *PickingSlip  `json:"slip"`
	DeliveryNote *DeliveryNote `json:"delivery_note"`
	Backorder    *SlipResult   `json:"backorder,omitempty"`
}

// PickingService turns sales-order demand into reserved, picked, hard-committed stock.
type PickingService interface {
	// CreateSlip soft-reserves every line from available stock and creates a pending slip
	// with a wait_operation delivery note. Any shortfall fails the whole request.
	CreateSlip(ctx context.Context, in CreateSlipInput, a Audit) (*SlipResult, error)
	// Suggest plans each line against soft reservations without changing anything.
	Suggest(ctx context.Context, slipID int) ([]LineSuggestion, error)
	Assign(ctx context.Context, slipID, pickerID int, a Audit) (*PickingSlip, error)
	// Confirm commits picked quantities to hard reservations, releases the rest and
	// optionally re-reserves the short quantities on a backorder slip.
	Confirm(ctx context.Context, slipID int, picks []PickedLine, createBackorder bool, a Audit) (*ConfirmResult, error)
	GetSlip(ctx context.Context, slipID int) (*SlipResult, error)
}

type pickingService struct {
	store  Store
	logger *zap.Logger
}

func NewPickingService(store Store, logger *zap.Logger) PickingService {
	return &pickingService{store: store, logger: logger}
}

func (s *pickingService) CreateSlip(ctx context.Context, in CreateSlipInput, a Audit) (*SlipResult, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("picking slip needs at least one line: %w", ErrInvalidInput)
	}
	var out *SlipResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		res, err := createSlipTx(ctx, tx, in, nil, a)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("picking slip created",
		zap.String("slip", out.Slip.Number),
		zap.Int("order_id", in.OrderID),
		zap.Int("lines", len(in.Lines)))
	return out, nil
}

// createSlipTx reserves demand and writes the slip and its note inside tx.
func createSlipTx(ctx context.Context, tx Tx, in CreateSlipInput, backorderOf *int, a Audit) (*SlipResult, error) {
	slipNo, err := tx.Sequences().Next(ctx, in.CompanyID, "PS")
	if err != nil {
		return nil, fmt.Errorf("failed to number picking slip: %w", err)
	}
	audit := a.WithReference("picking_slip:" + slipNo)

	now := nowFunc()
	slip := &PickingSlip{
		CompanyID:     in.CompanyID,
		Number:        slipNo,
		OrderID:       in.OrderID,
		WarehouseID:   in.WarehouseID,
		BackorderOfID: backorderOf,
		Status:        SlipPending,
		CreatedAt:     now,
	}
	for _, line := range in.Lines {
		if !line.Quantity.IsPositive() {
			return nil, fmt.Errorf("order line %d quantity %s: %w", line.OrderLineID, line.Quantity, ErrInvalidQuantity)
		}
	}
	ordered := append([]SlipLineInput(nil), in.Lines...)
	sortByItem(ordered, func(l SlipLineInput) uuid.UUID { return l.ItemID })
	for _, line := range ordered {
		if err := reserveDemand(ctx, tx.Stock(), in.CompanyID, in.WarehouseID, line, audit); err != nil {
			return nil, err
		}
	}
	for _, line := range in.Lines {
		slip.Items = append(slip.Items, PickingSlipItem{
			OrderLineID:       line.OrderLineID,
			ItemID:            line.ItemID,
			PartNumber:        line.PartNumber,
			QuantityRequested: line.Quantity,
			QuantityPicked:    decimal.Zero,
		})
	}
	if err := tx.Slips().Create(ctx, slip); err != nil {
		return nil, fmt.Errorf("failed to create picking slip: %w", err)
	}

	noteNo, err := tx.Sequences().Next(ctx, in.CompanyID, "DN")
	if err != nil {
		return nil, fmt.Errorf("failed to number delivery note: %w", err)
	}
	note := &DeliveryNote{
		CompanyID:     in.CompanyID,
		Number:        noteNo,
		PickingSlipID: slip.ID,
		Status:        DeliveryWaitOperation,
		CreatedAt:     now,
	}
	if err := tx.DeliveryNotes().Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create delivery note: %w", err)
	}
	return &SlipResult{Slip: slip, DeliveryNote: note}, nil
}

func reserveDemand(ctx context.Context, repo StockLevelRepository, companyID, warehouseID int, line SlipLineInput, a Audit) error {
	levels, err := findByBasis(ctx, repo, companyID, line.ItemID, warehouseID, BasisAvailable)
	if err != nil {
		return err
	}
	plan := PlanAllocation(levels, line.Quantity, BasisAvailable)
	if plan.Shortfall().IsPositive() {
		return &InsufficientStockError{
			ItemID:    line.ItemID,
			Requested: line.Quantity,
			Available: plan.Total(),
		}
	}
	return applyPlan(ctx, repo, plan, func(lvl *StockLevel, q decimal.Decimal) error {
		return lvl.ReserveSoft(q, a)
	})
}

func (s *pickingService) Suggest(ctx context.Context, slipID int) ([]LineSuggestion, error) {
	var out []LineSuggestion
	err := s.store.InTx(ctx, func(tx Tx) error {
		slip, err := tx.Slips().Get(ctx, slipID)
		if err != nil {
			return err
		}
		for _, item := range slip.Items {
			levels, err := findByBasis(ctx, tx.Stock(), slip.CompanyID, item.ItemID, slip.WarehouseID, BasisSoft)
			if err != nil {
				return err
			}
			out = append(out, LineSuggestion{
				SlipItemID: item.ID,
				ItemID:     item.ItemID,
				PartNumber: item.PartNumber,
				Requested:  item.QuantityRequested,
				Plan:       PlanAllocation(levels, item.QuantityRequested, BasisSoft),
			})
		}
		return nil
	})
	return out, err
}

func (s *pickingService) Assign(ctx context.Context, slipID, pickerID int, a Audit) (*PickingSlip, error) {
	var out *PickingSlip
	err := s.store.InTx(ctx, func(tx Tx) error {
		slip, err := tx.Slips().Get(ctx, slipID)
		if err != nil {
			return err
		}
		switch slip.Status {
		case SlipDone:
			return invalidTransition("assign", "picking slip %s is already done", slip.Number)
		case SlipAssigned:
			if slip.PickerID != nil && *slip.PickerID == pickerID {
				out = slip
				return nil
			}
			return fmt.Errorf("picking slip %s: %w", slip.Number, ErrAlreadyAssigned)
		}
		now := nowFunc()
		slip.Status = SlipAssigned
		slip.PickerID = &pickerID
		slip.AssignedAt = &now
		if err := tx.Slips().Update(ctx, slip); err != nil {
			return fmt.Errorf("failed to assign picking slip: %w", err)
		}
		out = slip
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("picking slip assigned",
		zap.String("slip", out.Number), zap.Int("picker_id", pickerID), zap.Int("actor_id", a.ActorID))
	return out, nil
}

func (s *pickingService) Confirm(ctx context.Context, slipID int, picks []PickedLine, createBackorder bool, a Audit) (*ConfirmResult, error) {
	var out *ConfirmResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		slip, err := tx.Slips().Get(ctx, slipID)
		if err != nil {
			return err
		}
		switch slip.Status {
		case SlipDone:
			return invalidTransition("confirm", "picking slip %s is already confirmed", slip.Number)
		case SlipPending:
			return invalidTransition("confirm", "picking slip %s must be assigned before confirmation", slip.Number)
		}

		picked := make(map[int]decimal.Decimal, len(picks))
		for _, p := range picks {
			if _, ok := slip.Item(p.SlipItemID); !ok {
				return fmt.Errorf("slip item %d is not on picking slip %s: %w", p.SlipItemID, slip.Number, ErrInvalidInput)
			}
			if p.Quantity.IsNegative() {
				return fmt.Errorf("picked quantity %s for slip item %d: %w", p.Quantity, p.SlipItemID, ErrInvalidQuantity)
			}
			picked[p.SlipItemID] = p.Quantity
		}

		audit := a.WithReference("picking_slip:" + slip.Number)
		lines := make([]*PickingSlipItem, len(slip.Items))
		for i := range slip.Items {
			lines[i] = &slip.Items[i]
		}
		sortByItem(lines, func(it *PickingSlipItem) uuid.UUID { return it.ItemID })
		shorts := make(map[int]decimal.Decimal, len(lines))
		for _, item := range lines {
			short, err := confirmLine(ctx, tx, slip, item, picked[item.ID], audit)
			if err != nil {
				return err
			}
			shorts[item.ID] = short
		}

		var backorder []SlipLineInput
		for _, item := range slip.Items {
			if short := shorts[item.ID]; short.IsPositive() && createBackorder {
				backorder = append(backorder, SlipLineInput{
					OrderLineID: item.OrderLineID,
					ItemID:      item.ItemID,
					PartNumber:  item.PartNumber,
					Quantity:    short,
				})
			}
		}

		now := nowFunc()
		slip.Status = SlipDone
		slip.CompletedAt = &now
		if err := tx.Slips().Update(ctx, slip); err != nil {
			return fmt.Errorf("failed to complete picking slip: %w", err)
		}

		note, err := tx.DeliveryNotes().GetBySlip(ctx, slip.ID)
		if err != nil {
			return err
		}
		if note.Status != DeliveryWaitOperation {
			return invalidTransition("confirm", "delivery note %s is %s", note.Number, note.Status)
		}
		note.Status = DeliveryReadyToShip
		if err := tx.DeliveryNotes().Update(ctx, note); err != nil {
			return fmt.Errorf("failed to release delivery note: %w", err)
		}

		out = &ConfirmResult{Slip: slip, DeliveryNote: note}
		if len(backorder) > 0 {
			bo, err := createSlipTx(ctx, tx, CreateSlipInput{
				CompanyID:   slip.CompanyID,
				OrderID:     slip.OrderID,
				WarehouseID: slip.WarehouseID,
				Lines:       backorder,
			}, &slip.ID, a)
			if err != nil {
				return fmt.Errorf("failed to create backorder: %w", err)
			}
			out.Backorder = bo
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("slip", out.Slip.Number), zap.String("delivery_note", out.DeliveryNote.Number)}
	if out.Backorder != nil {
		fields = append(fields, zap.String("backorder", out.Backorder.Slip.Number))
	}
	s.logger.Info("picking slip confirmed", fields...)
	return out, nil
}

// confirmLine commits the picked quantity of one line and releases the rest of its soft
// reservation. It returns the short quantity.
func confirmLine(ctx context.Context, tx Tx, slip *PickingSlip, item *PickingSlipItem, qtyPicked decimal.Decimal, a Audit) (decimal.Decimal, error) {
	levels, err := findByBasis(ctx, tx.Stock(), slip.CompanyID, item.ItemID, slip.WarehouseID, BasisSoft)
	if err != nil {
		return decimal.Zero, err
	}
	suggested := PlanAllocation(levels, item.QuantityRequested, BasisSoft).Total()
	if qtyPicked.GreaterThan(suggested) {
		return decimal.Zero, invalidTransition("confirm",
			"slip item %d: picked %s exceeds the %s soft-reserved for it", item.ID, qtyPicked, suggested)
	}

	if qtyPicked.IsPositive() {
		commit := PlanAllocation(levels, qtyPicked, BasisSoft)
		if err := applyPlan(ctx, tx.Stock(), commit, func(lvl *StockLevel, q decimal.Decimal) error {
			return lvl.CommitReservation(q, a)
		}); err != nil {
			return decimal.Zero, err
		}
		if err := tx.OrderLines().IncrementShipped(ctx, item.OrderLineID, qtyPicked); err != nil {
			return decimal.Zero, fmt.Errorf("failed to update order line %d: %w", item.OrderLineID, err)
		}
	}

	short := item.QuantityRequested.Sub(qtyPicked)
	if short.IsPositive() {
		release := PlanAllocation(levels, short, BasisSoft)
		if err := applyPlan(ctx, tx.Stock(), release, func(lvl *StockLevel, q decimal.Decimal) error {
			lvl.ReleaseSoftReservation(q, a)
			return nil
		}); err != nil {
			return decimal.Zero, err
		}
	}

	item.QuantityPicked = qtyPicked
	return short, nil
}

func (s *pickingService) GetSlip(ctx context.Context, slipID int) (*SlipResult, error) {
	var out *SlipResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		slip, err := tx.Slips().Get(ctx, slipID)
		if err != nil {
			return err
		}
		note, err := tx.DeliveryNotes().GetBySlip(ctx, slipID)
		if err != nil {
			return err
		}
		out = &SlipResult{Slip: slip, DeliveryNote: note}
		return nil
	})
	return out, err
}
