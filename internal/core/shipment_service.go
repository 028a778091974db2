package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateShipmentInput plans a vehicle trip for ready delivery notes.
type CreateShipmentInput struct {
	CompanyID       int    `json:"company_id"`
	VehicleRef      string `json:"vehicle_ref"`
	DeliveryNoteIDs []int  `json:"delivery_note_ids"`
}

// UnloadTarget says where unloaded goods go.
type UnloadTarget string

const (
	UnloadToStock  UnloadTarget = "stock"  // back on the shelf, still committed to the order
	UnloadToReturn UnloadTarget = "return" // reverse the order line through an internal return
)

// UnloadMode says whether a whole delivery note or part of it comes off the vehicle.
type UnloadMode string

const (
	UnloadWhole   UnloadMode = "whole"
	UnloadPartial UnloadMode = "partial"
)

// UnloadItem takes part of a slip line off the vehicle.
type UnloadItem struct {
	SlipItemID int             `json:"slip_item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// UnloadInput removes a delivery note, whole or in part, from a planned shipment.
// Items are required for a partial unload and rejected for a whole one.
type UnloadInput struct {
	ShipmentID     int          `json:"shipment_id"`
	DeliveryNoteID int          `json:"delivery_note_id"`
	Mode           UnloadMode   `json:"mode"`
	Items          []UnloadItem `json:"items,omitempty"`
	Target         UnloadTarget `json:"target"`
	Reason         string       `json:"reason,omitempty"`
}

// UnloadResult reports the documents touched by an unload.
type UnloadResult struct {
	DeliveryNote *DeliveryNote `json:"delivery_note"`
	SplitSlip    *PickingSlip  `json:"split_slip,omitempty"`
	SplitNote    *DeliveryNote `json:"split_note,omitempty"`
	ReturnNote   *ReturnNote   `json:"return_note,omitempty"`
}

// CancelInput reverses a delivery note.
type CancelInput struct {
	Reason string `json:"reason"`
	// ReturnLocationID is where a customer return will be received, when already known.
	ReturnLocationID *int `json:"return_location_id,omitempty"`
}

// ShipmentService moves delivery notes onto vehicles, out of the building and back.
type ShipmentService interface {
	CreateShipment(ctx context.Context, in CreateShipmentInput, a Audit) (*Shipment, error)
	LoadDeliveryNote(ctx context.Context, shipmentID, deliveryNoteID int, a Audit) (*DeliveryNote, error)
	// UpdateStatus drives planned → shipped (stock deduction) and shipped → completed.
	UpdateStatus(ctx context.Context, shipmentID int, status ShipmentStatus, a Audit) (*Shipment, error)
	MarkDelivered(ctx context.Context, deliveryNoteID int, a Audit) (*DeliveryNote, error)
	Unload(ctx context.Context, in UnloadInput, a Audit) (*UnloadResult, error)
	// CancelAndReturn reverses a ready_to_ship or shipped note. Before departure the hard
	// reservation is released and an internal return is completed at once; after departure
	// a pending customer return is opened instead. Delivered notes go through
	// ReturnService.CreateCustomerReturn.
	CancelAndReturn(ctx context.Context, deliveryNoteID int, in CancelInput, a Audit) (*ReturnNote, error)
	GetShipment(ctx context.Context, shipmentID int) (*Shipment, []*DeliveryNote, error)
	GetDeliveryNote(ctx context.Context, deliveryNoteID int) (*DeliveryNote, error)
}

type shipmentService struct {
	store        Store
	logger       *zap.Logger
	fallbackCode string
}

// NewShipmentService constructs a ShipmentService. fallbackCode names the location that
// absorbs departures of items without any hard reservation; empty disables the fallback.
func NewShipmentService(store Store, logger *zap.Logger, fallbackCode string) ShipmentService {
	return &shipmentService{store: store, logger: logger, fallbackCode: fallbackCode}
}

func (s *shipmentService) CreateShipment(ctx context.Context, in CreateShipmentInput, a Audit) (*Shipment, error) {
	var out *Shipment
	err := s.store.InTx(ctx, func(tx Tx) error {
		number, err := tx.Sequences().Next(ctx, in.CompanyID, "SH")
		if err != nil {
			return fmt.Errorf("failed to number shipment: %w", err)
		}
		sh := &Shipment{
			CompanyID:  in.CompanyID,
			Number:     number,
			VehicleRef: in.VehicleRef,
			Status:     ShipmentPlanned,
			CreatedAt:  nowFunc(),
		}
		if err := tx.Shipments().Create(ctx, sh); err != nil {
			return fmt.Errorf("failed to create shipment: %w", err)
		}
		for _, id := range in.DeliveryNoteIDs {
			if _, err := loadNote(ctx, tx, sh, id); err != nil {
				return err
			}
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("shipment planned",
		zap.String("shipment", out.Number), zap.Ints("delivery_notes", in.DeliveryNoteIDs))
	return out, nil
}

func (s *shipmentService) LoadDeliveryNote(ctx context.Context, shipmentID, deliveryNoteID int, a Audit) (*DeliveryNote, error) {
	var out *DeliveryNote
	err := s.store.InTx(ctx, func(tx Tx) error {
		sh, err := tx.Shipments().Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		out, err = loadNote(ctx, tx, sh, deliveryNoteID)
		return err
	})
	return out, err
}

func loadNote(ctx context.Context, tx Tx, sh *Shipment, noteID int) (*DeliveryNote, error) {
	if sh.Status != ShipmentPlanned {
		return nil, invalidTransition("load", "shipment %s is %s", sh.Number, sh.Status)
	}
	note, err := tx.DeliveryNotes().Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	switch {
	case note.CompanyID != sh.CompanyID:
		return nil, notFound("delivery note", noteID)
	case note.Status != DeliveryReadyToShip:
		return nil, invalidTransition("load", "delivery note %s is %s, not ready_to_ship", note.Number, note.Status)
	case note.ShipmentID != nil && *note.ShipmentID == sh.ID:
		return note, nil
	case note.ShipmentID != nil:
		return nil, invalidTransition("load", "delivery note %s is already on shipment %d", note.Number, *note.ShipmentID)
	}
	note.ShipmentID = &sh.ID
	if err := tx.DeliveryNotes().Update(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to load delivery note: %w", err)
	}
	return note, nil
}

func (s *shipmentService) UpdateStatus(ctx context.Context, shipmentID int, status ShipmentStatus, a Audit) (*Shipment, error) {
	var out *Shipment
	err := s.store.InTx(ctx, func(tx Tx) error {
		sh, err := tx.Shipments().Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		switch status {
		case ShipmentShipped:
			err = s.depart(ctx, tx, sh, a)
		case ShipmentCompleted:
			err = complete(ctx, tx, sh)
		default:
			err = invalidTransition("update shipment", "cannot move shipment %s to %q", sh.Number, status)
		}
		if err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("shipment status updated", zap.String("shipment", out.Number), zap.String("status", string(out.Status)))
	return out, nil
}

func (s *shipmentService) depart(ctx context.Context, tx Tx, sh *Shipment, a Audit) error {
	if sh.Status != ShipmentPlanned {
		return invalidTransition("depart", "shipment %s is %s", sh.Number, sh.Status)
	}
	notes, err := tx.DeliveryNotes().ListByShipment(ctx, sh.ID)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		return invalidTransition("depart", "shipment %s has no delivery notes", sh.Number)
	}

	var (
		leaving []*DeliveryNote
		lines   []shipLine
	)
	for _, note := range notes {
		switch note.Status {
		case DeliveryShipped, DeliveryCancelled:
			// already deducted, or reversed
			continue
		case DeliveryReadyToShip:
		default:
			return invalidTransition("depart", "delivery note %s is %s", note.Number, note.Status)
		}
		slip, err := tx.Slips().Get(ctx, note.PickingSlipID)
		if err != nil {
			return err
		}
		for _, item := range slip.Items {
			if item.QuantityPicked.IsPositive() {
				lines = append(lines, shipLine{note: note, slip: slip, item: item})
			}
		}
		leaving = append(leaving, note)
	}
	sortByItem(lines, func(l shipLine) uuid.UUID { return l.item.ItemID })
	for _, l := range lines {
		if err := s.deductLine(ctx, tx, l, a.WithReference("delivery_note:"+l.note.Number)); err != nil {
			return err
		}
	}

	now := nowFunc()
	for _, note := range leaving {
		note.Status = DeliveryShipped
		note.ShippedAt = &now
		if err := tx.DeliveryNotes().Update(ctx, note); err != nil {
			return fmt.Errorf("failed to mark delivery note shipped: %w", err)
		}
	}

	sh.Status = ShipmentShipped
	sh.DepartedAt = &now
	if err := tx.Shipments().Update(ctx, sh); err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return nil
}

// shipLine is one picked slip line leaving on a departing shipment.
type shipLine struct {
	note *DeliveryNote
	slip *PickingSlip
	item PickingSlipItem
}

// deductLine deducts the physical stock of one picked line.
func (s *shipmentService) deductLine(ctx context.Context, tx Tx, l shipLine, a Audit) error {
	slip, item := l.slip, l.item
	levels, err := findByBasis(ctx, tx.Stock(), slip.CompanyID, item.ItemID, slip.WarehouseID, BasisHard)
	if err != nil {
		return err
	}
	var fallback *StockLevel
	if len(levels) == 0 && s.fallbackCode != "" {
		fallback, err = tx.Stock().FindByLocationCode(ctx, slip.CompanyID, item.ItemID, slip.WarehouseID, s.fallbackCode)
		if err != nil {
			return fmt.Errorf("failed to load fallback location: %w", err)
		}
	}

	plan := PlanDeduction(levels, item.QuantityPicked, fallback)
	if plan.Shortfall().IsPositive() {
		return invalidTransition("depart", "delivery note %s: item %s has %s hard-reserved for %s picked",
			l.note.Number, item.PartNumber, plan.Total(), item.QuantityPicked)
	}
	return applyPlan(ctx, tx.Stock(), plan, func(lvl *StockLevel, q decimal.Decimal) error {
		if len(levels) == 0 {
			s.logger.Warn("no hard reservation for shipped item, deducting from fallback location",
				zap.String("delivery_note", l.note.Number),
				zap.String("item_id", item.ItemID.String()),
				zap.String("location", lvl.LocationCode),
				zap.String("quantity", q.String()))
			return lvl.DeductUnreserved(q, a)
		}
		return lvl.ShipReserved(q, a)
	})
}

func complete(ctx context.Context, tx Tx, sh *Shipment) error {
	if sh.Status != ShipmentShipped {
		return invalidTransition("complete", "shipment %s is %s", sh.Number, sh.Status)
	}
	notes, err := tx.DeliveryNotes().ListByShipment(ctx, sh.ID)
	if err != nil {
		return err
	}
	now := nowFunc()
	for _, note := range notes {
		if note.Status != DeliveryShipped {
			continue
		}
		note.Status = DeliveryDelivered
		note.DeliveredAt = &now
		if err := tx.DeliveryNotes().Update(ctx, note); err != nil {
			return fmt.Errorf("failed to mark delivery note delivered: %w", err)
		}
	}
	sh.Status = ShipmentCompleted
	sh.CompletedAt = &now
	if err := tx.Shipments().Update(ctx, sh); err != nil {
		return fmt.Errorf("failed to complete shipment: %w", err)
	}
	return nil
}

func (s *shipmentService) MarkDelivered(ctx context.Context, deliveryNoteID int, a Audit) (*DeliveryNote, error) {
	var out *DeliveryNote
	err := s.store.InTx(ctx, func(tx Tx) error {
		note, err := tx.DeliveryNotes().Get(ctx, deliveryNoteID)
		if err != nil {
			return err
		}
		if note.Status != DeliveryShipped {
			return invalidTransition("deliver", "delivery note %s is %s", note.Number, note.Status)
		}
		now := nowFunc()
		note.Status = DeliveryDelivered
		note.DeliveredAt = &now
		if err := tx.DeliveryNotes().Update(ctx, note); err != nil {
			return fmt.Errorf("failed to mark delivery note delivered: %w", err)
		}
		if note.ShipmentID != nil {
			if err := settleShipment(ctx, tx, *note.ShipmentID); err != nil {
				return err
			}
		}
		out = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("delivery note delivered", zap.String("delivery_note", out.Number))
	return out, nil
}

// settleShipment completes a departed shipment once no note on it is still on the road,
// that is every note is delivered or cancelled.
func settleShipment(ctx context.Context, tx Tx, shipmentID int) error {
	sh, err := tx.Shipments().Get(ctx, shipmentID)
	if err != nil {
		return err
	}
	if sh.Status != ShipmentShipped {
		return nil
	}
	notes, err := tx.DeliveryNotes().ListByShipment(ctx, shipmentID)
	if err != nil {
		return err
	}
	for _, n := range notes {
		switch n.Status {
		case DeliveryDelivered, DeliveryCancelled:
		default:
			return nil
		}
	}
	now := nowFunc()
	sh.Status = ShipmentCompleted
	sh.CompletedAt = &now
	if err := tx.Shipments().Update(ctx, sh); err != nil {
		return fmt.Errorf("failed to complete shipment: %w", err)
	}
	return nil
}

func (s *shipmentService) Unload(ctx context.Context, in UnloadInput, a Audit) (*UnloadResult, error) {
	switch in.Target {
	case UnloadToStock, UnloadToReturn:
	default:
		return nil, fmt.Errorf("unload target %q: %w", in.Target, ErrInvalidInput)
	}
	switch {
	case in.Mode == UnloadWhole && len(in.Items) > 0:
		return nil, fmt.Errorf("whole unload takes no items: %w", ErrInvalidInput)
	case in.Mode == UnloadPartial && len(in.Items) == 0:
		return nil, fmt.Errorf("partial unload needs at least one item: %w", ErrInvalidInput)
	case in.Mode != UnloadWhole && in.Mode != UnloadPartial:
		return nil, fmt.Errorf("unload mode %q: %w", in.Mode, ErrInvalidInput)
	}

	var out *UnloadResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		sh, err := tx.Shipments().Get(ctx, in.ShipmentID)
		if err != nil {
			return err
		}
		if sh.Status != ShipmentPlanned {
			return invalidTransition("unload", "shipment %s already %s", sh.Number, sh.Status)
		}
		note, err := tx.DeliveryNotes().Get(ctx, in.DeliveryNoteID)
		if err != nil {
			return err
		}
		if note.ShipmentID == nil || *note.ShipmentID != sh.ID {
			return invalidTransition("unload", "delivery note %s is not on shipment %s", note.Number, sh.Number)
		}
		if note.Status != DeliveryReadyToShip {
			return invalidTransition("unload", "delivery note %s is %s", note.Number, note.Status)
		}

		if in.Mode == UnloadWhole {
			out, err = unloadWhole(ctx, tx, note, in, a)
		} else {
			out, err = unloadPartial(ctx, tx, note, in, a)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	fields := []zap.Field{
		zap.Int("shipment_id", in.ShipmentID),
		zap.String("delivery_note", out.DeliveryNote.Number),
		zap.String("mode", string(in.Mode)),
		zap.String("target", string(in.Target)),
	}
	if out.SplitNote != nil {
		fields = append(fields, zap.String("split_note", out.SplitNote.Number))
	}
	s.logger.Info("delivery note unloaded", fields...)
	return out, nil
}

func unloadWhole(ctx context.Context, tx Tx, note *DeliveryNote, in UnloadInput, a Audit) (*UnloadResult, error) {
	note.ShipmentID = nil
	if err := tx.DeliveryNotes().Update(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to unload delivery note: %w", err)
	}
	res := &UnloadResult{DeliveryNote: note}
	if in.Target == UnloadToReturn {
		rn, err := cancelAndReturnTx(ctx, tx, note, CancelInput{Reason: in.Reason}, a)
		if err != nil {
			return nil, err
		}
		res.ReturnNote = rn
	}
	return res, nil
}

// unloadPartial moves the unloaded quantities onto a new done slip with its own ready
// delivery note. Hard reservations stay where they are; only the paperwork splits.
func unloadPartial(ctx context.Context, tx Tx, note *DeliveryNote, in UnloadInput, a Audit) (*UnloadResult, error) {
	slip, err := tx.Slips().Get(ctx, note.PickingSlipID)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	split := &PickingSlip{
		CompanyID:   slip.CompanyID,
		OrderID:     slip.OrderID,
		WarehouseID: slip.WarehouseID,
		SplitFromID: &slip.ID,
		Status:      SlipDone,
		PickerID:    slip.PickerID,
		CreatedAt:   now,
		AssignedAt:  slip.AssignedAt,
		CompletedAt: &now,
	}
	for _, u := range in.Items {
		item, ok := slip.Item(u.SlipItemID)
		if !ok {
			return nil, fmt.Errorf("slip item %d is not on picking slip %s: %w", u.SlipItemID, slip.Number, ErrInvalidInput)
		}
		if !u.Quantity.IsPositive() {
			return nil, fmt.Errorf("unload %s of slip item %d: %w", u.Quantity, u.SlipItemID, ErrInvalidQuantity)
		}
		if u.Quantity.GreaterThan(item.QuantityPicked) {
			return nil, invalidTransition("unload", "slip item %d: unloading %s but only %s picked",
				item.ID, u.Quantity, item.QuantityPicked)
		}
		item.QuantityPicked = item.QuantityPicked.Sub(u.Quantity)
		item.QuantityRequested = item.QuantityRequested.Sub(u.Quantity)
		split.Items = append(split.Items, PickingSlipItem{
			OrderLineID:       item.OrderLineID,
			ItemID:            item.ItemID,
			PartNumber:        item.PartNumber,
			QuantityRequested: u.Quantity,
			QuantityPicked:    u.Quantity,
		})
	}
	if err := tx.Slips().Update(ctx, slip); err != nil {
		return nil, fmt.Errorf("failed to update picking slip: %w", err)
	}

	if split.Number, err = tx.Sequences().Next(ctx, slip.CompanyID, "PS"); err != nil {
		return nil, fmt.Errorf("failed to number split slip: %w", err)
	}
	if err := tx.Slips().Create(ctx, split); err != nil {
		return nil, fmt.Errorf("failed to create split slip: %w", err)
	}
	splitNote := &DeliveryNote{
		CompanyID:     slip.CompanyID,
		PickingSlipID: split.ID,
		Status:        DeliveryReadyToShip,
		CreatedAt:     now,
	}
	if splitNote.Number, err = tx.Sequences().Next(ctx, slip.CompanyID, "DN"); err != nil {
		return nil, fmt.Errorf("failed to number split delivery note: %w", err)
	}
	if err := tx.DeliveryNotes().Create(ctx, splitNote); err != nil {
		return nil, fmt.Errorf("failed to create split delivery note: %w", err)
	}

	res := &UnloadResult{DeliveryNote: note, SplitSlip: split, SplitNote: splitNote}
	if in.Target == UnloadToReturn {
		rn, err := cancelAndReturnTx(ctx, tx, splitNote, CancelInput{Reason: in.Reason}, a)
		if err != nil {
			return nil, err
		}
		res.ReturnNote = rn
	}
	return res, nil
}

func (s *shipmentService) CancelAndReturn(ctx context.Context, deliveryNoteID int, in CancelInput, a Audit) (*ReturnNote, error) {
	var out *ReturnNote
	err := s.store.InTx(ctx, func(tx Tx) error {
		note, err := tx.DeliveryNotes().Get(ctx, deliveryNoteID)
		if err != nil {
			return err
		}
		out, err = cancelAndReturnTx(ctx, tx, note, in, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("delivery note cancelled",
		zap.Int("delivery_note_id", deliveryNoteID),
		zap.String("return_note", out.Number),
		zap.String("kind", string(out.Kind)))
	return out, nil
}

func cancelAndReturnTx(ctx context.Context, tx Tx, note *DeliveryNote, in CancelInput, a Audit) (*ReturnNote, error) {
	switch note.Status {
	case DeliveryReadyToShip, DeliveryShipped:
	case DeliveryDelivered:
		return nil, invalidTransition("cancel", "delivery note %s is delivered; open a customer return instead", note.Number)
	default:
		return nil, invalidTransition("cancel", "delivery note %s is %s", note.Number, note.Status)
	}
	slip, err := tx.Slips().Get(ctx, note.PickingSlipID)
	if err != nil {
		return nil, err
	}
	returned, err := returnedQuantities(ctx, tx, note.ID)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	rn := &ReturnNote{
		CompanyID:      note.CompanyID,
		DeliveryNoteID: note.ID,
		Reason:         in.Reason,
		LocationID:     in.ReturnLocationID,
		CreatedBy:      a.ActorID,
		CreatedAt:      now,
	}
	for _, item := range slip.Items {
		open := item.QuantityPicked.Sub(returned[item.ID])
		if !open.IsPositive() {
			continue
		}
		rn.Items = append(rn.Items, ReturnNoteItem{
			SlipItemID:  item.ID,
			OrderLineID: item.OrderLineID,
			ItemID:      item.ItemID,
			WarehouseID: slip.WarehouseID,
			Quantity:    open,
		})
	}
	if len(rn.Items) == 0 {
		return nil, invalidTransition("cancel", "delivery note %s has nothing left to return", note.Number)
	}
	sortByItem(rn.Items, func(it ReturnNoteItem) uuid.UUID { return it.ItemID })
	if rn.Number, err = tx.Sequences().Next(ctx, note.CompanyID, "RN"); err != nil {
		return nil, fmt.Errorf("failed to number return note: %w", err)
	}
	audit := a.WithReference("return_note:" + rn.Number)

	var settle *int
	switch note.Status {
	case DeliveryReadyToShip:
		// Stock never left: release the hard reservation and reverse the order line now.
		for _, item := range rn.Items {
			levels, err := findByBasis(ctx, tx.Stock(), note.CompanyID, item.ItemID, item.WarehouseID, BasisHard)
			if err != nil {
				return nil, err
			}
			plan := PlanAllocation(levels, item.Quantity, BasisHard)
			if err := applyPlan(ctx, tx.Stock(), plan, func(lvl *StockLevel, q decimal.Decimal) error {
				lvl.ReleaseHardReservation(q, audit)
				return nil
			}); err != nil {
				return nil, err
			}
			if err := tx.OrderLines().DecrementShipped(ctx, item.OrderLineID, item.Quantity); err != nil {
				return nil, fmt.Errorf("failed to update order line %d: %w", item.OrderLineID, err)
			}
		}
		rn.Kind = ReturnInternal
		rn.Status = ReturnCompleted
		rn.CompletedAt = &now
		note.ShipmentID = nil
	case DeliveryShipped:
		// Stock is with the carrier; it comes back through Complete.
		rn.Kind = ReturnCustomer
		rn.Status = ReturnPending
		settle = note.ShipmentID
	default:
		return nil, invalidTransition("cancel", "delivery note %s is %s", note.Number, note.Status)
	}

	if err := tx.Returns().Create(ctx, rn); err != nil {
		return nil, fmt.Errorf("failed to create return note: %w", err)
	}
	note.Status = DeliveryCancelled
	note.CancelledAt = &now
	if err := tx.DeliveryNotes().Update(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to cancel delivery note: %w", err)
	}
	if settle != nil {
		if err := settleShipment(ctx, tx, *settle); err != nil {
			return nil, err
		}
	}
	return rn, nil
}

func (s *shipmentService) GetShipment(ctx context.Context, shipmentID int) (*Shipment, []*DeliveryNote, error) {
	var (
		sh    *Shipment
		notes []*DeliveryNote
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if sh, err = tx.Shipments().Get(ctx, shipmentID); err != nil {
			return err
		}
		notes, err = tx.DeliveryNotes().ListByShipment(ctx, shipmentID)
		return err
	})
	return sh, notes, err
}

func (s *shipmentService) GetDeliveryNote(ctx context.Context, deliveryNoteID int) (*DeliveryNote, error) {
	var note *DeliveryNote
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		note, err = tx.DeliveryNotes().Get(ctx, deliveryNoteID)
		return err
	})
	return note, err
}
