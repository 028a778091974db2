package core_test

import (
	"context"
	"errors"
	"testing"

	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/memory"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	testCompany   = 1
	testWarehouse = 1
	testOrderLine = 501
)

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	stock     core.StockService
	picking   core.PickingService
	shipments core.ShipmentService
	returns   core.ReturnService
	item      uuid.UUID
	locA      int
	locB      int
	general   int
}

func newFixture(t *testing.T, fallbackCode string) *fixture {
	t.Helper()
	st := memory.NewStore()
	logger := zap.NewNop()
	return &fixture{
		ctx:       context.Background(),
		store:     st,
		stock:     core.NewStockService(st),
		picking:   core.NewPickingService(st, logger),
		shipments: core.NewShipmentService(st, logger, fallbackCode),
		returns:   core.NewReturnService(st, logger),
		item:      uuid.New(),
		locA:      st.AddLocation(testWarehouse, "A-01"),
		locB:      st.AddLocation(testWarehouse, "B-01"),
		general:   st.AddLocation(testWarehouse, "GENERAL"),
	}
}

func (f *fixture) receive(t *testing.T, loc int, qty string) {
	t.Helper()
	_, err := f.stock.Receive(f.ctx, core.StockKey{
		CompanyID:   testCompany,
		ItemID:      f.item,
		WarehouseID: testWarehouse,
		LocationID:  loc,
	}, d(qty), core.Audit{ActorID: 1, Memo: "receipt"})
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
}

func (f *fixture) createSlip(t *testing.T, qty string) *core.SlipResult {
	t.Helper()
	res, err := f.picking.CreateSlip(f.ctx, core.CreateSlipInput{
		CompanyID:   testCompany,
		OrderID:     100,
		WarehouseID: testWarehouse,
		Lines: []core.SlipLineInput{
			{OrderLineID: testOrderLine, ItemID: f.item, PartNumber: "BRK-01", Quantity: d(qty)},
		},
	}, core.Audit{ActorID: 1})
	if err != nil {
		t.Fatalf("CreateSlip failed: %v", err)
	}
	return res
}

// pick creates a slip for qty, assigns it and confirms picked.
func (f *fixture) pick(t *testing.T, qty, picked string, backorder bool) *core.ConfirmResult {
	t.Helper()
	res := f.createSlip(t, qty)
	if _, err := f.picking.Assign(f.ctx, res.Slip.ID, 42, core.Audit{ActorID: 42}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	out, err := f.picking.Confirm(f.ctx, res.Slip.ID, []core.PickedLine{
		{SlipItemID: res.Slip.Items[0].ID, Quantity: d(picked)},
	}, backorder, core.Audit{ActorID: 42})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	return out
}

func (f *fixture) ship(t *testing.T, noteIDs ...int) *core.Shipment {
	t.Helper()
	sh, err := f.shipments.CreateShipment(f.ctx, core.CreateShipmentInput{
		CompanyID:       testCompany,
		VehicleRef:      "TRUCK-7",
		DeliveryNoteIDs: noteIDs,
	}, core.Audit{ActorID: 1})
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}
	return sh
}

func (f *fixture) assertLevel(t *testing.T, loc int, onHand, soft, hard string) {
	t.Helper()
	lvl := f.store.Level(f.item, loc)
	if lvl == nil {
		t.Fatalf("no stock level at location %d", loc)
	}
	if !lvl.OnHand.Equal(d(onHand)) || !lvl.SoftReserved.Equal(d(soft)) || !lvl.HardReserved.Equal(d(hard)) {
		t.Errorf("location %s: expected %s/%s/%s, got %s/%s/%s", lvl.LocationCode,
			onHand, soft, hard, lvl.OnHand, lvl.SoftReserved, lvl.HardReserved)
	}
}

func (f *fixture) assertShipped(t *testing.T, qty string) {
	t.Helper()
	if got := f.store.Shipped(testOrderLine); !got.Equal(d(qty)) {
		t.Errorf("expected order line shipped %s, got %s", qty, got)
	}
}

func (f *fixture) assertTrailsReplay(t *testing.T) {
	t.Helper()
	levels, err := f.stock.ListLevels(f.ctx, testCompany)
	if err != nil {
		t.Fatal(err)
	}
	for _, lvl := range levels {
		_, moves, err := f.stock.Movements(f.ctx, lvl.ID)
		if err != nil {
			t.Fatal(err)
		}
		if found := core.VerifyTrail(lvl, moves); len(found) != 0 {
			t.Errorf("trail discrepancies: %+v", found)
		}
	}
}

// ── Picking ───────────────────────────────────────────────────────────────────

func TestPicking_CreateSlipReservesInLocationOrder(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locB, "5")
	f.receive(t, f.locA, "5")

	res := f.createSlip(t, "8")
	if res.Slip.Number != "PS-00001" || res.DeliveryNote.Number != "DN-00001" {
		t.Errorf("unexpected numbers %s / %s", res.Slip.Number, res.DeliveryNote.Number)
	}
	if res.Slip.Status != core.SlipPending || res.DeliveryNote.Status != core.DeliveryWaitOperation {
		t.Errorf("expected pending slip and wait_operation note, got %s / %s", res.Slip.Status, res.DeliveryNote.Status)
	}
	f.assertLevel(t, f.locA, "5", "5", "0")
	f.assertLevel(t, f.locB, "5", "3", "0")

	suggestions, err := f.picking.Suggest(f.ctx, res.Slip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggestions) != 1 || len(suggestions[0].Plan.Allocations) != 2 || suggestions[0].Plan.Allocations[0].LocationCode != "A-01" {
		t.Errorf("unexpected suggestions: %+v", suggestions)
	}
}

func TestPicking_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "3")
	f.receive(t, f.locB, "2")

	_, err := f.picking.CreateSlip(f.ctx, core.CreateSlipInput{
		CompanyID:   testCompany,
		OrderID:     100,
		WarehouseID: testWarehouse,
		Lines:       []core.SlipLineInput{{OrderLineID: testOrderLine, ItemID: f.item, Quantity: d("6")}},
	}, core.Audit{})
	var ise *core.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if !ise.Shortfall().Equal(d("1")) {
		t.Errorf("expected shortfall 1, got %s", ise.Shortfall())
	}
	f.assertLevel(t, f.locA, "3", "0", "0")
	f.assertLevel(t, f.locB, "2", "0", "0")
}

func TestPicking_AssignTwice(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	res := f.createSlip(t, "2")

	if _, err := f.picking.Assign(f.ctx, res.Slip.ID, 7, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.picking.Assign(f.ctx, res.Slip.ID, 7, core.Audit{}); err != nil {
		t.Errorf("re-assigning the same picker should be a no-op, got %v", err)
	}
	if _, err := f.picking.Assign(f.ctx, res.Slip.ID, 8, core.Audit{}); !errors.Is(err, core.ErrAlreadyAssigned) {
		t.Errorf("expected ErrAlreadyAssigned, got %v", err)
	}
}

func TestPicking_ConfirmRequiresAssignment(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	res := f.createSlip(t, "2")

	_, err := f.picking.Confirm(f.ctx, res.Slip.ID, nil, false, core.Audit{})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for an unassigned slip, got %v", err)
	}
}

func TestPicking_FullPick(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	f.receive(t, f.locB, "5")

	out := f.pick(t, "8", "8", false)
	if out.Slip.Status != core.SlipDone || out.DeliveryNote.Status != core.DeliveryReadyToShip {
		t.Errorf("expected done slip and ready_to_ship note, got %s / %s", out.Slip.Status, out.DeliveryNote.Status)
	}
	if out.Backorder != nil {
		t.Error("a full pick must not create a backorder")
	}
	f.assertLevel(t, f.locA, "5", "0", "5")
	f.assertLevel(t, f.locB, "5", "0", "3")
	f.assertShipped(t, "8")

	_, err := f.picking.Confirm(f.ctx, out.Slip.ID, nil, false, core.Audit{})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected a second confirmation to fail, got %v", err)
	}
	f.assertShipped(t, "8")
}

func TestPicking_ShortPickWithBackorder(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	f.receive(t, f.locB, "5")

	out := f.pick(t, "8", "6", true)
	if out.Backorder == nil {
		t.Fatal("expected a backorder slip")
	}
	bo := out.Backorder.Slip
	if bo.BackorderOfID == nil || *bo.BackorderOfID != out.Slip.ID {
		t.Errorf("backorder should point at slip %d, got %v", out.Slip.ID, bo.BackorderOfID)
	}
	if len(bo.Items) != 1 || !bo.Items[0].QuantityRequested.Equal(d("2")) || bo.Status != core.SlipPending {
		t.Errorf("unexpected backorder slip: %+v", bo)
	}
	if out.Backorder.DeliveryNote.Status != core.DeliveryWaitOperation {
		t.Errorf("expected backorder note wait_operation, got %s", out.Backorder.DeliveryNote.Status)
	}
	if !out.Slip.Items[0].QuantityPicked.Equal(d("6")) {
		t.Errorf("expected picked 6, got %s", out.Slip.Items[0].QuantityPicked)
	}

	// 6 committed A5+B1, 2 released from B and re-reserved by the backorder.
	f.assertLevel(t, f.locA, "5", "0", "5")
	f.assertLevel(t, f.locB, "5", "2", "1")
	f.assertShipped(t, "6")
	f.assertTrailsReplay(t)
}

func TestPicking_ShortPickWithoutBackorder(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	f.receive(t, f.locB, "5")

	out := f.pick(t, "8", "6", false)
	if out.Backorder != nil {
		t.Error("backorder was not requested")
	}
	f.assertLevel(t, f.locA, "5", "0", "5")
	f.assertLevel(t, f.locB, "5", "0", "1")
}

func TestPicking_OverPickRejected(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	res := f.createSlip(t, "3")
	if _, err := f.picking.Assign(f.ctx, res.Slip.ID, 1, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	_, err := f.picking.Confirm(f.ctx, res.Slip.ID, []core.PickedLine{
		{SlipItemID: res.Slip.Items[0].ID, Quantity: d("4")},
	}, false, core.Audit{})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	f.assertLevel(t, f.locA, "5", "3", "0")
	f.assertShipped(t, "0")
}

// ── Shipments ─────────────────────────────────────────────────────────────────

func TestShipment_DepartAndComplete(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	f.receive(t, f.locB, "5")
	out := f.pick(t, "8", "8", false)
	sh := f.ship(t, out.DeliveryNote.ID)

	sh, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{ActorID: 3})
	if err != nil {
		t.Fatalf("depart failed: %v", err)
	}
	if sh.Status != core.ShipmentShipped || sh.DepartedAt == nil {
		t.Errorf("expected shipped shipment, got %+v", sh)
	}
	f.assertLevel(t, f.locA, "0", "0", "0")
	f.assertLevel(t, f.locB, "2", "0", "0")

	note, _ := f.shipments.GetDeliveryNote(f.ctx, out.DeliveryNote.ID)
	if note.Status != core.DeliveryShipped {
		t.Errorf("expected note shipped, got %s", note.Status)
	}
	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected departing twice to fail, got %v", err)
	}
	f.assertLevel(t, f.locA, "0", "0", "0")

	sh, err = f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentCompleted, core.Audit{})
	if err != nil {
		t.Fatal(err)
	}
	note, _ = f.shipments.GetDeliveryNote(f.ctx, out.DeliveryNote.ID)
	if sh.Status != core.ShipmentCompleted || note.Status != core.DeliveryDelivered {
		t.Errorf("expected completed/delivered, got %s/%s", sh.Status, note.Status)
	}
	f.assertTrailsReplay(t)
}

func TestShipment_MarkDeliveredSettlesShipment(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "10")
	first := f.pick(t, "2", "2", false)
	second := f.pick(t, "3", "3", false)
	sh := f.ship(t, first.DeliveryNote.ID, second.DeliveryNote.ID)
	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.shipments.MarkDelivered(f.ctx, first.DeliveryNote.ID, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	got, _, _ := f.shipments.GetShipment(f.ctx, sh.ID)
	if got.Status != core.ShipmentShipped {
		t.Errorf("shipment should stay shipped while a note is in transit, got %s", got.Status)
	}
	if _, err := f.shipments.MarkDelivered(f.ctx, second.DeliveryNote.ID, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	got, _, _ = f.shipments.GetShipment(f.ctx, sh.ID)
	if got.Status != core.ShipmentCompleted {
		t.Errorf("expected shipment completed, got %s", got.Status)
	}
}

func TestShipment_LoadRequiresReadyNote(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	res := f.createSlip(t, "2")

	_, err := f.shipments.CreateShipment(f.ctx, core.CreateShipmentInput{
		CompanyID:       testCompany,
		DeliveryNoteIDs: []int{res.DeliveryNote.ID},
	}, core.Audit{})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected loading a wait_operation note to fail, got %v", err)
	}
}

func TestShipment_LoadForeignCompanyNote(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "2", "2", false)

	sh, err := f.shipments.CreateShipment(f.ctx, core.CreateShipmentInput{CompanyID: 2}, core.Audit{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.shipments.LoadDeliveryNote(f.ctx, sh.ID, out.DeliveryNote.ID, core.Audit{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another company's note, got %v", err)
	}
}

func TestShipment_FallbackLocation(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "4")
	out := f.pick(t, "4", "4", false)

	// Reservation lost outside the picking flow; stock is later found in GENERAL.
	if _, err := f.stock.ReleaseHardReservation(f.ctx, testCompany, f.item, f.locA, d("4"), core.Audit{}); err != nil {
		t.Fatal(err)
	}
	f.receive(t, f.general, "10")

	sh := f.ship(t, out.DeliveryNote.ID)
	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatalf("depart failed: %v", err)
	}
	f.assertLevel(t, f.general, "6", "0", "0")
	f.assertLevel(t, f.locA, "4", "0", "0")

	lvl := f.store.Level(f.item, f.general)
	_, moves, err := f.stock.Movements(f.ctx, lvl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if last := moves[len(moves)-1]; last.Kind != core.MovementFallbackDeduct {
		t.Errorf("expected FALLBACK_DEDUCT, got %s", last.Kind)
	}
}

func TestShipment_NoFallbackConfigured(t *testing.T) {
	f := newFixture(t, "")
	f.receive(t, f.locA, "4")
	out := f.pick(t, "4", "4", false)
	if _, err := f.stock.ReleaseHardReservation(f.ctx, testCompany, f.item, f.locA, d("4"), core.Audit{}); err != nil {
		t.Fatal(err)
	}
	f.receive(t, f.general, "10")

	sh := f.ship(t, out.DeliveryNote.ID)
	_, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected departure to fail without reservation or fallback, got %v", err)
	}
	f.assertLevel(t, f.general, "10", "0", "0")
	note, _ := f.shipments.GetDeliveryNote(f.ctx, out.DeliveryNote.ID)
	if note.Status != core.DeliveryReadyToShip {
		t.Errorf("failed departure must leave the note ready_to_ship, got %s", note.Status)
	}
}

func TestShipment_UnloadPartialToStock(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	f.receive(t, f.locB, "5")
	out := f.pick(t, "6", "6", false)
	sh := f.ship(t, out.DeliveryNote.ID)

	res, err := f.shipments.Unload(f.ctx, core.UnloadInput{
		ShipmentID:     sh.ID,
		DeliveryNoteID: out.DeliveryNote.ID,
		Mode:           core.UnloadPartial,
		Items:          []core.UnloadItem{{SlipItemID: out.Slip.Items[0].ID, Quantity: d("2")}},
		Target:         core.UnloadToStock,
	}, core.Audit{})
	if err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	if res.SplitSlip == nil || res.SplitNote == nil || res.ReturnNote != nil {
		t.Fatalf("expected a split slip and note only, got %+v", res)
	}
	if res.SplitSlip.SplitFromID == nil || *res.SplitSlip.SplitFromID != out.Slip.ID {
		t.Errorf("split slip should reference slip %d", out.Slip.ID)
	}
	if res.SplitNote.Status != core.DeliveryReadyToShip || res.SplitNote.ShipmentID != nil {
		t.Errorf("split note should be ready_to_ship and unloaded, got %+v", res.SplitNote)
	}
	// Paperwork splits, stock does not move.
	f.assertLevel(t, f.locA, "5", "0", "5")
	f.assertLevel(t, f.locB, "5", "0", "1")

	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	f.assertLevel(t, f.locA, "1", "0", "1")
	f.assertLevel(t, f.locB, "5", "0", "1")
}

func TestShipment_UnloadWholeToReturn(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "3", "3", false)
	sh := f.ship(t, out.DeliveryNote.ID)

	res, err := f.shipments.Unload(f.ctx, core.UnloadInput{
		ShipmentID:     sh.ID,
		DeliveryNoteID: out.DeliveryNote.ID,
		Mode:           core.UnloadWhole,
		Target:         core.UnloadToReturn,
		Reason:         "customer cancelled",
	}, core.Audit{})
	if err != nil {
		t.Fatal(err)
	}
	if res.ReturnNote == nil || res.ReturnNote.Kind != core.ReturnInternal || res.ReturnNote.Status != core.ReturnCompleted {
		t.Fatalf("expected a completed internal return, got %+v", res.ReturnNote)
	}
	f.assertLevel(t, f.locA, "5", "0", "0")
	f.assertShipped(t, "0")

	_, notes, _ := f.shipments.GetShipment(f.ctx, sh.ID)
	if len(notes) != 0 {
		t.Errorf("expected the shipment to be empty, got %d notes", len(notes))
	}
}

func TestShipment_UnloadPartialToReturn(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	f.receive(t, f.locB, "5")
	out := f.pick(t, "6", "6", false)
	sh := f.ship(t, out.DeliveryNote.ID)

	res, err := f.shipments.Unload(f.ctx, core.UnloadInput{
		ShipmentID:     sh.ID,
		DeliveryNoteID: out.DeliveryNote.ID,
		Mode:           core.UnloadPartial,
		Items:          []core.UnloadItem{{SlipItemID: out.Slip.Items[0].ID, Quantity: d("2")}},
		Target:         core.UnloadToReturn,
		Reason:         "damaged in loading",
	}, core.Audit{})
	if err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	if res.ReturnNote == nil || res.ReturnNote.Kind != core.ReturnInternal || res.ReturnNote.Status != core.ReturnCompleted {
		t.Fatalf("expected a completed internal return, got %+v", res.ReturnNote)
	}
	if len(res.ReturnNote.Items) != 1 || !res.ReturnNote.Items[0].Quantity.Equal(d("2")) {
		t.Errorf("expected the return to cover the 2 unloaded, got %+v", res.ReturnNote.Items)
	}
	if res.SplitNote.Status != core.DeliveryCancelled {
		t.Errorf("expected the split note cancelled, got %s", res.SplitNote.Status)
	}
	// Only the unloaded quantity leaves the hard reservation.
	f.assertLevel(t, f.locA, "5", "0", "3")
	f.assertLevel(t, f.locB, "5", "0", "1")
	f.assertShipped(t, "4")

	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatalf("depart failed: %v", err)
	}
	f.assertLevel(t, f.locA, "2", "0", "0")
	f.assertLevel(t, f.locB, "4", "0", "0")
	f.assertTrailsReplay(t)
}

func TestShipment_UnloadAfterDeparture(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "3", "3", false)
	sh := f.ship(t, out.DeliveryNote.ID)
	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatal(err)
	}

	_, err := f.shipments.Unload(f.ctx, core.UnloadInput{
		ShipmentID:     sh.ID,
		DeliveryNoteID: out.DeliveryNote.ID,
		Mode:           core.UnloadWhole,
		Target:         core.UnloadToStock,
	}, core.Audit{})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected unloading a departed shipment to fail, got %v", err)
	}
	f.assertLevel(t, f.locA, "2", "0", "0")
}

func TestShipment_UnloadModeValidation(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "3", "3", false)
	sh := f.ship(t, out.DeliveryNote.ID)
	items := []core.UnloadItem{{SlipItemID: out.Slip.Items[0].ID, Quantity: d("1")}}

	tests := []struct {
		name  string
		mode  core.UnloadMode
		items []core.UnloadItem
	}{
		{"partial without items", core.UnloadPartial, nil},
		{"whole with items", core.UnloadWhole, items},
		{"missing mode", "", nil},
		{"unknown mode", "some", items},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.shipments.Unload(f.ctx, core.UnloadInput{
				ShipmentID:     sh.ID,
				DeliveryNoteID: out.DeliveryNote.ID,
				Mode:           tt.mode,
				Items:          tt.items,
				Target:         core.UnloadToStock,
			}, core.Audit{})
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	_, notes, _ := f.shipments.GetShipment(f.ctx, sh.ID)
	if len(notes) != 1 {
		t.Errorf("rejected unloads must leave the note on the shipment, got %d notes", len(notes))
	}
	f.assertLevel(t, f.locA, "5", "0", "3")
}

func TestShipment_LocksItemsInOrder(t *testing.T) {
	f := newFixture(t, "GENERAL")
	lo, hi := uuid.New(), uuid.New()
	if string(lo[:]) > string(hi[:]) {
		lo, hi = hi, lo
	}
	for _, id := range []uuid.UUID{lo, hi} {
		if _, err := f.stock.Receive(f.ctx, core.StockKey{
			CompanyID: testCompany, ItemID: id, WarehouseID: testWarehouse, LocationID: f.locA,
		}, d("5"), core.Audit{}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := f.picking.CreateSlip(f.ctx, core.CreateSlipInput{
		CompanyID:   testCompany,
		OrderID:     100,
		WarehouseID: testWarehouse,
		Lines: []core.SlipLineInput{
			{OrderLineID: 601, ItemID: hi, PartNumber: "HI", Quantity: d("2")},
			{OrderLineID: 602, ItemID: lo, PartNumber: "LO", Quantity: d("3")},
		},
	}, core.Audit{})
	if err != nil {
		t.Fatalf("CreateSlip failed: %v", err)
	}
	if res.Slip.Items[0].ItemID != hi || res.Slip.Items[1].ItemID != lo {
		t.Errorf("slip lines must keep the order they were entered in")
	}
	if _, err := f.picking.Assign(f.ctx, res.Slip.ID, 42, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.picking.Confirm(f.ctx, res.Slip.ID, []core.PickedLine{
		{SlipItemID: res.Slip.Items[0].ID, Quantity: d("2")},
		{SlipItemID: res.Slip.Items[1].ID, Quantity: d("3")},
	}, false, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	sh := f.ship(t, res.DeliveryNote.ID)
	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatal(err)
	}

	lastOf := func(id uuid.UUID, kind core.MovementKind) int {
		t.Helper()
		lvl := f.store.Level(id, f.locA)
		_, moves, err := f.stock.Movements(f.ctx, lvl.ID)
		if err != nil {
			t.Fatal(err)
		}
		for i := len(moves) - 1; i >= 0; i-- {
			if moves[i].Kind == kind {
				return moves[i].ID
			}
		}
		t.Fatalf("no %s movement for item %s", kind, id)
		return 0
	}
	for _, kind := range []core.MovementKind{core.MovementReserveSoft, core.MovementCommit, core.MovementShip} {
		if lastOf(lo, kind) > lastOf(hi, kind) {
			t.Errorf("%s: the lower item id must be locked first", kind)
		}
	}
	if lvl := f.store.Level(lo, f.locA); !lvl.OnHand.Equal(d("2")) {
		t.Errorf("expected 2 left of the lower item, got %s", lvl.OnHand)
	}
	if lvl := f.store.Level(hi, f.locA); !lvl.OnHand.Equal(d("3")) {
		t.Errorf("expected 3 left of the higher item, got %s", lvl.OnHand)
	}
}

// ── Cancellation and returns ──────────────────────────────────────────────────

func TestCancel_BeforeDeparture(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "4", "4", false)
	f.ship(t, out.DeliveryNote.ID)

	rn, err := f.shipments.CancelAndReturn(f.ctx, out.DeliveryNote.ID, core.CancelInput{Reason: "order cancelled"}, core.Audit{ActorID: 9})
	if err != nil {
		t.Fatal(err)
	}
	if rn.Kind != core.ReturnInternal || rn.Status != core.ReturnCompleted || rn.Number != "RN-00001" {
		t.Errorf("unexpected return note: %+v", rn)
	}
	f.assertLevel(t, f.locA, "5", "0", "0")
	f.assertShipped(t, "0")

	note, _ := f.shipments.GetDeliveryNote(f.ctx, out.DeliveryNote.ID)
	if note.Status != core.DeliveryCancelled || note.ShipmentID != nil {
		t.Errorf("expected cancelled detached note, got %+v", note)
	}
	if _, err := f.shipments.CancelAndReturn(f.ctx, out.DeliveryNote.ID, core.CancelInput{}, core.Audit{}); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected cancelling twice to fail, got %v", err)
	}
	f.assertTrailsReplay(t)
}

func TestCancel_AfterDepartureNeedsEvidence(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "4", "4", false)
	sh := f.ship(t, out.DeliveryNote.ID)
	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatal(err)
	}

	rn, err := f.shipments.CancelAndReturn(f.ctx, out.DeliveryNote.ID, core.CancelInput{Reason: "refused"}, core.Audit{})
	if err != nil {
		t.Fatal(err)
	}
	if rn.Kind != core.ReturnCustomer || rn.Status != core.ReturnPending {
		t.Fatalf("expected a pending customer return, got %+v", rn)
	}
	f.assertLevel(t, f.locA, "1", "0", "0")
	f.assertShipped(t, "4")
	if got, _, _ := f.shipments.GetShipment(f.ctx, sh.ID); got.Status != core.ShipmentCompleted {
		t.Errorf("a shipment whose only note was cancelled should complete, got %s", got.Status)
	}

	loc := f.locB
	if _, err := f.returns.Complete(f.ctx, rn.ID, &loc, core.Audit{}); !errors.Is(err, core.ErrMissingEvidence) {
		t.Fatalf("expected ErrMissingEvidence, got %v", err)
	}
	if _, err := f.returns.AddEvidence(f.ctx, rn.ID, core.EvidenceInput{URL: "s3://returns/1.jpg", ContentType: "image/jpeg"}, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	done, err := f.returns.Complete(f.ctx, rn.ID, &loc, core.Audit{})
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != core.ReturnCompleted || done.LocationID == nil || *done.LocationID != f.locB {
		t.Errorf("unexpected completed return: %+v", done)
	}
	f.assertLevel(t, f.locB, "4", "0", "0")
	f.assertShipped(t, "0")
}

func TestCustomerReturn_AfterDelivery(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "4", "4", false)
	sh := f.ship(t, out.DeliveryNote.ID)
	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.shipments.MarkDelivered(f.ctx, out.DeliveryNote.ID, core.Audit{}); err != nil {
		t.Fatal(err)
	}

	itemID := out.Slip.Items[0].ID
	loc := f.locA
	rn, err := f.returns.CreateCustomerReturn(f.ctx, core.CustomerReturnInput{
		DeliveryNoteID: out.DeliveryNote.ID,
		Reason:         "damaged",
		LocationID:     &loc,
		Items:          []core.ReturnLineInput{{SlipItemID: itemID, Quantity: d("3")}},
	}, core.Audit{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.returns.CreateCustomerReturn(f.ctx, core.CustomerReturnInput{
		DeliveryNoteID: out.DeliveryNote.ID,
		Items:          []core.ReturnLineInput{{SlipItemID: itemID, Quantity: d("2")}},
	}, core.Audit{})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected returning more than delivered to fail, got %v", err)
	}

	if _, err := f.returns.AddEvidence(f.ctx, rn.ID, core.EvidenceInput{URL: "https://cdn/1.jpg"}, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.returns.Complete(f.ctx, rn.ID, nil, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	f.assertLevel(t, f.locA, "4", "0", "0")
	f.assertShipped(t, "1")

	note, _ := f.shipments.GetDeliveryNote(f.ctx, out.DeliveryNote.ID)
	if note.Status != core.DeliveryDelivered {
		t.Errorf("a customer return must leave the note delivered, got %s", note.Status)
	}
	if _, err := f.returns.Complete(f.ctx, rn.ID, nil, core.Audit{}); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected completing twice to fail, got %v", err)
	}
	f.assertTrailsReplay(t)
}

func TestCancel_DeliveredNoteRejected(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "5", "5", false)
	sh := f.ship(t, out.DeliveryNote.ID)
	if _, err := f.shipments.UpdateStatus(f.ctx, sh.ID, core.ShipmentShipped, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.shipments.MarkDelivered(f.ctx, out.DeliveryNote.ID, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.shipments.CancelAndReturn(f.ctx, out.DeliveryNote.ID, core.CancelInput{}, core.Audit{}); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected cancelling a delivered note to fail, got %v", err)
	}

	loc := f.locA
	rn, err := f.returns.CreateCustomerReturn(f.ctx, core.CustomerReturnInput{
		DeliveryNoteID: out.DeliveryNote.ID,
		LocationID:     &loc,
		Items:          []core.ReturnLineInput{{SlipItemID: out.Slip.Items[0].ID, Quantity: d("3")}},
	}, core.Audit{})
	if err != nil {
		t.Fatal(err)
	}
	// Cancelling after a partial return must not return the full picked quantity again.
	if _, err := f.shipments.CancelAndReturn(f.ctx, out.DeliveryNote.ID, core.CancelInput{}, core.Audit{}); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected cancelling after a customer return to fail, got %v", err)
	}
	if _, err := f.returns.AddEvidence(f.ctx, rn.ID, core.EvidenceInput{URL: "https://cdn/2.jpg"}, core.Audit{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.returns.Complete(f.ctx, rn.ID, nil, core.Audit{}); err != nil {
		t.Fatal(err)
	}

	f.assertLevel(t, f.locA, "3", "0", "0")
	f.assertShipped(t, "2")
	note, _ := f.shipments.GetDeliveryNote(f.ctx, out.DeliveryNote.ID)
	if note.Status != core.DeliveryDelivered {
		t.Errorf("note must stay delivered, got %s", note.Status)
	}
	f.assertTrailsReplay(t)
}

func TestCustomerReturn_RequiresDeliveredNote(t *testing.T) {
	f := newFixture(t, "GENERAL")
	f.receive(t, f.locA, "5")
	out := f.pick(t, "2", "2", false)

	_, err := f.returns.CreateCustomerReturn(f.ctx, core.CustomerReturnInput{
		DeliveryNoteID: out.DeliveryNote.ID,
		Items:          []core.ReturnLineInput{{SlipItemID: out.Slip.Items[0].ID, Quantity: d("1")}},
	}, core.Audit{})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}
