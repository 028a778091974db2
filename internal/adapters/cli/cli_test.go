package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func setup(t *testing.T) (app.ApplicationService, int) {
	t.Helper()
	store := memory.NewStore()
	loc := store.AddLocation(1, "A-01")
	store.AddItem(1, core.CatalogItem{UUID: uuid.New(), PartNumber: "BRK-01"})
	svc := app.NewAppService(store, store, nil, &app.Config{FallbackLocationCode: "GENERAL"}, zap.NewNop())
	return svc, loc
}

func run(t *testing.T, svc app.ApplicationService, in string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := NewRunner(svc, 1, strings.NewReader(in), &out).Run(context.Background(), args)
	return out.String(), err
}

func TestRun_ReceivePlanVerify(t *testing.T) {
	svc, loc := setup(t)

	out, err := run(t, svc, "", "receive", "BRK-01", "1", strconv.Itoa(loc), "10")
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if !strings.Contains(out, "A-01") {
		t.Errorf("expected the received row in output:\n%s", out)
	}

	out, err = run(t, svc, "", "plan", "brk-01", "1", "12")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if !strings.Contains(out, "SHORTFALL") || !strings.Contains(out, "2") {
		t.Errorf("expected a shortfall of 2:\n%s", out)
	}

	out, err = run(t, svc, "", "verify")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(out, "All stock rows match") {
		t.Errorf("unexpected verify output:\n%s", out)
	}
}

func TestRun_Confirm(t *testing.T) {
	svc, loc := setup(t)
	ctx := context.Background()
	if _, err := run(t, svc, "", "rcv", "BRK-01", "1", strconv.Itoa(loc), "5"); err != nil {
		t.Fatal(err)
	}
	res, err := svc.CreatePickingSlip(ctx, app.CreateSlipRequest{
		CompanyID:   1,
		OrderID:     10,
		WarehouseID: 1,
		Lines:       []app.SlipLineInput{{OrderLineID: 1, Item: app.ItemRef{PartNumber: "BRK-01"}, Quantity: decimal.NewFromInt(4)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AssignPickingSlip(ctx, res.Slip.ID, 3, core.Audit{ActorID: 3}); err != nil {
		t.Fatal(err)
	}

	in := fmt.Sprintf(`{"slip_id": %d, "lines": [{"slip_item_id": %d, "quantity": "4"}]}`, res.Slip.ID, res.Slip.Items[0].ID)
	out, err := run(t, svc, in, "confirm")
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !strings.Contains(out, `"ready_to_ship"`) {
		t.Errorf("expected the note to be ready_to_ship:\n%s", out)
	}

	out, err = run(t, svc, "", "ship", "TRUCK-1", strconv.Itoa(res.DeliveryNote.ID))
	if err != nil {
		t.Fatalf("ship failed: %v", err)
	}
	var sh core.Shipment
	if err := json.Unmarshal([]byte(out), &sh); err != nil {
		t.Fatalf("failed to decode shipment: %v", err)
	}
	if _, err := run(t, svc, "", "depart", strconv.Itoa(sh.ID)); err != nil {
		t.Fatalf("depart failed: %v", err)
	}
	out, err = run(t, svc, "", "cancel", strconv.Itoa(res.DeliveryNote.ID), "refused", "at", "door")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	var rn core.ReturnNote
	if err := json.Unmarshal([]byte(out), &rn); err != nil {
		t.Fatalf("failed to decode return note: %v", err)
	}
	if rn.Kind != core.ReturnCustomer || rn.Reason != "refused at door" {
		t.Errorf("expected a customer return, got %+v", rn)
	}
	if _, err := run(t, svc, "", "receive-return", strconv.Itoa(rn.ID), strconv.Itoa(loc)); !errors.Is(err, core.ErrMissingEvidence) {
		t.Errorf("expected ErrMissingEvidence, got %v", err)
	}
	if _, err := run(t, svc, "", "evidence", strconv.Itoa(rn.ID), "s3://returns/1.jpg"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, svc, "", "receive-return", strconv.Itoa(rn.ID), strconv.Itoa(loc)); err != nil {
		t.Fatalf("receive-return failed: %v", err)
	}
}

func TestRun_Usage(t *testing.T) {
	svc, _ := setup(t)
	for _, args := range [][]string{
		nil,
		{"frobnicate"},
		{"stock", "BRK-01"},
		{"moves", "x"},
		{"receive", "BRK-01", "1", "2", "lots"},
	} {
		if _, err := run(t, svc, "", args...); !errors.Is(err, ErrUsage) {
			t.Errorf("%v: expected ErrUsage, got %v", args, err)
		}
	}
	if _, err := run(t, svc, "not json", "confirm"); err == nil || errors.Is(err, ErrUsage) {
		t.Errorf("expected a JSON error, got %v", err)
	}
}

func TestRun_ExplainDisabled(t *testing.T) {
	svc, _ := setup(t)
	if _, err := run(t, svc, "", "explain", "1"); !errors.Is(err, app.ErrExplainerDisabled) {
		t.Errorf("expected ErrExplainerDisabled, got %v", err)
	}
}

func TestRun_Adjust(t *testing.T) {
	svc, loc := setup(t)
	l := strconv.Itoa(loc)
	if _, err := run(t, svc, "", "receive", "BRK-01", "1", l, "10"); err != nil {
		t.Fatal(err)
	}
	for _, step := range [][]string{
		{"reserve_soft", "4"},
		{"commit", "3"},
		{"ship", "2"},
		{"release_hard", "5"},
		{"release_soft", "9"},
	} {
		if _, err := run(t, svc, "", "adjust", step[0], "BRK-01", l, step[1]); err != nil {
			t.Fatalf("adjust %s failed: %v", step[0], err)
		}
	}

	res, err := svc.GetStockLevels(context.Background(), app.StockQuery{CompanyID: 1, Item: app.ItemRef{PartNumber: "BRK-01"}, WarehouseID: 1})
	if err != nil || len(res.Levels) != 1 {
		t.Fatalf("expected one stock level, got %v (%v)", res, err)
	}
	lvl := res.Levels[0]
	if !lvl.OnHand.Equal(decimal.NewFromInt(8)) || !lvl.SoftReserved.IsZero() || !lvl.HardReserved.IsZero() {
		t.Errorf("expected 8/0/0 after adjustments, got %s/%s/%s", lvl.OnHand, lvl.SoftReserved, lvl.HardReserved)
	}

	if _, err := run(t, svc, "", "adjust", "commit", "BRK-01", l, "1"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("expected committing without a soft reservation to fail, got %v", err)
	}
	if _, err := run(t, svc, "", "adjust", "teleport", "BRK-01", l, "1"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for an unknown action, got %v", err)
	}
	if _, err := run(t, svc, "", "adjust", "ship", "BRK-01"); !errors.Is(err, ErrUsage) {
		t.Errorf("expected ErrUsage, got %v", err)
	}
	out, err := run(t, svc, "", "verify")
	if err != nil || !strings.Contains(out, "All stock rows match") {
		t.Errorf("adjustments must keep the trail consistent: %v\n%s", err, out)
	}
}
