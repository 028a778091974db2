package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUsage is returned for unknown commands or malformed arguments.
var ErrUsage = errors.New("usage")

const usage = `Available commands:
  levels                                    list every stock row
  stock   <part|uuid> <warehouse>           rows of one item in a warehouse
  receive <part|uuid> <warehouse> <location> <qty>
  adjust  <action> <part|uuid> <location> <qty>
                                            reserve_soft|release_soft|commit|release_hard|ship
  plan    <part|uuid> <warehouse> <qty> [soft|hard|available]
  moves   <stock-level-id>                  audit trail of a row
  verify                                    replay every trail
  explain <stock-level-id>                  AI narration of a trail
  slip    <picking-slip-id>
  suggest <picking-slip-id>
  assign  <picking-slip-id> <picker-id>
  confirm                                   reads a ConfirmPickRequest as JSON from stdin
  ship    <vehicle> <delivery-note-id>...   plan a shipment
  depart  <shipment-id>                     deduct stock and mark shipped
  complete <shipment-id>
  deliver <delivery-note-id>
  unload                                    reads an UnloadInput as JSON from stdin
  cancel  <delivery-note-id> [reason]
  return                                    reads a CustomerReturnInput as JSON from stdin
  evidence <return-id> <url>
  receive-return <return-id> [location]`

// Runner executes one command against svc for a fixed company.
type Runner struct {
	svc       app.ApplicationService
	companyID int
	in        io.Reader
	out       io.Writer
}

// NewRunner returns a Runner reading JSON input from in and printing to out.
func NewRunner(svc app.ApplicationService, companyID int, in io.Reader, out io.Writer) *Runner {
	return &Runner{svc: svc, companyID: companyID, in: in, out: out}
}

// Run executes a one-shot command. args[0] is the subcommand name.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w\n%s", ErrUsage, usage)
	}
	a := core.Audit{Memo: "cli"}

	switch strings.ToLower(args[0]) {
	case "levels", "lv":
		res, err := r.svc.ListStockLevels(ctx, r.companyID)
		if err != nil {
			return err
		}
		r.printLevels(res.Levels)

	case "stock", "st":
		if len(args) < 3 {
			return fmt.Errorf("%w: stock <part|uuid> <warehouse>", ErrUsage)
		}
		wh, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: warehouse must be a number", ErrUsage)
		}
		res, err := r.svc.GetStockLevels(ctx, app.StockQuery{CompanyID: r.companyID, Item: itemRef(args[1]), WarehouseID: wh})
		if err != nil {
			return err
		}
		r.printLevels(res.Levels)

	case "receive", "rcv":
		if len(args) < 5 {
			return fmt.Errorf("%w: receive <part|uuid> <warehouse> <location> <qty>", ErrUsage)
		}
		wh, err1 := strconv.Atoi(args[2])
		loc, err2 := strconv.Atoi(args[3])
		qty, err3 := decimal.NewFromString(args[4])
		if err := errors.Join(err1, err2, err3); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		lvl, err := r.svc.ReceiveStock(ctx, app.ReceiveStockRequest{
			CompanyID:   r.companyID,
			Item:        itemRef(args[1]),
			WarehouseID: wh,
			LocationID:  loc,
			Quantity:    qty,
			Actor:       a,
		})
		if err != nil {
			return err
		}
		r.printLevels([]*core.StockLevel{lvl})

	case "adjust", "adj":
		if len(args) < 5 {
			return fmt.Errorf("%w: adjust <action> <part|uuid> <location> <qty>", ErrUsage)
		}
		loc, err1 := strconv.Atoi(args[3])
		qty, err2 := decimal.NewFromString(args[4])
		if err := errors.Join(err1, err2); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		lvl, err := r.svc.AdjustStock(ctx, app.AdjustStockRequest{
			CompanyID:  r.companyID,
			Item:       itemRef(args[2]),
			LocationID: loc,
			Action:     strings.ToLower(args[1]),
			Quantity:   qty,
			Actor:      a,
		})
		if err != nil {
			return err
		}
		r.printLevels([]*core.StockLevel{lvl})

	case "plan":
		if len(args) < 4 {
			return fmt.Errorf("%w: plan <part|uuid> <warehouse> <qty> [basis]", ErrUsage)
		}
		wh, err1 := strconv.Atoi(args[2])
		qty, err2 := decimal.NewFromString(args[3])
		if err := errors.Join(err1, err2); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		basis := "available"
		if len(args) > 4 {
			basis = args[4]
		}
		plan, err := r.svc.PlanAllocation(ctx, app.PlanRequest{
			StockQuery: app.StockQuery{CompanyID: r.companyID, Item: itemRef(args[1]), WarehouseID: wh},
			Quantity:   qty,
			Basis:      basis,
		})
		if err != nil {
			return err
		}
		r.printPlan(plan)

	case "moves", "mv":
		id, err := intArg(args, "moves <stock-level-id>")
		if err != nil {
			return err
		}
		res, err := r.svc.GetMovements(ctx, id)
		if err != nil {
			return err
		}
		r.printMovements(res)

	case "verify":
		found, err := r.svc.VerifyStock(ctx, r.companyID)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintln(r.out, "All stock rows match their trails.")
			return nil
		}
		for _, d := range found {
			fmt.Fprintf(r.out, "  [FAIL] level %d (%s): %s\n", d.StockLevelID, d.LocationCode, d.Problem)
		}
		return fmt.Errorf("%d discrepancies found", len(found))

	case "explain":
		id, err := intArg(args, "explain <stock-level-id>")
		if err != nil {
			return err
		}
		res, err := r.svc.ExplainStockLevel(ctx, id)
		if err != nil {
			return err
		}
		return r.printJSON(res)

	case "slip":
		id, err := intArg(args, "slip <picking-slip-id>")
		if err != nil {
			return err
		}
		res, err := r.svc.GetPickingSlip(ctx, id)
		if err != nil {
			return err
		}
		return r.printJSON(res)

	case "suggest":
		id, err := intArg(args, "suggest <picking-slip-id>")
		if err != nil {
			return err
		}
		res, err := r.svc.SuggestPicks(ctx, id)
		if err != nil {
			return err
		}
		for _, s := range res {
			fmt.Fprintf(r.out, "line %d  %s  requested %s\n", s.SlipItemID, s.PartNumber, s.Requested)
			r.printPlan(&s.Plan)
		}

	case "confirm":
		var req app.ConfirmPickRequest
		if err := json.NewDecoder(r.in).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		req.Actor = a
		res, err := r.svc.ConfirmPickingSlip(ctx, req)
		if err != nil {
			return err
		}
		return r.printJSON(res)

	case "assign":
		if len(args) < 3 {
			return fmt.Errorf("%w: assign <picking-slip-id> <picker-id>", ErrUsage)
		}
		slipID, err1 := strconv.Atoi(args[1])
		pickerID, err2 := strconv.Atoi(args[2])
		if err := errors.Join(err1, err2); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		slip, err := r.svc.AssignPickingSlip(ctx, slipID, pickerID, a)
		if err != nil {
			return err
		}
		return r.printJSON(slip)

	case "ship":
		if len(args) < 3 {
			return fmt.Errorf("%w: ship <vehicle> <delivery-note-id>...", ErrUsage)
		}
		var noteIDs []int
		for _, v := range args[2:] {
			id, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: delivery note id %q", ErrUsage, v)
			}
			noteIDs = append(noteIDs, id)
		}
		sh, err := r.svc.CreateShipment(ctx, core.CreateShipmentInput{
			CompanyID:       r.companyID,
			VehicleRef:      args[1],
			DeliveryNoteIDs: noteIDs,
		}, a)
		if err != nil {
			return err
		}
		return r.printJSON(sh)

	case "depart", "complete":
		id, err := intArg(args, args[0]+" <shipment-id>")
		if err != nil {
			return err
		}
		status := string(core.ShipmentShipped)
		if strings.ToLower(args[0]) == "complete" {
			status = string(core.ShipmentCompleted)
		}
		sh, err := r.svc.UpdateShipmentStatus(ctx, id, status, a)
		if err != nil {
			return err
		}
		return r.printJSON(sh)

	case "deliver":
		id, err := intArg(args, "deliver <delivery-note-id>")
		if err != nil {
			return err
		}
		note, err := r.svc.MarkDelivered(ctx, id, a)
		if err != nil {
			return err
		}
		return r.printJSON(note)

	case "unload":
		var req core.UnloadInput
		if err := json.NewDecoder(r.in).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		res, err := r.svc.UnloadDeliveryNote(ctx, req, a)
		if err != nil {
			return err
		}
		return r.printJSON(res)

	case "cancel":
		id, err := intArg(args, "cancel <delivery-note-id> [reason]")
		if err != nil {
			return err
		}
		in := core.CancelInput{Reason: strings.Join(args[2:], " ")}
		rn, err := r.svc.CancelDeliveryNote(ctx, id, in, a)
		if err != nil {
			return err
		}
		return r.printJSON(rn)

	case "return":
		var req core.CustomerReturnInput
		if err := json.NewDecoder(r.in).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		rn, err := r.svc.CreateCustomerReturn(ctx, req, a)
		if err != nil {
			return err
		}
		return r.printJSON(rn)

	case "evidence":
		if len(args) < 3 {
			return fmt.Errorf("%w: evidence <return-id> <url>", ErrUsage)
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: evidence <return-id> <url>", ErrUsage)
		}
		rn, err := r.svc.AddReturnEvidence(ctx, id, core.EvidenceInput{URL: args[2]}, a)
		if err != nil {
			return err
		}
		return r.printJSON(rn)

	case "receive-return":
		id, err := intArg(args, "receive-return <return-id> [location]")
		if err != nil {
			return err
		}
		var loc *int
		if len(args) > 2 {
			v, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("%w: location must be a number", ErrUsage)
			}
			loc = &v
		}
		rn, err := r.svc.CompleteReturn(ctx, id, loc, a)
		if err != nil {
			return err
		}
		return r.printJSON(rn)

	case "help", "h":
		fmt.Fprintln(r.out, usage)

	default:
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, args[0], usage)
	}
	return nil
}

// itemRef treats a parseable UUID as an item id and anything else as a part number.
func itemRef(s string) app.ItemRef {
	if id, err := uuid.Parse(s); err == nil {
		return app.ItemRef{ItemID: id}
	}
	return app.ItemRef{PartNumber: s}
}

func intArg(args []string, form string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: %s", ErrUsage, form)
	}
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUsage, form)
	}
	return id, nil
}

func (r *Runner) printLevels(levels []*core.StockLevel) {
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  %-6s %-10s %-36s %10s %10s %10s %10s\n", "ID", "LOCATION", "ITEM", "ON HAND", "SOFT", "HARD", "AVAIL")
	fmt.Fprintln(r.out, "  "+strings.Repeat("-", 98))
	for _, l := range levels {
		fmt.Fprintf(r.out, "  %-6d %-10s %-36s %10s %10s %10s %10s\n",
			l.ID, l.LocationCode, l.ItemID, l.OnHand, l.SoftReserved, l.HardReserved, l.Available())
	}
	fmt.Fprintln(r.out, "  "+strings.Repeat("-", 98))
}

func (r *Runner) printPlan(p *core.Plan) {
	for _, a := range p.Allocations {
		fmt.Fprintf(r.out, "  %-10s %10s\n", a.LocationCode, a.Quantity)
	}
	if p.Shortfall().IsPositive() {
		fmt.Fprintf(r.out, "  SHORTFALL  %10s\n", p.Shortfall())
	}
}

func (r *Runner) printMovements(res *app.MovementsResult) {
	l := res.Level
	fmt.Fprintf(r.out, "Stock level %d  %s @ %s\n", l.ID, l.ItemID, l.LocationCode)
	fmt.Fprintf(r.out, "  %-20s %-16s %10s %10s %10s  %s\n", "AT", "KIND", "ON HAND", "SOFT", "HARD", "REFERENCE")
	for _, m := range res.Movements {
		fmt.Fprintf(r.out, "  %-20s %-16s %10s %10s %10s  %s\n",
			m.CreatedAt.Format("2006-01-02 15:04:05"), m.Kind, m.OnHandAfter, m.SoftAfter, m.HardAfter, m.Reference)
	}
}

func (r *Runner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
