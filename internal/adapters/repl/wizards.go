package repl

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/core"

	"github.com/shopspring/decimal"
)

// handleNewSlip collects the lines of one order interactively and creates a picking slip.
func handleNewSlip(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, companyID, orderID, warehouseID int, actor core.Audit) {
	fmt.Printf("Creating picking slip for order %d at warehouse %d\n", orderID, warehouseID)
	fmt.Println("Enter order lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Println("Format per line: <order-line-id> <part-number> <quantity>")
	fmt.Println("  Example: 101 BRK-PAD-01 4")

	var lines []app.SlipLineInput
	lineNum := 1
	for {
		fmt.Printf("  Line %d: ", lineNum)
		raw, _ := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		if strings.ToLower(raw) == "cancel" {
			fmt.Println("Slip creation cancelled.")
			return
		}
		if strings.ToLower(raw) == "done" {
			break
		}
		if raw == "" {
			continue
		}

		parts := strings.Fields(raw)
		if len(parts) < 3 {
			fmt.Println("  Invalid format. Use: <order-line-id> <part-number> <quantity>")
			continue
		}
		lineID, err := strconv.Atoi(parts[0])
		if err != nil {
			fmt.Println("  Invalid order line id.")
			continue
		}
		qty, err := decimal.NewFromString(parts[2])
		if err != nil || !qty.IsPositive() {
			fmt.Println("  Invalid quantity.")
			continue
		}

		lines = append(lines, app.SlipLineInput{
			OrderLineID: lineID,
			Item:        app.ItemRef{PartNumber: parts[1]},
			Quantity:    qty,
		})
		lineNum++
	}

	if len(lines) == 0 {
		fmt.Println("No lines entered. Slip not created.")
		return
	}

	res, err := svc.CreatePickingSlip(ctx, app.CreateSlipRequest{
		CompanyID:   companyID,
		OrderID:     orderID,
		WarehouseID: warehouseID,
		Lines:       lines,
		Actor:       actor,
	})
	if err != nil {
		fmt.Printf("[REPL] Error creating picking slip: %v\n", err)
		return
	}
	printSlip(res.Slip, res.DeliveryNote)
	fmt.Printf("Use '/pick %d' once a picker is assigned.\n", res.Slip.ID)
}

// handlePick walks each slip line with its suggested locations and asks for the count
// actually picked.
func handlePick(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, slipID int, actor core.Audit) {
	suggestions, err := svc.SuggestPicks(ctx, slipID)
	if err != nil {
		fmt.Printf("[REPL] Error: %v\n", err)
		return
	}

	var picks []core.PickedLine
	short := false
	for _, s := range suggestions {
		fmt.Printf("\n%s  requested %s\n", s.PartNumber, s.Requested)
		printPlan(s.Plan)
		fmt.Printf("  Picked [%s]: ", s.Requested)
		raw, _ := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		if strings.ToLower(raw) == "cancel" {
			fmt.Println("Pick cancelled.")
			return
		}
		qty := s.Requested
		if raw != "" {
			qty, err = decimal.NewFromString(raw)
			if err != nil || qty.IsNegative() {
				fmt.Println("Invalid quantity. Pick cancelled.")
				return
			}
		}
		if qty.LessThan(s.Requested) {
			short = true
		}
		picks = append(picks, core.PickedLine{SlipItemID: s.SlipItemID, Quantity: qty})
	}

	backorder := false
	if short {
		fmt.Print("\nSome lines are short. Create a backorder for the rest? (y/n): ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(strings.ToLower(choice))
		backorder = choice == "y" || choice == "yes"
	}

	res, err := svc.ConfirmPickingSlip(ctx, app.ConfirmPickRequest{
		SlipID:          slipID,
		Lines:           picks,
		CreateBackorder: backorder,
		Actor:           actor,
	})
	if err != nil {
		fmt.Printf("Pick FAILED: %v\n", err)
		return
	}
	fmt.Println("Pick CONFIRMED.")
	printSlip(res.Slip, res.DeliveryNote)
	if res.Backorder != nil {
		fmt.Println("Backorder:")
		printSlip(res.Backorder.Slip, res.Backorder.DeliveryNote)
	}
}
