package repl

import (
	"fmt"
	"strings"

	"fulfillment-engine/internal/core"
)

func printSlip(slip *core.PickingSlip, note *core.DeliveryNote) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  PICKING SLIP %s  (order %d, status %s)\n", slip.Number, slip.OrderID, slip.Status)
	if note != nil {
		fmt.Printf("  Delivery note: %s  (%s)\n", note.Number, note.Status)
	}
	if slip.BackorderOfID != nil {
		fmt.Printf("  Backorder of slip %d\n", *slip.BackorderOfID)
	}
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  %-6s %-8s %-20s %12s %12s\n", "LINE", "ORDER LN", "PART", "REQUESTED", "PICKED")
	fmt.Println(strings.Repeat("-", 70))
	for _, it := range slip.Items {
		fmt.Printf("  %-6d %-8d %-20s %12s %12s\n",
			it.ID, it.OrderLineID, it.PartNumber, it.QuantityRequested, it.QuantityPicked)
	}
	fmt.Println(strings.Repeat("=", 70))
}

func printPlan(p core.Plan) {
	if len(p.Allocations) == 0 {
		fmt.Println("  (no reserved stock)")
	}
	for _, a := range p.Allocations {
		fmt.Printf("  from %-12s %10s\n", a.LocationCode, a.Quantity)
	}
	if sf := p.Shortfall(); sf.IsPositive() {
		fmt.Printf("  short        %10s\n", sf)
	}
}

func printHelp() {
	fmt.Println()
	fmt.Println("Stock")
	fmt.Println("  /levels                                   all stock rows")
	fmt.Println("  /stock <part> <warehouse>                 rows of one item")
	fmt.Println("  /receive <part> <warehouse> <loc> <qty>   record a goods receipt")
	fmt.Println("  /plan <part> <warehouse> <qty> [basis]    preview an allocation")
	fmt.Println("  /moves <level-id>                         audit trail")
	fmt.Println("  /verify                                   replay every trail")
	fmt.Println("  /explain <level-id>                       AI narration of a trail")
	fmt.Println()
	fmt.Println("Picking")
	fmt.Println("  /new-slip <order-id> <warehouse-id>       guided slip creation")
	fmt.Println("  /slip <slip-id>                           show a slip")
	fmt.Println("  /suggest <slip-id>                        suggested pick locations")
	fmt.Println("  /pick <slip-id>                           guided pick confirmation")
	fmt.Println()
	fmt.Println("  /help, /exit")
}
