package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Discrepancy is one problem found while checking a stock level against its trail.
type Discrepancy struct {
	StockLevelID int    `json:"stock_level_id"`
	LocationCode string `json:"location_code"`
	Problem      string `json:"problem"`
}

// VerifyTrail replays movements from zero and reports every point where the trail
// disagrees with itself or with the row's current totals. It also checks the quantity
// invariants of the row.
func VerifyTrail(level *StockLevel, movements []StockMovement) []Discrepancy {
	var out []Discrepancy
	report := func(format string, args ...any) {
		out = append(out, Discrepancy{
			StockLevelID: level.ID,
			LocationCode: level.LocationCode,
			Problem:      fmt.Sprintf(format, args...),
		})
	}

	if err := level.CheckInvariants(); err != nil {
		report("%v", err)
	}

	onHand, soft, hard := decimal.Zero, decimal.Zero, decimal.Zero
	for _, m := range movements {
		onHand = onHand.Add(m.OnHandDelta)
		soft = soft.Add(m.SoftDelta)
		hard = hard.Add(m.HardDelta)
		if !onHand.Equal(m.OnHandAfter) || !soft.Equal(m.SoftAfter) || !hard.Equal(m.HardAfter) {
			report("movement %d (%s): replay gives %s/%s/%s, recorded %s/%s/%s",
				m.ID, m.Kind, onHand, soft, hard, m.OnHandAfter, m.SoftAfter, m.HardAfter)
			onHand, soft, hard = m.OnHandAfter, m.SoftAfter, m.HardAfter
		}
	}

	if !onHand.Equal(level.OnHand) || !soft.Equal(level.SoftReserved) || !hard.Equal(level.HardReserved) {
		report("trail ends at %s/%s/%s but row holds %s/%s/%s",
			onHand, soft, hard, level.OnHand, level.SoftReserved, level.HardReserved)
	}
	return out
}
