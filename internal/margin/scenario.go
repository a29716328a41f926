package margin

import (
	"fmt"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// ScenarioResult reports a what-if simulation. Scenarios are advisory and
// never gate anything; callers decide what a projection means for them.
type ScenarioResult struct {
	Name        string
	Description string

	CurrentUsagePct   float64
	ProjectedUsagePct float64

	// Worst (smallest) liquidation distance across positions, nil when no
	// position defines one.
	CurrentLiqDistancePct   *float64
	ProjectedLiqDistancePct *float64

	ProjectedEquity float64

	WouldTriggerLiquidation bool
	WouldTriggerMarginCall  bool
}

// SimulatePriceMove projects every position's mark by the given percentage
// and re-derives the account under the moved prices and the equity those
// prices imply.
func (e *Engine) SimulatePriceMove(equity float64, positions []models.Position, priceChangePct float64) *ScenarioResult {
	before := e.AccountMetrics(equity, positions)

	factor := 1 + priceChangePct/100
	moved := make([]models.Position, len(positions))
	var pnlBefore, pnlAfter float64
	for i, pos := range positions {
		pnlBefore += e.UnrealizedPnL(pos)
		pos.CurrentPrice *= factor
		moved[i] = pos
		pnlAfter += e.UnrealizedPnL(pos)
	}
	projectedEquity := equity + (pnlAfter - pnlBefore)
	after := e.AccountMetrics(projectedEquity, moved)

	// Moved marks are judged against the pre-move liquidation estimates:
	// the projection answers whether the move would cross today's
	// liquidation levels, not levels re-derived from the shocked equity.
	return &ScenarioResult{
		Name: "price_move",
		Description: fmt.Sprintf("price move of %+.2f%% across %d position(s)",
			priceChangePct, len(positions)),
		CurrentUsagePct:         before.MarginUsagePct,
		ProjectedUsagePct:       after.MarginUsagePct,
		CurrentLiqDistancePct:   before.WorstLiqDistancePct(),
		ProjectedLiqDistancePct: after.WorstLiqDistancePct(),
		ProjectedEquity:         projectedEquity,
		WouldTriggerLiquidation: e.wouldLiquidate(projectedEquity, before, after),
		WouldTriggerMarginCall:  e.wouldMarginCall(after),
	}
}

// SimulateAddContracts projects the account with one synthetic position
// appended, entered and marked at the given price.
func (e *Engine) SimulateAddContracts(equity float64, positions []models.Position, quantity, price float64, side models.Side) *ScenarioResult {
	before := e.AccountMetrics(equity, positions)

	expanded := make([]models.Position, 0, len(positions)+1)
	expanded = append(expanded, positions...)
	expanded = append(expanded, models.Position{
		PositionID:   "scenario-add",
		Symbol:       "simulated",
		Side:         side,
		Quantity:     quantity,
		EntryPrice:   price,
		CurrentPrice: price,
	})
	after := e.AccountMetrics(equity, expanded)

	return &ScenarioResult{
		Name: "add_contracts",
		Description: fmt.Sprintf("add %g %s at %.2f to %d existing position(s)",
			quantity, side, price, len(positions)),
		CurrentUsagePct:         before.MarginUsagePct,
		ProjectedUsagePct:       after.MarginUsagePct,
		CurrentLiqDistancePct:   before.WorstLiqDistancePct(),
		ProjectedLiqDistancePct: after.WorstLiqDistancePct(),
		ProjectedEquity:         equity,
		WouldTriggerLiquidation: e.wouldLiquidate(equity, after, after),
		WouldTriggerMarginCall:  e.wouldMarginCall(after),
	}
}

// SimulateLeverageChange projects the account with every position's
// leverage uniformly replaced.
func (e *Engine) SimulateLeverageChange(equity float64, positions []models.Position, newLeverage float64) *ScenarioResult {
	before := e.AccountMetrics(equity, positions)

	adjusted := make([]models.Position, len(positions))
	for i, pos := range positions {
		lev := newLeverage
		pos.Leverage = &lev
		adjusted[i] = pos
	}
	after := e.AccountMetrics(equity, adjusted)

	return &ScenarioResult{
		Name: "leverage_change",
		Description: fmt.Sprintf("set leverage to %.1fx on %d position(s)",
			newLeverage, len(positions)),
		CurrentUsagePct:         before.MarginUsagePct,
		ProjectedUsagePct:       after.MarginUsagePct,
		CurrentLiqDistancePct:   before.WorstLiqDistancePct(),
		ProjectedLiqDistancePct: after.WorstLiqDistancePct(),
		ProjectedEquity:         equity,
		WouldTriggerLiquidation: e.wouldLiquidate(equity, after, after),
		WouldTriggerMarginCall:  e.wouldMarginCall(after),
	}
}

// wouldLiquidate reports whether the projected book is at or past
// liquidation: equity gone, or any mark in markBook at or beyond the
// matching position's liquidation price in liqBook on the adverse side.
// The two books must describe the same positions in the same order.
func (e *Engine) wouldLiquidate(projectedEquity float64, liqBook, markBook *AccountMarginMetrics) bool {
	if projectedEquity <= 0 && len(markBook.Positions) > 0 {
		return true
	}
	if len(liqBook.Positions) != len(markBook.Positions) {
		return false
	}
	for i := range liqBook.Positions {
		if liqBook.Positions[i].LiquidationPrice == nil {
			continue
		}
		liq := *liqBook.Positions[i].LiquidationPrice
		mark := markBook.Positions[i].CurrentPrice
		if liqBook.Positions[i].Side == models.SideShort {
			if mark >= liq {
				return true
			}
		} else if mark <= liq {
			return true
		}
	}
	return false
}

// wouldMarginCall reports whether the projected margin ratio falls under
// the venue's margin call threshold. A zero threshold disables the check.
func (e *Engine) wouldMarginCall(a *AccountMarginMetrics) bool {
	threshold := e.cfg.Market.MarginCallThresholdPct
	if threshold <= 0 {
		return false
	}
	return a.MarginRatio < threshold/100
}
