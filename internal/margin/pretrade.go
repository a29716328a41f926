package margin

import (
	"fmt"
	"strings"
	"time"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// ProposedTrade describes an order a bot wants to place, before placement.
type ProposedTrade struct {
	Symbol     string
	Side       models.Side
	Quantity   float64
	EntryPrice float64
	Leverage   *float64
}

// PreTradeCheckResult is the gate's verdict. Approved is true exactly when
// Violations is empty; Reason repeats the verdict in plain English so it
// can be logged or shown as is.
type PreTradeCheckResult struct {
	Approved   bool
	Reason     string
	Violations []string

	TradeMargin             float64
	TradeNotional           float64
	CurrentAvailable        float64
	ProjectedMarginUsed     float64
	ProjectedUsagePct       float64
	ProjectedLeverage       float64
	ProjectedLiqDistancePct *float64

	CheckedAt time.Time
}

// tradeApprovedReason is the reason string for a clean check.
const tradeApprovedReason = "Trade approved"

// CheckPreTrade is the mandatory admission gate: it projects the account
// as if the proposed trade were filled and evaluates five independent
// limits. It never mutates its inputs and holds no state, so calling it
// twice with the same arguments returns the same verdict. A caller must
// not place an order when Approved is false.
func (e *Engine) CheckPreTrade(equity float64, positions []models.Position, trade ProposedTrade) *PreTradeCheckResult {
	var marginUsed, maintenanceTotal, notionalTotal float64
	for _, pos := range positions {
		marginUsed += e.InitialMargin(pos.Quantity, pos.CurrentPrice, pos.Leverage)
		maintenanceTotal += e.MaintenanceMargin(pos.Quantity, pos.CurrentPrice)
		notionalTotal += e.NotionalValue(pos.Quantity, pos.CurrentPrice)
	}

	available := e.AvailableMargin(equity, marginUsed)
	tradeMargin := e.InitialMargin(trade.Quantity, trade.EntryPrice, trade.Leverage)
	tradeNotional := e.NotionalValue(trade.Quantity, trade.EntryPrice)
	projectedUsed := marginUsed + tradeMargin
	projectedUsage := e.MarginUsagePct(projectedUsed, equity)
	projectedLeverage := e.EffectiveLeverage(notionalTotal+tradeNotional, equity)

	// The new position is evaluated at its own entry: filled just now,
	// marked at the fill price.
	hypothetical := models.Position{
		PositionID:   "pretrade",
		Symbol:       trade.Symbol,
		Side:         trade.Side,
		Quantity:     trade.Quantity,
		EntryPrice:   trade.EntryPrice,
		CurrentPrice: trade.EntryPrice,
		Leverage:     trade.Leverage,
	}
	liq := e.LiquidationPrice(hypothetical, AccountContext{
		Equity:           equity,
		MarginUsed:       projectedUsed,
		MaintenanceOther: maintenanceTotal,
	})
	liqDistance := e.DistanceToLiquidationPct(trade.EntryPrice, liq)

	var violations []string
	if tradeMargin > available {
		violations = append(violations, fmt.Sprintf(
			"insufficient available margin: trade requires $%.2f, available $%.2f",
			tradeMargin, available))
	}
	if projectedUsage > e.cfg.MaxMarginUsagePct {
		violations = append(violations, fmt.Sprintf(
			"projected margin usage %.1f%% exceeds limit %.1f%%",
			projectedUsage, e.cfg.MaxMarginUsagePct))
	}
	if liqDistance != nil && *liqDistance < e.cfg.MinLiqDistancePct {
		violations = append(violations, fmt.Sprintf(
			"projected liquidation distance %.1f%% below minimum %.1f%%",
			*liqDistance, e.cfg.MinLiqDistancePct))
	}
	if projectedLeverage > e.cfg.MaxEffectiveLeverage {
		violations = append(violations, fmt.Sprintf(
			"projected effective leverage %.2fx exceeds limit %.2fx",
			projectedLeverage, e.cfg.MaxEffectiveLeverage))
	}
	concentration := e.MarginUsagePct(tradeMargin, equity)
	if concentration > e.cfg.MaxSinglePositionMarginPct {
		violations = append(violations, fmt.Sprintf(
			"position margin concentration %.1f%% exceeds limit %.1f%%",
			concentration, e.cfg.MaxSinglePositionMarginPct))
	}

	reason := tradeApprovedReason
	if len(violations) > 0 {
		reason = strings.Join(violations, "; ")
	}
	return &PreTradeCheckResult{
		Approved:                len(violations) == 0,
		Reason:                  reason,
		Violations:              violations,
		TradeMargin:             tradeMargin,
		TradeNotional:           tradeNotional,
		CurrentAvailable:        available,
		ProjectedMarginUsed:     projectedUsed,
		ProjectedUsagePct:       projectedUsage,
		ProjectedLeverage:       projectedLeverage,
		ProjectedLiqDistancePct: liqDistance,
		CheckedAt:               time.Now().UTC(),
	}
}
