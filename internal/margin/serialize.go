package margin

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// InfCap replaces IEEE-754 infinity in serialized output. Margin ratio and
// effective leverage legitimately reach +Inf inside the engine; JSON
// consumers get this finite, sortable stand-in instead.
const InfCap = 9999.9999

// Internal math keeps full float precision; rounding happens only here,
// when a result crosses the serialization boundary.

func round2(v float64) float64 {
	return roundTo(v, 2)
}

func round4(v float64) float64 {
	return roundTo(v, 4)
}

func roundTo(v float64, places int32) float64 {
	if math.IsInf(v, 1) {
		return InfCap
	}
	if math.IsInf(v, -1) {
		return -InfCap
	}
	if math.IsNaN(v) {
		return 0
	}
	if v >= InfCap {
		return InfCap
	}
	if v <= -InfCap {
		return -InfCap
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// optRound2 keeps nil distinct from zero across the boundary.
func optRound2(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return round2(*p)
}

func optRound4(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return round4(*p)
}

// Map renders the position metrics for JSON output, dashboards, and
// snapshot rows: money and prices at 2 decimals, rates at 4.
func (p PositionMarginMetrics) Map() map[string]interface{} {
	return map[string]interface{}{
		"position_id":                 p.PositionID,
		"symbol":                      p.Symbol,
		"side":                        string(p.Side),
		"quantity":                    round2(p.Quantity),
		"entry_price":                 round2(p.EntryPrice),
		"current_price":               round2(p.CurrentPrice),
		"notional_value":              round2(p.NotionalValue),
		"initial_margin_required":     round2(p.InitialMarginRequired),
		"maintenance_margin_required": round2(p.MaintenanceMarginRequired),
		"unrealized_pnl":              round2(p.UnrealizedPnL),
		"liquidation_price":           optRound2(p.LiquidationPrice),
		"distance_to_liq_pct":         optRound2(p.DistanceToLiqPct),
		"funding_rate":                optRound4(p.FundingRate),
		"daily_funding_cost":          optRound2(p.DailyFundingCost),
	}
}

// Map renders the account metrics: leverage and ratio fields at 4
// decimals, everything else at 2, infinities capped at InfCap.
func (a *AccountMarginMetrics) Map() map[string]interface{} {
	positions := make([]map[string]interface{}, 0, len(a.Positions))
	for _, p := range a.Positions {
		positions = append(positions, p.Map())
	}
	return map[string]interface{}{
		"bot_name":                 a.BotName,
		"market_type":              string(a.MarketType),
		"account_equity":           round2(a.AccountEquity),
		"total_margin_used":        round2(a.TotalMarginUsed),
		"total_maintenance_margin": round2(a.TotalMaintenanceMargin),
		"available_margin":         round2(a.AvailableMargin),
		"margin_usage_pct":         round2(a.MarginUsagePct),
		"margin_ratio":             round4(a.MarginRatio),
		"effective_leverage":       round4(a.EffectiveLeverage),
		"total_notional":           round2(a.TotalNotional),
		"total_unrealized_pnl":     round2(a.TotalUnrealizedPnL),
		"total_daily_funding":      round2(a.TotalDailyFunding),
		"max_additional_notional":  round2(a.MaxAdditionalNotional),
		"position_count":           a.PositionCount,
		"health_status":            a.HealthStatus.String(),
		"positions":                positions,
		"timestamp":                a.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Map renders the gate verdict.
func (r *PreTradeCheckResult) Map() map[string]interface{} {
	violations := r.Violations
	if violations == nil {
		violations = []string{}
	}
	return map[string]interface{}{
		"approved":                   r.Approved,
		"reason":                     r.Reason,
		"violations":                 violations,
		"trade_margin":               round2(r.TradeMargin),
		"trade_notional":             round2(r.TradeNotional),
		"current_available":          round2(r.CurrentAvailable),
		"projected_margin_used":      round2(r.ProjectedMarginUsed),
		"projected_usage_pct":        round2(r.ProjectedUsagePct),
		"projected_leverage":         round4(r.ProjectedLeverage),
		"projected_liq_distance_pct": optRound2(r.ProjectedLiqDistancePct),
		"checked_at":                 r.CheckedAt.UTC().Format(time.RFC3339),
	}
}

// Map renders a simulation result.
func (s *ScenarioResult) Map() map[string]interface{} {
	return map[string]interface{}{
		"name":                       s.Name,
		"description":                s.Description,
		"current_usage_pct":          round2(s.CurrentUsagePct),
		"projected_usage_pct":        round2(s.ProjectedUsagePct),
		"current_liq_distance_pct":   optRound2(s.CurrentLiqDistancePct),
		"projected_liq_distance_pct": optRound2(s.ProjectedLiqDistancePct),
		"projected_equity":           round2(s.ProjectedEquity),
		"would_trigger_liquidation":  s.WouldTriggerLiquidation,
		"would_trigger_margin_call":  s.WouldTriggerMarginCall,
	}
}
