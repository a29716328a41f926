package margin

import (
	"time"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// AccountContext carries the account-level inputs a single position's
// metrics depend on. AccountMetrics derives one per position; callers
// computing a lone position's metrics fill it themselves.
type AccountContext struct {
	Equity float64
	// MarginUsed is total initial margin across all open positions,
	// including the position under evaluation.
	MarginUsed float64
	// MaintenanceOther is maintenance margin held by the other open
	// positions, excluding the one under evaluation.
	MaintenanceOther float64
}

// PositionMarginMetrics is the engine's per-position output. Values are
// derived fresh on every call and never written back to the position.
type PositionMarginMetrics struct {
	PositionID   string
	Symbol       string
	Side         models.Side
	Quantity     float64
	EntryPrice   float64
	CurrentPrice float64

	NotionalValue             float64
	InitialMarginRequired     float64
	MaintenanceMarginRequired float64
	UnrealizedPnL             float64

	// LiquidationPrice is nil for markets where the metric is undefined
	// (spot, defined-risk options) or when inputs are degenerate.
	LiquidationPrice *float64
	DistanceToLiqPct *float64

	// Funding fields are set only for funding markets with a known rate.
	FundingRate      *float64
	DailyFundingCost *float64
}

// AccountMarginMetrics is the engine's per-bot aggregate output.
// AvailableMargin may be negative; that is margin-call territory being
// reported, not an error.
type AccountMarginMetrics struct {
	BotName       string
	MarketType    MarketType
	AccountEquity float64

	TotalMarginUsed        float64
	TotalMaintenanceMargin float64
	AvailableMargin        float64
	MarginUsagePct         float64
	MarginRatio            float64
	EffectiveLeverage      float64
	TotalNotional          float64
	TotalUnrealizedPnL     float64
	TotalDailyFunding      float64
	MaxAdditionalNotional  float64

	PositionCount int
	HealthStatus  models.HealthStatus
	Positions     []PositionMarginMetrics
	Timestamp     time.Time
}

// WorstLiqDistancePct returns the smallest liquidation distance across
// positions, nil when no position defines one.
func (a *AccountMarginMetrics) WorstLiqDistancePct() *float64 {
	var worst *float64
	for i := range a.Positions {
		d := a.Positions[i].DistanceToLiqPct
		if d == nil {
			continue
		}
		if worst == nil || *d < *worst {
			v := *d
			worst = &v
		}
	}
	return worst
}
