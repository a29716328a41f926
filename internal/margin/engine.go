// Package margin implements the market-type-aware margin model: notional,
// required margin, liquidation price, and leverage for futures, crypto
// perpetuals, defined-risk options, and spot, plus the pre-trade gate and
// what-if simulations built on those formulas.
//
// Every formula is total over its numeric domain. Expected degenerate
// inputs (zero equity, zero quantity, missing leverage) degrade to zero,
// nil, or IEEE-754 infinity as documented per method; they never panic and
// never produce NaN. A risk gate that crashes stops protecting the
// account, so the formulas absorb bad market data and report it instead.
package margin

import (
	"math"
	"time"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// Engine computes margin metrics for one bot. It holds no mutable state
// after construction: every method is a pure function of its arguments,
// so a single Engine is safe to share across goroutines.
type Engine struct {
	cfg      BotMarginConfig
	strategy marginStrategy
}

// NewEngine validates the config and resolves the market-type strategy.
func NewEngine(cfg BotMarginConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy, err := newMarginStrategy(cfg.Market)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, strategy: strategy}, nil
}

// Config returns a copy of the bot config the engine was built with.
func (e *Engine) Config() BotMarginConfig {
	return e.cfg
}

// NotionalValue is the market-value exposure of a position: |quantity| x
// price x contract multiplier. Zero when quantity or price is not positive.
func (e *Engine) NotionalValue(quantity, price float64) float64 {
	if quantity <= 0 || price <= 0 {
		return 0
	}
	return absQuantity(quantity) * price * e.cfg.Market.ContractMultiplier
}

// InitialMargin is the capital required to open the exposure. The nil
// leverage falls back to the bot's effective leverage; an explicit value
// is taken as the venue-set leverage for the position.
func (e *Engine) InitialMargin(quantity, price float64, leverage *float64) float64 {
	return e.strategy.InitialMargin(e.marginInputs(quantity, price, leverage))
}

// MaintenanceMargin is the minimum equity required to keep the exposure
// open. It is never leverage-scaled.
func (e *Engine) MaintenanceMargin(quantity, price float64) float64 {
	return e.strategy.MaintenanceMargin(e.marginInputs(quantity, price, nil))
}

// AvailableMargin is equity minus margin in use. Negative values are
// meaningful: the account is past margin call.
func (e *Engine) AvailableMargin(equity, marginUsed float64) float64 {
	return equity - marginUsed
}

// MarginUsagePct is margin used over equity, in percent. A non-positive
// equity reads as fully used when any margin is posted, otherwise unused.
func (e *Engine) MarginUsagePct(marginUsed, equity float64) float64 {
	if equity <= 0 {
		if marginUsed > 0 {
			return 100
		}
		return 0
	}
	return marginUsed / equity * 100
}

// MarginRatio is equity over total maintenance margin; below 1.0 is
// liquidation territory. With no maintenance requirement the account is
// unboundedly safe (+Inf) when equity is positive, else 0.
func (e *Engine) MarginRatio(equity, totalMaintenance float64) float64 {
	if totalMaintenance == 0 {
		if equity > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return equity / totalMaintenance
}

// UnrealizedPnL is the mark-to-market P&L of a position.
func (e *Engine) UnrealizedPnL(pos models.Position) float64 {
	return (pos.CurrentPrice - pos.EntryPrice) * absQuantity(pos.Quantity) *
		e.cfg.Market.ContractMultiplier * pos.Side.Direction()
}

// EffectiveLeverage is total notional exposure over equity. Exposure with
// no equity behind it is unbounded (+Inf); no exposure is 0.
func (e *Engine) EffectiveLeverage(totalNotional, equity float64) float64 {
	if equity > 0 {
		return totalNotional / equity
	}
	if totalNotional > 0 {
		return math.Inf(1)
	}
	return 0
}

// LiquidationPrice approximates the price at which the position would be
// liquidated, nil when the metric is undefined for the market or the
// inputs are degenerate. The approximation budgets the account's free
// equity over the position's price sensitivity; venue-exact formulas
// (tiered maintenance, fee buffers) are deliberately out of scope.
func (e *Engine) LiquidationPrice(pos models.Position, acct AccountContext) *float64 {
	in := liquidationInputs{
		side:             pos.Side,
		quantity:         absQuantity(pos.Quantity),
		entryPrice:       pos.EntryPrice,
		currentPrice:     pos.CurrentPrice,
		equity:           acct.Equity,
		marginUsed:       acct.MarginUsed,
		maintenanceOther: acct.MaintenanceOther,
		maintenanceThis:  e.MaintenanceMargin(pos.Quantity, pos.CurrentPrice),
		leverage:         e.resolveLeverage(pos.Leverage),
	}
	liq, ok := e.strategy.LiquidationPrice(in)
	if !ok {
		return nil
	}
	return &liq
}

// DistanceToLiquidationPct is how far the current price sits from the
// liquidation price, in percent of current price. Nil when there is no
// liquidation price or no usable current price.
func (e *Engine) DistanceToLiquidationPct(currentPrice float64, liquidationPrice *float64) *float64 {
	if liquidationPrice == nil || currentPrice <= 0 {
		return nil
	}
	d := math.Abs(currentPrice-*liquidationPrice) / currentPrice * 100
	return &d
}

// MaxAdditionalQuantity is how much more quantity could be opened at the
// given price with the available margin: contracts for per-contract
// markets, units of quantity for percentage markets.
func (e *Engine) MaxAdditionalQuantity(availableMargin, price float64, leverage *float64) float64 {
	if availableMargin <= 0 {
		return 0
	}
	m := e.cfg.Market
	if m.IsMarginPerContract {
		if m.InitialMarginRate <= 0 {
			return 0
		}
		return availableMargin / m.InitialMarginRate
	}
	lev := e.resolveLeverage(leverage)
	if lev <= 0 || price <= 0 || m.ContractMultiplier <= 0 {
		return 0
	}
	return availableMargin * lev / (price * m.ContractMultiplier)
}

// FundingProjection projects funding payments for a perpetual position.
// Both returns are signed from the position's point of view: negative
// means the position pays. ok is false for non-funding markets, unknown
// rates, or a broken funding interval.
func (e *Engine) FundingProjection(pos models.Position, projectionDays float64) (daily, total float64, ok bool) {
	m := e.cfg.Market
	if !m.HasFundingRate || pos.FundingRate == nil || m.FundingIntervalHours <= 0 {
		return 0, 0, false
	}
	notional := e.NotionalValue(pos.Quantity, pos.CurrentPrice)
	periodsPerDay := 24 / m.FundingIntervalHours
	// Positive rates flow from longs to shorts.
	perPeriod := notional * *pos.FundingRate * -pos.Side.Direction()
	daily = perPeriod * periodsPerDay
	return daily, daily * projectionDays, true
}

// HealthFor grades a usage percentage against the bot's alert thresholds.
func (e *Engine) HealthFor(usagePct float64) models.HealthStatus {
	switch {
	case usagePct >= e.cfg.CriticalThresholdPct:
		return models.HealthCritical
	case usagePct >= e.cfg.DangerThresholdPct:
		return models.HealthDanger
	case usagePct >= e.cfg.WarningThresholdPct:
		return models.HealthWarning
	default:
		return models.HealthHealthy
	}
}

// PositionMetrics computes the full metric set for one position under the
// given account context.
func (e *Engine) PositionMetrics(pos models.Position, acct AccountContext) PositionMarginMetrics {
	liq := e.LiquidationPrice(pos, acct)
	pm := PositionMarginMetrics{
		PositionID:                pos.PositionID,
		Symbol:                    pos.Symbol,
		Side:                      pos.Side,
		Quantity:                  absQuantity(pos.Quantity),
		EntryPrice:                pos.EntryPrice,
		CurrentPrice:              pos.CurrentPrice,
		NotionalValue:             e.NotionalValue(pos.Quantity, pos.CurrentPrice),
		InitialMarginRequired:     e.InitialMargin(pos.Quantity, pos.CurrentPrice, pos.Leverage),
		MaintenanceMarginRequired: e.MaintenanceMargin(pos.Quantity, pos.CurrentPrice),
		UnrealizedPnL:             e.UnrealizedPnL(pos),
		LiquidationPrice:          liq,
		DistanceToLiqPct:          e.DistanceToLiquidationPct(pos.CurrentPrice, liq),
	}
	if daily, _, ok := e.FundingProjection(pos, 1); ok {
		rate := *pos.FundingRate
		pm.FundingRate = &rate
		pm.DailyFundingCost = &daily
	}
	return pm
}

// AccountMetrics aggregates the account view in two passes: margin totals
// first, because each position's liquidation budget depends on the margin
// or maintenance posted by the rest of the book, then per-position
// metrics and the account sums. An empty book is a legal input and yields
// an unused, healthy account.
func (e *Engine) AccountMetrics(equity float64, positions []models.Position) *AccountMarginMetrics {
	a := &AccountMarginMetrics{
		BotName:       e.cfg.BotName,
		MarketType:    e.cfg.Market.MarketType,
		AccountEquity: equity,
		Positions:     make([]PositionMarginMetrics, 0, len(positions)),
		Timestamp:     time.Now().UTC(),
	}

	maintenance := make([]float64, len(positions))
	for i, pos := range positions {
		a.TotalMarginUsed += e.InitialMargin(pos.Quantity, pos.CurrentPrice, pos.Leverage)
		maintenance[i] = e.MaintenanceMargin(pos.Quantity, pos.CurrentPrice)
		a.TotalMaintenanceMargin += maintenance[i]
	}

	for i, pos := range positions {
		pm := e.PositionMetrics(pos, AccountContext{
			Equity:           equity,
			MarginUsed:       a.TotalMarginUsed,
			MaintenanceOther: a.TotalMaintenanceMargin - maintenance[i],
		})
		a.Positions = append(a.Positions, pm)
		a.TotalNotional += pm.NotionalValue
		a.TotalUnrealizedPnL += pm.UnrealizedPnL
		if pm.DailyFundingCost != nil {
			a.TotalDailyFunding += *pm.DailyFundingCost
		}
	}

	a.PositionCount = len(positions)
	a.AvailableMargin = e.AvailableMargin(equity, a.TotalMarginUsed)
	a.MarginUsagePct = e.MarginUsagePct(a.TotalMarginUsed, equity)
	a.MarginRatio = e.MarginRatio(equity, a.TotalMaintenanceMargin)
	a.EffectiveLeverage = e.EffectiveLeverage(a.TotalNotional, equity)
	a.MaxAdditionalNotional = e.maxAdditionalNotional(a.AvailableMargin)
	a.HealthStatus = e.HealthFor(a.MarginUsagePct)
	return a
}

// maxAdditionalNotional is the account-level exposure capacity left in the
// margin pool. Percentage markets scale available margin by the bot's
// effective leverage; per-contract markets have no price-free conversion
// from margin to notional, so capacity is reported 1:1.
func (e *Engine) maxAdditionalNotional(availableMargin float64) float64 {
	if availableMargin <= 0 {
		return 0
	}
	if e.cfg.Market.IsMarginPerContract {
		return availableMargin
	}
	lev := e.cfg.EffectiveLeverage()
	if lev <= 0 {
		return availableMargin
	}
	return availableMargin * lev
}

func (e *Engine) marginInputs(quantity, price float64, leverage *float64) marginInputs {
	q := absQuantity(quantity)
	return marginInputs{
		quantity: q,
		price:    price,
		notional: e.NotionalValue(q, price),
		leverage: e.resolveLeverage(leverage),
	}
}

// resolveLeverage prefers the position's own venue-set leverage over the
// bot default. The override is not re-capped: it reflects what the venue
// actually granted.
func (e *Engine) resolveLeverage(override *float64) float64 {
	if override != nil {
		return *override
	}
	return e.cfg.EffectiveLeverage()
}
