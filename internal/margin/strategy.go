package margin

import (
	"math"

	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// marginStrategy captures the pieces of the margin model that differ by
// market type. One strategy is resolved at engine construction so the hot
// paths never re-dispatch on the market enum.
type marginStrategy interface {
	// InitialMargin returns the capital required to open the exposure.
	InitialMargin(in marginInputs) float64
	// MaintenanceMargin returns the minimum equity needed to keep it open.
	MaintenanceMargin(in marginInputs) float64
	// LiquidationPrice returns the approximate price at which the position
	// would be liquidated, and false when the metric is not defined for
	// the market (spot, defined-risk options) or the inputs are degenerate.
	LiquidationPrice(in liquidationInputs) (float64, bool)
}

// marginInputs are the per-position quantities every strategy works from.
type marginInputs struct {
	quantity float64 // absolute
	price    float64
	notional float64
	leverage float64 // resolved effective leverage, 0 when not applicable
}

// liquidationInputs carries the account context the liquidation formulas
// need. Strategies pick the equity basis that matches their market: the
// futures family budgets from margin left after all initial margin, the
// perpetual family from equity net of other positions' maintenance.
type liquidationInputs struct {
	side             models.Side
	quantity         float64
	entryPrice       float64
	currentPrice     float64
	equity           float64
	marginUsed       float64 // total initial margin across the account
	maintenanceOther float64 // maintenance margin held by other positions
	maintenanceThis  float64 // this position's maintenance requirement
	leverage         float64 // resolved effective leverage
}

func newMarginStrategy(cfg MarketConfig) (marginStrategy, error) {
	switch cfg.MarketType {
	case StockFutures, CryptoFutures:
		return &futuresStrategy{cfg: cfg}, nil
	case CryptoPerpetual:
		return &perpetualStrategy{cfg: cfg}, nil
	case Options:
		return &optionsStrategy{cfg: cfg}, nil
	case CryptoSpot:
		return &spotStrategy{cfg: cfg}, nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrUnknownMarketType, "%q", string(cfg.MarketType))
	}
}

// rateMargin applies the two margin regimes shared by every market:
// a currency amount per contract, or a fraction of notional with full
// notional as the no-rate fallback (100% margin).
func rateMargin(cfg MarketConfig, in marginInputs, rate float64) float64 {
	if cfg.IsMarginPerContract {
		return in.quantity * rate
	}
	if rate > 0 {
		return in.notional * rate
	}
	return in.notional
}

// adverseMoveLiquidation solves for the price where the adverse-move
// budget is exhausted: entry -/+ budget / (quantity x multiplier). A
// budget already below zero means the position is in liquidation
// territory now, so the entry price itself is returned.
func adverseMoveLiquidation(cfg MarketConfig, in liquidationInputs, equityAvailable, maintenance float64) (float64, bool) {
	denom := in.quantity * cfg.ContractMultiplier
	if denom == 0 {
		return 0, false
	}
	budget := equityAvailable - maintenance
	if budget < 0 {
		return in.entryPrice, true
	}
	adverse := budget / denom
	var liq float64
	if in.side == models.SideShort {
		liq = in.entryPrice + adverse
	} else {
		liq = in.entryPrice - adverse
	}
	if liq < 0 {
		liq = 0
	}
	return liq, true
}

// futuresStrategy covers STOCK_FUTURES and CRYPTO_FUTURES: rate-based
// margin and a liquidation budget taken from the account's available
// margin after all initial margin is posted.
type futuresStrategy struct {
	cfg MarketConfig
}

func (s *futuresStrategy) InitialMargin(in marginInputs) float64 {
	return rateMargin(s.cfg, in, s.cfg.InitialMarginRate)
}

func (s *futuresStrategy) MaintenanceMargin(in marginInputs) float64 {
	return rateMargin(s.cfg, in, s.cfg.MaintenanceMarginRate)
}

func (s *futuresStrategy) LiquidationPrice(in liquidationInputs) (float64, bool) {
	available := in.equity - in.marginUsed
	return adverseMoveLiquidation(s.cfg, in, available, in.maintenanceThis)
}

// perpetualStrategy covers CRYPTO_PERPETUAL: initial margin is the
// notional divided by effective leverage, maintenance is a fraction of
// notional, and the liquidation budget excludes maintenance consumed by
// other open positions.
type perpetualStrategy struct {
	cfg MarketConfig
}

func (s *perpetualStrategy) InitialMargin(in marginInputs) float64 {
	if s.cfg.IsMarginPerContract {
		return in.quantity * s.cfg.InitialMarginRate
	}
	if in.leverage > 0 {
		return in.notional / in.leverage
	}
	// No usable leverage degrades to fully funded rather than dividing.
	return in.notional
}

func (s *perpetualStrategy) MaintenanceMargin(in marginInputs) float64 {
	return rateMargin(s.cfg, in, s.cfg.MaintenanceMarginRate)
}

func (s *perpetualStrategy) LiquidationPrice(in liquidationInputs) (float64, bool) {
	if in.leverage <= 0 {
		return 0, false
	}
	notional := in.quantity * in.currentPrice * s.cfg.ContractMultiplier
	maintenance := notional * s.cfg.MaintenanceMarginRate
	available := in.equity - in.maintenanceOther
	return adverseMoveLiquidation(s.cfg, in, available, maintenance)
}

// optionsStrategy covers defined-risk option structures. Margin is the
// structure's debit/requirement via the rate regime; there is no
// liquidation price in the futures sense, the max loss is capped by the
// structure itself.
type optionsStrategy struct {
	cfg MarketConfig
}

func (s *optionsStrategy) InitialMargin(in marginInputs) float64 {
	return rateMargin(s.cfg, in, s.cfg.InitialMarginRate)
}

func (s *optionsStrategy) MaintenanceMargin(in marginInputs) float64 {
	return rateMargin(s.cfg, in, s.cfg.MaintenanceMarginRate)
}

func (s *optionsStrategy) LiquidationPrice(liquidationInputs) (float64, bool) {
	return 0, false
}

// spotStrategy covers unleveraged spot: full-notional margin, nothing to
// liquidate.
type spotStrategy struct {
	cfg MarketConfig
}

func (s *spotStrategy) InitialMargin(in marginInputs) float64 {
	return rateMargin(s.cfg, in, s.cfg.InitialMarginRate)
}

func (s *spotStrategy) MaintenanceMargin(in marginInputs) float64 {
	return rateMargin(s.cfg, in, s.cfg.MaintenanceMarginRate)
}

func (s *spotStrategy) LiquidationPrice(liquidationInputs) (float64, bool) {
	return 0, false
}

// absQuantity normalizes a caller-supplied quantity; direction is always
// carried by Side, never by sign.
func absQuantity(q float64) float64 {
	return math.Abs(q)
}
