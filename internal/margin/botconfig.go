package margin

import (
	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
)

// AutoReducePolicy configures the monitor-side sustained-danger response.
// Disabled by default; the engine never acts on it, it only rides along so
// the monitor and the bot share one config object.
type AutoReducePolicy struct {
	Enabled bool
	// MarginPct is the usage percentage that starts the danger timer.
	MarginPct float64
	// DurationSeconds is how long usage must stay above MarginPct before a
	// reduction is recommended.
	DurationSeconds int
	// PositionPct is the percentage of the position to reduce by.
	PositionPct float64
	// CloseLiqDistancePct is the liquidation distance below which an
	// immediate close is recommended.
	CloseLiqDistancePct float64
}

// BotMarginConfig wraps a MarketConfig with bot-level guardrails. The
// bot-level limits are intentionally tighter than anything the venue
// enforces; the engine gates trades on these, not on venue thresholds.
type BotMarginConfig struct {
	BotName string
	Market  MarketConfig

	// Hard limits enforced by the pre-trade check.
	MaxMarginUsagePct          float64
	MinLiqDistancePct          float64
	MaxEffectiveLeverage       float64
	MaxSinglePositionMarginPct float64

	// Alert thresholds for health grading: warning < danger < critical.
	WarningThresholdPct  float64
	DangerThresholdPct   float64
	CriticalThresholdPct float64

	AutoReduce AutoReducePolicy

	// LeverageOverride caps at the market's max leverage when set.
	LeverageOverride *float64

	AccountID    string
	AccountLabel string
}

// DefaultBotMarginConfig returns a bot config with the platform's
// conservative default guardrails around the given market.
func DefaultBotMarginConfig(botName string, market MarketConfig) BotMarginConfig {
	return BotMarginConfig{
		BotName:                    botName,
		Market:                     market,
		MaxMarginUsagePct:          80,
		MinLiqDistancePct:          15,
		MaxEffectiveLeverage:       10,
		MaxSinglePositionMarginPct: 50,
		WarningThresholdPct:        60,
		DangerThresholdPct:         75,
		CriticalThresholdPct:       90,
		AutoReduce: AutoReducePolicy{
			Enabled:             false,
			MarginPct:           85,
			DurationSeconds:     300,
			PositionPct:         25,
			CloseLiqDistancePct: 5,
		},
	}
}

// EffectiveLeverage resolves the leverage the margin formulas use: the
// override capped at the market's max when set, else the market default.
func (c BotMarginConfig) EffectiveLeverage() float64 {
	if c.LeverageOverride != nil {
		lev := *c.LeverageOverride
		if c.Market.MaxLeverage > 0 && lev > c.Market.MaxLeverage {
			return c.Market.MaxLeverage
		}
		return lev
	}
	return c.Market.DefaultLeverage
}

// Validate checks bot-level invariants, then the wrapped market config.
func (c BotMarginConfig) Validate() error {
	if c.BotName == "" {
		return apperrors.NewValidationError("bot_name", c.BotName, "must not be empty")
	}
	if c.MaxMarginUsagePct <= 0 || c.MaxMarginUsagePct > 100 {
		return apperrors.NewValidationError("max_margin_usage_pct", c.MaxMarginUsagePct, "must be in (0, 100]")
	}
	if c.MinLiqDistancePct < 0 {
		return apperrors.NewValidationError("min_liquidation_distance_pct", c.MinLiqDistancePct, "must not be negative")
	}
	if c.MaxEffectiveLeverage <= 0 {
		return apperrors.NewValidationError("max_effective_leverage", c.MaxEffectiveLeverage, "must be positive")
	}
	if c.MaxSinglePositionMarginPct <= 0 || c.MaxSinglePositionMarginPct > 100 {
		return apperrors.NewValidationError("max_single_position_margin_pct", c.MaxSinglePositionMarginPct, "must be in (0, 100]")
	}
	if c.WarningThresholdPct <= 0 || c.CriticalThresholdPct > 100 {
		return apperrors.NewValidationError("alert_thresholds", c.WarningThresholdPct, "must be in (0, 100]")
	}
	if !(c.WarningThresholdPct < c.DangerThresholdPct && c.DangerThresholdPct < c.CriticalThresholdPct) {
		return apperrors.NewValidationError("alert_thresholds", c.DangerThresholdPct, "must be ordered warning < danger < critical")
	}
	if c.LeverageOverride != nil && *c.LeverageOverride <= 0 {
		return apperrors.NewValidationError("leverage_override", *c.LeverageOverride, "must be positive when set")
	}
	if c.AutoReduce.Enabled {
		if c.AutoReduce.MarginPct <= 0 || c.AutoReduce.MarginPct > 100 {
			return apperrors.NewValidationError("auto_reduce_margin_pct", c.AutoReduce.MarginPct, "must be in (0, 100]")
		}
		if c.AutoReduce.DurationSeconds <= 0 {
			return apperrors.NewValidationError("auto_reduce_duration_seconds", c.AutoReduce.DurationSeconds, "must be positive")
		}
		if c.AutoReduce.PositionPct <= 0 || c.AutoReduce.PositionPct > 100 {
			return apperrors.NewValidationError("auto_reduce_position_pct", c.AutoReduce.PositionPct, "must be in (0, 100]")
		}
	}
	return c.Market.Validate()
}
