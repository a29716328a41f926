package margin

import (
	"strings"

	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
)

// MarketType identifies which margin formula family applies.
type MarketType string

const (
	StockFutures    MarketType = "STOCK_FUTURES"
	CryptoFutures   MarketType = "CRYPTO_FUTURES"
	CryptoPerpetual MarketType = "CRYPTO_PERPETUAL"
	Options         MarketType = "OPTIONS"
	CryptoSpot      MarketType = "CRYPTO_SPOT"
)

// Valid reports whether the market type is one of the known values.
func (t MarketType) Valid() bool {
	switch t {
	case StockFutures, CryptoFutures, CryptoPerpetual, Options, CryptoSpot:
		return true
	}
	return false
}

// ParseMarketType maps a config string to a MarketType.
func ParseMarketType(s string) (MarketType, error) {
	t := MarketType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", apperrors.Wrapf(apperrors.ErrUnknownMarketType, "%q", s)
	}
	return t, nil
}

// MarginMode describes whether positions share one margin pool.
// Carried for reporting; the engine computes cross-style aggregates.
type MarginMode string

const (
	ModeCross    MarginMode = "CROSS"
	ModeIsolated MarginMode = "ISOLATED"
)

// LiquidationMethod describes how the venue closes an underwater account.
// It informs alerting, not the metric formulas.
type LiquidationMethod string

const (
	LiqMarginCall  LiquidationMethod = "MARGIN_CALL"
	LiqAutoPartial LiquidationMethod = "AUTO_PARTIAL"
	LiqAutoFull    LiquidationMethod = "AUTO_FULL"
	LiqNone        LiquidationMethod = "NONE"
)

// SettlementType documents when P&L realizes for the market.
type SettlementType string

const (
	SettleDailyMTM   SettlementType = "DAILY_MTM"
	SettleContinuous SettlementType = "CONTINUOUS"
	SettleOnClose    SettlementType = "ON_CLOSE"
)

// MarketConfig holds the margin mechanics of one market type. Rates are
// currency amounts per contract when IsMarginPerContract is set, otherwise
// fractions of notional. Configs are value objects: built once, validated,
// then passed around by copy.
type MarketConfig struct {
	MarketType        MarketType
	Exchange          string
	MarginMode        MarginMode
	LiquidationMethod LiquidationMethod

	InitialMarginRate     float64
	MaintenanceMarginRate float64
	IsMarginPerContract   bool

	MaxLeverage     float64
	DefaultLeverage float64

	// ContractMultiplier converts one price point of one unit of quantity
	// into currency, e.g. $50/point for a stock-index future.
	ContractMultiplier float64
	TickSize           float64
	TickValue          float64

	HasExpiry      bool
	SettlementType SettlementType

	HasFundingRate       bool
	FundingIntervalHours float64

	// Venue-reported thresholds, advisory in this engine.
	MarginCallThresholdPct      float64
	AutoLiquidationThresholdPct float64
}

// Validate checks the structural invariants of the config. Formula-level
// edge cases (zero rates, zero leverage) are legal and handled by the
// engine; this only rejects states that no market can mean.
func (c MarketConfig) Validate() error {
	if !c.MarketType.Valid() {
		return apperrors.Wrapf(apperrors.ErrUnknownMarketType, "%q", string(c.MarketType))
	}
	if c.ContractMultiplier <= 0 {
		return apperrors.NewValidationError("contract_multiplier", c.ContractMultiplier, "must be positive")
	}
	if c.InitialMarginRate < 0 {
		return apperrors.NewValidationError("initial_margin_rate", c.InitialMarginRate, "must not be negative")
	}
	if c.MaintenanceMarginRate < 0 {
		return apperrors.NewValidationError("maintenance_margin_rate", c.MaintenanceMarginRate, "must not be negative")
	}
	if c.MaxLeverage < 0 || c.DefaultLeverage < 0 {
		return apperrors.NewValidationError("leverage", c.DefaultLeverage, "must not be negative")
	}
	if c.MaxLeverage > 0 && c.DefaultLeverage > c.MaxLeverage {
		return apperrors.NewValidationError("default_leverage", c.DefaultLeverage, "exceeds max_leverage")
	}
	if c.MarketType == CryptoPerpetual && c.DefaultLeverage <= 0 {
		return apperrors.NewValidationError("default_leverage", c.DefaultLeverage, "perpetual markets need a positive default leverage")
	}
	if c.HasFundingRate && c.FundingIntervalHours <= 0 {
		return apperrors.NewValidationError("funding_interval_hours", c.FundingIntervalHours, "must be positive when funding is enabled")
	}
	if c.MarginCallThresholdPct < 0 || c.AutoLiquidationThresholdPct < 0 {
		return apperrors.NewValidationError("margin_call_threshold_pct", c.MarginCallThresholdPct, "must not be negative")
	}
	return nil
}

// DefaultMarketConfig returns the built-in preset for a market type.
// Presets are conservative reference values; deployments override them
// per bot in the config file.
func DefaultMarketConfig(t MarketType) (MarketConfig, error) {
	switch t {
	case StockFutures:
		return MarketConfig{
			MarketType:                  StockFutures,
			Exchange:                    "cme",
			MarginMode:                  ModeCross,
			LiquidationMethod:           LiqMarginCall,
			InitialMarginRate:           1650.0,
			MaintenanceMarginRate:       1500.0,
			IsMarginPerContract:         true,
			MaxLeverage:                 10,
			DefaultLeverage:             1,
			ContractMultiplier:          50.0,
			TickSize:                    0.25,
			TickValue:                   12.50,
			HasExpiry:                   true,
			SettlementType:              SettleDailyMTM,
			MarginCallThresholdPct:      100,
			AutoLiquidationThresholdPct: 50,
		}, nil
	case CryptoFutures:
		return MarketConfig{
			MarketType:                  CryptoFutures,
			Exchange:                    "binance",
			MarginMode:                  ModeCross,
			LiquidationMethod:           LiqAutoPartial,
			InitialMarginRate:           0.10,
			MaintenanceMarginRate:       0.05,
			IsMarginPerContract:         false,
			MaxLeverage:                 20,
			DefaultLeverage:             5,
			ContractMultiplier:          1.0,
			TickSize:                    0.10,
			TickValue:                   0.10,
			HasExpiry:                   true,
			SettlementType:              SettleOnClose,
			MarginCallThresholdPct:      100,
			AutoLiquidationThresholdPct: 100,
		}, nil
	case CryptoPerpetual:
		return MarketConfig{
			MarketType:                  CryptoPerpetual,
			Exchange:                    "binance",
			MarginMode:                  ModeCross,
			LiquidationMethod:           LiqAutoFull,
			InitialMarginRate:           0,
			MaintenanceMarginRate:       0.005,
			IsMarginPerContract:         false,
			MaxLeverage:                 50,
			DefaultLeverage:             10,
			ContractMultiplier:          1.0,
			TickSize:                    0.10,
			TickValue:                   0.10,
			SettlementType:              SettleContinuous,
			HasFundingRate:              true,
			FundingIntervalHours:        8,
			MarginCallThresholdPct:      100,
			AutoLiquidationThresholdPct: 100,
		}, nil
	case Options:
		return MarketConfig{
			MarketType:                  Options,
			Exchange:                    "tastytrade",
			MarginMode:                  ModeIsolated,
			LiquidationMethod:           LiqMarginCall,
			InitialMarginRate:           1.0,
			MaintenanceMarginRate:       1.0,
			IsMarginPerContract:         false,
			MaxLeverage:                 1,
			DefaultLeverage:             1,
			ContractMultiplier:          100.0,
			TickSize:                    0.01,
			TickValue:                   1.0,
			HasExpiry:                   true,
			SettlementType:              SettleOnClose,
			MarginCallThresholdPct:      100,
		}, nil
	case CryptoSpot:
		return MarketConfig{
			MarketType:         CryptoSpot,
			Exchange:           "kraken",
			MarginMode:         ModeCross,
			LiquidationMethod:  LiqNone,
			MaxLeverage:        1,
			DefaultLeverage:    1,
			ContractMultiplier: 1.0,
			TickSize:           0.01,
			TickValue:          0.01,
			SettlementType:     SettleOnClose,
		}, nil
	default:
		return MarketConfig{}, apperrors.Wrapf(apperrors.ErrUnknownMarketType, "%q", string(t))
	}
}
