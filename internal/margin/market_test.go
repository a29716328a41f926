package margin

import (
	"testing"

	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
)

func TestParseMarketType(t *testing.T) {
	tests := []struct {
		in   string
		want MarketType
	}{
		{"STOCK_FUTURES", StockFutures},
		{"crypto_futures", CryptoFutures},
		{"Crypto_Perpetual", CryptoPerpetual},
		{" options ", Options},
		{"CRYPTO_SPOT", CryptoSpot},
	}
	for _, tt := range tests {
		got, err := ParseMarketType(tt.in)
		if err != nil {
			t.Errorf("ParseMarketType(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMarketType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "SPOT", "futures", "perp"} {
		if _, err := ParseMarketType(bad); !apperrors.Is(err, apperrors.ErrUnknownMarketType) {
			t.Errorf("ParseMarketType(%q) = %v, want ErrUnknownMarketType", bad, err)
		}
	}
}

func TestDefaultMarketConfigPresets(t *testing.T) {
	for _, mt := range []MarketType{StockFutures, CryptoFutures, CryptoPerpetual, Options, CryptoSpot} {
		cfg, err := DefaultMarketConfig(mt)
		if err != nil {
			t.Errorf("DefaultMarketConfig(%s) error: %v", mt, err)
			continue
		}
		if cfg.MarketType != mt {
			t.Errorf("preset %s carries market type %s", mt, cfg.MarketType)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %s does not validate: %v", mt, err)
		}
	}

	futures, _ := DefaultMarketConfig(StockFutures)
	if !futures.IsMarginPerContract {
		t.Error("stock futures preset should margin per contract")
	}
	if futures.SettlementType != SettleDailyMTM {
		t.Errorf("stock futures settlement = %s, want DAILY_MTM", futures.SettlementType)
	}

	perp, _ := DefaultMarketConfig(CryptoPerpetual)
	if !perp.HasFundingRate || perp.FundingIntervalHours != 8 {
		t.Errorf("perpetual preset funding = %v/%vh, want enabled at 8h",
			perp.HasFundingRate, perp.FundingIntervalHours)
	}
	if perp.LiquidationMethod != LiqAutoFull {
		t.Errorf("perpetual liquidation method = %s, want AUTO_FULL", perp.LiquidationMethod)
	}

	options, _ := DefaultMarketConfig(Options)
	if options.MarginMode != ModeIsolated {
		t.Errorf("options margin mode = %s, want ISOLATED", options.MarginMode)
	}

	spot, _ := DefaultMarketConfig(CryptoSpot)
	if spot.LiquidationMethod != LiqNone {
		t.Errorf("spot liquidation method = %s, want NONE", spot.LiquidationMethod)
	}

	if _, err := DefaultMarketConfig(MarketType("FOREX")); !apperrors.Is(err, apperrors.ErrUnknownMarketType) {
		t.Errorf("DefaultMarketConfig(FOREX) = %v, want ErrUnknownMarketType", err)
	}
}

func TestMarketConfigValidate(t *testing.T) {
	base, err := DefaultMarketConfig(CryptoPerpetual)
	if err != nil {
		t.Fatalf("DefaultMarketConfig: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*MarketConfig)
	}{
		{"unknown market type", func(c *MarketConfig) { c.MarketType = "FOREX" }},
		{"zero multiplier", func(c *MarketConfig) { c.ContractMultiplier = 0 }},
		{"negative initial rate", func(c *MarketConfig) { c.InitialMarginRate = -0.1 }},
		{"negative maintenance rate", func(c *MarketConfig) { c.MaintenanceMarginRate = -0.1 }},
		{"negative leverage", func(c *MarketConfig) { c.DefaultLeverage = -1 }},
		{"default above max", func(c *MarketConfig) { c.DefaultLeverage = c.MaxLeverage + 1 }},
		{"perpetual without leverage", func(c *MarketConfig) { c.DefaultLeverage = 0 }},
		{"funding without interval", func(c *MarketConfig) { c.FundingIntervalHours = 0 }},
		{"negative call threshold", func(c *MarketConfig) { c.MarginCallThresholdPct = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted a config with %s", tt.name)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Errorf("unmutated preset failed validation: %v", err)
	}
}

func TestBotMarginConfigValidate(t *testing.T) {
	market, err := DefaultMarketConfig(CryptoPerpetual)
	if err != nil {
		t.Fatalf("DefaultMarketConfig: %v", err)
	}
	base := DefaultBotMarginConfig("bot", market)

	tests := []struct {
		name   string
		mutate func(*BotMarginConfig)
	}{
		{"empty name", func(c *BotMarginConfig) { c.BotName = "" }},
		{"usage limit above 100", func(c *BotMarginConfig) { c.MaxMarginUsagePct = 120 }},
		{"negative liquidation distance", func(c *BotMarginConfig) { c.MinLiqDistancePct = -1 }},
		{"zero leverage limit", func(c *BotMarginConfig) { c.MaxEffectiveLeverage = 0 }},
		{"zero concentration limit", func(c *BotMarginConfig) { c.MaxSinglePositionMarginPct = 0 }},
		{"unordered thresholds", func(c *BotMarginConfig) { c.DangerThresholdPct = c.CriticalThresholdPct }},
		{"zero leverage override", func(c *BotMarginConfig) { c.LeverageOverride = floatPtr(0) }},
		{"auto-reduce without duration", func(c *BotMarginConfig) {
			c.AutoReduce.Enabled = true
			c.AutoReduce.DurationSeconds = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted a config with %s", tt.name)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Errorf("default bot config failed validation: %v", err)
	}
}
