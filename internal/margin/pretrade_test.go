package margin

import (
	"strings"
	"testing"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// gateTestConfig returns a stock-futures bot config with every limit
// relaxed, so each test can tighten exactly the limit under test.
func gateTestConfig(t *testing.T) BotMarginConfig {
	t.Helper()
	cfg := stockFuturesTestConfig(t)
	cfg.MaxMarginUsagePct = 100
	cfg.MinLiqDistancePct = 0
	cfg.MaxEffectiveLeverage = 10000
	cfg.MaxSinglePositionMarginPct = 100
	return cfg
}

func TestCheckPreTradeApproves(t *testing.T) {
	eng := newTestEngine(t, stockFuturesTestConfig(t))

	res := eng.CheckPreTrade(100000, nil, ProposedTrade{
		Symbol:     "ESU6",
		Side:       models.SideLong,
		Quantity:   1,
		EntryPrice: 6000,
	})

	if !res.Approved {
		t.Fatalf("expected approval, got violations: %v", res.Violations)
	}
	if res.Reason != "Trade approved" {
		t.Errorf("Reason = %q, want %q", res.Reason, "Trade approved")
	}
	if len(res.Violations) != 0 {
		t.Errorf("Violations = %v, want none", res.Violations)
	}
	if res.TradeMargin != 500 {
		t.Errorf("TradeMargin = %v, want 500", res.TradeMargin)
	}
	if res.TradeNotional != 300000 {
		t.Errorf("TradeNotional = %v, want 300000", res.TradeNotional)
	}
	if res.CurrentAvailable != 100000 {
		t.Errorf("CurrentAvailable = %v, want 100000", res.CurrentAvailable)
	}
}

func TestCheckPreTradeRejectsUsageAboveLimit(t *testing.T) {
	cfg := gateTestConfig(t)
	cfg.MaxMarginUsagePct = 70
	eng := newTestEngine(t, cfg)

	// 12 contracts at $500 already consume $6,000 of the $10,000 equity.
	existing := []models.Position{{
		PositionID: "p1", Symbol: "ESU6", Side: models.SideLong,
		Quantity: 12, EntryPrice: 6000, CurrentPrice: 6000,
	}}
	res := eng.CheckPreTrade(10000, existing, ProposedTrade{
		Symbol:     "ESU6",
		Side:       models.SideLong,
		Quantity:   4,
		EntryPrice: 6000,
	})

	if res.Approved {
		t.Fatal("expected rejection at 80% projected usage against a 70% limit")
	}
	if len(res.Violations) != 1 {
		t.Fatalf("Violations = %v, want exactly the usage violation", res.Violations)
	}
	if !strings.Contains(res.Reason, "80.0%") || !strings.Contains(res.Reason, "70.0%") {
		t.Errorf("Reason = %q, want the projected and limit percentages", res.Reason)
	}
	if res.ProjectedMarginUsed != 8000 {
		t.Errorf("ProjectedMarginUsed = %v, want 8000", res.ProjectedMarginUsed)
	}
	if !approx(res.ProjectedUsagePct, 80, 1e-9) {
		t.Errorf("ProjectedUsagePct = %v, want 80", res.ProjectedUsagePct)
	}
}

func TestCheckPreTradeRejectsInsufficientMargin(t *testing.T) {
	eng := newTestEngine(t, stockFuturesTestConfig(t))

	res := eng.CheckPreTrade(1000, nil, ProposedTrade{
		Symbol:     "ESU6",
		Side:       models.SideLong,
		Quantity:   3,
		EntryPrice: 6000,
	})

	if res.Approved {
		t.Fatal("expected rejection when the trade needs more margin than is available")
	}
	if !strings.Contains(res.Reason, "insufficient available margin") {
		t.Errorf("Reason = %q, want the insufficient-margin violation", res.Reason)
	}
	if res.TradeMargin != 1500 || res.CurrentAvailable != 1000 {
		t.Errorf("TradeMargin = %v, CurrentAvailable = %v, want 1500 and 1000",
			res.TradeMargin, res.CurrentAvailable)
	}
}

func TestCheckPreTradeRejectsThinLiquidationDistance(t *testing.T) {
	cfg := gateTestConfig(t)
	cfg.MinLiqDistancePct = 15
	eng := newTestEngine(t, cfg)

	// 10 contracts leave only $1,000 over the maintenance floor: the
	// fill would sit a fraction of a percent from its liquidation price.
	res := eng.CheckPreTrade(10000, nil, ProposedTrade{
		Symbol:     "ESU6",
		Side:       models.SideLong,
		Quantity:   10,
		EntryPrice: 6000,
	})

	if res.Approved {
		t.Fatal("expected rejection for a fill too close to liquidation")
	}
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0], "liquidation distance") {
		t.Fatalf("Violations = %v, want exactly the liquidation-distance violation", res.Violations)
	}
	if res.ProjectedLiqDistancePct == nil {
		t.Fatal("expected a projected liquidation distance")
	}
	if *res.ProjectedLiqDistancePct >= 15 {
		t.Errorf("ProjectedLiqDistancePct = %v, want under the 15%% minimum", *res.ProjectedLiqDistancePct)
	}
}

func TestCheckPreTradeRejectsExcessLeverage(t *testing.T) {
	market, err := DefaultMarketConfig(CryptoPerpetual)
	if err != nil {
		t.Fatalf("DefaultMarketConfig: %v", err)
	}
	cfg := DefaultBotMarginConfig("btc-perp-bot", market)
	cfg.MaxMarginUsagePct = 100
	cfg.MinLiqDistancePct = 0
	cfg.MaxEffectiveLeverage = 5
	cfg.MaxSinglePositionMarginPct = 100
	eng := newTestEngine(t, cfg)

	res := eng.CheckPreTrade(10000, nil, ProposedTrade{
		Symbol:     "BTCUSDT",
		Side:       models.SideLong,
		Quantity:   0.6,
		EntryPrice: 100000,
	})

	if res.Approved {
		t.Fatal("expected rejection at 6x projected leverage against a 5x limit")
	}
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0], "effective leverage") {
		t.Fatalf("Violations = %v, want exactly the leverage violation", res.Violations)
	}
	if !approx(res.ProjectedLeverage, 6, 1e-9) {
		t.Errorf("ProjectedLeverage = %v, want 6", res.ProjectedLeverage)
	}
}

func TestCheckPreTradeRejectsConcentration(t *testing.T) {
	cfg := gateTestConfig(t)
	cfg.MaxSinglePositionMarginPct = 50
	eng := newTestEngine(t, cfg)

	// 11 contracts at $500 put 55% of equity behind a single position.
	res := eng.CheckPreTrade(10000, nil, ProposedTrade{
		Symbol:     "ESU6",
		Side:       models.SideLong,
		Quantity:   11,
		EntryPrice: 10,
	})

	if res.Approved {
		t.Fatal("expected rejection at 55% single-position concentration against a 50% limit")
	}
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0], "concentration") {
		t.Fatalf("Violations = %v, want exactly the concentration violation", res.Violations)
	}
}

func TestCheckPreTradeJoinsMultipleViolations(t *testing.T) {
	cfg := stockFuturesTestConfig(t)
	eng := newTestEngine(t, cfg)

	// Oversized in every dimension at once.
	res := eng.CheckPreTrade(1000, nil, ProposedTrade{
		Symbol:     "ESU6",
		Side:       models.SideLong,
		Quantity:   10,
		EntryPrice: 6000,
	})

	if res.Approved {
		t.Fatal("expected rejection")
	}
	if len(res.Violations) < 2 {
		t.Fatalf("Violations = %v, want several", res.Violations)
	}
	if !strings.Contains(res.Reason, "; ") {
		t.Errorf("Reason = %q, want violations joined with a semicolon", res.Reason)
	}
	for _, v := range res.Violations {
		if !strings.Contains(res.Reason, v) {
			t.Errorf("Reason %q is missing violation %q", res.Reason, v)
		}
	}
}

func TestCheckPreTradeDoesNotMutateInputs(t *testing.T) {
	eng := newTestEngine(t, stockFuturesTestConfig(t))

	positions := []models.Position{{
		PositionID: "p1", Symbol: "ESU6", Side: models.SideLong,
		Quantity: 2, EntryPrice: 6000, CurrentPrice: 6010,
	}}
	snapshot := positions[0]

	eng.CheckPreTrade(10000, positions, ProposedTrade{
		Symbol: "ESU6", Side: models.SideShort, Quantity: 1, EntryPrice: 6010,
	})

	if positions[0] != snapshot {
		t.Errorf("position mutated by the gate: %+v", positions[0])
	}
}
