package monitor

import (
	"context"

	"github.com/lemollon/AlphaGEX-sub013/internal/logging"
	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"

	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
)

// botState resolves a bot's runtime and fetches its live state. Every
// synchronous entry point funnels through here so unknown bots and
// provider failures are reported identically.
func (m *Monitor) botState(ctx context.Context, botName string) (*botRuntime, *models.BotState, error) {
	rt := m.runtime(botName)
	if rt == nil {
		return nil, nil, apperrors.Wrapf(apperrors.ErrBotNotFound, "bot %s", botName)
	}

	state, err := m.provider.BotState(ctx, botName)
	if err != nil {
		return nil, nil, apperrors.NewProviderError(botName, "bot_state", err)
	}
	return rt, state, nil
}

// CheckTrade runs the pre-trade gate against the bot's live state.
// When the state cannot be fetched the gate fails closed: the caller
// gets an error, never an approval. Every verdict is logged.
func (m *Monitor) CheckTrade(ctx context.Context, botName string, trade margin.ProposedTrade) (*margin.PreTradeCheckResult, error) {
	logger := logging.WithBot(m.logger, botName)

	rt, state, err := m.botState(ctx, botName)
	if err != nil {
		logger.Error().Err(err).
			Str("symbol", trade.Symbol).
			Msg("pre-trade check aborted, margin state unavailable")
		return nil, err
	}

	result := rt.engine.CheckPreTrade(state.AccountEquity, state.Positions, trade)
	logging.LogPreTrade(logger, botName, trade.Symbol, result.Approved, result.Reason)
	return result, nil
}

// BotMetrics computes current account metrics from live state.
func (m *Monitor) BotMetrics(ctx context.Context, botName string) (*margin.AccountMarginMetrics, error) {
	rt, state, err := m.botState(ctx, botName)
	if err != nil {
		return nil, err
	}
	return rt.engine.AccountMetrics(state.AccountEquity, state.Positions), nil
}

// SimulatePriceMove runs a what-if price shock against live state.
func (m *Monitor) SimulatePriceMove(ctx context.Context, botName string, priceChangePct float64) (*margin.ScenarioResult, error) {
	rt, state, err := m.botState(ctx, botName)
	if err != nil {
		return nil, err
	}
	return rt.engine.SimulatePriceMove(state.AccountEquity, state.Positions, priceChangePct), nil
}

// SimulateAddContracts runs a what-if position increase against live state.
func (m *Monitor) SimulateAddContracts(ctx context.Context, botName string, quantity, price float64, side models.Side) (*margin.ScenarioResult, error) {
	rt, state, err := m.botState(ctx, botName)
	if err != nil {
		return nil, err
	}
	return rt.engine.SimulateAddContracts(state.AccountEquity, state.Positions, quantity, price, side), nil
}

// SimulateLeverageChange runs a what-if leverage change against live state.
func (m *Monitor) SimulateLeverageChange(ctx context.Context, botName string, newLeverage float64) (*margin.ScenarioResult, error) {
	rt, state, err := m.botState(ctx, botName)
	if err != nil {
		return nil, err
	}
	return rt.engine.SimulateLeverageChange(state.AccountEquity, state.Positions, newLeverage), nil
}

// BotConfig returns the margin policy for a bot.
func (m *Monitor) BotConfig(botName string) (margin.BotMarginConfig, error) {
	rt := m.runtime(botName)
	if rt == nil {
		return margin.BotMarginConfig{}, apperrors.Wrapf(apperrors.ErrBotNotFound, "bot %s", botName)
	}
	return rt.cfg, nil
}
