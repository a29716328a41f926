// Package cli provides the command-line interface for the margin monitor.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
	"github.com/lemollon/AlphaGEX-sub013/pkg/utils"
)

func newCheckCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <bot>",
		Short: "Gate a proposed trade against the bot's margin limits",
		Long: `Run the pre-trade margin check for a proposed trade against the bot's
live account state. The command exits non-zero when the trade is
rejected or when the margin state cannot be determined, so it can gate
order placement in scripts.`,
		Example: `  marginwatch check btc-perp-01 --symbol BTCUSDT --side long --quantity 0.5 --price 43000
  marginwatch check es-futures-01 --symbol ESZ5 --side short --quantity 2 --price 5900 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			botName := args[0]

			symbol, _ := cmd.Flags().GetString("symbol")
			sideFlag, _ := cmd.Flags().GetString("side")
			quantity, _ := cmd.Flags().GetFloat64("quantity")
			price, _ := cmd.Flags().GetFloat64("price")
			leverage, _ := cmd.Flags().GetFloat64("leverage")

			side := models.Side(strings.ToLower(sideFlag))
			if !side.Valid() {
				return fmt.Errorf("invalid side %q: must be long or short", sideFlag)
			}
			if symbol == "" {
				return fmt.Errorf("--symbol is required")
			}
			if quantity <= 0 {
				return fmt.Errorf("--quantity must be positive")
			}
			if price <= 0 {
				return fmt.Errorf("--price must be positive")
			}

			trade := margin.ProposedTrade{
				Symbol:     strings.ToUpper(symbol),
				Side:       side,
				Quantity:   quantity,
				EntryPrice: price,
			}
			if cmd.Flags().Changed("leverage") {
				trade.Leverage = &leverage
			}

			m, err := quietMonitor(app)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			result, err := m.CheckTrade(ctx, botName, trade)
			if err != nil {
				output.Error("Margin state unavailable, trade must not be placed: %v", err)
				return err
			}

			if output.IsJSON() {
				if err := output.JSON(result.Map()); err != nil {
					return err
				}
			} else {
				renderCheckResult(output, botName, trade, result)
			}

			if !result.Approved {
				return fmt.Errorf("trade rejected: %s", result.Reason)
			}
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "instrument symbol (required)")
	cmd.Flags().String("side", "long", "trade side: long or short")
	cmd.Flags().Float64P("quantity", "q", 0, "contracts or units to trade (required)")
	cmd.Flags().Float64P("price", "p", 0, "expected entry price (required)")
	cmd.Flags().Float64("leverage", 0, "leverage for this trade (defaults to bot leverage)")
	return cmd
}

func renderCheckResult(output *Output, botName string, trade margin.ProposedTrade, result *margin.PreTradeCheckResult) {
	output.Bold("Pre-Trade Check  %s  %s %s %s @ %s",
		botName, trade.Symbol, trade.Side, utils.FormatQuantity(trade.Quantity), utils.FormatUSD(trade.EntryPrice))
	output.Println()

	output.Printf("  Verdict:             %s\n", output.VerdictText(result.Approved))
	if result.Reason != "" {
		output.Printf("  Reason:              %s\n", result.Reason)
	}
	if len(result.Violations) > 0 {
		output.Printf("  Violations:\n")
		for _, v := range result.Violations {
			output.Printf("    • %s\n", output.Red(v))
		}
	}
	output.Println()

	output.Printf("  Trade Margin:        %s\n", utils.FormatUSD(result.TradeMargin))
	output.Printf("  Trade Notional:      %s\n", utils.FormatUSD(result.TradeNotional))
	output.Printf("  Available Margin:    %s\n", utils.FormatUSD(result.CurrentAvailable))
	output.Printf("  Projected Usage:     %s\n", utils.FormatPercent(result.ProjectedUsagePct))
	output.Printf("  Projected Leverage:  %sx\n", utils.FormatQuantity(result.ProjectedLeverage))
	if result.ProjectedLiqDistancePct != nil {
		output.Printf("  Projected Liq Dist:  %s\n", utils.FormatPercent(*result.ProjectedLiqDistancePct))
	}
}
