// Package cli provides the command-line interface for the margin monitor.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
	"github.com/lemollon/AlphaGEX-sub013/pkg/utils"
)

func newMetricsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics [bot]",
		Short: "Show current margin metrics",
		Long: `Compute margin metrics for one bot, or for every configured bot when
no name is given, from the bots' live account state.`,
		Example: `  marginwatch metrics
  marginwatch metrics btc-perp-01
  marginwatch metrics btc-perp-01 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			m, err := quietMonitor(app)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			botNames := m.Bots()
			if len(args) > 0 {
				botNames = args
			}

			if output.IsJSON() {
				all := make(map[string]interface{}, len(botNames))
				for _, name := range botNames {
					metrics, err := m.BotMetrics(ctx, name)
					if err != nil {
						return err
					}
					all[name] = metrics.Map()
				}
				if len(args) == 1 {
					return output.JSON(all[args[0]])
				}
				return output.JSON(all)
			}

			for i, name := range botNames {
				metrics, err := m.BotMetrics(ctx, name)
				if err != nil {
					output.Error("%s: %v", name, err)
					continue
				}
				if i > 0 {
					output.Println()
				}
				renderAccountMetrics(output, metrics)
			}
			return nil
		},
	}
	return cmd
}

func renderAccountMetrics(output *Output, metrics *margin.AccountMarginMetrics) {
	output.Bold("%s  [%s]  %s", metrics.BotName, metrics.MarketType, output.HealthText(metrics.HealthStatus))
	output.Println()

	output.Printf("  Equity:            %s\n", utils.FormatUSD(metrics.AccountEquity))
	output.Printf("  Margin Used:       %s (%s)\n", utils.FormatUSD(metrics.TotalMarginUsed), utils.FormatPercent(metrics.MarginUsagePct))
	output.Printf("  Available:         %s\n", utils.FormatUSD(metrics.AvailableMargin))
	output.Printf("  Maintenance:       %s\n", utils.FormatUSD(metrics.TotalMaintenanceMargin))
	output.Printf("  Margin Ratio:      %s\n", utils.FormatQuantity(metrics.MarginRatio))
	output.Printf("  Leverage:          %sx\n", utils.FormatQuantity(metrics.EffectiveLeverage))
	output.Printf("  Notional:          %s\n", utils.FormatCompact(metrics.TotalNotional))
	output.Printf("  Unrealized PnL:    %s\n", output.SignedText(metrics.TotalUnrealizedPnL, utils.FormatSigned(metrics.TotalUnrealizedPnL)))
	if metrics.TotalDailyFunding != 0 {
		output.Printf("  Daily Funding:     %s\n", output.SignedText(metrics.TotalDailyFunding, utils.FormatSigned(metrics.TotalDailyFunding)))
	}
	output.Printf("  Headroom:          %s\n", utils.FormatCompact(metrics.MaxAdditionalNotional))

	if len(metrics.Positions) == 0 {
		output.Println()
		output.Dim("  No open positions.")
		return
	}

	output.Println()
	table := NewTable(output, "Symbol", "Side", "Qty", "Entry", "Mark", "Notional", "Margin", "PnL", "Liq Price", "Liq Dist")
	for _, p := range metrics.Positions {
		liqPrice, liqDist := "-", "-"
		if p.LiquidationPrice != nil {
			liqPrice = utils.FormatUSD(*p.LiquidationPrice)
		}
		if p.DistanceToLiqPct != nil {
			liqDist = utils.FormatPercent(*p.DistanceToLiqPct)
		}
		table.AddRow(
			p.Symbol,
			string(p.Side),
			utils.FormatQuantity(p.Quantity),
			utils.FormatUSD(p.EntryPrice),
			utils.FormatUSD(p.CurrentPrice),
			utils.FormatCompact(p.NotionalValue),
			utils.FormatUSD(p.InitialMarginRequired),
			output.SignedText(p.UnrealizedPnL, utils.FormatSigned(p.UnrealizedPnL)),
			liqPrice,
			liqDist,
		)
	}
	table.Render()
}
