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

func newSimulateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run what-if margin scenarios",
		Long: `Project margin metrics under hypothetical changes to a bot's book:
a market-wide price move, an added position, or a leverage change.
Scenarios are advisory and never place or modify orders.`,
	}

	cmd.AddCommand(newSimulatePriceMoveCmd(app))
	cmd.AddCommand(newSimulateAddCmd(app))
	cmd.AddCommand(newSimulateLeverageCmd(app))
	return cmd
}

func newSimulatePriceMoveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price-move <bot>",
		Short: "Project a market-wide price move",
		Example: `  marginwatch simulate price-move btc-perp-01 --change -10
  marginwatch simulate price-move es-futures-01 --change 5 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			change, _ := cmd.Flags().GetFloat64("change")
			if change == 0 {
				return fmt.Errorf("--change must be a non-zero percentage")
			}
			return runScenario(cmd, app, func(ctx context.Context, m scenarioRunner) (*margin.ScenarioResult, error) {
				return m.SimulatePriceMove(ctx, args[0], change)
			})
		},
	}
	cmd.Flags().Float64("change", 0, "price change percentage, e.g. -10 for a 10% drop")
	return cmd
}

func newSimulateAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <bot>",
		Short: "Project adding contracts to the book",
		Example: `  marginwatch simulate add btc-perp-01 --quantity 0.5 --price 43000
  marginwatch simulate add es-futures-01 --quantity 2 --price 5900 --side short`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, _ := cmd.Flags().GetFloat64("quantity")
			price, _ := cmd.Flags().GetFloat64("price")
			sideFlag, _ := cmd.Flags().GetString("side")

			side := models.Side(strings.ToLower(sideFlag))
			if !side.Valid() {
				return fmt.Errorf("invalid side %q: must be long or short", sideFlag)
			}
			if quantity <= 0 {
				return fmt.Errorf("--quantity must be positive")
			}
			if price <= 0 {
				return fmt.Errorf("--price must be positive")
			}

			return runScenario(cmd, app, func(ctx context.Context, m scenarioRunner) (*margin.ScenarioResult, error) {
				return m.SimulateAddContracts(ctx, args[0], quantity, price, side)
			})
		},
	}
	cmd.Flags().Float64P("quantity", "q", 0, "contracts or units to add (required)")
	cmd.Flags().Float64P("price", "p", 0, "entry price (required)")
	cmd.Flags().String("side", "long", "side of the added position: long or short")
	return cmd
}

func newSimulateLeverageCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leverage <bot>",
		Short: "Project a uniform leverage change",
		Example: `  marginwatch simulate leverage btc-perp-01 --leverage 20
  marginwatch simulate leverage btc-perp-01 --leverage 5 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leverage, _ := cmd.Flags().GetFloat64("leverage")
			if leverage <= 0 {
				return fmt.Errorf("--leverage must be positive")
			}
			return runScenario(cmd, app, func(ctx context.Context, m scenarioRunner) (*margin.ScenarioResult, error) {
				return m.SimulateLeverageChange(ctx, args[0], leverage)
			})
		},
	}
	cmd.Flags().Float64("leverage", 0, "new leverage for every position (required)")
	return cmd
}

// scenarioRunner is the slice of the monitor the simulate commands use.
type scenarioRunner interface {
	SimulatePriceMove(ctx context.Context, botName string, priceChangePct float64) (*margin.ScenarioResult, error)
	SimulateAddContracts(ctx context.Context, botName string, quantity, price float64, side models.Side) (*margin.ScenarioResult, error)
	SimulateLeverageChange(ctx context.Context, botName string, newLeverage float64) (*margin.ScenarioResult, error)
}

func runScenario(cmd *cobra.Command, app *App, run func(context.Context, scenarioRunner) (*margin.ScenarioResult, error)) error {
	output := NewOutput(cmd)

	m, err := quietMonitor(app)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := run(ctx, m)
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.JSON(result.Map())
	}
	renderScenario(output, result)
	return nil
}

func renderScenario(output *Output, result *margin.ScenarioResult) {
	output.Bold("Scenario: %s", result.Description)
	output.Println()

	table := NewTable(output, "", "Current", "Projected")
	table.AddRow("Margin Usage",
		utils.FormatPercent(result.CurrentUsagePct),
		utils.FormatPercent(result.ProjectedUsagePct))
	table.AddRow("Worst Liq Distance",
		liqDistCell(result.CurrentLiqDistancePct),
		liqDistCell(result.ProjectedLiqDistancePct))
	table.Render()
	output.Println()

	output.Printf("  Projected Equity:  %s\n", utils.FormatUSD(result.ProjectedEquity))

	switch {
	case result.WouldTriggerLiquidation:
		output.Error("✗ This scenario would trigger liquidation")
	case result.WouldTriggerMarginCall:
		output.Warning("⚠ This scenario would trigger a margin call")
	default:
		output.Success("✓ No liquidation or margin call projected")
	}
}

func liqDistCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return utils.FormatPercent(*v)
}
