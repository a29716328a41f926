// Package cli provides the command-line interface for the margin monitor.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
	"github.com/lemollon/AlphaGEX-sub013/internal/store"
	"github.com/lemollon/AlphaGEX-sub013/pkg/utils"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query persisted margin history",
		Long: `Browse the snapshot store: per-poll account snapshots, emitted alerts,
and daily aggregate statistics. Requires storage to be enabled.`,
	}

	cmd.AddCommand(newHistorySnapshotsCmd(app))
	cmd.AddCommand(newHistoryAlertsCmd(app))
	cmd.AddCommand(newHistoryStatsCmd(app))
	return cmd
}

func historyStore(app *App) (store.SnapshotStore, error) {
	if app.Store == nil {
		return nil, fmt.Errorf("history requires the snapshot store, check the [storage] configuration")
	}
	return app.Store, nil
}

func newHistorySnapshotsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots <bot>",
		Short: "Show recent account snapshots",
		Example: `  marginwatch history snapshots btc-perp-01
  marginwatch history snapshots btc-perp-01 --days 1 --limit 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			limit, _ := cmd.Flags().GetInt("limit")
			days, _ := cmd.Flags().GetInt("days")

			st, err := historyStore(app)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			filter := store.SnapshotFilter{BotName: args[0], Limit: limit}
			if days > 0 {
				filter.StartDate = time.Now().UTC().AddDate(0, 0, -days)
			}

			snapshots, err := st.Snapshots(ctx, filter)
			if err != nil {
				return fmt.Errorf("querying snapshots: %w", err)
			}

			if output.IsJSON() {
				rows := make([]map[string]interface{}, 0, len(snapshots))
				for _, s := range snapshots {
					rows = append(rows, snapshotMap(s))
				}
				return output.JSON(rows)
			}

			if len(snapshots) == 0 {
				output.Info("No snapshots recorded for %s.", args[0])
				return nil
			}

			output.Bold("Snapshots  %s", args[0])
			output.Println()
			table := NewTable(output, "Time (UTC)", "Health", "Usage", "Ratio", "Lev", "Notional", "Equity", "PnL", "Pos")
			for _, s := range snapshots {
				table.AddRow(
					s.Timestamp.UTC().Format("2006-01-02 15:04:05"),
					output.HealthText(s.HealthStatus),
					utils.FormatPercent(s.MarginUsagePct),
					fmt.Sprintf("%.3f", s.MarginRatio),
					fmt.Sprintf("%.1fx", s.EffectiveLeverage),
					utils.FormatCompact(s.TotalNotional),
					utils.FormatUSD(s.AccountEquity),
					output.SignedText(s.TotalUnrealizedPnL, utils.FormatSigned(s.TotalUnrealizedPnL)),
					strconv.Itoa(s.PositionCount),
				)
			}
			table.Render()
			output.Println()
			output.Dim("%d snapshot(s)", len(snapshots))
			output.Println()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum rows to return")
	cmd.Flags().Int("days", 7, "look back this many days (0 for no limit)")
	return cmd
}

func newHistoryAlertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts [bot]",
		Short: "Show recent margin alerts",
		Example: `  marginwatch history alerts
  marginwatch history alerts btc-perp-01 --level DANGER --days 30`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			limit, _ := cmd.Flags().GetInt("limit")
			days, _ := cmd.Flags().GetInt("days")
			levelFlag, _ := cmd.Flags().GetString("level")

			st, err := historyStore(app)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			filter := store.AlertFilter{Limit: limit}
			if len(args) == 1 {
				filter.BotName = args[0]
			}
			if days > 0 {
				filter.StartDate = time.Now().UTC().AddDate(0, 0, -days)
			}
			if cmd.Flags().Changed("level") {
				level := models.ParseAlertLevel(strings.ToUpper(levelFlag))
				filter.MinLevel = &level
			}

			alerts, err := st.Alerts(ctx, filter)
			if err != nil {
				return fmt.Errorf("querying alerts: %w", err)
			}

			if output.IsJSON() {
				rows := make([]map[string]interface{}, 0, len(alerts))
				for _, a := range alerts {
					rows = append(rows, map[string]interface{}{
						"id":        a.ID,
						"bot_name":  a.BotName,
						"level":     a.Level.String(),
						"message":   a.Message,
						"details":   a.Details,
						"timestamp": a.Timestamp.UTC().Format(time.RFC3339),
					})
				}
				return output.JSON(rows)
			}

			if len(alerts) == 0 {
				output.Info("No alerts recorded.")
				return nil
			}

			output.Bold("Alerts")
			output.Println()
			table := NewTable(output, "Time (UTC)", "Bot", "Level", "Message")
			for _, a := range alerts {
				table.AddRow(
					a.Timestamp.UTC().Format("2006-01-02 15:04"),
					a.BotName,
					output.LevelText(a.Level),
					a.Message,
				)
			}
			table.Render()
			output.Println()
			output.Dim("%d alert(s)", len(alerts))
			output.Println()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum rows to return")
	cmd.Flags().Int("days", 7, "look back this many days (0 for no limit)")
	cmd.Flags().String("level", "", "minimum level: INFO, WARNING, DANGER, CRITICAL")
	return cmd
}

func newHistoryStatsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <bot>",
		Short: "Show daily aggregate statistics",
		Example: `  marginwatch history stats btc-perp-01
  marginwatch history stats btc-perp-01 --days 90 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			days, _ := cmd.Flags().GetInt("days")

			st, err := historyStore(app)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			filter := store.StatFilter{BotName: args[0]}
			if days > 0 {
				filter.StartDate = time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
			}

			stats, err := st.DailyStats(ctx, filter)
			if err != nil {
				return fmt.Errorf("querying daily stats: %w", err)
			}

			if output.IsJSON() {
				rows := make([]map[string]interface{}, 0, len(stats))
				for _, s := range stats {
					rows = append(rows, statMap(s))
				}
				return output.JSON(rows)
			}

			if len(stats) == 0 {
				output.Info("No daily stats recorded for %s.", args[0])
				return nil
			}

			output.Bold("Daily Stats  %s", args[0])
			output.Println()
			table := NewTable(output, "Date", "Peak Usage", "Worst Ratio", "Worst Liq Dist", "Max Lev", "Peak Notional", "Alerts", "Polls")
			for _, s := range stats {
				table.AddRow(
					s.Date,
					utils.FormatPercent(s.PeakMarginUsagePct),
					fmt.Sprintf("%.3f", s.WorstMarginRatio),
					liqDistCell(s.WorstLiqDistancePct),
					fmt.Sprintf("%.1fx", s.MaxEffectiveLeverage),
					utils.FormatCompact(s.PeakNotional),
					formatAlertCounts(s),
					strconv.Itoa(s.PollCount),
				)
			}
			table.Render()
			output.Println()
			return nil
		},
	}

	cmd.Flags().Int("days", 30, "look back this many days (0 for no limit)")
	return cmd
}

// formatAlertCounts compresses the per-level counters into "2W 1D 1C" form,
// or "-" when the day was quiet.
func formatAlertCounts(s models.DailyMarginStat) string {
	parts := make([]string, 0, 4)
	if s.AlertsInfo > 0 {
		parts = append(parts, fmt.Sprintf("%dI", s.AlertsInfo))
	}
	if s.AlertsWarning > 0 {
		parts = append(parts, fmt.Sprintf("%dW", s.AlertsWarning))
	}
	if s.AlertsDanger > 0 {
		parts = append(parts, fmt.Sprintf("%dD", s.AlertsDanger))
	}
	if s.AlertsCritical > 0 {
		parts = append(parts, fmt.Sprintf("%dC", s.AlertsCritical))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func snapshotMap(s store.AccountSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"bot_name":                 s.BotName,
		"market_type":              s.MarketType,
		"account_equity":           s.AccountEquity,
		"total_margin_used":        s.TotalMarginUsed,
		"total_maintenance_margin": s.TotalMaintenanceMargin,
		"available_margin":         s.AvailableMargin,
		"margin_usage_pct":         s.MarginUsagePct,
		"margin_ratio":             s.MarginRatio,
		"effective_leverage":       s.EffectiveLeverage,
		"total_notional":           s.TotalNotional,
		"total_unrealized_pnl":     s.TotalUnrealizedPnL,
		"total_daily_funding":      s.TotalDailyFunding,
		"position_count":           s.PositionCount,
		"health_status":            s.HealthStatus.String(),
		"timestamp":                s.Timestamp.UTC().Format(time.RFC3339),
	}
}

func statMap(s models.DailyMarginStat) map[string]interface{} {
	m := map[string]interface{}{
		"bot_name":               s.BotName,
		"date":                   s.Date,
		"peak_margin_usage_pct":  s.PeakMarginUsagePct,
		"worst_margin_ratio":     s.WorstMarginRatio,
		"max_effective_leverage": s.MaxEffectiveLeverage,
		"peak_notional":          s.PeakNotional,
		"alerts_info":            s.AlertsInfo,
		"alerts_warning":         s.AlertsWarning,
		"alerts_danger":          s.AlertsDanger,
		"alerts_critical":        s.AlertsCritical,
		"poll_count":             s.PollCount,
	}
	if s.WorstLiqDistancePct != nil {
		m["worst_liq_distance_pct"] = *s.WorstLiqDistancePct
	} else {
		m["worst_liq_distance_pct"] = nil
	}
	return m
}
