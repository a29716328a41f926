// Package cli provides the command-line interface for the margin monitor.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lemollon/AlphaGEX-sub013/internal/config"
	"github.com/lemollon/AlphaGEX-sub013/internal/logging"
	"github.com/lemollon/AlphaGEX-sub013/internal/monitor"
	"github.com/lemollon/AlphaGEX-sub013/internal/provider"
	"github.com/lemollon/AlphaGEX-sub013/internal/store"
	"github.com/lemollon/AlphaGEX-sub013/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-08-01"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Provider provider.StateProvider
	Store    store.SnapshotStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Provider: provider.NewFileProvider(cfg.Monitor.StatePath),
	}

	snapshotStore, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("snapshot store unavailable, history disabled")
	} else {
		app.Store = snapshotStore
		logger.Debug().Str("path", cfg.Storage.DBPath).Msg("snapshot store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "marginwatch",
		Short: "Margin monitoring and pre-trade risk gating for trading bots",
		Long: `marginwatch watches the margin health of trading bot accounts across
futures, perpetual, options, and spot markets.

It polls bot account state, computes margin usage, effective leverage,
and liquidation distance, raises leveled alerts on health transitions,
and gates proposed trades against per-bot risk limits.

Use 'marginwatch help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/marginwatch)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	rootCmd.AddCommand(newMonitorCmd(app))
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newMetricsCmd(app))
	rootCmd.AddCommand(newSimulateCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

// quietMonitor builds a monitor for one-shot commands: no notification
// channels, no stream hub, no persistence.
func quietMonitor(app *App) (*monitor.Monitor, error) {
	bots, err := app.Config.BotConfigs()
	if err != nil {
		return nil, err
	}
	return monitor.New(monitor.Options{
		Monitor:  app.Config.Monitor,
		Bots:     bots,
		Provider: app.Provider,
		Logger:   app.Logger,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("marginwatch v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the margin monitor configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and bot margin limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			bots, err := app.Config.BotConfigs()
			if err != nil {
				output.Error("Bot configuration invalid: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"valid": true, "bots": len(bots)})
			}
			output.Success("✓ Configuration is valid (%d bots)", len(bots))
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Monitor")
	output.Printf("  Poll Interval:   %ds\n", cfg.Monitor.PollIntervalSeconds)
	output.Printf("  Workers:         %d\n", cfg.Monitor.Workers)
	output.Printf("  Alerts/min:      %.1f\n", cfg.Monitor.AlertsPerMinute)
	output.Printf("  Retention:       %d days\n", cfg.Monitor.RetentionDays)
	output.Printf("  State Path:      %s\n", cfg.Monitor.StatePath)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Storage.DBPath)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Min Level:       %s\n", cfg.Notifications.MinLevel)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:        %v\n", cfg.Notifications.Telegram.Enabled)
	output.Println()

	output.Bold("Stream")
	output.Printf("  Enabled:         %v\n", cfg.Stream.Enabled)
	output.Printf("  Buffer:          %d\n", cfg.Stream.Buffer)
	output.Println()

	bots, err := cfg.BotConfigs()
	if err != nil {
		return err
	}
	output.Bold("Bots (%d)", len(bots))
	table := NewTable(output, "Name", "Market", "Max Usage", "Min Liq Dist", "Max Lev", "Auto-Reduce")
	for _, b := range bots {
		autoReduce := "off"
		if b.AutoReduce.Enabled {
			autoReduce = utils.FormatPercent(b.AutoReduce.MarginPct)
		}
		table.AddRow(
			b.BotName,
			string(b.Market.MarketType),
			utils.FormatPercent(b.MaxMarginUsagePct),
			utils.FormatPercent(b.MinLiqDistancePct),
			utils.FormatQuantity(b.MaxEffectiveLeverage)+"x",
			autoReduce,
		)
	}
	table.Render()
	return nil
}
