// Package cli provides the command-line interface for the margin monitor.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemollon/AlphaGEX-sub013/internal/monitor"
	"github.com/lemollon/AlphaGEX-sub013/internal/notify"
	"github.com/lemollon/AlphaGEX-sub013/internal/stream"
)

func newMonitorCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the margin monitoring loop",
		Long: `Poll every configured bot's account state at the configured interval,
compute margin metrics, persist snapshots, and raise alerts on health
transitions. Runs until interrupted.`,
		Example: `  marginwatch monitor
  marginwatch monitor --once
  marginwatch monitor --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			once, _ := cmd.Flags().GetBool("once")

			bots, err := app.Config.BotConfigs()
			if err != nil {
				return err
			}
			if len(bots) == 0 {
				output.Warning("No bots configured. Add [[bots]] entries to margin.toml.")
				return fmt.Errorf("no bots configured")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			notifier := notify.NewMultiNotifier(app.Config.Notifications, app.Logger)
			notifier.AddChannel(notify.NewLogNotifier(app.Logger))
			if !output.IsJSON() {
				term := notify.NewTerminalNotifier(100)
				term.Start(ctx)
				notifier.AddChannel(term)
			}

			var hub *stream.Hub
			if app.Config.Stream.Enabled {
				hubCfg := stream.DefaultHubConfig()
				if app.Config.Stream.Buffer > 0 {
					hubCfg.SubscriberBufferSize = app.Config.Stream.Buffer
				}
				hub = stream.NewHubWithConfig(hubCfg)
			}

			m, err := monitor.New(monitor.Options{
				Monitor:  app.Config.Monitor,
				Bots:     bots,
				Provider: app.Provider,
				Store:    app.Store,
				Notifier: notifier,
				Hub:      hub,
				Logger:   app.Logger,
			})
			if err != nil {
				return err
			}

			if once {
				m.RunOnce(ctx)
				output.Success("✓ Polled %d bots", len(bots))
				return nil
			}

			output.Info("Watching %d bots every %ds. Press Ctrl-C to stop.",
				len(bots), app.Config.Monitor.PollIntervalSeconds)
			return m.Run(ctx)
		},
	}

	cmd.Flags().Bool("once", false, "run one polling cycle and exit")
	return cmd
}
