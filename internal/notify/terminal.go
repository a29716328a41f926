package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// TerminalNotifier renders alerts on an interactive terminal. Send only
// queues; Start's goroutine does the printing, so a slow terminal never
// stalls the monitor loop. When the buffer fills the oldest queued
// alert is dropped.
type TerminalNotifier struct {
	alerts chan *models.MarginAlert
	out    io.Writer

	mu          sync.RWMutex
	enabled     bool
	bellEnabled bool
}

// NewTerminalNotifier creates a new TerminalNotifier writing to stdout.
func NewTerminalNotifier(bufferSize int) *TerminalNotifier {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &TerminalNotifier{
		alerts:      make(chan *models.MarginAlert, bufferSize),
		out:         os.Stdout,
		enabled:     true,
		bellEnabled: true,
	}
}

// SetBellEnabled enables or disables the terminal bell for DANGER and
// CRITICAL alerts.
func (tn *TerminalNotifier) SetBellEnabled(enabled bool) {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	tn.bellEnabled = enabled
}

// SetEnabled enables or disables the notifier.
func (tn *TerminalNotifier) SetEnabled(enabled bool) {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	tn.enabled = enabled
}

// Name returns the name of the notifier.
func (tn *TerminalNotifier) Name() string {
	return "terminal"
}

// IsEnabled returns whether the notifier is enabled.
func (tn *TerminalNotifier) IsEnabled() bool {
	tn.mu.RLock()
	defer tn.mu.RUnlock()
	return tn.enabled
}

// Send queues an alert for rendering. It never blocks: a full buffer
// drops the oldest queued alert to make room.
func (tn *TerminalNotifier) Send(ctx context.Context, alert *models.MarginAlert) error {
	if !tn.IsEnabled() {
		return nil
	}

	select {
	case tn.alerts <- alert:
	default:
		select {
		case <-tn.alerts:
		default:
		}
		select {
		case tn.alerts <- alert:
		default:
		}
	}
	return nil
}

// Start begins rendering queued alerts until the context is cancelled.
func (tn *TerminalNotifier) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case alert := <-tn.alerts:
				tn.render(alert)
			}
		}
	}()
}

func (tn *TerminalNotifier) render(alert *models.MarginAlert) {
	tn.mu.RLock()
	bell := tn.bellEnabled
	tn.mu.RUnlock()

	if bell && alert.Level >= models.AlertDanger {
		fmt.Fprint(tn.out, "\a")
	}
	fmt.Fprintln(tn.out, FormatAlertLine(alert))
}

// FormatAlertLine formats one alert as a single colored line.
func FormatAlertLine(alert *models.MarginAlert) string {
	level := levelColor(alert.Level).Sprintf("%-8s", alert.Level.String())

	line := fmt.Sprintf("[%s] %s %s", alert.Timestamp.Format("15:04:05"), levelEmoji(alert.Level), level)
	if alert.BotName != "" {
		line += fmt.Sprintf(" %s |", alert.BotName)
	}
	return line + " " + alert.Message
}

func levelColor(level models.AlertLevel) *color.Color {
	switch level {
	case models.AlertInfo:
		return color.New(color.FgCyan)
	case models.AlertWarning:
		return color.New(color.FgYellow)
	case models.AlertDanger:
		return color.New(color.FgRed)
	case models.AlertCritical:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

var _ NotificationChannel = (*TerminalNotifier)(nil)
