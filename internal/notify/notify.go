// Package notify delivers margin alerts to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lemollon/AlphaGEX-sub013/internal/config"
	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
	"github.com/lemollon/AlphaGEX-sub013/pkg/utils"
)

// Notifier is the delivery surface the monitor depends on.
type Notifier interface {
	SendAlert(ctx context.Context, alert *models.MarginAlert) error
	SendError(ctx context.Context, err error, errContext string) error
}

// NotificationChannel is a single delivery target behind a MultiNotifier.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, alert *models.MarginAlert) error
	IsEnabled() bool
}

// MultiNotifier fans alerts out to all enabled channels, dropping
// anything below the configured minimum level.
type MultiNotifier struct {
	channels []NotificationChannel
	minLevel models.AlertLevel
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewMultiNotifier builds a notifier from configuration. Channels are
// only attached when notifications are enabled globally; callers can
// attach more (a LogNotifier, typically) with AddChannel.
func NewMultiNotifier(cfg config.NotificationConfig, logger zerolog.Logger) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
		minLevel: models.ParseAlertLevel(strings.ToUpper(cfg.MinLevel)),
		logger:   logger,
	}

	if !cfg.Enabled {
		return mn
	}

	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		mn.channels = append(mn.channels, NewTelegramNotifier(cfg.Telegram))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// ChannelNames lists the attached channels in registration order.
func (mn *MultiNotifier) ChannelNames() []string {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	names := make([]string, 0, len(mn.channels))
	for _, ch := range mn.channels {
		names = append(names, ch.Name())
	}
	return names
}

// SendAlert delivers an alert to every enabled channel. Delivery
// failures are logged per channel and collected into a single error;
// one failing channel never blocks the others.
func (mn *MultiNotifier) SendAlert(ctx context.Context, alert *models.MarginAlert) error {
	if alert == nil || alert.Level < mn.minLevel {
		return nil
	}

	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, alert); err != nil {
			nerr := apperrors.NewNotifyError(ch.Name(), alert.ID, err)
			mn.logger.Warn().Err(nerr).
				Str("channel", ch.Name()).
				Str("bot", alert.BotName).
				Msg("alert delivery failed")
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendError reports an operational failure (provider read, store write)
// through the same channels as a WARNING-level alert.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, errContext string) error {
	alert := models.NewMarginAlert("monitor", models.AlertWarning,
		fmt.Sprintf("%s: %v", errContext, err),
		map[string]interface{}{
			"context": errContext,
			"error":   err.Error(),
		})
	return mn.SendAlert(ctx, alert)
}

// WebhookNotifier delivers alerts as JSON POSTs to a configured URL.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
	retry   utils.RetryConfig
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: utils.DefaultRetryConfig(),
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send posts the alert as JSON, retrying transient failures with
// exponential backoff.
func (w *WebhookNotifier) Send(ctx context.Context, alert *models.MarginAlert) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"id":        alert.ID,
		"bot":       alert.BotName,
		"level":     alert.Level.String(),
		"message":   alert.Message,
		"details":   alert.Details,
		"timestamp": alert.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	return utils.Retry(ctx, w.retry, func() error {
		return w.post(ctx, body)
	})
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "marginwatch/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// TelegramNotifier delivers alerts through the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	apiBase  string
	client   *http.Client
	retry    utils.RetryConfig
}

// NewTelegramNotifier creates a new TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		apiBase:  "https://api.telegram.org",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: utils.DefaultRetryConfig(),
	}
}

// Name returns the name of the notifier.
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// IsEnabled returns whether the notifier is enabled.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// Send renders the alert as Markdown and posts it to sendMessage.
func (t *TelegramNotifier) Send(ctx context.Context, alert *models.MarginAlert) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       renderMarkdown(alert),
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	return utils.Retry(ctx, t.retry, func() error {
		return t.post(ctx, url, body)
	})
}

func (t *TelegramNotifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// LogNotifier writes alerts to the structured log. It is always
// enabled and serves as the fallback channel when nothing external is
// configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Name returns the name of the notifier.
func (l *LogNotifier) Name() string {
	return "log"
}

// IsEnabled returns whether the notifier is enabled.
func (l *LogNotifier) IsEnabled() bool {
	return true
}

// Send logs the alert at a severity matching its level.
func (l *LogNotifier) Send(ctx context.Context, alert *models.MarginAlert) error {
	evt := l.logger.Warn()
	switch alert.Level {
	case models.AlertInfo:
		evt = l.logger.Info()
	case models.AlertDanger, models.AlertCritical:
		evt = l.logger.Error()
	}

	evt.Str("alert_id", alert.ID).
		Str("bot", alert.BotName).
		Str("alert_level", alert.Level.String()).
		Fields(alert.Details).
		Msg(alert.Message)
	return nil
}

// NoOpNotifier discards everything (for tests or disabled notifications).
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// SendAlert does nothing.
func (n *NoOpNotifier) SendAlert(ctx context.Context, alert *models.MarginAlert) error {
	return nil
}

// SendError does nothing.
func (n *NoOpNotifier) SendError(ctx context.Context, err error, errContext string) error {
	return nil
}

// levelEmoji maps an alert level to the marker shown in rendered
// messages.
func levelEmoji(level models.AlertLevel) string {
	switch level {
	case models.AlertInfo:
		return "ℹ️"
	case models.AlertWarning:
		return "⚠️"
	case models.AlertDanger:
		return "🚨"
	case models.AlertCritical:
		return "🆘"
	default:
		return "🔔"
	}
}

// renderMarkdown formats an alert for Telegram's legacy Markdown parse
// mode: level header, message, sorted detail lines, timestamp footer.
func renderMarkdown(alert *models.MarginAlert) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s *%s* `%s`\n\n",
		levelEmoji(alert.Level),
		alert.Level.String(),
		strings.ReplaceAll(alert.BotName, "`", "'")))
	sb.WriteString(escapeMarkdown(alert.Message))

	if len(alert.Details) > 0 {
		keys := make([]string, 0, len(alert.Details))
		for k := range alert.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("\n• %s: %s",
				escapeMarkdown(k),
				escapeMarkdown(fmt.Sprintf("%v", alert.Details[k]))))
		}
	}

	sb.WriteString(fmt.Sprintf("\n\n_%s_", alert.Timestamp.Format(time.RFC3339)))
	return sb.String()
}

// escapeMarkdown escapes the characters Telegram's legacy Markdown
// mode treats as formatting.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "_", `\_`)
	s = strings.ReplaceAll(s, "*", `\*`)
	s = strings.ReplaceAll(s, "`", "\\`")
	s = strings.ReplaceAll(s, "[", `\[`)
	return s
}

var (
	_ Notifier = (*MultiNotifier)(nil)
	_ Notifier = (*NoOpNotifier)(nil)

	_ NotificationChannel = (*WebhookNotifier)(nil)
	_ NotificationChannel = (*TelegramNotifier)(nil)
	_ NotificationChannel = (*LogNotifier)(nil)
)
