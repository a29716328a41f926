package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lemollon/AlphaGEX-sub013/internal/config"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
	"github.com/lemollon/AlphaGEX-sub013/pkg/utils"
)

// fakeChannel records delivered alerts and can be forced to fail.
type fakeChannel struct {
	name    string
	enabled bool
	fail    error

	mu   sync.Mutex
	sent []*models.MarginAlert
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }

func (f *fakeChannel) Send(ctx context.Context, alert *models.MarginAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, alert)
	return nil
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func fastRetry() utils.RetryConfig {
	return utils.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func testAlert(level models.AlertLevel) *models.MarginAlert {
	return models.NewMarginAlert("btc-perp-01", level,
		"Margin usage 82.5% crossed the danger threshold (75.0%)",
		map[string]interface{}{
			"margin_usage_pct": 82.5,
			"threshold_pct":    75.0,
		})
}

func TestMultiNotifierLevelFilter(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{MinLevel: "DANGER"}, zerolog.Nop())
	ch := &fakeChannel{name: "fake", enabled: true}
	mn.AddChannel(ch)

	ctx := context.Background()
	for _, level := range []models.AlertLevel{models.AlertInfo, models.AlertWarning} {
		if err := mn.SendAlert(ctx, testAlert(level)); err != nil {
			t.Fatalf("SendAlert(%s) returned error: %v", level, err)
		}
	}
	if got := ch.sentCount(); got != 0 {
		t.Fatalf("below-threshold alerts delivered: %d", got)
	}

	for _, level := range []models.AlertLevel{models.AlertDanger, models.AlertCritical} {
		if err := mn.SendAlert(ctx, testAlert(level)); err != nil {
			t.Fatalf("SendAlert(%s) returned error: %v", level, err)
		}
	}
	if got := ch.sentCount(); got != 2 {
		t.Errorf("delivered = %d, want 2", got)
	}
}

func TestMultiNotifierLowercaseMinLevel(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{MinLevel: "warning"}, zerolog.Nop())
	ch := &fakeChannel{name: "fake", enabled: true}
	mn.AddChannel(ch)

	if err := mn.SendAlert(context.Background(), testAlert(models.AlertWarning)); err != nil {
		t.Fatalf("SendAlert returned error: %v", err)
	}
	if got := ch.sentCount(); got != 1 {
		t.Errorf("delivered = %d, want 1", got)
	}
}

func TestMultiNotifierJoinsChannelErrors(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{MinLevel: "INFO"}, zerolog.Nop())
	good := &fakeChannel{name: "good", enabled: true}
	bad := &fakeChannel{name: "bad", enabled: true, fail: errors.New("connection refused")}
	mn.AddChannel(bad)
	mn.AddChannel(good)

	err := mn.SendAlert(context.Background(), testAlert(models.AlertCritical))
	if err == nil {
		t.Fatal("expected error from failing channel")
	}
	if !strings.Contains(err.Error(), "notification errors:") {
		t.Errorf("error = %v, want joined notification errors", err)
	}
	if !strings.Contains(err.Error(), "bad: connection refused") {
		t.Errorf("error = %v, want channel name and cause", err)
	}
	if got := good.sentCount(); got != 1 {
		t.Errorf("healthy channel delivered = %d, want 1", got)
	}
}

func TestMultiNotifierSkipsDisabledChannel(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{MinLevel: "INFO"}, zerolog.Nop())
	off := &fakeChannel{name: "off", enabled: false}
	mn.AddChannel(off)

	if err := mn.SendAlert(context.Background(), testAlert(models.AlertCritical)); err != nil {
		t.Fatalf("SendAlert returned error: %v", err)
	}
	if got := off.sentCount(); got != 0 {
		t.Errorf("disabled channel delivered = %d, want 0", got)
	}
}

func TestMultiNotifierChannelWiring(t *testing.T) {
	cfg := config.NotificationConfig{
		Enabled:  true,
		MinLevel: "WARNING",
		Webhook:  config.WebhookConfig{Enabled: true, URL: "http://localhost:1/hook"},
		Telegram: config.TelegramConfig{Enabled: true, BotToken: "tok", ChatID: "42"},
	}
	mn := NewMultiNotifier(cfg, zerolog.Nop())

	names := mn.ChannelNames()
	if len(names) != 2 || names[0] != "webhook" || names[1] != "telegram" {
		t.Errorf("ChannelNames = %v, want [webhook telegram]", names)
	}

	// Globally disabled config attaches nothing even when channels are on.
	cfg.Enabled = false
	if names := NewMultiNotifier(cfg, zerolog.Nop()).ChannelNames(); len(names) != 0 {
		t.Errorf("disabled config attached channels: %v", names)
	}
}

func TestSendErrorDeliversWarning(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{MinLevel: "INFO"}, zerolog.Nop())
	ch := &fakeChannel{name: "fake", enabled: true}
	mn.AddChannel(ch)

	if err := mn.SendError(context.Background(), errors.New("state file missing"), "polling es-01"); err != nil {
		t.Fatalf("SendError returned error: %v", err)
	}
	if got := ch.sentCount(); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}

	alert := ch.sent[0]
	if alert.Level != models.AlertWarning {
		t.Errorf("level = %s, want WARNING", alert.Level)
	}
	if !strings.Contains(alert.Message, "polling es-01") {
		t.Errorf("message = %q, missing error context", alert.Message)
	}
	if alert.Details["error"] != "state file missing" {
		t.Errorf("details = %v, missing error cause", alert.Details)
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	alert := testAlert(models.AlertDanger)
	if err := wh.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["id"] != alert.ID {
		t.Errorf("id = %v, want %s", payload["id"], alert.ID)
	}
	if payload["bot"] != "btc-perp-01" {
		t.Errorf("bot = %v", payload["bot"])
	}
	if payload["level"] != "DANGER" {
		t.Errorf("level = %v", payload["level"])
	}
	if payload["message"] != alert.Message {
		t.Errorf("message = %v", payload["message"])
	}
	details, ok := payload["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("details = %v", payload["details"])
	}
	if details["margin_usage_pct"] != 82.5 {
		t.Errorf("details.margin_usage_pct = %v", details["margin_usage_pct"])
	}
	if _, err := time.Parse(time.RFC3339, payload["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", payload["timestamp"])
	}
}

func TestWebhookNotifierRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	wh.retry = fastRetry()

	if err := wh.Send(context.Background(), testAlert(models.AlertCritical)); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWebhookNotifierReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	wh.retry = fastRetry()

	err := wh.Send(context.Background(), testAlert(models.AlertCritical))
	if err == nil || !strings.Contains(err.Error(), "webhook returned status 502") {
		t.Errorf("err = %v, want status 502 failure", err)
	}
}

func TestWebhookNotifierDisabledWithoutURL(t *testing.T) {
	wh := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: ""})
	if wh.IsEnabled() {
		t.Error("notifier enabled without a URL")
	}
	if err := wh.Send(context.Background(), testAlert(models.AlertCritical)); err != nil {
		t.Errorf("disabled Send returned error: %v", err)
	}
}

func TestTelegramNotifierSendsMarkdown(t *testing.T) {
	var (
		gotPath string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier(config.TelegramConfig{Enabled: true, BotToken: "TESTTOKEN", ChatID: "42"})
	tn.apiBase = srv.URL
	tn.retry = fastRetry()

	if err := tn.Send(context.Background(), testAlert(models.AlertDanger)); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if gotPath != "/botTESTTOKEN/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["chat_id"] != "42" {
		t.Errorf("chat_id = %v", payload["chat_id"])
	}
	if payload["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %v", payload["parse_mode"])
	}

	text, _ := payload["text"].(string)
	if !strings.Contains(text, "🚨 *DANGER* `btc-perp-01`") {
		t.Errorf("text header missing: %q", text)
	}
	if !strings.Contains(text, `margin\_usage\_pct: 82.5`) {
		t.Errorf("text details missing or unescaped: %q", text)
	}
}

func TestTelegramNotifierRequiresCredentials(t *testing.T) {
	tn := NewTelegramNotifier(config.TelegramConfig{Enabled: true, BotToken: "tok"})
	if tn.IsEnabled() {
		t.Error("notifier enabled without a chat id")
	}
}

func TestRenderMarkdownEscapes(t *testing.T) {
	alert := models.NewMarginAlert("bot_a", models.AlertWarning,
		"usage *high* [check]", map[string]interface{}{"note": "a_b"})
	text := renderMarkdown(alert)

	if !strings.Contains(text, `usage \*high\* \[check]`) {
		t.Errorf("message not escaped: %q", text)
	}
	if !strings.Contains(text, `a\_b`) {
		t.Errorf("detail value not escaped: %q", text)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	ln := NewLogNotifier(zerolog.New(&buf))

	if !ln.IsEnabled() {
		t.Fatal("log notifier should always be enabled")
	}
	if err := ln.Send(context.Background(), testAlert(models.AlertCritical)); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"bot":"btc-perp-01"`) {
		t.Errorf("log output missing bot: %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("critical alert should log at error severity: %s", out)
	}
	if !strings.Contains(out, `"alert_level":"CRITICAL"`) {
		t.Errorf("log output missing alert level: %s", out)
	}
	if !strings.Contains(out, `"margin_usage_pct":82.5`) {
		t.Errorf("log output missing details: %s", out)
	}
}

func TestNoOpNotifier(t *testing.T) {
	n := NewNoOpNotifier()
	if err := n.SendAlert(context.Background(), testAlert(models.AlertCritical)); err != nil {
		t.Errorf("SendAlert returned error: %v", err)
	}
	if err := n.SendError(context.Background(), errors.New("x"), "ctx"); err != nil {
		t.Errorf("SendError returned error: %v", err)
	}
}
