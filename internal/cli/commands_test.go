// Package cli provides the command-line interface for the margin monitor.
package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lemollon/AlphaGEX-sub013/internal/config"
)

// testConfig returns a config with one perpetual bot and every path
// rooted in a per-test directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Monitor: config.MonitorConfig{
			PollIntervalSeconds:   1,
			Workers:               1,
			AlertsPerMinute:       600,
			FundingProjectionDays: 7,
			RetentionDays:         30,
			StatePath:             filepath.Join(dir, "state.json"),
		},
		Storage:       config.StorageConfig{DBPath: filepath.Join(dir, "margin.db")},
		Notifications: config.NotificationConfig{MinLevel: "WARNING"},
		Bots: []config.BotEntry{
			{Name: "btc-perp-01", MarketType: "crypto_perpetual"},
		},
	}
}

// writeStateDoc publishes a state document for btc-perp-01: one long
// 30 @ 100 position at 1x, $3,000 margin on $10,000 equity, 30% usage.
func writeStateDoc(t *testing.T, cfg *config.Config) {
	t.Helper()
	doc := map[string]interface{}{
		"updated_at": time.Now().UTC().Format(time.RFC3339),
		"bots": map[string]interface{}{
			"btc-perp-01": map[string]interface{}{
				"account_equity": 10000.0,
				"positions": []map[string]interface{}{
					{
						"position_id":   "pos-1",
						"symbol":        "BTCUSDT",
						"side":          "long",
						"quantity":      30.0,
						"entry_price":   100.0,
						"current_price": 100.0,
						"leverage":      1.0,
					},
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshaling state doc: %v", err)
	}
	if err := os.WriteFile(cfg.Monitor.StatePath, data, 0o644); err != nil {
		t.Fatalf("writing state doc: %v", err)
	}
}

// runRoot executes one CLI invocation against a fresh command tree and
// returns everything it printed.
func runRoot(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	withPlainColor(t)

	root := NewRootCmd(cfg, zerolog.Nop())
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, testConfig(t), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "marginwatch v"+Version) {
		t.Errorf("output = %q, want version string", out)
	}
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := runRoot(t, testConfig(t), "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("parsing output %q: %v", out, err)
	}
	if decoded["version"] != Version {
		t.Errorf("version = %q, want %q", decoded["version"], Version)
	}
}

func TestConfigValidateCommand(t *testing.T) {
	out, err := runRoot(t, testConfig(t), "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration is valid (1 bots)") {
		t.Errorf("output = %q, want valid message", out)
	}
}

func TestConfigValidateRejectsDuplicateBots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bots = append(cfg.Bots, cfg.Bots[0])

	_, err := runRoot(t, cfg, "config", "validate")
	if err == nil {
		t.Fatal("expected duplicate bot name to fail validation")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("err = %v, want duplicate bot name", err)
	}
}

func TestConfigShowCommand(t *testing.T) {
	out, err := runRoot(t, testConfig(t), "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"Poll Interval", "btc-perp-01", "CRYPTO_PERPETUAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckCommandApprovesTrade(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "check", "btc-perp-01",
		"--symbol", "btcusdt", "--side", "long",
		"--quantity", "10", "--price", "100", "--leverage", "1")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "APPROVED") {
		t.Errorf("output = %q, want APPROVED", out)
	}
	if !strings.Contains(out, "BTCUSDT") {
		t.Errorf("output = %q, want upper-cased symbol", out)
	}
}

func TestCheckCommandRejectsOversizedTrade(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	// $60,000 margin against $7,000 available.
	out, err := runRoot(t, cfg, "check", "btc-perp-01",
		"--symbol", "BTCUSDT", "--side", "long",
		"--quantity", "600", "--price", "100", "--leverage", "1")
	if err == nil {
		t.Fatal("expected a rejected trade to exit non-zero")
	}
	if !strings.Contains(err.Error(), "trade rejected") {
		t.Errorf("err = %v, want trade rejected", err)
	}
	if !strings.Contains(out, "REJECTED") {
		t.Errorf("output = %q, want REJECTED", out)
	}
}

func TestCheckCommandJSON(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "check", "btc-perp-01",
		"--symbol", "BTCUSDT", "--side", "long",
		"--quantity", "10", "--price", "100", "--leverage", "1", "--json")
	if err != nil {
		t.Fatalf("check --json: %v\n%s", err, out)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("parsing output %q: %v", out, err)
	}
	if decoded["approved"] != true {
		t.Errorf("approved = %v, want true", decoded["approved"])
	}
	usage, _ := decoded["projected_usage_pct"].(float64)
	if math.Abs(usage-40) > 0.01 {
		t.Errorf("projected_usage_pct = %v, want 40", usage)
	}
}

func TestCheckCommandRejectedJSONStillRendered(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "check", "btc-perp-01",
		"--symbol", "BTCUSDT", "--side", "long",
		"--quantity", "600", "--price", "100", "--leverage", "1", "--json")
	if err == nil {
		t.Fatal("expected non-zero exit for rejection")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("parsing output %q: %v", out, err)
	}
	if decoded["approved"] != false {
		t.Errorf("approved = %v, want false", decoded["approved"])
	}
	violations, _ := decoded["violations"].([]interface{})
	if len(violations) == 0 {
		t.Error("expected violations in the rejected verdict")
	}
}

func TestCheckCommandFailsClosedWhenStateMissing(t *testing.T) {
	cfg := testConfig(t) // no state document written

	out, err := runRoot(t, cfg, "check", "btc-perp-01",
		"--symbol", "BTCUSDT", "--side", "long",
		"--quantity", "10", "--price", "100")
	if err == nil {
		t.Fatal("expected missing state to exit non-zero")
	}
	if !strings.Contains(out, "Margin state unavailable") {
		t.Errorf("output = %q, want fail-closed message", out)
	}
}

func TestCheckCommandValidatesFlags(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "missing symbol",
			args: []string{"check", "btc-perp-01", "--quantity", "1", "--price", "100"},
			want: "--symbol is required",
		},
		{
			name: "bad side",
			args: []string{"check", "btc-perp-01", "--symbol", "X", "--side", "sideways", "--quantity", "1", "--price", "100"},
			want: "invalid side",
		},
		{
			name: "zero quantity",
			args: []string{"check", "btc-perp-01", "--symbol", "X", "--quantity", "0", "--price", "100"},
			want: "--quantity must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runRoot(t, cfg, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestMetricsCommandJSON(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "metrics", "btc-perp-01", "--json")
	if err != nil {
		t.Fatalf("metrics --json: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("parsing output %q: %v", out, err)
	}
	if decoded["bot_name"] != "btc-perp-01" {
		t.Errorf("bot_name = %v", decoded["bot_name"])
	}
	if decoded["health_status"] != "HEALTHY" {
		t.Errorf("health_status = %v, want HEALTHY", decoded["health_status"])
	}
	usage, _ := decoded["margin_usage_pct"].(float64)
	if math.Abs(usage-30) > 0.01 {
		t.Errorf("margin_usage_pct = %v, want 30", usage)
	}
	positions, _ := decoded["positions"].([]interface{})
	if len(positions) != 1 {
		t.Errorf("positions = %d, want 1", len(positions))
	}
}

func TestMetricsCommandHuman(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	for _, want := range []string{"btc-perp-01", "HEALTHY", "BTCUSDT", "Equity"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulatePriceMoveCommand(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "simulate", "price-move", "btc-perp-01", "--change", "-10")
	if err != nil {
		t.Fatalf("simulate price-move: %v", err)
	}
	for _, want := range []string{"Scenario:", "Projected Equity", "No liquidation or margin call projected"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulatePriceMoveRequiresChange(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	_, err := runRoot(t, cfg, "simulate", "price-move", "btc-perp-01")
	if err == nil || !strings.Contains(err.Error(), "--change") {
		t.Errorf("err = %v, want --change requirement", err)
	}
}

func TestSimulateAddCommand(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "simulate", "add", "btc-perp-01",
		"--quantity", "10", "--price", "100")
	if err != nil {
		t.Fatalf("simulate add: %v", err)
	}
	if !strings.Contains(out, "Scenario:") {
		t.Errorf("output = %q, want scenario header", out)
	}

	_, err = runRoot(t, cfg, "simulate", "add", "btc-perp-01",
		"--quantity", "10", "--price", "100", "--side", "sideways")
	if err == nil || !strings.Contains(err.Error(), "invalid side") {
		t.Errorf("err = %v, want invalid side", err)
	}
}

func TestSimulateLeverageCommandJSON(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "simulate", "leverage", "btc-perp-01",
		"--leverage", "5", "--json")
	if err != nil {
		t.Fatalf("simulate leverage --json: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("parsing output %q: %v", out, err)
	}
	if decoded["name"] != "leverage_change" {
		t.Errorf("name = %v, want leverage_change", decoded["name"])
	}

	_, err = runRoot(t, cfg, "simulate", "leverage", "btc-perp-01", "--leverage", "0")
	if err == nil || !strings.Contains(err.Error(), "--leverage must be positive") {
		t.Errorf("err = %v, want leverage validation", err)
	}
}

func TestHistoryRequiresStore(t *testing.T) {
	app := &App{Config: testConfig(t), Logger: zerolog.Nop()}

	cmd := newHistoryCmd(app)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"snapshots", "btc-perp-01"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "snapshot store") {
		t.Errorf("err = %v, want snapshot store requirement", err)
	}
}

func TestHistorySnapshotsEmptyStore(t *testing.T) {
	cfg := testConfig(t)

	out, err := runRoot(t, cfg, "history", "snapshots", "btc-perp-01")
	if err != nil {
		t.Fatalf("history snapshots: %v", err)
	}
	if !strings.Contains(out, "No snapshots recorded") {
		t.Errorf("output = %q, want empty message", out)
	}
}

func TestMonitorOnceThenHistory(t *testing.T) {
	cfg := testConfig(t)
	writeStateDoc(t, cfg)

	out, err := runRoot(t, cfg, "monitor", "--once")
	if err != nil {
		t.Fatalf("monitor --once: %v", err)
	}
	if !strings.Contains(out, "Polled 1 bots") {
		t.Errorf("output = %q, want poll confirmation", out)
	}

	out, err = runRoot(t, cfg, "history", "snapshots", "btc-perp-01")
	if err != nil {
		t.Fatalf("history snapshots: %v", err)
	}
	if !strings.Contains(out, "HEALTHY") {
		t.Errorf("output = %q, want a HEALTHY row", out)
	}
	if !strings.Contains(out, "1 snapshot(s)") {
		t.Errorf("output = %q, want one snapshot", out)
	}

	out, err = runRoot(t, cfg, "history", "stats", "btc-perp-01")
	if err != nil {
		t.Fatalf("history stats: %v", err)
	}
	today := time.Now().UTC().Format("2006-01-02")
	if !strings.Contains(out, today) {
		t.Errorf("output = %q, want a row for %s", out, today)
	}

	out, err = runRoot(t, cfg, "history", "alerts")
	if err != nil {
		t.Fatalf("history alerts: %v", err)
	}
	if !strings.Contains(out, "No alerts recorded") {
		t.Errorf("output = %q, want no alerts", out)
	}
}

func TestMonitorCommandRequiresBots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bots = nil

	out, err := runRoot(t, cfg, "monitor", "--once")
	if err == nil {
		t.Fatal("expected an error with no bots configured")
	}
	if !strings.Contains(out, "No bots configured") {
		t.Errorf("output = %q, want no-bots warning", out)
	}
}
