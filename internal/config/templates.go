package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const marginConfigTemplate = `# Margin Monitor Configuration

[monitor]
# How often every bot account is re-measured (seconds)
poll_interval_seconds = 30
# Workers executing alert/store/stream side effects
workers = 4
# Transition alerts allowed per bot per minute (token bucket)
alerts_per_minute = 2.0
# Days of funding cost projected in account metrics
funding_projection_days = 7
# Days of snapshot history kept before pruning
retention_days = 90
# JSON state document the bots publish account state to.
# Defaults to state.json in the config directory.
# state_path = "/var/lib/alphagex/state.json"

[storage]
# Snapshot history database. Defaults to margin.db in the config
# directory. Environment override: ALPHAGEX_DB_PATH
# db_path = "/var/lib/alphagex/margin.db"

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true
max_size_mb = 100
max_backups = 7
max_age_days = 30

[notifications]
enabled = false
# Minimum alert level delivered: INFO, WARNING, DANGER, CRITICAL
min_level = "WARNING"

[notifications.webhook]
enabled = false
# Environment override: ALPHAGEX_WEBHOOK_URL
url = ""

[notifications.telegram]
enabled = false
# Environment override: ALPHAGEX_TELEGRAM_BOT_TOKEN
bot_token = ""
chat_id = ""

[stream]
enabled = true
buffer = 64

# One [[bots]] block per monitored account. Omitted limits fall back
# to the platform defaults (80% usage, 15% liquidation distance,
# 10x leverage, 50% single-position concentration).
#
# [[bots]]
# name = "btc-perp-01"
# market_type = "CRYPTO_PERPETUAL"
# exchange = "binance"
# account_id = "main"
# account_label = "BTC perpetual bot"
# max_margin_usage_pct = 80.0
# min_liquidation_distance_pct = 15.0
# max_effective_leverage = 10.0
# max_single_position_margin_pct = 50.0
# warning_threshold_pct = 60.0
# danger_threshold_pct = 75.0
# critical_threshold_pct = 90.0
# leverage_override = 5.0
#
# [bots.auto_reduce]
# enabled = true
# margin_pct = 85.0
# duration_seconds = 300
# position_pct = 25.0
# close_liq_distance_pct = 5.0

# Market preset overrides, keyed by market type.
#
# [markets.CRYPTO_PERPETUAL]
# maintenance_margin_rate = 0.005
# max_leverage = 25.0
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(marginConfigTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}
