// Package config provides configuration management for the margin monitor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
	"github.com/lemollon/AlphaGEX-sub013/internal/logging"
	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
)

// Config holds all application configuration.
type Config struct {
	Monitor       MonitorConfig              `mapstructure:"monitor"`
	Storage       StorageConfig              `mapstructure:"storage"`
	Logging       LoggingConfig              `mapstructure:"logging"`
	Notifications NotificationConfig         `mapstructure:"notifications"`
	Stream        StreamConfig               `mapstructure:"stream"`
	Bots          []BotEntry                 `mapstructure:"bots"`
	Markets       map[string]MarketOverrides `mapstructure:"markets"`
}

// MonitorConfig holds polling loop configuration.
type MonitorConfig struct {
	PollIntervalSeconds   int     `mapstructure:"poll_interval_seconds"`
	Workers               int     `mapstructure:"workers"`
	AlertsPerMinute       float64 `mapstructure:"alerts_per_minute"`
	FundingProjectionDays int     `mapstructure:"funding_projection_days"`
	RetentionDays         int     `mapstructure:"retention_days"`
	// StatePath is the JSON state document the host platform's bots
	// publish their account state to.
	StatePath string `mapstructure:"state_path"`
}

// PollInterval returns the poll interval as a duration.
func (m MonitorConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSeconds) * time.Second
}

// StorageConfig holds snapshot persistence configuration.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// NotificationConfig holds alert delivery configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	MinLevel string         `mapstructure:"min_level"` // INFO, WARNING, DANGER, CRITICAL
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// StreamConfig holds snapshot streaming configuration.
type StreamConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Buffer  int  `mapstructure:"buffer"`
}

// BotEntry is one monitored bot as declared in margin.toml. Zero-valued
// limits fall back to platform defaults when the bot config is
// materialized; see BotConfigs.
type BotEntry struct {
	Name         string `mapstructure:"name"`
	MarketType   string `mapstructure:"market_type"`
	Exchange     string `mapstructure:"exchange"`
	AccountID    string `mapstructure:"account_id"`
	AccountLabel string `mapstructure:"account_label"`

	MaxMarginUsagePct          float64  `mapstructure:"max_margin_usage_pct"`
	MinLiqDistancePct          *float64 `mapstructure:"min_liquidation_distance_pct"`
	MaxEffectiveLeverage       float64  `mapstructure:"max_effective_leverage"`
	MaxSinglePositionMarginPct float64  `mapstructure:"max_single_position_margin_pct"`

	WarningThresholdPct  float64 `mapstructure:"warning_threshold_pct"`
	DangerThresholdPct   float64 `mapstructure:"danger_threshold_pct"`
	CriticalThresholdPct float64 `mapstructure:"critical_threshold_pct"`

	LeverageOverride float64 `mapstructure:"leverage_override"`

	AutoReduce AutoReduceEntry `mapstructure:"auto_reduce"`
}

// AutoReduceEntry configures the sustained-danger response for one bot.
type AutoReduceEntry struct {
	Enabled             bool    `mapstructure:"enabled"`
	MarginPct           float64 `mapstructure:"margin_pct"`
	DurationSeconds     int     `mapstructure:"duration_seconds"`
	PositionPct         float64 `mapstructure:"position_pct"`
	CloseLiqDistancePct float64 `mapstructure:"close_liq_distance_pct"`
}

// MarketOverrides adjusts a built-in market preset from margin.toml.
// Pointer fields distinguish "not set" from an explicit zero.
type MarketOverrides struct {
	Exchange                    *string  `mapstructure:"exchange"`
	InitialMarginRate           *float64 `mapstructure:"initial_margin_rate"`
	MaintenanceMarginRate       *float64 `mapstructure:"maintenance_margin_rate"`
	IsMarginPerContract         *bool    `mapstructure:"margin_per_contract"`
	MaxLeverage                 *float64 `mapstructure:"max_leverage"`
	DefaultLeverage             *float64 `mapstructure:"default_leverage"`
	ContractMultiplier          *float64 `mapstructure:"contract_multiplier"`
	TickSize                    *float64 `mapstructure:"tick_size"`
	TickValue                   *float64 `mapstructure:"tick_value"`
	FundingIntervalHours        *float64 `mapstructure:"funding_interval_hours"`
	MarginCallThresholdPct      *float64 `mapstructure:"margin_call_threshold_pct"`
	AutoLiquidationThresholdPct *float64 `mapstructure:"auto_liquidation_threshold_pct"`
}

func (o MarketOverrides) apply(m *margin.MarketConfig) {
	if o.Exchange != nil {
		m.Exchange = *o.Exchange
	}
	if o.InitialMarginRate != nil {
		m.InitialMarginRate = *o.InitialMarginRate
	}
	if o.MaintenanceMarginRate != nil {
		m.MaintenanceMarginRate = *o.MaintenanceMarginRate
	}
	if o.IsMarginPerContract != nil {
		m.IsMarginPerContract = *o.IsMarginPerContract
	}
	if o.MaxLeverage != nil {
		m.MaxLeverage = *o.MaxLeverage
	}
	if o.DefaultLeverage != nil {
		m.DefaultLeverage = *o.DefaultLeverage
	}
	if o.ContractMultiplier != nil {
		m.ContractMultiplier = *o.ContractMultiplier
	}
	if o.TickSize != nil {
		m.TickSize = *o.TickSize
	}
	if o.TickValue != nil {
		m.TickValue = *o.TickValue
	}
	if o.FundingIntervalHours != nil {
		m.FundingIntervalHours = *o.FundingIntervalHours
		m.HasFundingRate = *o.FundingIntervalHours > 0
	}
	if o.MarginCallThresholdPct != nil {
		m.MarginCallThresholdPct = *o.MarginCallThresholdPct
	}
	if o.AutoLiquidationThresholdPct != nil {
		m.AutoLiquidationThresholdPct = *o.AutoLiquidationThresholdPct
	}
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/marginwatch"
	}
	return filepath.Join(home, ".config", "marginwatch")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "margin", cfg); err != nil {
		return nil, fmt.Errorf("loading margin.toml: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("monitor.poll_interval_seconds", 30)
	v.SetDefault("monitor.workers", 4)
	v.SetDefault("monitor.alerts_per_minute", 2.0)
	v.SetDefault("monitor.funding_projection_days", 7)
	v.SetDefault("monitor.retention_days", 90)
	v.SetDefault("monitor.state_path", filepath.Join(configDir, "state.json"))

	v.SetDefault("storage.db_path", filepath.Join(configDir, "margin.db"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "marginwatch.log"))
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.min_level", "WARNING")

	v.SetDefault("stream.enabled", true)
	v.SetDefault("stream.buffer", 64)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPHAGEX_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("ALPHAGEX_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv("ALPHAGEX_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
	}
	if v := os.Getenv("ALPHAGEX_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
}

var alertLevels = map[string]bool{
	"INFO":     true,
	"WARNING":  true,
	"DANGER":   true,
	"CRITICAL": true,
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Monitor.PollIntervalSeconds <= 0 {
		return fmt.Errorf("monitor.poll_interval_seconds must be positive")
	}
	if c.Monitor.Workers < 1 {
		return fmt.Errorf("monitor.workers must be at least 1")
	}
	if c.Monitor.AlertsPerMinute < 0 {
		return fmt.Errorf("monitor.alerts_per_minute must be non-negative")
	}
	if c.Monitor.FundingProjectionDays <= 0 {
		return fmt.Errorf("monitor.funding_projection_days must be positive")
	}
	if c.Monitor.RetentionDays < 0 {
		return fmt.Errorf("monitor.retention_days must be non-negative")
	}
	if c.Monitor.StatePath == "" {
		return fmt.Errorf("monitor.state_path must not be empty")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path must not be empty")
	}
	if !alertLevels[strings.ToUpper(c.Notifications.MinLevel)] {
		return fmt.Errorf("notifications.min_level must be one of INFO, WARNING, DANGER, CRITICAL")
	}
	if c.Stream.Buffer < 0 {
		return fmt.Errorf("stream.buffer must be non-negative")
	}

	// Surface per-bot problems at load time, not first poll.
	if _, err := c.BotConfigs(); err != nil {
		return err
	}
	return nil
}

// BotConfigs materializes the margin configuration for every declared
// bot: market preset, file-level market overrides, then bot-level
// settings, validated as a whole.
func (c *Config) BotConfigs() ([]margin.BotMarginConfig, error) {
	out := make([]margin.BotMarginConfig, 0, len(c.Bots))
	seen := make(map[string]bool, len(c.Bots))

	for _, b := range c.Bots {
		if b.Name == "" {
			return nil, apperrors.NewValidationError("bots.name", b.Name, "must not be empty")
		}
		if seen[b.Name] {
			return nil, apperrors.NewValidationError("bots.name", b.Name, "duplicate bot name")
		}
		seen[b.Name] = true

		marketType, err := margin.ParseMarketType(b.MarketType)
		if err != nil {
			return nil, apperrors.Wrapf(err, "bot %s", b.Name)
		}
		market, err := margin.DefaultMarketConfig(marketType)
		if err != nil {
			return nil, apperrors.Wrapf(err, "bot %s", b.Name)
		}
		if o, ok := c.marketOverrides(marketType); ok {
			o.apply(&market)
		}
		if b.Exchange != "" {
			market.Exchange = b.Exchange
		}

		cfg := margin.DefaultBotMarginConfig(b.Name, market)
		cfg.AccountID = b.AccountID
		cfg.AccountLabel = b.AccountLabel
		if b.MaxMarginUsagePct > 0 {
			cfg.MaxMarginUsagePct = b.MaxMarginUsagePct
		}
		if b.MinLiqDistancePct != nil {
			cfg.MinLiqDistancePct = *b.MinLiqDistancePct
		}
		if b.MaxEffectiveLeverage > 0 {
			cfg.MaxEffectiveLeverage = b.MaxEffectiveLeverage
		}
		if b.MaxSinglePositionMarginPct > 0 {
			cfg.MaxSinglePositionMarginPct = b.MaxSinglePositionMarginPct
		}
		if b.WarningThresholdPct > 0 {
			cfg.WarningThresholdPct = b.WarningThresholdPct
		}
		if b.DangerThresholdPct > 0 {
			cfg.DangerThresholdPct = b.DangerThresholdPct
		}
		if b.CriticalThresholdPct > 0 {
			cfg.CriticalThresholdPct = b.CriticalThresholdPct
		}
		if b.LeverageOverride > 0 {
			lev := b.LeverageOverride
			cfg.LeverageOverride = &lev
		}
		if b.AutoReduce.Enabled {
			cfg.AutoReduce.Enabled = true
			if b.AutoReduce.MarginPct > 0 {
				cfg.AutoReduce.MarginPct = b.AutoReduce.MarginPct
			}
			if b.AutoReduce.DurationSeconds > 0 {
				cfg.AutoReduce.DurationSeconds = b.AutoReduce.DurationSeconds
			}
			if b.AutoReduce.PositionPct > 0 {
				cfg.AutoReduce.PositionPct = b.AutoReduce.PositionPct
			}
			if b.AutoReduce.CloseLiqDistancePct > 0 {
				cfg.AutoReduce.CloseLiqDistancePct = b.AutoReduce.CloseLiqDistancePct
			}
		}

		if err := cfg.Validate(); err != nil {
			return nil, apperrors.Wrapf(err, "bot %s", b.Name)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// marketOverrides looks up the [markets.<TYPE>] section for a market
// type. Viper lowercases map keys, so the lookup is case-insensitive.
func (c *Config) marketOverrides(t margin.MarketType) (MarketOverrides, bool) {
	if c.Markets == nil {
		return MarketOverrides{}, false
	}
	o, ok := c.Markets[strings.ToLower(string(t))]
	return o, ok
}

// BotEntryFor returns the raw config entry for a bot name.
func (c *Config) BotEntryFor(name string) (BotEntry, bool) {
	for _, b := range c.Bots {
		if b.Name == name {
			return b, true
		}
	}
	return BotEntry{}, false
}

// LogConfig materializes the logging configuration.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAgeDays,
	}
}
