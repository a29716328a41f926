// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "marginwatch", "logs", "marginwatch.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer
	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		// Ensure log directory exists
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	// Create multi-writer
	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Create logger
	logger := zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// SetInfoLevel sets the global log level to info.
func SetInfoLevel() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
	// BotKey is the context key for the bot name.
	BotKey ContextKey = "bot"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithBot adds a bot name to the logger context.
func WithBot(logger zerolog.Logger, botName string) zerolog.Logger {
	return logger.With().Str("bot", botName).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogPoll logs one completed monitoring poll for a bot.
func LogPoll(logger zerolog.Logger, botName string, usagePct float64, health models.HealthStatus, positions int) {
	logger.Info().
		Str("event", "poll").
		Str("bot", botName).
		Float64("margin_usage_pct", usagePct).
		Str("health", health.String()).
		Int("positions", positions).
		Msg("Margin poll completed")
}

// LogAlert logs an emitted margin alert.
func LogAlert(logger zerolog.Logger, alert *models.MarginAlert) {
	logger.Warn().
		Str("event", "alert").
		Str("alert_id", alert.ID).
		Str("bot", alert.BotName).
		Str("level", alert.Level.String()).
		Str("message", alert.Message).
		Msg("Margin alert")
}

// LogPreTrade logs a pre-trade gate verdict.
func LogPreTrade(logger zerolog.Logger, botName, symbol string, approved bool, reason string) {
	event := logger.Info()
	if !approved {
		event = logger.Warn()
	}
	event.
		Str("event", "pre_trade").
		Str("bot", botName).
		Str("symbol", symbol).
		Bool("approved", approved).
		Str("reason", reason).
		Msg("Pre-trade check")
}

// LogHealthTransition logs a bot moving between health states.
func LogHealthTransition(logger zerolog.Logger, botName string, from, to models.HealthStatus, usagePct float64) {
	event := logger.Info()
	if to > from {
		event = logger.Warn()
	}
	event.
		Str("event", "health_transition").
		Str("bot", botName).
		Str("from", from.String()).
		Str("to", to.String()).
		Float64("margin_usage_pct", usagePct).
		Msg("Health status changed")
}

// LogStoreCall logs a storage operation.
func LogStoreCall(logger zerolog.Logger, op string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "store").
		Str("op", op).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Store operation failed")
	} else {
		event.Msg("Store operation completed")
	}
}
