package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertLevel represents the severity of a margin alert.
// Levels are ordered so notifiers can filter on a minimum severity.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertDanger
	AlertCritical
)

// String returns the canonical upper-case level name.
func (l AlertLevel) String() string {
	switch l {
	case AlertInfo:
		return "INFO"
	case AlertWarning:
		return "WARNING"
	case AlertDanger:
		return "DANGER"
	case AlertCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseAlertLevel maps a level name back to its value, defaulting to INFO.
func ParseAlertLevel(s string) AlertLevel {
	switch s {
	case "WARNING":
		return AlertWarning
	case "DANGER":
		return AlertDanger
	case "CRITICAL":
		return AlertCritical
	default:
		return AlertInfo
	}
}

// MarginAlert is a leveled alert emitted by the monitor.
// Details carries structured context (usage, thresholds, distances) that
// notifiers render alongside the message.
type MarginAlert struct {
	ID        string
	BotName   string
	Level     AlertLevel
	Message   string
	Details   map[string]interface{}
	Timestamp time.Time
}

// NewMarginAlert builds an alert with a fresh id and the current time.
func NewMarginAlert(botName string, level AlertLevel, message string, details map[string]interface{}) *MarginAlert {
	return &MarginAlert{
		ID:        uuid.NewString(),
		BotName:   botName,
		Level:     level,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}
