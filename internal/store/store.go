// Package store provides margin history persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// SnapshotStore defines the interface for margin history persistence.
type SnapshotStore interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, metrics *margin.AccountMarginMetrics) error
	Snapshots(ctx context.Context, filter SnapshotFilter) ([]AccountSnapshot, error)
	LatestSnapshot(ctx context.Context, botName string) (*AccountSnapshot, error)

	// Alerts
	SaveAlert(ctx context.Context, alert *models.MarginAlert) error
	Alerts(ctx context.Context, filter AlertFilter) ([]models.MarginAlert, error)

	// Daily stats
	UpsertDailyStat(ctx context.Context, stat *models.DailyMarginStat) error
	DailyStats(ctx context.Context, filter StatFilter) ([]models.DailyMarginStat, error)

	// Retention
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Lifecycle
	Close() error
}

// AccountSnapshot is one persisted account metrics row. Positions are
// loaded by LatestSnapshot only; history queries return the account rows
// without them.
type AccountSnapshot struct {
	ID                     int64
	BotName                string
	MarketType             string
	AccountEquity          float64
	TotalMarginUsed        float64
	TotalMaintenanceMargin float64
	AvailableMargin        float64
	MarginUsagePct         float64
	MarginRatio            float64
	EffectiveLeverage      float64
	TotalNotional          float64
	TotalUnrealizedPnL     float64
	TotalDailyFunding      float64
	PositionCount          int
	HealthStatus           models.HealthStatus
	Timestamp              time.Time
	Positions              []PositionSnapshot
}

// PositionSnapshot is one persisted per-position metrics row.
type PositionSnapshot struct {
	PositionID                string
	Symbol                    string
	Side                      string
	Quantity                  float64
	EntryPrice                float64
	CurrentPrice              float64
	NotionalValue             float64
	InitialMarginRequired     float64
	MaintenanceMarginRequired float64
	UnrealizedPnL             float64
	LiquidationPrice          *float64
	DistanceToLiqPct          *float64
	FundingRate               *float64
	DailyFundingCost          *float64
}

// SnapshotFilter represents filters for querying account snapshots.
type SnapshotFilter struct {
	BotName   string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// AlertFilter represents filters for querying margin alerts.
type AlertFilter struct {
	BotName   string
	MinLevel  *models.AlertLevel
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// StatFilter represents filters for querying daily stats.
// Dates are YYYY-MM-DD strings, matching the stat rows.
type StatFilter struct {
	BotName   string
	StartDate string
	EndDate   string
	Limit     int
}
