// Package models provides domain models for the margin subsystem.
package models

import "time"

// Side represents the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Direction returns the P&L sign multiplier: +1 for long, -1 for short.
func (s Side) Direction() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Valid reports whether the side is one of the known values.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Position is a read-only snapshot of one open position as delivered by
// the state provider. The engine never mutates or persists positions.
type Position struct {
	PositionID   string
	Symbol       string
	Side         Side
	Quantity     float64 // always >= 0, direction carried by Side
	EntryPrice   float64
	CurrentPrice float64
	Leverage     *float64 // meaningful for perpetuals only
	FundingRate  *float64 // meaningful when the market has funding
}

// BotState is the per-bot account snapshot the monitor feeds into the engine.
type BotState struct {
	BotName       string
	AccountEquity float64
	Positions     []Position
	AsOf          time.Time
}
