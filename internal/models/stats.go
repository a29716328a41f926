package models

import "time"

// DailyMarginStat accumulates the worst observed margin readings for one
// bot over one calendar day (UTC). The monitor upserts it once per poll.
type DailyMarginStat struct {
	BotName              string
	Date                 string // YYYY-MM-DD, UTC
	PeakMarginUsagePct   float64
	WorstMarginRatio     float64
	WorstLiqDistancePct  *float64 // nil until a position reports a distance
	MaxEffectiveLeverage float64
	PeakNotional         float64
	AlertsInfo           int
	AlertsWarning        int
	AlertsDanger         int
	AlertsCritical       int
	PollCount            int
	UpdatedAt            time.Time
}

// CountAlert bumps the counter for the given level.
func (d *DailyMarginStat) CountAlert(level AlertLevel) {
	switch level {
	case AlertWarning:
		d.AlertsWarning++
	case AlertDanger:
		d.AlertsDanger++
	case AlertCritical:
		d.AlertsCritical++
	default:
		d.AlertsInfo++
	}
}
