package monitor

import (
	"fmt"
	"time"

	"github.com/lemollon/AlphaGEX-sub013/internal/logging"
	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// evaluate advances the bot's cross-poll state machine and returns the
// alerts this cycle produced. Alerts fire on transitions, never on
// level: a bot sitting at 85% usage alerts once when it gets there and
// once more when it recovers. Caller holds m.mu.
func (m *Monitor) evaluate(rt *botRuntime, metrics *margin.AccountMarginMetrics) []*models.MarginAlert {
	var alerts []*models.MarginAlert

	if alert := m.healthTransition(rt, metrics); alert != nil {
		alerts = append(alerts, alert)
	}
	if alert := m.dangerZone(rt, metrics); alert != nil {
		alerts = append(alerts, alert)
	}
	if alert := m.liquidationProximity(rt, metrics); alert != nil {
		alerts = append(alerts, alert)
	}

	rt.lastHealth = metrics.HealthStatus
	return alerts
}

// healthTransition alerts when the health status changes between
// cycles. Deterioration carries the severity of the new status,
// recovery is informational.
func (m *Monitor) healthTransition(rt *botRuntime, metrics *margin.AccountMarginMetrics) *models.MarginAlert {
	from, to := rt.lastHealth, metrics.HealthStatus
	if to == from {
		return nil
	}

	logging.LogHealthTransition(logging.WithBot(m.logger, metrics.BotName), metrics.BotName, from, to, metrics.MarginUsagePct)

	var level models.AlertLevel
	var message string
	if to > from {
		level = alertLevelFor(to)
		message = fmt.Sprintf("Margin health degraded to %s from %s (usage %.1f%%)", to, from, metrics.MarginUsagePct)
	} else {
		level = models.AlertInfo
		message = fmt.Sprintf("Margin health recovered to %s from %s (usage %.1f%%)", to, from, metrics.MarginUsagePct)
	}

	return models.NewMarginAlert(metrics.BotName, level, message, map[string]interface{}{
		"previous_health":  from.String(),
		"current_health":   to.String(),
		"margin_usage_pct": metrics.MarginUsagePct,
		"margin_ratio":     metrics.MarginRatio,
	})
}

// dangerZone tracks time spent above the auto-reduce threshold. The
// recommendation fires once per excursion, only after usage has stayed
// above the threshold for the configured duration; dipping below the
// threshold resets the episode.
func (m *Monitor) dangerZone(rt *botRuntime, metrics *margin.AccountMarginMetrics) *models.MarginAlert {
	policy := rt.cfg.AutoReduce
	if !policy.Enabled || policy.MarginPct <= 0 {
		return nil
	}

	if metrics.MarginUsagePct < policy.MarginPct {
		rt.dangerZoneStart = nil
		rt.reduceAdvised = false
		return nil
	}

	now := m.now()
	if rt.dangerZoneStart == nil {
		rt.dangerZoneStart = &now
		return nil
	}

	sustained := now.Sub(*rt.dangerZoneStart)
	required := time.Duration(policy.DurationSeconds) * time.Second
	if sustained < required || rt.reduceAdvised {
		return nil
	}

	rt.reduceAdvised = true
	return models.NewMarginAlert(metrics.BotName, models.AlertCritical,
		fmt.Sprintf("Margin usage %.1f%% has stayed above %.1f%% for %s, recommend reducing positions by %.0f%%",
			metrics.MarginUsagePct, policy.MarginPct, sustained.Truncate(time.Second), policy.PositionPct),
		map[string]interface{}{
			"margin_usage_pct":          metrics.MarginUsagePct,
			"threshold_pct":             policy.MarginPct,
			"sustained_seconds":         int64(sustained.Seconds()),
			"recommended_reduction_pct": policy.PositionPct,
		})
}

// liquidationProximity alerts immediately, with no debounce, when the
// closest position drifts inside the emergency close distance.
func (m *Monitor) liquidationProximity(rt *botRuntime, metrics *margin.AccountMarginMetrics) *models.MarginAlert {
	policy := rt.cfg.AutoReduce
	if !policy.Enabled || policy.CloseLiqDistancePct <= 0 {
		return nil
	}

	worst := metrics.WorstLiqDistancePct()
	if worst == nil || *worst >= policy.CloseLiqDistancePct {
		rt.closeAdvised = false
		return nil
	}

	if rt.closeAdvised {
		return nil
	}

	rt.closeAdvised = true
	return models.NewMarginAlert(metrics.BotName, models.AlertCritical,
		fmt.Sprintf("Liquidation distance %.2f%% is inside the emergency close threshold %.2f%%, recommend closing exposed positions",
			*worst, policy.CloseLiqDistancePct),
		map[string]interface{}{
			"liq_distance_pct": *worst,
			"threshold_pct":    policy.CloseLiqDistancePct,
			"margin_usage_pct": metrics.MarginUsagePct,
		})
}

// alertLevelFor maps a health status to the severity used when the bot
// degrades into it.
func alertLevelFor(h models.HealthStatus) models.AlertLevel {
	switch h {
	case models.HealthCritical:
		return models.AlertCritical
	case models.HealthDanger:
		return models.AlertDanger
	case models.HealthWarning:
		return models.AlertWarning
	default:
		return models.AlertInfo
	}
}
