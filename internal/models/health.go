package models

// HealthStatus grades account margin health from usage thresholds.
// Values are ordered: a higher status is strictly worse.
type HealthStatus int

const (
	HealthHealthy HealthStatus = iota
	HealthWarning
	HealthDanger
	HealthCritical
)

// String returns the canonical upper-case name used in snapshots and alerts.
func (h HealthStatus) String() string {
	switch h {
	case HealthHealthy:
		return "HEALTHY"
	case HealthWarning:
		return "WARNING"
	case HealthDanger:
		return "DANGER"
	case HealthCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseHealthStatus maps a stored status name back to its value.
// Unknown names map to HealthCritical so a corrupt row is never read as safe.
func ParseHealthStatus(s string) HealthStatus {
	switch s {
	case "HEALTHY":
		return HealthHealthy
	case "WARNING":
		return HealthWarning
	case "DANGER":
		return HealthDanger
	case "CRITICAL":
		return HealthCritical
	default:
		return HealthCritical
	}
}
