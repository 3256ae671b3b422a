package models

import "time"

// Severity levels
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert status
const (
	AlertStatusFired    = "fired"
	AlertStatusResolved = "resolved"
)

// SeverityForStatus maps a target status to an alert severity.
func SeverityForStatus(status string) string {
	switch status {
	case StatusDown:
		return SeverityCritical
	case StatusDegraded:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// AlertRecord is one fired (and possibly resolved) alert, persisted in the
// alert log.
type AlertRecord struct {
	ID         int64      `json:"id"`
	TargetName string     `json:"target_name"`
	Group      string     `json:"group,omitempty"`
	OldStatus  string     `json:"old_status"`
	NewStatus  string     `json:"new_status"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Status     string     `json:"status"` // fired, resolved
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Channels   string     `json:"channels"` // comma-separated channel names
}

// NotificationEvent is a status transition accepted by the smart rules,
// buffered for grouped delivery.
type NotificationEvent struct {
	TargetName string    `json:"target_name"`
	Group      string    `json:"group,omitempty"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	LatencyMs  int64     `json:"latency_ms"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AlertGroup is a pending or sent grouped alert keyed by (group, status).
type AlertGroup struct {
	Group      string    `json:"group"`
	Status     string    `json:"status"`
	Targets    []string  `json:"targets"`
	FirstAlert time.Time `json:"first_alert"`
	LastUpdate time.Time `json:"last_update"`
}

// AcknowledgedAlert is an acknowledged target or group with elapsed time.
type AcknowledgedAlert struct {
	Name           string    `json:"name"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
	MinutesAgo     int       `json:"minutes_ago"`
}

// AlertsView is the inspectable suppression state exposed to the UI layer:
// what is down, what has been acknowledged, and what is queued or flapping.
type AlertsView struct {
	Active       []DisplayUpdate     `json:"active"`
	Acknowledged []AcknowledgedAlert `json:"acknowledged"`
	Pending      []AlertGroup        `json:"pending"`
	Flapping     []string            `json:"flapping"`
	InCooldown   []string            `json:"in_cooldown"`
}

// AlertStats contains alert log statistics.
type AlertStats struct {
	TotalAlerts    int            `json:"total_alerts"`
	ActiveAlerts   int            `json:"active_alerts"`
	ResolvedAlerts int            `json:"resolved_alerts"`
	BySeverity     map[string]int `json:"by_severity"`
	ByTarget       map[string]int `json:"by_target"`
}
