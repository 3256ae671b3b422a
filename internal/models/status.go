package models

import "time"

// Target status constants
const (
	StatusOperational = "operational" // target responded and passed all checks
	StatusDegraded    = "degraded"    // partial success, e.g. some containers up
	StatusDown        = "down"        // target unreachable or failed checks
	StatusChecking    = "checking"    // transient state while a probe is in flight
	StatusUnknown     = "unknown"     // no check has completed yet
)

// StatusFromResult maps a check result to a target status. Degraded
// wins over Healthy: a partial success (some containers down, slow
// response) carries both flags.
func StatusFromResult(r *CheckResult) string {
	switch {
	case r.Degraded:
		return StatusDegraded
	case r.Healthy:
		return StatusOperational
	default:
		return StatusDown
	}
}

// CheckResult is the outcome of a single health probe. A failed probe is a
// value with Healthy=false, never an error.
type CheckResult struct {
	Healthy    bool           `json:"healthy"`
	Degraded   bool           `json:"degraded,omitempty"`
	LatencyMs  int64          `json:"latency_ms"`
	Message    string         `json:"message"`
	StatusCode int            `json:"status_code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// StatusEvent is one recorded status observation for a target.
type StatusEvent struct {
	Timestamp  float64 `json:"timestamp"` // unix seconds, fractional
	TargetName string  `json:"server_name"`
	Status     string  `json:"status"` // operational, degraded, down
	LatencyMs  int64   `json:"response_time"`
	Message    string  `json:"message,omitempty"`
}

// Time returns the event timestamp as a time.Time.
func (e StatusEvent) Time() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// UptimeStats holds the incrementally maintained aggregates for one target.
type UptimeStats struct {
	TargetName       string  `json:"server_name"`
	TotalChecks      int     `json:"total_checks"`
	SuccessfulChecks int     `json:"successful_checks"`
	FailedChecks     int     `json:"failed_checks"`
	AverageLatencyMs float64 `json:"average_response_time"`
	UptimePercentage float64 `json:"uptime_percentage"`
	LastCheck        float64 `json:"last_check"` // unix seconds
	LastStatus       string  `json:"last_status"`
}

// LatencySample is one (timestamp, latency) pair from a target's history.
type LatencySample struct {
	Timestamp float64 `json:"timestamp"` // unix seconds
	LatencyMs int64   `json:"latency_ms"`
}

// DisplayUpdate carries the latest derived state for one target to the UI
// layer.
type DisplayUpdate struct {
	TargetName string         `json:"target_name"`
	Status     string         `json:"status"`
	LatencyMs  int64          `json:"latency_ms"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
}

// Summary is the operational/total rollup for a tray icon or footer.
type Summary struct {
	Operational int  `json:"operational"`
	Degraded    int  `json:"degraded"`
	Down        int  `json:"down"`
	Total       int  `json:"total"`
	Online      bool `json:"online"` // last known internet reachability
}
