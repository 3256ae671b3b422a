package analyzer

import (
	"math"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// PeriodComparisonResult contains comparison between two periods
type PeriodComparisonResult struct {
	TargetName     string        `json:"target_name"`
	Period         string        `json:"period"`
	CurrentPeriod  PeriodStats   `json:"current_period"`
	PreviousPeriod PeriodStats   `json:"previous_period"`
	Changes        PeriodChanges `json:"changes"`
}

// PeriodStats contains statistics for a period
type PeriodStats struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	DataPoints    int       `json:"data_points"`
	UptimePercent float64   `json:"uptime_percent"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	MaxLatencyMs  int64     `json:"max_latency_ms"`
	FailureCount  int       `json:"failure_count"`
}

// PeriodChanges contains the changes between periods
type PeriodChanges struct {
	UptimeChange  float64 `json:"uptime_change"`
	LatencyChange float64 `json:"latency_change"`
	FailureChange int     `json:"failure_change"`
	Trend         string  `json:"trend"` // improving, stable, degrading
}

// ComparePeriods compares a target's behavior between the current
// period and the one before it.
func ComparePeriods(targetName string, current, previous []models.StatusEvent, period string) *PeriodComparisonResult {
	result := &PeriodComparisonResult{
		TargetName: targetName,
		Period:     period,
	}

	result.CurrentPeriod = calculatePeriodStats(sortChronological(current))
	result.PreviousPeriod = calculatePeriodStats(sortChronological(previous))
	result.Changes = calculateChanges(result.CurrentPeriod, result.PreviousPeriod)

	return result
}

func calculatePeriodStats(events []models.StatusEvent) PeriodStats {
	if len(events) == 0 {
		return PeriodStats{}
	}

	stats := PeriodStats{
		From:       events[0].Time(),
		To:         events[len(events)-1].Time(),
		DataPoints: len(events),
	}

	var up int
	var latencySum int64
	var latencyCount int

	for _, e := range events {
		switch e.Status {
		case models.StatusDown:
			stats.FailureCount++
		default:
			up++
			latencySum += e.LatencyMs
			latencyCount++
			if e.LatencyMs > stats.MaxLatencyMs {
				stats.MaxLatencyMs = e.LatencyMs
			}
		}
	}

	stats.UptimePercent = math.Round(float64(up)/float64(len(events))*1000) / 10
	if latencyCount > 0 {
		stats.AvgLatencyMs = math.Round(float64(latencySum)/float64(latencyCount)*10) / 10
	}

	return stats
}

func calculateChanges(current, previous PeriodStats) PeriodChanges {
	changes := PeriodChanges{Trend: "stable"}

	if previous.DataPoints == 0 {
		return changes
	}

	changes.UptimeChange = math.Round((current.UptimePercent-previous.UptimePercent)*10) / 10
	changes.FailureChange = current.FailureCount - previous.FailureCount

	if previous.AvgLatencyMs > 0 {
		changes.LatencyChange = math.Round((current.AvgLatencyMs-previous.AvgLatencyMs)/previous.AvgLatencyMs*1000) / 10
	}

	// Latency regressions only count when uptime has not moved
	switch {
	case changes.UptimeChange < -1 || changes.FailureChange > 2:
		changes.Trend = "degrading"
	case changes.UptimeChange > 1 || changes.FailureChange < -2:
		changes.Trend = "improving"
	case changes.LatencyChange > 25:
		changes.Trend = "degrading"
	case changes.LatencyChange < -25:
		changes.Trend = "improving"
	}

	return changes
}
