package analyzer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jiin/lookout/internal/models"
)

type Recommendation struct {
	Type        string `json:"type"`
	Current     string `json:"current"`
	Recommended string `json:"recommended"`
	Reason      string `json:"reason"`
	Severity    string `json:"severity"` // info, warning, critical
}

type AnalysisResult struct {
	TargetName      string           `json:"target_name"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
	DataPoints      int              `json:"data_points"`
	Recommendations []Recommendation `json:"recommendations"`
	Stats           TargetStats      `json:"stats"`
}

type TargetStats struct {
	UptimePercent    float64 `json:"uptime_percent"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	MaxLatencyMs     int64   `json:"max_latency_ms"`
	StatusChanges    int     `json:"status_changes"`
	FailureCount     int     `json:"failure_count"`
	DowntimeMinutes  float64 `json:"downtime_minutes"`
	ChangesPerHour   float64 `json:"changes_per_hour"`
	ObservationHours float64 `json:"observation_hours"`
}

// Analyze inspects a target's recent history and produces operational
// recommendations: flapping targets, chronically slow targets, targets
// that should have auto restart enabled, and so on.
func Analyze(target models.Target, stats models.UptimeStats, events []models.StatusEvent, samples []models.LatencySample) *AnalysisResult {
	if len(events) == 0 {
		return nil
	}

	// Store queries hand out history newest first
	events = sortChronological(events)

	result := &AnalysisResult{
		TargetName:      target.Name,
		AnalyzedAt:      time.Now(),
		DataPoints:      len(events),
		Recommendations: []Recommendation{},
	}

	result.Stats = calculateStats(stats, events, samples)
	result.Recommendations = generateRecommendations(target, result.Stats)

	return result
}

// sortChronological copies events into ascending timestamp order.
func sortChronological(events []models.StatusEvent) []models.StatusEvent {
	out := make([]models.StatusEvent, len(events))
	copy(out, events)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

func calculateStats(stats models.UptimeStats, events []models.StatusEvent, samples []models.LatencySample) TargetStats {
	ts := TargetStats{
		UptimePercent: stats.UptimePercentage,
		AvgLatencyMs:  stats.AverageLatencyMs,
		FailureCount:  stats.FailedChecks,
	}

	for _, s := range samples {
		if s.LatencyMs > ts.MaxLatencyMs {
			ts.MaxLatencyMs = s.LatencyMs
		}
	}

	var changes int
	var downtime time.Duration
	var downSince time.Time
	for i, e := range events {
		if i > 0 && e.Status != events[i-1].Status {
			changes++
		}
		switch {
		case e.Status == models.StatusDown && downSince.IsZero():
			downSince = e.Time()
		case e.Status != models.StatusDown && !downSince.IsZero():
			downtime += e.Time().Sub(downSince)
			downSince = time.Time{}
		}
	}
	if !downSince.IsZero() {
		downtime += time.Since(downSince)
	}

	ts.StatusChanges = changes
	ts.DowntimeMinutes = math.Round(downtime.Minutes()*10) / 10

	span := events[len(events)-1].Time().Sub(events[0].Time())
	ts.ObservationHours = math.Round(span.Hours()*10) / 10
	if span > time.Hour {
		ts.ChangesPerHour = math.Round(float64(changes)/span.Hours()*10) / 10
	} else {
		ts.ChangesPerHour = float64(changes)
	}

	return ts
}

func generateRecommendations(target models.Target, stats TargetStats) []Recommendation {
	recs := []Recommendation{}

	if stats.UptimePercent < 95 && stats.FailureCount > 0 {
		recs = append(recs, Recommendation{
			Type:        "reliability",
			Current:     fmt.Sprintf("%.1f%% uptime", stats.UptimePercent),
			Recommended: "investigate root cause",
			Reason:      "Uptime below 95% over the observed window",
			Severity:    "critical",
		})
	} else if stats.UptimePercent < 99 && stats.FailureCount > 0 {
		recs = append(recs, Recommendation{
			Type:        "reliability",
			Current:     fmt.Sprintf("%.1f%% uptime", stats.UptimePercent),
			Recommended: "review recent failures",
			Reason:      "Uptime below 99% over the observed window",
			Severity:    "warning",
		})
	}

	if stats.ChangesPerHour > 2 {
		recs = append(recs, Recommendation{
			Type:        "flapping",
			Current:     fmt.Sprintf("%.1f status changes/hour", stats.ChangesPerHour),
			Recommended: "raise check interval or fix the underlying instability",
			Reason:      "Frequent status transitions suggest the target is flapping",
			Severity:    "warning",
		})
	}

	if stats.AvgLatencyMs > 1000 {
		recs = append(recs, Recommendation{
			Type:        "latency",
			Current:     fmt.Sprintf("%.0fms average", stats.AvgLatencyMs),
			Recommended: "investigate slow responses",
			Reason:      "Average response time is over one second",
			Severity:    "warning",
		})
	}

	if stats.MaxLatencyMs > 0 && stats.AvgLatencyMs > 0 &&
		float64(stats.MaxLatencyMs) > stats.AvgLatencyMs*10 {
		recs = append(recs, Recommendation{
			Type:        "latency",
			Current:     fmt.Sprintf("peak %dms vs %.0fms average", stats.MaxLatencyMs, stats.AvgLatencyMs),
			Recommended: "check for intermittent load spikes",
			Reason:      "Peak latency is an order of magnitude above the average",
			Severity:    "info",
		})
	}

	if stats.DowntimeMinutes > 30 && !target.Healing.AutoRestartEnabled() {
		recs = append(recs, Recommendation{
			Type:        "healing",
			Current:     "auto restart disabled",
			Recommended: "enable auto restart for this target",
			Reason:      fmt.Sprintf("%.0f minutes of downtime could have been shortened by automatic recovery", stats.DowntimeMinutes),
			Severity:    "info",
		})
	}

	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Type:        "healthy",
			Current:     fmt.Sprintf("%.1f%% uptime, %.0fms average", stats.UptimePercent, stats.AvgLatencyMs),
			Recommended: "no changes needed",
			Reason:      "Target is stable over the observed window",
			Severity:    "info",
		})
	}

	return recs
}
