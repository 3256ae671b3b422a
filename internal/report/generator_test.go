package report

import (
	"strings"
	"testing"
	"time"

	"github.com/jiin/lookout/internal/analyzer"
	"github.com/jiin/lookout/internal/models"
)

func TestGenerateHTMLReport(t *testing.T) {
	stats := models.UptimeStats{
		TargetName:       "web",
		TotalChecks:      100,
		SuccessfulChecks: 98,
		FailedChecks:     2,
		AverageLatencyMs: 120,
		UptimePercentage: 98,
		LastStatus:       "operational",
	}
	events := []models.StatusEvent{
		{Timestamp: float64(time.Now().Add(-time.Hour).Unix()), TargetName: "web", Status: "operational", LatencyMs: 110},
		{Timestamp: float64(time.Now().Unix()), TargetName: "web", Status: "down", LatencyMs: 0},
	}
	recs := &analyzer.AnalysisResult{
		Recommendations: []analyzer.Recommendation{
			{Type: "reliability", Current: "98.0% uptime", Recommended: "review recent failures", Reason: "Uptime below 99%", Severity: "warning"},
		},
	}

	data := BuildReportData("web", "24h", stats, events, 10*time.Minute, recs, nil, nil)
	html, err := GenerateHTMLReport(data)
	if err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	out := string(html)
	for _, want := range []string{"web", "98.0%", "Uptime Report", "reliability", "Recent Events"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestBuildReportDataCapsEvents(t *testing.T) {
	// Newest first, as the store hands them out
	events := make([]models.StatusEvent, 50)
	for i := range events {
		events[i] = models.StatusEvent{Timestamp: float64(50 - i), Status: "operational"}
	}

	data := BuildReportData("web", "24h", models.UptimeStats{}, events, 0, nil, nil, nil)

	if len(data.RecentEvents) != 20 {
		t.Errorf("expected 20 recent events, got %d", len(data.RecentEvents))
	}
	if data.RecentEvents[0].Timestamp != 50 {
		t.Errorf("expected the newest event kept, got timestamp %v", data.RecentEvents[0].Timestamp)
	}
	if data.DataPoints != 50 {
		t.Errorf("expected 50 data points, got %d", data.DataPoints)
	}
}
