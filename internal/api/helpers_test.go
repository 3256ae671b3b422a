package api

import (
	"testing"
	"time"

	"github.com/jiin/lookout/internal/models"
)

func TestParseTimeRange(t *testing.T) {
	tr := ParseTimeRange("2h", DefaultRangeShort)
	got := tr.To.Sub(tr.From)
	if got != 2*time.Hour {
		t.Errorf("expected 2h range, got %v", got)
	}
}

func TestParseTimeRangeInvalid(t *testing.T) {
	tr := ParseTimeRange("not-a-duration", DefaultRangeShort)
	got := tr.To.Sub(tr.From)
	if got != DefaultRangeShort {
		t.Errorf("expected default range, got %v", got)
	}
}

func TestDownsampleSamples_NoDownsample(t *testing.T) {
	// When data length is less than maxPoints, return original data
	data := []models.LatencySample{
		{Timestamp: 1, LatencyMs: 10},
		{Timestamp: 2, LatencyMs: 20},
	}

	result := downsampleSamples(data, 500)

	if len(result) != 2 {
		t.Errorf("Expected 2 data points, got %d", len(result))
	}
}

func TestDownsampleSamples_Downsample(t *testing.T) {
	data := make([]models.LatencySample, 1000)
	for i := 0; i < 1000; i++ {
		data[i] = models.LatencySample{
			Timestamp: float64(i),
			LatencyMs: 100,
		}
	}

	result := downsampleSamples(data, 100)

	if len(result) > 110 {
		t.Errorf("Expected at most ~100 data points, got %d", len(result))
	}
	for _, s := range result {
		if s.LatencyMs != 100 {
			t.Errorf("Expected averaged latency 100, got %d", s.LatencyMs)
		}
	}
}

func TestDownsampleSamples_Averages(t *testing.T) {
	data := []models.LatencySample{
		{Timestamp: 1, LatencyMs: 100},
		{Timestamp: 2, LatencyMs: 200},
		{Timestamp: 3, LatencyMs: 300},
		{Timestamp: 4, LatencyMs: 400},
	}

	result := downsampleSamples(data, 2)

	if len(result) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(result))
	}
	if result[0].LatencyMs != 150 {
		t.Errorf("Expected first bucket average 150, got %d", result[0].LatencyMs)
	}
	if result[1].LatencyMs != 350 {
		t.Errorf("Expected second bucket average 350, got %d", result[1].LatencyMs)
	}
}
