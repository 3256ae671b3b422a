package analyzer

import (
	"math"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// AnomalyResult contains latency anomaly detection results
type AnomalyResult struct {
	TargetName   string       `json:"target_name"`
	AnalyzedFrom time.Time    `json:"analyzed_from"`
	AnalyzedTo   time.Time    `json:"analyzed_to"`
	DataPoints   int          `json:"data_points"`
	Anomalies    []Anomaly    `json:"anomalies"`
	Statistics   AnomalyStats `json:"statistics"`
	RiskLevel    string       `json:"risk_level"` // normal, elevated, high, unknown
}

// Anomaly represents a detected anomaly
type Anomaly struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"` // warning, critical
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Expected  float64   `json:"expected"`
	Deviation float64   `json:"deviation"`
}

// AnomalyStats contains statistical information
type AnomalyStats struct {
	MeanLatencyMs  float64 `json:"mean_latency_ms"`
	StdDeviation   float64 `json:"std_deviation"`
	Threshold      float64 `json:"threshold"`
	AnomalyCount   int     `json:"anomaly_count"`
	AnomalyPercent float64 `json:"anomaly_percent"`
}

// DetectAnomalies flags latency samples that sit far outside the
// target's normal range, plus sudden spikes between adjacent samples.
func DetectAnomalies(targetName string, samples []models.LatencySample) *AnomalyResult {
	if len(samples) < 10 {
		return &AnomalyResult{
			TargetName: targetName,
			DataPoints: len(samples),
			RiskLevel:  "unknown",
			Anomalies:  []Anomaly{},
			Statistics: AnomalyStats{},
		}
	}

	latencies := make([]float64, len(samples))
	for i, s := range samples {
		latencies[i] = float64(s.LatencyMs)
	}

	mean := calculateMean(latencies)
	stdDev := calculateStdDev(latencies, mean)

	// Use 2 standard deviations as the anomaly threshold
	threshold := 2.0

	var anomalies []Anomaly

	for i, s := range samples {
		latency := latencies[i]

		if stdDev > 0 {
			deviation := (latency - mean) / stdDev
			if math.Abs(deviation) > threshold {
				severity := "warning"
				if math.Abs(deviation) > 3 {
					severity = "critical"
				}

				anomalyType := "slow_response"
				message := "Response time significantly above normal"
				if deviation < 0 {
					anomalyType = "fast_response"
					message = "Response time significantly below normal"
				}

				anomalies = append(anomalies, Anomaly{
					Timestamp: sampleTime(s),
					Type:      anomalyType,
					Severity:  severity,
					Message:   message,
					Value:     latency,
					Expected:  mean,
					Deviation: deviation,
				})
			}
		}

		// Sudden spike compared with the previous sample
		if i > 0 && latencies[i-1] > 0 {
			change := (latency - latencies[i-1]) / latencies[i-1] * 100
			if change > 200 && latency > 100 {
				anomalies = append(anomalies, Anomaly{
					Timestamp: sampleTime(s),
					Type:      "sudden_spike",
					Severity:  "warning",
					Message:   "Sudden latency increase detected",
					Value:     latency,
					Expected:  latencies[i-1],
					Deviation: change,
				})
			}
		}
	}

	if anomalies == nil {
		anomalies = []Anomaly{}
	}

	anomalyPercent := float64(len(anomalies)) / float64(len(samples)) * 100

	riskLevel := "normal"
	if anomalyPercent > 10 {
		riskLevel = "high"
	} else if anomalyPercent > 3 {
		riskLevel = "elevated"
	}

	return &AnomalyResult{
		TargetName:   targetName,
		AnalyzedFrom: sampleTime(samples[0]),
		AnalyzedTo:   sampleTime(samples[len(samples)-1]),
		DataPoints:   len(samples),
		Anomalies:    anomalies,
		Statistics: AnomalyStats{
			MeanLatencyMs:  math.Round(mean*10) / 10,
			StdDeviation:   math.Round(stdDev*10) / 10,
			Threshold:      threshold,
			AnomalyCount:   len(anomalies),
			AnomalyPercent: math.Round(anomalyPercent*10) / 10,
		},
		RiskLevel: riskLevel,
	}
}

func sampleTime(s models.LatencySample) time.Time {
	sec := int64(s.Timestamp)
	nsec := int64((s.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
