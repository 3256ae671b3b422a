package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jiin/lookout/internal/models"
)

// Common default durations
const (
	DefaultRangeShort = time.Hour
	DefaultRangeLong  = 24 * time.Hour
)

// TimeRange represents a time range with from and to timestamps
type TimeRange struct {
	From time.Time
	To   time.Time
}

// ParseTimeRange parses a duration string and returns a TimeRange
// If parsing fails, it uses the provided default duration
func ParseTimeRange(rangeParam string, defaultDuration time.Duration) TimeRange {
	duration, err := time.ParseDuration(rangeParam)
	if err != nil {
		duration = defaultDuration
	}

	to := time.Now()
	from := to.Add(-duration)

	return TimeRange{From: from, To: to}
}

// ParseTimeRangeFromContext extracts and parses time range from gin context
func ParseTimeRangeFromContext(c *gin.Context, defaultDuration time.Duration) TimeRange {
	rangeParam := c.DefaultQuery("range", formatDuration(defaultDuration))
	return ParseTimeRange(rangeParam, defaultDuration)
}

// formatDuration formats a duration for use as default query value
func formatDuration(d time.Duration) string {
	if d >= 24*time.Hour {
		return "24h"
	}
	return "1h"
}

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
}

// RespondError sends a JSON error response with status code
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:      message,
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
	})
}

// RespondInternalError sends a 500 error response
func RespondInternalError(c *gin.Context, err error) {
	RespondError(c, http.StatusInternalServerError, err.Error())
}

// RespondNotFound sends a 404 error response
func RespondNotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, message)
}

// RespondBadRequest sends a 400 error response
func RespondBadRequest(c *gin.Context, message string) {
	RespondError(c, http.StatusBadRequest, message)
}

// downsampleSamples reduces latency samples to maxPoints using
// time-bucket averaging so charts stay light on long ranges
func downsampleSamples(data []models.LatencySample, maxPoints int) []models.LatencySample {
	if maxPoints <= 0 || len(data) <= maxPoints {
		return data
	}

	bucketSize := len(data) / maxPoints
	if bucketSize < 1 {
		bucketSize = 1
	}

	result := make([]models.LatencySample, 0, maxPoints)

	for i := 0; i < len(data); i += bucketSize {
		end := i + bucketSize
		if end > len(data) {
			end = len(data)
		}

		bucket := data[i:end]
		if len(bucket) == 0 {
			continue
		}

		var sum int64
		for _, s := range bucket {
			sum += s.LatencyMs
		}

		result = append(result, models.LatencySample{
			Timestamp: bucket[len(bucket)/2].Timestamp, // Use middle point timestamp
			LatencyMs: sum / int64(len(bucket)),
		})
	}

	return result
}

// parseLimit reads an optional numeric limit query parameter
func parseLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
