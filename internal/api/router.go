package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jiin/lookout/internal/alerter"
	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/healer"
	"github.com/jiin/lookout/internal/monitor"
	"github.com/jiin/lookout/internal/storage"
	"github.com/jiin/lookout/internal/tracker"
)

const maxBodyBytes = 64 * 1024

// NewRouter builds the HTTP surface: REST endpoints for state, history,
// targets, alerts and maintenance, plus the websocket stream.
func NewRouter(cfgMgr *config.Manager, mon *monitor.Monitor, store *tracker.Store, alerts *alerter.Manager, heal *healer.Manager, alertLog storage.AlertLog, hub *Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	handler := NewHandler(cfgMgr, mon, store, alerts, heal, alertLog)

	limiter := NewRateLimiter(60, time.Second, 120)
	connLimiter := NewConnectionLimiter(4, 32)

	r.Use(SecurityHeadersMiddleware())
	r.Use(RateLimitMiddleware(limiter))
	r.Use(MaxBodySizeMiddleware(maxBodyBytes))

	api := r.Group("/api")
	{
		api.GET("/statuses", handler.GetStatuses)
		api.GET("/statuses/:name", handler.GetStatus)
		api.GET("/summary", handler.GetSummary)
		api.POST("/refresh", handler.RefreshAll)

		api.GET("/targets", handler.GetTargets)
		api.POST("/targets", handler.AddTarget)
		api.GET("/targets/:name", handler.GetTarget)
		api.PUT("/targets/:name", handler.UpdateTarget)
		api.DELETE("/targets/:name", handler.DeleteTarget)
		api.POST("/targets/:name/refresh", handler.RefreshTarget)
		api.GET("/targets/:name/events", handler.GetEvents)
		api.GET("/targets/:name/stats", handler.GetStats)
		api.GET("/targets/:name/latencies", handler.GetLatencies)
		api.GET("/targets/:name/changes", handler.GetStatusChanges)
		api.GET("/targets/:name/downtime", handler.GetDowntime)
		api.GET("/targets/:name/export", handler.ExportCSV)
		api.GET("/targets/:name/healing", handler.GetHealing)
		api.GET("/targets/:name/recommendations", handler.GetRecommendations)
		api.GET("/targets/:name/anomalies", handler.DetectAnomalies)
		api.GET("/targets/:name/compare", handler.ComparePeriods)
		api.GET("/targets/:name/report", handler.GenerateReport)

		api.GET("/events", handler.GetAllEvents)
		api.GET("/stats", handler.GetAllStats)
		api.GET("/export", handler.ExportJSON)

		api.GET("/alerts", handler.GetAlerts)
		api.GET("/alerts/recent", handler.GetRecentAlerts)
		api.GET("/alerts/stats", handler.GetAlertStats)
		api.GET("/alerts/channels", handler.GetChannels)
		api.POST("/alerts/test", handler.TestNotification)
		api.POST("/alerts/:name/ack", handler.AcknowledgeAlert)
		api.DELETE("/alerts/:name/ack", handler.UnacknowledgeAlert)

		api.GET("/maintenance", handler.GetMaintenance)
		api.POST("/maintenance", handler.SetMaintenance)
	}

	r.GET("/ws", handler.StreamHandler(hub, connLimiter))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
