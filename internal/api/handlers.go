package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jiin/lookout/internal/alerter"
	"github.com/jiin/lookout/internal/analyzer"
	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/healer"
	"github.com/jiin/lookout/internal/models"
	"github.com/jiin/lookout/internal/monitor"
	"github.com/jiin/lookout/internal/report"
	"github.com/jiin/lookout/internal/storage"
	"github.com/jiin/lookout/internal/tracker"
)

type Handler struct {
	cfgMgr   *config.Manager
	mon      *monitor.Monitor
	store    *tracker.Store
	alerts   *alerter.Manager
	heal     *healer.Manager
	alertLog storage.AlertLog
}

func NewHandler(cfgMgr *config.Manager, mon *monitor.Monitor, store *tracker.Store, alerts *alerter.Manager, heal *healer.Manager, alertLog storage.AlertLog) *Handler {
	return &Handler{
		cfgMgr:   cfgMgr,
		mon:      mon,
		store:    store,
		alerts:   alerts,
		heal:     heal,
		alertLog: alertLog,
	}
}

type StatusesResponse struct {
	Statuses []models.DisplayUpdate `json:"statuses"`
	Summary  models.Summary         `json:"summary"`
}

func (h *Handler) GetStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, StatusesResponse{
		Statuses: h.mon.Statuses(),
		Summary:  h.mon.Summary(),
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	name := c.Param("name")

	update, ok := h.mon.Status(name)
	if !ok {
		RespondNotFound(c, "no status recorded for target")
		return
	}
	c.JSON(http.StatusOK, update)
}

func (h *Handler) GetSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.mon.Summary())
}

func (h *Handler) RefreshAll(c *gin.Context) {
	h.mon.RefreshAll()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh queued"})
}

func (h *Handler) RefreshTarget(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.cfgMgr.GetTarget(name); err != nil {
		RespondNotFound(c, err.Error())
		return
	}

	h.mon.Refresh(name)
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh queued", "target": name})
}

func (h *Handler) GetTargets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"targets": h.cfgMgr.GetAllTargets()})
}

func (h *Handler) GetTarget(c *gin.Context) {
	name := c.Param("name")

	target, err := h.cfgMgr.GetTarget(name)
	if err != nil {
		RespondNotFound(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, target)
}

func (h *Handler) AddTarget(c *gin.Context) {
	var target models.Target
	if err := c.ShouldBindJSON(&target); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	if err := h.cfgMgr.AddTarget(target); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusCreated, target)
}

func (h *Handler) UpdateTarget(c *gin.Context) {
	name := c.Param("name")

	var target models.Target
	if err := c.ShouldBindJSON(&target); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	if err := h.cfgMgr.UpdateTarget(name, target); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, target)
}

func (h *Handler) DeleteTarget(c *gin.Context) {
	name := c.Param("name")

	if err := h.cfgMgr.DeleteTarget(name); err != nil {
		RespondNotFound(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "target": name})
}

func (h *Handler) GetEvents(c *gin.Context) {
	name := c.Param("name")
	limit := parseLimit(c, 100)

	c.JSON(http.StatusOK, gin.H{
		"target_name": name,
		"events":      h.store.EventsFor(name, limit),
	})
}

func (h *Handler) GetAllEvents(c *gin.Context) {
	limit := parseLimit(c, 100)
	c.JSON(http.StatusOK, gin.H{"events": h.store.Events(limit)})
}

func (h *Handler) GetStats(c *gin.Context) {
	name := c.Param("name")

	stats, ok := h.store.Stats(name)
	if !ok {
		RespondNotFound(c, "no stats recorded for target")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetAllStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stats": h.store.AllStats()})
}

func (h *Handler) GetLatencies(c *gin.Context) {
	name := c.Param("name")
	maxPoints := parseLimit(c, 500)
	tr := ParseTimeRangeFromContext(c, DefaultRangeLong)

	samples := downsampleSamples(h.store.Latencies(name, tr.To.Sub(tr.From)), maxPoints)
	c.JSON(http.StatusOK, gin.H{
		"target_name": name,
		"samples":     samples,
	})
}

func (h *Handler) GetStatusChanges(c *gin.Context) {
	name := c.Param("name")
	tr := ParseTimeRangeFromContext(c, DefaultRangeLong)

	c.JSON(http.StatusOK, gin.H{
		"target_name": name,
		"changes":     h.store.StatusChanges(name, tr.From),
	})
}

func (h *Handler) GetDowntime(c *gin.Context) {
	name := c.Param("name")
	tr := ParseTimeRangeFromContext(c, DefaultRangeLong)

	downtime := h.store.Downtime(name, tr.From)
	c.JSON(http.StatusOK, gin.H{
		"target_name":      name,
		"since":            tr.From,
		"downtime_seconds": downtime.Seconds(),
	})
}

// ExportJSON streams the full status history in the on-disk format.
func (h *Handler) ExportJSON(c *gin.Context) {
	data, err := h.store.ExportStats()
	if err != nil {
		RespondInternalError(c, err)
		return
	}

	filename := fmt.Sprintf("lookout_%s.json", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/json", data)
}

func (h *Handler) ExportCSV(c *gin.Context) {
	name := c.Param("name")
	limit := parseLimit(c, 1000)

	events := h.store.EventsFor(name, limit)

	filename := fmt.Sprintf("%s_%s.csv", name, time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"timestamp", "status", "response_time_ms", "message"})
	for _, e := range events {
		writer.Write([]string{
			e.Time().Format(time.RFC3339),
			e.Status,
			fmt.Sprintf("%d", e.LatencyMs),
			e.Message,
		})
	}
}

func (h *Handler) GetAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.mon.AlertsView())
}

func (h *Handler) GetRecentAlerts(c *gin.Context) {
	tr := ParseTimeRangeFromContext(c, DefaultRangeLong)
	limit := parseLimit(c, 100)

	alerts, err := h.alertLog.Recent(tr.From, tr.To, limit)
	if err != nil {
		RespondInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) GetAlertStats(c *gin.Context) {
	stats, err := h.alertLog.Stats()
	if err != nil {
		RespondInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.alerts.EnabledChannels()})
}

func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	name := c.Param("name")
	h.alerts.Acknowledge(name)
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged", "target": name})
}

func (h *Handler) UnacknowledgeAlert(c *gin.Context) {
	name := c.Param("name")
	h.alerts.Unacknowledge(name)
	c.JSON(http.StatusOK, gin.H{"status": "unacknowledged", "target": name})
}

func (h *Handler) TestNotification(c *gin.Context) {
	var opts alerter.TestOptions
	if err := c.ShouldBindJSON(&opts); err != nil && c.Request.ContentLength > 0 {
		RespondBadRequest(c, err.Error())
		return
	}

	if err := h.alerts.Test(opts); err != nil {
		RespondInternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

type MaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) SetMaintenance(c *gin.Context) {
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	h.cfgMgr.SetMaintenanceMode(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"maintenance": req.Enabled})
}

func (h *Handler) GetMaintenance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"maintenance": h.cfgMgr.InMaintenance(time.Now()),
	})
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	name := c.Param("name")

	target, err := h.cfgMgr.GetTarget(name)
	if err != nil {
		RespondNotFound(c, err.Error())
		return
	}

	stats, _ := h.store.Stats(name)
	events := h.store.EventsFor(name, 0)
	if len(events) == 0 {
		RespondNotFound(c, "no data available for analysis")
		return
	}

	result := analyzer.Analyze(*target, stats, events, h.store.Latencies(name, 0))
	c.JSON(http.StatusOK, result)
}

func (h *Handler) DetectAnomalies(c *gin.Context) {
	name := c.Param("name")

	samples := h.store.Latencies(name, 0)
	if len(samples) == 0 {
		RespondNotFound(c, "no data available for analysis")
		return
	}

	c.JSON(http.StatusOK, analyzer.DetectAnomalies(name, samples))
}

func (h *Handler) ComparePeriods(c *gin.Context) {
	name := c.Param("name")
	period := c.DefaultQuery("period", "day") // "day" or "week"

	var duration time.Duration
	switch period {
	case "week":
		duration = 7 * 24 * time.Hour
	default:
		duration = 24 * time.Hour
		period = "day"
	}

	now := time.Now()
	current, previous := splitEventsByPeriod(h.store.EventsFor(name, 0), now, duration)

	if len(current) == 0 && len(previous) == 0 {
		RespondNotFound(c, "no data available for comparison")
		return
	}

	c.JSON(http.StatusOK, analyzer.ComparePeriods(name, current, previous, period))
}

func splitEventsByPeriod(events []models.StatusEvent, now time.Time, duration time.Duration) (current, previous []models.StatusEvent) {
	currentFrom := now.Add(-duration)
	previousFrom := currentFrom.Add(-duration)

	for _, e := range events {
		t := e.Time()
		switch {
		case t.After(currentFrom):
			current = append(current, e)
		case t.After(previousFrom):
			previous = append(previous, e)
		}
	}
	return current, previous
}

func (h *Handler) GenerateReport(c *gin.Context) {
	name := c.Param("name")
	rangeParam := c.DefaultQuery("range", "24h")
	tr := ParseTimeRange(rangeParam, DefaultRangeLong)

	target, err := h.cfgMgr.GetTarget(name)
	if err != nil {
		RespondNotFound(c, err.Error())
		return
	}

	events := h.store.EventsFor(name, 0)
	if len(events) == 0 {
		RespondNotFound(c, "no data available for report")
		return
	}

	stats, _ := h.store.Stats(name)
	samples := h.store.Latencies(name, 0)
	downtime := h.store.Downtime(name, tr.From)

	recs := analyzer.Analyze(*target, stats, events, samples)
	anomalies := analyzer.DetectAnomalies(name, samples)
	current, previous := splitEventsByPeriod(events, time.Now(), 24*time.Hour)
	comparison := analyzer.ComparePeriods(name, current, previous, "day")

	reportData := report.BuildReportData(name, rangeParam, stats, events, downtime, recs, anomalies, comparison)

	htmlBytes, err := report.GenerateHTMLReport(reportData)
	if err != nil {
		RespondInternalError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", htmlBytes)
}

func (h *Handler) GetHealing(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.cfgMgr.GetTarget(name); err != nil {
		RespondNotFound(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"target_name": name,
		"attempts":    h.heal.Attempts(name),
	})
}
