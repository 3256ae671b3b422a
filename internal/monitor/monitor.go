package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jiin/lookout/internal/alerter"
	"github.com/jiin/lookout/internal/checker"
	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/healer"
	"github.com/jiin/lookout/internal/logger"
	"github.com/jiin/lookout/internal/models"
	"github.com/jiin/lookout/internal/scheduler"
	"github.com/jiin/lookout/internal/tracker"
)

// Monitor is the controller: it consumes check results, records them,
// detects status transitions and drives the alerter and healer. It also
// keeps the latest per-target state for display surfaces.
type Monitor struct {
	sched  *scheduler.Manager
	store  *tracker.Store
	alerts *alerter.Manager
	heal   *healer.Manager

	mu        sync.RWMutex
	cfg       config.Config
	statuses  map[string]models.DisplayUpdate
	targets   map[string]models.Target
	online    bool
	onDisplay []func(models.DisplayUpdate)
	onSummary []func(models.Summary)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the controller around already-constructed components.
func New(sched *scheduler.Manager, store *tracker.Store, alerts *alerter.Manager, heal *healer.Manager) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		sched:    sched,
		store:    store,
		alerts:   alerts,
		heal:     heal,
		statuses: make(map[string]models.DisplayUpdate),
		targets:  make(map[string]models.Target),
		online:   true,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnDisplay registers a callback for per-target state updates.
func (m *Monitor) OnDisplay(f func(models.DisplayUpdate)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisplay = append(m.onDisplay, f)
}

// OnSummary registers a callback for periodic rollups.
func (m *Monitor) OnSummary(f func(models.Summary)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSummary = append(m.onSummary, f)
}

// ApplyConfig installs a new configuration across all components. Safe
// to call on hot reload.
func (m *Monitor) ApplyConfig(cfg *config.Config) {
	m.mu.Lock()
	m.cfg = *cfg
	known := make(map[string]bool, len(cfg.Targets))
	for _, t := range cfg.Targets {
		m.targets[t.Name] = t
		known[t.Name] = true
	}
	// Drop state for deleted targets
	for name := range m.targets {
		if !known[name] {
			delete(m.targets, name)
			delete(m.statuses, name)
			m.store.RemoveTarget(name)
		}
	}
	m.mu.Unlock()

	m.sched.UpdateFromConfig(cfg)
	m.alerts.UpdateConfig(cfg.Notifications)
	m.heal.UpdateConfig(cfg.Healing)
}

// Start launches the result, summary and connectivity loops and the
// first check round.
func (m *Monitor) Start() {
	m.wg.Add(3)
	go m.resultLoop()
	go m.summaryLoop()
	go m.connectivityLoop()

	m.sched.Start()
	m.sched.RunAll()
	logger.Info("Monitor started", "targets", m.sched.Count())
}

// Stop shuts everything down in order: no new checks, flush pending
// notifications, then flush history to disk.
func (m *Monitor) Stop() {
	m.cancel()
	m.sched.Stop()
	m.wg.Wait()
	m.alerts.Stop()
	if err := m.store.Close(); err != nil {
		logger.Error("Failed to flush status history", "error", err)
	}
	logger.Info("Monitor stopped")
}

func (m *Monitor) resultLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case res := <-m.sched.Results():
			m.handle(res)
		}
	}
}

func (m *Monitor) handle(res scheduler.Result) {
	name := res.Target.Name
	result := res.Result

	m.mu.RLock()
	slow := m.cfg.Notifications.SlowAlerts
	m.mu.RUnlock()

	// A healthy but slow response is reported as degraded
	if slow.Enabled && result.Healthy && !result.Degraded &&
		result.LatencyMs > slow.GetThresholdMs() {
		result.Degraded = true
		result.Message = fmt.Sprintf("Slow response (%dms)", result.LatencyMs)
	}

	prev := m.store.LastStatus(name)
	event := m.store.RecordResult(name, result)

	update := models.DisplayUpdate{
		TargetName: name,
		Status:     event.Status,
		LatencyMs:  result.LatencyMs,
		Message:    result.Message,
		Details:    result.Details,
		CheckedAt:  res.At,
	}
	m.setStatus(update)

	if event.Status == prev {
		return
	}

	logger.Info("Status changed", "target", name, "from", prev, "to", event.Status)

	m.alerts.ProcessStatusChange(models.NotificationEvent{
		TargetName: name,
		Group:      res.Target.Group,
		OldStatus:  prev,
		NewStatus:  event.Status,
		LatencyMs:  result.LatencyMs,
		Message:    result.Message,
		Timestamp:  res.At,
	})

	switch event.Status {
	case models.StatusDown:
		target := res.Target
		go func() {
			if outcome := m.heal.HandleFailure(target); outcome.Attempted {
				logger.Info("Healing attempted", "target", target.Name, "action", outcome.Action)
			}
		}()
	case models.StatusOperational:
		m.heal.HandleRecovery(name)
	}
}

func (m *Monitor) setStatus(update models.DisplayUpdate) {
	m.mu.Lock()
	m.statuses[update.TargetName] = update
	callbacks := m.onDisplay
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(update)
	}
}

// Refresh queues an immediate re-check of one target, surfacing the
// transient checking state while the probe runs.
func (m *Monitor) Refresh(name string) {
	m.mu.Lock()
	current, ok := m.statuses[name]
	m.mu.Unlock()
	if !ok {
		current = models.DisplayUpdate{TargetName: name}
	}

	current.Status = models.StatusChecking
	current.CheckedAt = time.Now()
	m.setStatus(current)

	m.sched.CheckNow(name)
}

// RefreshAll queues an immediate re-check of every target.
func (m *Monitor) RefreshAll() {
	m.sched.RunAll()
}

// Statuses returns the latest state for every known target.
func (m *Monitor) Statuses() []models.DisplayUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.DisplayUpdate, 0, len(m.statuses))
	for _, update := range m.statuses {
		out = append(out, update)
	}
	return out
}

// Status returns the latest state for one target.
func (m *Monitor) Status(name string) (models.DisplayUpdate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	update, ok := m.statuses[name]
	return update, ok
}

// Summary computes the current rollup.
func (m *Monitor) Summary() models.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := models.Summary{Online: m.online}
	for _, update := range m.statuses {
		summary.Total++
		switch update.Status {
		case models.StatusOperational:
			summary.Operational++
		case models.StatusDegraded:
			summary.Degraded++
		case models.StatusDown:
			summary.Down++
		}
	}
	return summary
}

// Online reports the last known internet reachability.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// ActiveAlerts returns the targets currently down or degraded, for the
// alert management view.
func (m *Monitor) ActiveAlerts() []models.DisplayUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []models.DisplayUpdate
	for _, update := range m.statuses {
		if update.Status == models.StatusDown || update.Status == models.StatusDegraded {
			active = append(active, update)
		}
	}
	return active
}

// AlertsView combines live target state with the alerter's suppression
// state.
func (m *Monitor) AlertsView() models.AlertsView {
	view := m.alerts.View()
	view.Active = m.ActiveAlerts()
	return view
}

func (m *Monitor) summaryLoop() {
	defer m.wg.Done()

	m.mu.RLock()
	interval := m.cfg.Monitoring.GetSummaryInterval()
	m.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.emitSummary()
		}
	}
}

func (m *Monitor) emitSummary() {
	summary := m.Summary()

	m.mu.RLock()
	callbacks := m.onSummary
	m.mu.RUnlock()
	for _, cb := range callbacks {
		cb(summary)
	}
}

func (m *Monitor) connectivityLoop() {
	defer m.wg.Done()

	log := logger.WithComponent("connectivity")

	m.mu.RLock()
	interval := m.cfg.Monitoring.GetConnectivityInterval()
	m.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			online := checker.CheckInternet(m.ctx)

			m.mu.Lock()
			changed := online != m.online
			m.online = online
			m.mu.Unlock()

			if changed {
				if online {
					log.Info("Internet connectivity restored")
				} else {
					log.Warn("Internet connectivity lost")
				}
				m.emitSummary()
			}
		}
	}
}
