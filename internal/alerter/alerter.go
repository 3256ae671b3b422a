package alerter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/logger"
	"github.com/jiin/lookout/internal/models"
	"github.com/jiin/lookout/internal/storage"
)

// pendingGroup buffers accepted events for one (group, status) pair
// until the debounce window closes.
type pendingGroup struct {
	group  models.AlertGroup
	events []models.NotificationEvent
}

// Manager turns status transitions into notifications. Transitions run
// through a suppression pipeline, survivors are buffered briefly so
// that related failures arrive as one grouped notification.
type Manager struct {
	mu       sync.Mutex
	cfg      config.NotificationConfig
	channels []Channel
	alertLog storage.AlertLog

	// inMaintenance is consulted before anything is buffered.
	inMaintenance func(time.Time) bool

	history        map[string][]time.Time // status change timestamps per target
	lastMeaningful map[string]string      // last accepted status per target
	lastAccepted   map[string]time.Time   // per-target cooldown clock
	lastSent       map[string]time.Time   // (target|status) delivery gate
	acks           map[string]time.Time
	pending        map[string]*pendingGroup
	flushTimer     *time.Timer
}

// NewManager creates a new notification manager. The alert log may be
// nil, in which case fired alerts are not persisted.
func NewManager(cfg config.NotificationConfig, alertLog storage.AlertLog) *Manager {
	m := &Manager{
		cfg:            cfg,
		alertLog:       alertLog,
		history:        make(map[string][]time.Time),
		lastMeaningful: make(map[string]string),
		lastAccepted:   make(map[string]time.Time),
		lastSent:       make(map[string]time.Time),
		acks:           make(map[string]time.Time),
		pending:        make(map[string]*pendingGroup),
	}
	m.initChannels(cfg)
	return m
}

// SetMaintenanceFunc wires the maintenance check, typically
// config.Manager.InMaintenance.
func (m *Manager) SetMaintenanceFunc(f func(time.Time) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inMaintenance = f
}

// initChannels initializes notification channels from config
func (m *Manager) initChannels(cfg config.NotificationConfig) {
	m.channels = make([]Channel, 0)

	if cfg.Channels.Desktop.Enabled {
		m.channels = append(m.channels, NewDesktopChannel(cfg.Channels.Desktop))
		logger.Info("Alerter: desktop channel enabled")
	}
	if cfg.Channels.Sound.Enabled {
		m.channels = append(m.channels, NewSoundChannel(cfg.Channels.Sound))
		logger.Info("Alerter: sound channel enabled")
	}
	if cfg.Channels.Email.Enabled {
		m.channels = append(m.channels, NewEmailChannel(cfg.Channels.Email))
		logger.Info("Alerter: email channel enabled")
	}
	for _, whCfg := range cfg.Channels.Webhooks {
		if whCfg.Enabled {
			ch := NewWebhookChannel(whCfg)
			m.channels = append(m.channels, ch)
			logger.Info("Alerter: webhook channel enabled", "name", ch.Name())
		}
	}
}

// UpdateConfig applies new notification settings and rebuilds channels.
func (m *Manager) UpdateConfig(cfg config.NotificationConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = cfg
	m.initChannels(cfg)
	logger.Info("Alerter: configuration updated", "channels", len(m.channels))
}

// ProcessStatusChange runs one transition through the suppression
// pipeline and, if accepted, buffers it for grouped delivery. The
// returned decision says what happened to the event.
func (m *Manager) ProcessStatusChange(event models.NotificationEvent) Decision {
	now := event.Timestamp
	if now.IsZero() {
		now = time.Now()
		event.Timestamp = now
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.Enabled {
		return Disabled
	}

	decision := m.evaluate(&event, now)
	if decision != Accepted {
		logger.Debug("Notification suppressed",
			"target", event.TargetName, "status", event.NewStatus, "reason", decision.String())
		return decision
	}

	m.lastMeaningful[event.TargetName] = event.NewStatus
	m.lastAccepted[event.TargetName] = now

	key := event.Group + "|" + event.NewStatus
	pg, ok := m.pending[key]
	if !ok {
		pg = &pendingGroup{
			group: models.AlertGroup{
				Group:      event.Group,
				Status:     event.NewStatus,
				FirstAlert: now,
			},
		}
		m.pending[key] = pg
	}
	pg.events = append(pg.events, event)
	pg.group.Targets = append(pg.group.Targets, event.TargetName)
	pg.group.LastUpdate = now

	// Each accepted event restarts the debounce window, so a cascade
	// of related failures is delivered as one batch.
	if m.flushTimer != nil {
		m.flushTimer.Stop()
	}
	m.flushTimer = time.AfterFunc(m.cfg.GetDebounceWindow(), m.Flush)

	return Accepted
}

// Flush delivers all buffered events immediately.
func (m *Manager) Flush() {
	m.mu.Lock()
	if m.flushTimer != nil {
		m.flushTimer.Stop()
		m.flushTimer = nil
	}
	pending := m.pending
	m.pending = make(map[string]*pendingGroup)

	now := time.Now()
	var failures, recoveries, degraded []models.NotificationEvent
	for _, pg := range pending {
		for _, event := range pg.events {
			if !m.shouldSend(event.TargetName, event.NewStatus, now) {
				continue
			}
			switch event.NewStatus {
			case models.StatusDown:
				failures = append(failures, event)
			case models.StatusOperational:
				recoveries = append(recoveries, event)
			case models.StatusDegraded:
				degraded = append(degraded, event)
			}
		}
	}
	channels := m.channels
	m.mu.Unlock()

	if len(failures) > 0 {
		n := buildNotification(models.StatusDown, failures, now)
		m.send(channels, n)
		m.logFired(failures)
	}
	if len(degraded) > 0 {
		n := buildNotification(models.StatusDegraded, degraded, now)
		m.send(channels, n)
		m.logFired(degraded)
	}
	if len(recoveries) > 0 {
		n := buildNotification(models.StatusOperational, recoveries, now)
		m.send(channels, n)
		m.logResolved(recoveries, now)
	}
}

func buildNotification(status string, events []models.NotificationEvent, now time.Time) *Notification {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.TargetName
	}

	body := FormatTargetList(names)
	if len(events) == 1 && events[0].Message != "" {
		body = fmt.Sprintf("%s: %s", events[0].TargetName, events[0].Message)
	}

	return &Notification{
		Title:    FormatGroupTitle(status, len(events)),
		Body:     body,
		Severity: models.SeverityForStatus(status),
		Sound:    status == models.StatusDown,
		Targets:  names,
		SentAt:   now,
	}
}

func (m *Manager) send(channels []Channel, n *Notification) {
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(n); err != nil {
			logger.Error("Failed to send notification", "channel", ch.Name(), "error", err)
		}
	}
	logger.Info("Notification sent", "title", n.Title, "targets", len(n.Targets))
}

// logFired persists one alert record per target in the batch.
func (m *Manager) logFired(events []models.NotificationEvent) {
	if m.alertLog == nil {
		return
	}
	channels := strings.Join(m.EnabledChannels(), ",")
	for _, e := range events {
		record := &models.AlertRecord{
			TargetName: e.TargetName,
			Group:      e.Group,
			OldStatus:  e.OldStatus,
			NewStatus:  e.NewStatus,
			Severity:   models.SeverityForStatus(e.NewStatus),
			Message:    e.Message,
			Status:     models.AlertStatusFired,
			FiredAt:    e.Timestamp,
			Channels:   channels,
		}
		if err := m.alertLog.Save(record); err != nil {
			logger.Error("Failed to log alert", "target", e.TargetName, "error", err)
		}
	}
}

func (m *Manager) logResolved(events []models.NotificationEvent, at time.Time) {
	if m.alertLog == nil {
		return
	}
	for _, e := range events {
		if err := m.alertLog.Resolve(e.TargetName, at); err != nil {
			logger.Error("Failed to resolve alert", "target", e.TargetName, "error", err)
		}
	}
}

// Acknowledge silences alerts for a target for the ack TTL and drops
// any of its queued events.
func (m *Manager) Acknowledge(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.acks[name] = time.Now()
	for key, pg := range m.pending {
		kept := pg.events[:0]
		var names []string
		for _, e := range pg.events {
			if e.TargetName != name {
				kept = append(kept, e)
				names = append(names, e.TargetName)
			}
		}
		if len(kept) == 0 {
			delete(m.pending, key)
			continue
		}
		pg.events = kept
		pg.group.Targets = names
	}
	logger.Info("Alerts acknowledged", "target", name)
}

// Unacknowledge re-enables alerts for a target.
func (m *Manager) Unacknowledge(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.acks, name)
}

// View reports the current suppression state: acknowledged targets,
// queued groups, flapping targets and targets in cooldown.
func (m *Manager) View() models.AlertsView {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	view := models.AlertsView{}

	for name, at := range m.acks {
		if now.Sub(at) > m.cfg.GetAckTTL() {
			delete(m.acks, name)
			continue
		}
		view.Acknowledged = append(view.Acknowledged, models.AcknowledgedAlert{
			Name:           name,
			AcknowledgedAt: at,
			MinutesAgo:     int(now.Sub(at).Minutes()),
		})
	}

	for _, pg := range m.pending {
		view.Pending = append(view.Pending, pg.group)
	}

	for name := range m.history {
		if m.isFlapping(name, now) {
			view.Flapping = append(view.Flapping, name)
		}
	}

	cooldown := m.cfg.GetCooldown()
	for name, last := range m.lastAccepted {
		if now.Sub(last) < cooldown {
			view.InCooldown = append(view.InCooldown, name)
		}
	}

	return view
}

// EnabledChannels returns the names of channels that would deliver.
func (m *Manager) EnabledChannels() []string {
	m.mu.Lock()
	channels := m.channels
	m.mu.Unlock()

	var names []string
	for _, ch := range channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// TestOptions controls a self-test notification.
type TestOptions struct {
	Severity string   `json:"severity"` // info, warning, critical
	Channels []string `json:"channels"` // specific channels to test, empty = all
	Message  string   `json:"message"`  // custom message
}

// Test sends a synthetic notification so channel configuration can be
// verified without waiting for an outage.
func (m *Manager) Test(opts TestOptions) error {
	severity := opts.Severity
	if severity == "" {
		severity = models.SeverityWarning
	}
	message := opts.Message
	if message == "" {
		message = "This is a test notification from Lookout"
	}

	n := &Notification{
		Title:    fmt.Sprintf("%s Test notification", GetEmoji(severity)),
		Body:     message,
		Severity: severity,
		Targets:  []string{"test-target"},
		SentAt:   time.Now(),
	}

	m.mu.Lock()
	channels := m.channels
	m.mu.Unlock()

	wanted := make(map[string]bool)
	for _, name := range opts.Channels {
		wanted[strings.ToLower(name)] = true
	}

	for _, ch := range channels {
		if len(wanted) > 0 && !wanted[strings.ToLower(ch.Name())] {
			continue
		}
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(n); err != nil {
			return fmt.Errorf("channel %s: %w", ch.Name(), err)
		}
	}
	return nil
}

// Stop flushes anything still buffered.
func (m *Manager) Stop() {
	m.Flush()
}
