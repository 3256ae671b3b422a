package retention

import (
	"context"
	"time"

	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/logger"
	"github.com/jiin/lookout/internal/storage"
	"github.com/jiin/lookout/internal/tracker"
)

// Manager handles automatic cleanup of old status history and resolved
// alerts.
type Manager struct {
	store    *tracker.Store
	alertLog storage.AlertLog
	maxAge   time.Duration
	cancel   context.CancelFunc
}

// NewManager creates a new retention manager. alertLog may be nil.
func NewManager(store *tracker.Store, alertLog storage.AlertLog, cfg *config.RetentionConfig) *Manager {
	return &Manager{
		store:    store,
		alertLog: alertLog,
		maxAge:   cfg.GetMaxAge(),
	}
}

// Start begins the background cleanup routine
func (m *Manager) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Run cleanup immediately on start
		m.runCleanup()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runCleanup()
			}
		}
	}()

	logger.Info("Retention manager started", "max_age", m.maxAge, "interval", interval)
}

func (m *Manager) runCleanup() {
	if removed := m.store.Cleanup(m.maxAge); removed > 0 {
		logger.Info("Retention cleanup: removed status events", "count", removed)
	}

	if m.alertLog != nil {
		olderThan := time.Now().Add(-m.maxAge)
		deleted, err := m.alertLog.Cleanup(olderThan)
		if err != nil {
			logger.Error("Retention cleanup of alert log failed", "error", err)
			return
		}
		if deleted > 0 {
			logger.Info("Retention cleanup: removed resolved alerts", "count", deleted)
		}
	}
}

// Stop stops the background cleanup routine
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}
