package scheduler

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/jiin/lookout/internal/checker"
	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/logger"
	"github.com/jiin/lookout/internal/models"
)

const (
	// Adaptive interval tuning. Stable targets get checked less often,
	// recovering targets more often.
	stretchFactor = 1.2
	shrinkFactor  = 0.8
	stableStreak  = 10

	// resultBuffer bounds the results channel so a stalled consumer
	// cannot block check workers forever.
	resultBuffer = 256
)

// Result pairs a finished check with its target.
type Result struct {
	Target models.Target
	Result *models.CheckResult
	At     time.Time
}

// targetEntry holds the scheduling state for one target.
type targetEntry struct {
	target   models.Target
	checker  checker.Checker
	entryID  cron.EntryID
	interval time.Duration // current effective interval, adaptively tuned
	streak   int           // consecutive successful checks
	boostEnd time.Time     // interval is halved until this instant
}

// Manager schedules health checks for all configured targets. Each
// target gets a cron entry at its own cadence; check work runs on a
// bounded worker pool.
type Manager struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*targetEntry
	pool    *pool.Pool
	cache   *resultCache
	results chan Result

	monitoring config.MonitoringConfig

	snapshotMu   sync.Mutex
	snapshot     map[string]bool
	snapshotAt   time.Time
	snapshotFunc checker.SnapshotFunc

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a scheduler from the monitoring settings.
func NewManager(monitoring config.MonitoringConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		cron:         cron.New(),
		entries:      make(map[string]*targetEntry),
		pool:         pool.New().WithMaxGoroutines(monitoring.GetMaxWorkers()),
		cache:        newResultCache(monitoring.GetCacheTTL()),
		results:      make(chan Result, resultBuffer),
		monitoring:   monitoring,
		snapshotFunc: checker.DockerPS,
		ctx:          ctx,
		cancel:       cancel,
	}

	go m.sweepLoop()
	return m
}

// Results returns the channel on which finished checks are delivered.
func (m *Manager) Results() <-chan Result {
	return m.results
}

// Start begins running scheduled checks.
func (m *Manager) Start() {
	m.cron.Start()
}

// Stop cancels in-flight checks and stops the cron entries.
func (m *Manager) Stop() {
	m.cancel()
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.pool.Wait()
}

// UpdateFromConfig reconciles scheduled targets with the configuration,
// stopping removed targets, starting new ones and restarting changed
// ones.
func (m *Manager) UpdateFromConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.monitoring = cfg.Monitoring

	desired := make(map[string]models.Target, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if t.IsEnabled() {
			desired[t.Name] = t
		}
	}

	for name, entry := range m.entries {
		if _, exists := desired[name]; !exists {
			logger.Info("Stopping checks", "target", name)
			m.cron.Remove(entry.entryID)
			delete(m.entries, name)
			m.cache.invalidate(name)
		}
	}

	for name, target := range desired {
		existing, exists := m.entries[name]
		if exists && reflect.DeepEqual(existing.target, target) {
			continue
		}
		if exists {
			logger.Info("Restarting checks (config changed)", "target", name)
			m.cron.Remove(existing.entryID)
			delete(m.entries, name)
		} else {
			logger.Info("Starting checks", "target", name, "type", target.Kind)
		}
		if err := m.schedule(target); err != nil {
			logger.Error("Failed to schedule target", "target", name, "error", err)
		}
	}

	logger.Info("Scheduler updated", "targets", len(m.entries))
}

// schedule registers a cron entry for the target. Callers hold m.mu.
func (m *Manager) schedule(target models.Target) error {
	c, err := checker.New(target, checker.Options{
		Timeout:  m.monitoring.GetDefaultTimeout(),
		Snapshot: m.dockerSnapshot,
	})
	if err != nil {
		return err
	}

	interval := target.Interval
	if interval <= 0 {
		interval = m.monitoring.GetDefaultInterval()
	}

	entry := &targetEntry{
		target:   target,
		checker:  c,
		interval: interval,
	}

	name := target.Name
	id, err := m.cron.AddFunc(cronSpec(interval), func() {
		m.submit(name)
	})
	if err != nil {
		return err
	}
	entry.entryID = id
	m.entries[name] = entry
	return nil
}

func cronSpec(interval time.Duration) string {
	return fmt.Sprintf("@every %s", interval)
}

// submit queues a check for the named target on the worker pool.
func (m *Manager) submit(name string) {
	m.pool.Go(func() {
		m.runCheck(name, false)
	})
}

// CheckNow runs an immediate check for the target, bypassing the result
// cache. Used by refresh actions and the healer's verification step.
func (m *Manager) CheckNow(name string) {
	m.pool.Go(func() {
		m.runCheck(name, true)
	})
}

// RunAll queues one check for every scheduled target. Called at
// startup so the first statuses appear before the first cron tick.
func (m *Manager) RunAll() {
	m.mu.Lock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.submit(name)
	}
}

func (m *Manager) runCheck(name string, force bool) {
	m.mu.Lock()
	entry, ok := m.entries[name]
	m.mu.Unlock()
	if !ok {
		return
	}

	if !force {
		if cached, ok := m.cache.get(name); ok {
			logger.Debug("Using cached result", "target", name)
			m.deliver(entry.target, cached)
			return
		}
	}

	result := m.safeCheck(entry.checker)
	m.cache.put(name, result)
	m.tune(name, result)
	m.deliver(entry.target, result)
}

// safeCheck runs a probe and converts a panic into a failing result so
// one broken checker cannot take the scheduler down.
func (m *Manager) safeCheck(c checker.Checker) (result *models.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Check panicked", "target", c.Name(), "panic", r)
			result = &models.CheckResult{
				Healthy: false,
				Message: fmt.Sprintf("Check failed: %v", r),
			}
		}
	}()
	return c.Check(m.ctx)
}

func (m *Manager) deliver(target models.Target, result *models.CheckResult) {
	select {
	case m.results <- Result{Target: target, Result: result, At: time.Now()}:
	default:
		logger.Warn("Result channel full, dropping result", "target", target.Name)
	}
}

// tune adjusts the target's check interval based on its success streak.
// Long-stable targets are checked less often; a failure tightens the
// cadence again.
func (m *Manager) tune(name string, result *models.CheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[name]
	if !ok || !m.monitoring.AdaptiveEnabled() {
		return
	}

	old := entry.interval
	if result.Healthy && !result.Degraded {
		entry.streak++
		if entry.streak > stableStreak {
			entry.interval = min(time.Duration(float64(entry.interval)*stretchFactor), m.monitoring.GetMaxInterval())
		}
	} else {
		entry.streak = 0
		entry.interval = max(time.Duration(float64(entry.interval)*shrinkFactor), m.monitoring.GetMinInterval())
	}

	if entry.interval != old {
		logger.Debug("Adjusted check interval", "target", name, "from", old, "to", entry.interval)
		m.reschedule(entry)
	}
}

// Boost temporarily halves the target's check interval, used when a
// dependency fails and its dependents need closer watching.
func (m *Manager) Boost(name string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[name]
	if !ok {
		return
	}
	entry.boostEnd = time.Now().Add(duration)
	logger.Info("Boosting check cadence", "target", name, "for", duration)
	m.reschedule(entry)

	time.AfterFunc(duration, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if e, ok := m.entries[name]; ok && !time.Now().Before(e.boostEnd) {
			m.reschedule(e)
		}
	})
}

// reschedule replaces the target's cron entry with its current
// effective interval. Callers hold m.mu.
func (m *Manager) reschedule(entry *targetEntry) {
	interval := entry.interval
	if time.Now().Before(entry.boostEnd) {
		interval = max(interval/2, time.Second)
	}

	m.cron.Remove(entry.entryID)
	name := entry.target.Name
	id, err := m.cron.AddFunc(cronSpec(interval), func() {
		m.submit(name)
	})
	if err != nil {
		logger.Error("Failed to reschedule target", "target", name, "error", err)
		return
	}
	entry.entryID = id
}

// Interval returns the target's current effective interval.
func (m *Manager) Interval(name string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[name]
	if !ok {
		return 0, false
	}
	return entry.interval, true
}

// Count returns the number of scheduled targets.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// dockerSnapshot returns a container snapshot, reusing the previous one
// while it is fresh so one check round issues a single docker call.
func (m *Manager) dockerSnapshot(ctx context.Context) (map[string]bool, error) {
	// monitoring is written by UpdateFromConfig under m.mu
	m.mu.Lock()
	ttl := m.monitoring.GetCacheTTL()
	m.mu.Unlock()

	m.snapshotMu.Lock()
	defer m.snapshotMu.Unlock()

	if m.snapshot != nil && time.Since(m.snapshotAt) < ttl {
		return m.snapshot, nil
	}

	snapshot, err := m.snapshotFunc(ctx)
	if err != nil {
		return nil, err
	}
	m.snapshot = snapshot
	m.snapshotAt = time.Now()
	return snapshot, nil
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cache.sweep()
		}
	}
}
