package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jiin/lookout/internal/logger"
	"github.com/jiin/lookout/internal/models"
)

const (
	// maxEvents bounds the in-memory event history.
	maxEvents = 1000

	// maxSamples bounds per-target latency history.
	maxSamples = 100

	// saveEvery controls how often the store is flushed to disk,
	// counted in recorded events.
	saveEvery = 10
)

// persistedState is the on-disk shape of the store.
type persistedState struct {
	Events        []models.StatusEvent              `json:"events"`
	UptimeStats   map[string]*models.UptimeStats    `json:"uptime_stats"`
	ResponseTimes map[string][]models.LatencySample `json:"response_times"`
}

// Store keeps status history, per-target uptime statistics and latency
// samples, persisted to a JSON file. All methods are safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	path    string
	maxAge  time.Duration
	events  []models.StatusEvent
	stats   map[string]*models.UptimeStats
	samples map[string][]models.LatencySample
	unsaved int
	saveWG  sync.WaitGroup
}

// NewStore opens the store at path, loading any previous state. A
// missing or corrupt file starts the store empty rather than failing.
func NewStore(path string) *Store {
	s := &Store{
		path:    path,
		maxAge:  30 * 24 * time.Hour,
		stats:   make(map[string]*models.UptimeStats),
		samples: make(map[string][]models.LatencySample),
	}
	s.load()
	return s
}

// SetMaxEventAge sets the retention age applied before every save.
func (s *Store) SetMaxEventAge(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxAge > 0 {
		s.maxAge = maxAge
	}
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read status file, starting fresh", "path", s.path, "error", err)
		}
		return
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("Corrupt status file, starting fresh", "path", s.path, "error", err)
		return
	}

	s.events = state.Events
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	if state.UptimeStats != nil {
		s.stats = state.UptimeStats
	}
	if state.ResponseTimes != nil {
		s.samples = state.ResponseTimes
		for name, samples := range s.samples {
			if len(samples) > maxSamples {
				s.samples[name] = samples[len(samples)-maxSamples:]
			}
		}
	}

	logger.Info("Status history loaded", "path", s.path, "events", len(s.events), "targets", len(s.stats))
}

// Record appends a status event and updates the target's running
// statistics. Every tenth event triggers an asynchronous save.
func (s *Store) Record(event models.StatusEvent) {
	s.mu.Lock()

	s.events = append(s.events, event)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}

	st := s.stats[event.TargetName]
	if st == nil {
		st = &models.UptimeStats{TargetName: event.TargetName}
		s.stats[event.TargetName] = st
	}

	st.TotalChecks++
	st.LastCheck = event.Timestamp
	st.LastStatus = event.Status

	if event.Status == models.StatusOperational {
		st.SuccessfulChecks++
		if event.LatencyMs > 0 {
			// Running mean over operational checks only
			n := float64(st.SuccessfulChecks)
			st.AverageLatencyMs = (st.AverageLatencyMs*(n-1) + float64(event.LatencyMs)) / n
		}
	} else {
		// Degraded counts against uptime
		st.FailedChecks++
	}

	if event.LatencyMs > 0 {
		samples := append(s.samples[event.TargetName], models.LatencySample{
			Timestamp: event.Timestamp,
			LatencyMs: event.LatencyMs,
		})
		if len(samples) > maxSamples {
			samples = samples[len(samples)-maxSamples:]
		}
		s.samples[event.TargetName] = samples
	}

	if st.TotalChecks > 0 {
		st.UptimePercentage = float64(st.SuccessfulChecks) / float64(st.TotalChecks) * 100
	}

	s.unsaved++
	flush := s.unsaved >= saveEvery
	if flush {
		s.unsaved = 0
	}
	s.mu.Unlock()

	if flush {
		s.saveWG.Add(1)
		go func() {
			defer s.saveWG.Done()
			if err := s.Save(); err != nil {
				logger.Error("Failed to save status history", "error", err)
			}
		}()
	}
}

// RecordResult converts a check result into a status event and records
// it, returning the event.
func (s *Store) RecordResult(name string, r *models.CheckResult) models.StatusEvent {
	event := models.StatusEvent{
		Timestamp:  float64(time.Now().UnixNano()) / float64(time.Second),
		TargetName: name,
		Status:     models.StatusFromResult(r),
		LatencyMs:  r.LatencyMs,
		Message:    r.Message,
	}
	s.Record(event)
	return event
}

// LastStatus returns the most recent recorded status for a target, or
// unknown when the target has never been checked.
func (s *Store) LastStatus(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stats[name]; ok {
		return st.LastStatus
	}
	return models.StatusUnknown
}

// Events returns up to limit most recent events, newest first. A
// non-positive limit returns everything.
func (s *Store) Events(limit int) []models.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return reverseEvents(events)
}

// EventsFor returns up to limit most recent events for one target,
// newest first.
func (s *Store) EventsFor(name string, limit int) []models.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.StatusEvent
	for _, e := range s.events {
		if e.TargetName == name {
			matched = append(matched, e)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return reverseEvents(matched)
}

// reverseEvents copies a chronological slice into newest-first order.
func reverseEvents(events []models.StatusEvent) []models.StatusEvent {
	out := make([]models.StatusEvent, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}

// Stats returns a copy of the uptime statistics for one target.
func (s *Store) Stats(name string) (models.UptimeStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[name]
	if !ok {
		return models.UptimeStats{}, false
	}
	return *st, true
}

// AllStats returns a copy of uptime statistics for every known target.
func (s *Store) AllStats() map[string]models.UptimeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.UptimeStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}

// Latencies returns the latency samples for one target inside the
// trailing window, oldest first. A non-positive window returns every
// retained sample.
func (s *Store) Latencies(name string, window time.Duration) []models.LatencySample {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := s.samples[name]
	if window > 0 {
		cutoff := float64(time.Now().Add(-window).UnixNano()) / float64(time.Second)
		for len(samples) > 0 && samples[0].Timestamp < cutoff {
			samples = samples[1:]
		}
	}
	out := make([]models.LatencySample, len(samples))
	copy(out, samples)
	return out
}

// StatusChanges returns the events inside the window at which the
// target's status differed from its previous status. The first event
// of the window always counts as the initial transition point.
func (s *Store) StatusChanges(name string, since time.Time) []models.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := float64(since.UnixNano()) / float64(time.Second)
	var changes []models.StatusEvent
	prev := ""
	for _, e := range s.events {
		if e.TargetName != name || e.Timestamp < cutoff {
			continue
		}
		if prev == "" || e.Status != prev {
			changes = append(changes, e)
		}
		prev = e.Status
	}
	return changes
}

// Downtime sums the time the target spent down or degraded since the
// given time, counting a still-open outage up to now. Only a return to
// operational closes an interval.
func (s *Store) Downtime(name string, since time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := float64(since.UnixNano()) / float64(time.Second)
	var total float64
	var downSince float64 = -1

	for _, e := range s.events {
		if e.TargetName != name || e.Timestamp < cutoff {
			continue
		}
		if e.Status == models.StatusDown || e.Status == models.StatusDegraded {
			if downSince < 0 {
				downSince = e.Timestamp
			}
		} else if e.Status == models.StatusOperational && downSince >= 0 {
			total += e.Timestamp - downSince
			downSince = -1
		}
	}

	if downSince >= 0 {
		now := float64(time.Now().UnixNano()) / float64(time.Second)
		total += now - downSince
	}

	return time.Duration(total * float64(time.Second))
}

// Cleanup drops events and latency samples older than maxAge and
// returns the number of events removed. Statistics are running
// aggregates and are left untouched.
func (s *Store) Cleanup(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(maxAge)
}

// cleanupLocked drops aged events and samples. Callers hold s.mu.
func (s *Store) cleanupLocked(maxAge time.Duration) int {
	cutoff := float64(time.Now().Add(-maxAge).UnixNano()) / float64(time.Second)

	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if e.Timestamp >= cutoff {
			kept = append(kept, e)
		} else {
			removed++
		}
	}
	s.events = kept

	for name, samples := range s.samples {
		trimmed := samples[:0]
		for _, sm := range samples {
			if sm.Timestamp >= cutoff {
				trimmed = append(trimmed, sm)
			}
		}
		if len(trimmed) == 0 {
			delete(s.samples, name)
		} else {
			s.samples[name] = trimmed
		}
	}

	return removed
}

// RemoveTarget drops all history for a target, used when a target is
// deleted from the configuration.
func (s *Store) RemoveTarget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	for _, e := range s.events {
		if e.TargetName != name {
			kept = append(kept, e)
		}
	}
	s.events = kept
	delete(s.stats, name)
	delete(s.samples, name)
}

// Save writes the current state to disk, dropping events past the
// retention age first. The snapshot is taken under the lock but file
// IO happens outside it.
func (s *Store) Save() error {
	s.mu.Lock()
	s.cleanupLocked(s.maxAge)
	state := persistedState{
		Events:        make([]models.StatusEvent, len(s.events)),
		UptimeStats:   make(map[string]*models.UptimeStats, len(s.stats)),
		ResponseTimes: make(map[string][]models.LatencySample, len(s.samples)),
	}
	copy(state.Events, s.events)
	for name, st := range s.stats {
		c := *st
		state.UptimeStats[name] = &c
	}
	for name, samples := range s.samples {
		c := make([]models.LatencySample, len(samples))
		copy(c, samples)
		state.ResponseTimes[name] = c
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Close flushes pending async saves and writes a final snapshot.
func (s *Store) Close() error {
	s.saveWG.Wait()
	return s.Save()
}

// ExportStats renders the uptime statistics as indented JSON for the
// export endpoint.
func (s *Store) ExportStats() ([]byte, error) {
	stats := s.AllStats()
	return json.MarshalIndent(stats, "", "  ")
}
