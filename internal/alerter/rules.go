package alerter

import (
	"time"

	"github.com/jiin/lookout/internal/models"
)

// Decision is the outcome of running a status change through the
// suppression rules.
type Decision int

const (
	// Accepted means the change will be buffered for delivery.
	Accepted Decision = iota

	// SkipSameStatus means the status did not actually change.
	SkipSameStatus

	// SkipChecking means the transition involves the transient
	// checking state and carries no information.
	SkipChecking

	// SkipNoChange means the target already notified this status.
	SkipNoChange

	// SuppressMaintenance means a maintenance window is active.
	SuppressMaintenance

	// SuppressAcked means the target's alerts were acknowledged.
	SuppressAcked

	// SuppressFlapping means the target changed status too often to
	// be worth notifying about.
	SuppressFlapping

	// SuppressCooldown means the target notified too recently.
	SuppressCooldown

	// Disabled means notifications are turned off entirely.
	Disabled
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case SkipSameStatus:
		return "same_status"
	case SkipChecking:
		return "checking"
	case SkipNoChange:
		return "no_change"
	case SuppressMaintenance:
		return "maintenance"
	case SuppressAcked:
		return "acknowledged"
	case SuppressFlapping:
		return "flapping"
	case SuppressCooldown:
		return "cooldown"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// evaluate runs the suppression pipeline in order. Callers hold m.mu.
// The change history is recorded here even for suppressed events so
// flap detection sees every transition.
func (m *Manager) evaluate(event *models.NotificationEvent, now time.Time) Decision {
	if event.NewStatus == event.OldStatus {
		return SkipSameStatus
	}
	if event.NewStatus == models.StatusChecking || event.OldStatus == models.StatusChecking {
		return SkipChecking
	}
	if m.lastMeaningful[event.TargetName] == event.NewStatus {
		return SkipNoChange
	}

	m.recordChange(event.TargetName, now)

	if m.inMaintenance != nil && m.inMaintenance(now) {
		return SuppressMaintenance
	}
	if m.isAcked(event.TargetName, now) {
		return SuppressAcked
	}
	if m.isFlapping(event.TargetName, now) {
		return SuppressFlapping
	}
	if last, ok := m.lastAccepted[event.TargetName]; ok && now.Sub(last) < m.cfg.GetCooldown() {
		return SuppressCooldown
	}

	return Accepted
}

// recordChange appends a transition timestamp and trims entries outside
// the flap window. Callers hold m.mu.
func (m *Manager) recordChange(name string, now time.Time) {
	cutoff := now.Add(-m.cfg.GetFlapWindow())
	history := m.history[name]

	kept := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	m.history[name] = append(kept, now)
}

// isFlapping reports whether the target changed status more often than
// the threshold inside the flap window. Callers hold m.mu.
func (m *Manager) isFlapping(name string, now time.Time) bool {
	cutoff := now.Add(-m.cfg.GetFlapWindow())
	count := 0
	for _, ts := range m.history[name] {
		if ts.After(cutoff) {
			count++
		}
	}
	return count > m.cfg.GetFlapThreshold()
}

// isAcked reports whether the target has a live acknowledgement,
// purging expired ones. Callers hold m.mu.
func (m *Manager) isAcked(name string, now time.Time) bool {
	at, ok := m.acks[name]
	if !ok {
		return false
	}
	if now.Sub(at) > m.cfg.GetAckTTL() {
		delete(m.acks, name)
		return false
	}
	return true
}

// shouldSend is the final per-notification gate: one notification per
// (target, status) per minimum gap, regardless of how the event got
// through the pipeline. Callers hold m.mu.
func (m *Manager) shouldSend(target, status string, now time.Time) bool {
	key := target + "|" + status
	if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.cfg.GetMinGap() {
		return false
	}
	m.lastSent[key] = now
	return true
}
