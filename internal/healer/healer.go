package healer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/logger"
	"github.com/jiin/lookout/internal/models"
)

const restartTimeout = 60 * time.Second

// Outcome describes what the healer did about a failure.
type Outcome struct {
	Attempted bool   `json:"attempted"`
	Action    string `json:"action,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Err       error  `json:"-"`
}

// targetState is the per-target healing bookkeeping.
type targetState struct {
	attempts int
	failures []time.Time
	backoff  *backoff.Backoff
	nextTry  time.Time
}

// Manager attempts to restart failed local services, with exponential
// backoff and hard caps so a genuinely broken service is not restarted
// in a loop. It also boosts check cadence for dependents of a failed
// target.
type Manager struct {
	mu     sync.Mutex
	cfg    config.HealingConfig
	states map[string]*targetState

	inMaintenance func(time.Time) bool
	boost         func(name string, d time.Duration)
	verify        func(name string)
	runCommand    func(ctx context.Context, name string, args ...string) error
}

// NewManager creates a healing manager from the healing settings.
func NewManager(cfg config.HealingConfig) *Manager {
	return &Manager{
		cfg:    cfg,
		states: make(map[string]*targetState),
		runCommand: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// SetMaintenanceFunc wires the maintenance check.
func (m *Manager) SetMaintenanceFunc(f func(time.Time) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inMaintenance = f
}

// SetSchedulerHooks wires the scheduler callbacks: boost tightens a
// target's check cadence, verify queues an immediate re-check after a
// restart attempt.
func (m *Manager) SetSchedulerHooks(boost func(name string, d time.Duration), verify func(name string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boost = boost
	m.verify = verify
}

// UpdateConfig applies new healing settings.
func (m *Manager) UpdateConfig(cfg config.HealingConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// HandleFailure reacts to a target going down: it boosts dependents and,
// when the target is eligible, attempts a restart. The restart itself
// runs synchronously; callers usually invoke this from a goroutine.
func (m *Manager) HandleFailure(target models.Target) Outcome {
	m.boostDependents(target.Name)

	m.mu.Lock()
	now := time.Now()

	// Every handled failure counts toward the hourly cap, attempted
	// or not.
	state := m.state(target.Name)
	state.failures = append(state.failures, now)

	outcome := m.eligible(target, now)
	if !outcome.Attempted {
		m.mu.Unlock()
		if outcome.Reason != "" {
			logger.Debug("Healing skipped", "target", target.Name, "reason", outcome.Reason)
		}
		return outcome
	}

	state.attempts++
	state.nextTry = now.Add(state.backoff.Duration())
	attempt := state.attempts
	action := restartAction(target)
	verify := m.verify
	m.mu.Unlock()

	log := logger.WithTarget(target.Name)
	log.Info("Attempting restart", "action", action.describe(), "attempt", attempt)

	ctx, cancel := context.WithTimeout(context.Background(), restartTimeout)
	defer cancel()
	if err := action.run(ctx, m.runCommand); err != nil {
		log.Error("Restart failed", "error", err)
		outcome.Err = err
		outcome.Action = action.describe()
		return outcome
	}

	if verify != nil {
		verify(target.Name)
	}
	outcome.Action = action.describe()
	return outcome
}

// HandleRecovery resets the healing state once a target is healthy
// again.
func (m *Manager) HandleRecovery(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.states[name]; ok {
		state.attempts = 0
		state.nextTry = time.Time{}
		if state.backoff != nil {
			state.backoff.Reset()
		}
	}
}

// Attempts returns how many restarts have been tried for a target since
// its last recovery.
func (m *Manager) Attempts(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.states[name]; ok {
		return state.attempts
	}
	return 0
}

// eligible runs the healing gates in order. Callers hold m.mu.
func (m *Manager) eligible(target models.Target, now time.Time) Outcome {
	if !m.cfg.Enabled {
		return Outcome{Reason: "healing disabled"}
	}
	if !target.Healing.AutoRestartEnabled() {
		return Outcome{Reason: "auto-restart disabled for target"}
	}
	if m.inMaintenance != nil && m.inMaintenance(now) {
		return Outcome{Reason: "maintenance mode"}
	}
	if !restartAction(target).possible() {
		return Outcome{Reason: "no restart action for target"}
	}
	if !isLocal(target.Host) {
		return Outcome{Reason: "remote host"}
	}

	state := m.state(target.Name)
	if m.recentFailures(state, now) > m.cfg.GetMaxFailuresPerHour() {
		return Outcome{Reason: "too many failures this hour"}
	}
	if state.attempts >= m.cfg.GetMaxAttempts() {
		return Outcome{Reason: "attempt limit reached"}
	}
	if now.Before(state.nextTry) {
		return Outcome{Reason: fmt.Sprintf("backing off until %s", state.nextTry.Format(time.Kitchen))}
	}

	return Outcome{Attempted: true}
}

func (m *Manager) state(name string) *targetState {
	state, ok := m.states[name]
	if !ok {
		state = &targetState{
			backoff: &backoff.Backoff{
				Min:    m.cfg.GetBaseBackoff(),
				Max:    m.cfg.GetMaxBackoff(),
				Factor: 2,
			},
		}
		m.states[name] = state
	}
	return state
}

// recentFailures counts failures in the last hour, trimming older ones.
// Callers hold m.mu.
func (m *Manager) recentFailures(state *targetState, now time.Time) int {
	cutoff := now.Add(-time.Hour)
	kept := state.failures[:0]
	for _, ts := range state.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	state.failures = kept
	return len(kept)
}

// boostDependents tightens check cadence for every target that depends
// on the failed one.
func (m *Manager) boostDependents(failed string) {
	m.mu.Lock()
	boost := m.boost
	duration := m.cfg.GetBoostDuration()
	var dependents []string
	for dependent, deps := range m.cfg.Dependencies {
		for _, dep := range deps {
			if dep == failed {
				dependents = append(dependents, dependent)
				break
			}
		}
	}
	m.mu.Unlock()

	if boost == nil {
		return
	}
	for _, name := range dependents {
		logger.Info("Boosting dependent of failed target", "failed", failed, "dependent", name)
		boost(name, duration)
	}
}

// isLocal reports whether the host refers to this machine. Remote
// services cannot be restarted from here.
func isLocal(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// action is a concrete restart strategy for a target.
type action struct {
	command    string   // shell command, when configured
	containers []string // docker restart list
	service    string   // systemd unit
}

// restartAction picks the restart strategy: an explicit restart command
// wins, container targets restart their containers, anything else falls
// back to a systemd unit named after the target.
func restartAction(target models.Target) action {
	if target.Healing != nil && target.Healing.RestartCommand != "" {
		return action{command: target.Healing.RestartCommand}
	}
	if target.Kind == models.KindContainers && target.Containers != nil {
		return action{containers: target.Containers.Names}
	}
	if target.Kind == models.KindCustom {
		return action{}
	}
	return action{service: target.Name}
}

func (a action) possible() bool {
	return a.command != "" || len(a.containers) > 0 || a.service != ""
}

func (a action) describe() string {
	switch {
	case a.command != "":
		return "command: " + a.command
	case len(a.containers) > 0:
		return "docker restart " + strings.Join(a.containers, " ")
	case a.service != "":
		return "systemctl restart " + a.service
	default:
		return "none"
	}
}

func (a action) run(ctx context.Context, runCommand func(ctx context.Context, name string, args ...string) error) error {
	switch {
	case a.command != "":
		return runCommand(ctx, "sh", "-c", a.command)
	case len(a.containers) > 0:
		args := append([]string{"restart"}, a.containers...)
		return runCommand(ctx, "docker", args...)
	case a.service != "":
		return runCommand(ctx, "systemctl", "restart", a.service)
	default:
		return fmt.Errorf("no restart action")
	}
}
