package healer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/models"
)

// commandRecorder captures restart commands instead of running them.
type commandRecorder struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (r *commandRecorder) run(ctx context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, name+" "+strings.Join(args, " "))
	return r.err
}

func (r *commandRecorder) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.runs))
	copy(out, r.runs)
	return out
}

func testManager(cfg config.HealingConfig) (*Manager, *commandRecorder) {
	rec := &commandRecorder{}
	m := NewManager(cfg)
	m.runCommand = rec.run
	return m, rec
}

func enabledFast() config.HealingConfig {
	return config.HealingConfig{
		Enabled:     true,
		BaseBackoff: time.Nanosecond,
		MaxBackoff:  time.Nanosecond,
	}
}

func localService(name string) models.Target {
	return models.Target{
		Name: name,
		Host: "localhost",
		Kind: models.KindTCP,
		TCP:  &models.TCPParams{Port: 5432},
	}
}

func TestHealingDisabled(t *testing.T) {
	m, rec := testManager(config.HealingConfig{Enabled: false})

	outcome := m.HandleFailure(localService("db"))
	if outcome.Attempted {
		t.Error("expected no attempt when healing disabled")
	}
	if len(rec.commands()) != 0 {
		t.Errorf("commands = %v, want none", rec.commands())
	}
}

func TestRemoteHostNotRestarted(t *testing.T) {
	m, _ := testManager(enabledFast())

	target := localService("db")
	target.Host = "10.0.0.5"
	outcome := m.HandleFailure(target)

	if outcome.Attempted {
		t.Error("remote host should never be restarted")
	}
	if outcome.Reason != "remote host" {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestAutoRestartOverride(t *testing.T) {
	m, _ := testManager(enabledFast())

	off := false
	target := localService("db")
	target.Healing = &models.HealingOverrides{AutoRestart: &off}

	if outcome := m.HandleFailure(target); outcome.Attempted {
		t.Error("per-target auto_restart=false should block healing")
	}
}

func TestRestartCommand(t *testing.T) {
	m, rec := testManager(enabledFast())

	target := localService("db")
	target.Healing = &models.HealingOverrides{RestartCommand: "service postgres restart"}

	outcome := m.HandleFailure(target)
	if !outcome.Attempted || outcome.Err != nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	cmds := rec.commands()
	if len(cmds) != 1 || cmds[0] != "sh -c service postgres restart" {
		t.Errorf("commands = %v", cmds)
	}
}

func TestContainerRestart(t *testing.T) {
	m, rec := testManager(enabledFast())

	target := models.Target{
		Name:       "stack",
		Kind:       models.KindContainers,
		Containers: &models.ContainerParams{Names: []string{"web", "db"}},
	}

	if outcome := m.HandleFailure(target); !outcome.Attempted {
		t.Fatalf("outcome = %+v", outcome)
	}
	cmds := rec.commands()
	if len(cmds) != 1 || cmds[0] != "docker restart web db" {
		t.Errorf("commands = %v", cmds)
	}
}

func TestSystemdFallback(t *testing.T) {
	m, rec := testManager(enabledFast())

	if outcome := m.HandleFailure(localService("nginx")); !outcome.Attempted {
		t.Fatalf("outcome = %+v", outcome)
	}
	cmds := rec.commands()
	if len(cmds) != 1 || cmds[0] != "systemctl restart nginx" {
		t.Errorf("commands = %v", cmds)
	}
}

func TestCustomWithoutCommandNotRestartable(t *testing.T) {
	m, _ := testManager(enabledFast())

	target := models.Target{
		Name:   "backup",
		Kind:   models.KindCustom,
		Custom: &models.CustomParams{Command: "check-backup.sh"},
	}
	outcome := m.HandleFailure(target)
	if outcome.Attempted {
		t.Error("custom target without restart command should not be restarted")
	}
}

func TestAttemptLimit(t *testing.T) {
	cfg := enabledFast()
	cfg.MaxAttempts = 2
	cfg.MaxFailuresPerHour = 100
	m, _ := testManager(cfg)

	target := localService("db")
	for i := 0; i < 2; i++ {
		if outcome := m.HandleFailure(target); !outcome.Attempted {
			t.Fatalf("attempt %d blocked: %+v", i+1, outcome)
		}
	}

	outcome := m.HandleFailure(target)
	if outcome.Attempted {
		t.Error("expected attempt limit to block third restart")
	}
	if outcome.Reason != "attempt limit reached" {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestRecoveryResetsAttempts(t *testing.T) {
	cfg := enabledFast()
	cfg.MaxAttempts = 1
	m, _ := testManager(cfg)

	target := localService("db")
	m.HandleFailure(target)
	if outcome := m.HandleFailure(target); outcome.Attempted {
		t.Fatal("second attempt should be blocked")
	}

	m.HandleRecovery("db")
	if got := m.Attempts("db"); got != 0 {
		t.Errorf("attempts after recovery = %d, want 0", got)
	}
	if outcome := m.HandleFailure(target); !outcome.Attempted {
		t.Errorf("expected attempt after recovery, got %+v", outcome)
	}
}

func TestFailureRateCap(t *testing.T) {
	cfg := enabledFast()
	cfg.MaxAttempts = 100
	cfg.MaxFailuresPerHour = 2
	m, _ := testManager(cfg)

	target := localService("db")
	m.HandleFailure(target)
	m.HandleFailure(target)

	outcome := m.HandleFailure(target)
	if outcome.Attempted {
		t.Error("expected hourly failure cap to block restart")
	}
	if outcome.Reason != "too many failures this hour" {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestFailureCapSurvivesRecovery(t *testing.T) {
	cfg := enabledFast()
	cfg.MaxAttempts = 1
	cfg.MaxFailuresPerHour = 3
	m, _ := testManager(cfg)

	target := localService("db")
	if outcome := m.HandleFailure(target); !outcome.Attempted {
		t.Fatalf("first attempt blocked: %+v", outcome)
	}

	// Blocked by the attempt limit but still counted as failures
	m.HandleFailure(target)
	m.HandleFailure(target)

	m.HandleRecovery("db")

	outcome := m.HandleFailure(target)
	if outcome.Attempted {
		t.Error("expected hourly failure cap to outlive the recovery reset")
	}
	if outcome.Reason != "too many failures this hour" {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestBackoffGate(t *testing.T) {
	cfg := config.HealingConfig{Enabled: true, BaseBackoff: time.Hour, MaxBackoff: time.Hour}
	m, _ := testManager(cfg)

	target := localService("db")
	if outcome := m.HandleFailure(target); !outcome.Attempted {
		t.Fatalf("first attempt blocked: %+v", outcome)
	}
	outcome := m.HandleFailure(target)
	if outcome.Attempted {
		t.Error("second attempt inside backoff window should be blocked")
	}
	if !strings.HasPrefix(outcome.Reason, "backing off") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestMaintenanceBlocksHealing(t *testing.T) {
	m, _ := testManager(enabledFast())
	m.SetMaintenanceFunc(func(time.Time) bool { return true })

	if outcome := m.HandleFailure(localService("db")); outcome.Attempted {
		t.Error("maintenance mode should block healing")
	}
}

func TestDependentsBoosted(t *testing.T) {
	cfg := enabledFast()
	cfg.Dependencies = map[string][]string{
		"web": {"db"},
		"api": {"db", "cache"},
	}
	m, _ := testManager(cfg)

	var mu sync.Mutex
	boosted := make(map[string]time.Duration)
	m.SetSchedulerHooks(func(name string, d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		boosted[name] = d
	}, nil)

	m.HandleFailure(localService("db"))

	mu.Lock()
	defer mu.Unlock()
	if len(boosted) != 2 {
		t.Fatalf("boosted = %v, want web and api", boosted)
	}
	if boosted["web"] != 10*time.Minute {
		t.Errorf("boost duration = %v, want 10m", boosted["web"])
	}
}

func TestVerifyHookAfterRestart(t *testing.T) {
	m, _ := testManager(enabledFast())

	var verified []string
	m.SetSchedulerHooks(nil, func(name string) {
		verified = append(verified, name)
	})

	m.HandleFailure(localService("db"))
	if len(verified) != 1 || verified[0] != "db" {
		t.Errorf("verified = %v", verified)
	}
}
