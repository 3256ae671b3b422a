package alerter

import (
	"sync"
	"testing"
	"time"

	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/models"
)

// fakeChannel records everything sent through it.
type fakeChannel struct {
	mu   sync.Mutex
	name string
	sent []*Notification
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return true }
func (f *fakeChannel) Send(n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeChannel) notifications() []*Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Notification, len(f.sent))
	copy(out, f.sent)
	return out
}

func managerWithFake(cfg config.NotificationConfig) (*Manager, *fakeChannel) {
	m := NewManager(cfg, nil)
	fake := &fakeChannel{name: "fake"}
	m.mu.Lock()
	m.channels = []Channel{fake}
	m.mu.Unlock()
	return m, fake
}

func TestGroupedDelivery(t *testing.T) {
	cfg := enabledConfig()
	cfg.DebounceWindow = 20 * time.Millisecond
	m, fake := managerWithFake(cfg)

	m.ProcessStatusChange(transition("web", models.StatusOperational, models.StatusDown))
	m.ProcessStatusChange(transition("db", models.StatusOperational, models.StatusDown))
	m.ProcessStatusChange(transition("cache", models.StatusOperational, models.StatusDown))

	time.Sleep(100 * time.Millisecond)

	sent := fake.notifications()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want 1 grouped", len(sent))
	}
	n := sent[0]
	if len(n.Targets) != 3 {
		t.Errorf("targets = %d, want 3", len(n.Targets))
	}
	if !n.Sound {
		t.Error("failure notification should request sound")
	}
	if n.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", n.Severity)
	}
}

func TestFailuresAndRecoveriesSeparate(t *testing.T) {
	cfg := enabledConfig()
	cfg.DebounceWindow = 20 * time.Millisecond
	m, fake := managerWithFake(cfg)

	m.ProcessStatusChange(transition("web", models.StatusOperational, models.StatusDown))
	m.ProcessStatusChange(transition("db", models.StatusDown, models.StatusOperational))

	time.Sleep(100 * time.Millisecond)

	sent := fake.notifications()
	if len(sent) != 2 {
		t.Fatalf("notifications = %d, want 2 (failures and recoveries apart)", len(sent))
	}

	var sawFailure, sawRecovery bool
	for _, n := range sent {
		switch n.Severity {
		case models.SeverityCritical:
			sawFailure = true
			if !n.Sound {
				t.Error("failure should carry sound")
			}
		case models.SeverityInfo:
			sawRecovery = true
			if n.Sound {
				t.Error("recovery should not carry sound")
			}
		}
	}
	if !sawFailure || !sawRecovery {
		t.Errorf("expected both partitions, got %d notifications", len(sent))
	}
}

func TestSingleEventBodyUsesMessage(t *testing.T) {
	cfg := enabledConfig()
	m, fake := managerWithFake(cfg)

	event := transition("web", models.StatusOperational, models.StatusDown)
	event.Message = "Connection failed"
	m.ProcessStatusChange(event)
	m.Flush()

	sent := fake.notifications()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(sent))
	}
	if sent[0].Body != "web: Connection failed" {
		t.Errorf("body = %q", sent[0].Body)
	}
}

func TestDeliveryGateAcrossFlushes(t *testing.T) {
	cfg := enabledConfig()
	cfg.Cooldown = time.Nanosecond
	m, fake := managerWithFake(cfg)

	m.ProcessStatusChange(transition("web", models.StatusOperational, models.StatusDown))
	m.Flush()

	// Force the same (target, status) through the pipeline again
	m.mu.Lock()
	delete(m.lastMeaningful, "web")
	m.mu.Unlock()

	m.ProcessStatusChange(transition("web", models.StatusOperational, models.StatusDown))
	m.Flush()

	if got := len(fake.notifications()); got != 1 {
		t.Errorf("notifications = %d, want 1 (second blocked by delivery gate)", got)
	}
}

func TestAcknowledgePurgesPending(t *testing.T) {
	cfg := enabledConfig()
	cfg.DebounceWindow = time.Hour // keep events queued
	m, fake := managerWithFake(cfg)

	m.ProcessStatusChange(transition("web", models.StatusOperational, models.StatusDown))
	m.Acknowledge("web")
	m.Flush()

	if got := len(fake.notifications()); got != 0 {
		t.Errorf("notifications = %d, want 0 after ack", got)
	}
}

func TestView(t *testing.T) {
	cfg := enabledConfig()
	cfg.DebounceWindow = time.Hour
	m, _ := managerWithFake(cfg)

	m.ProcessStatusChange(transition("web", models.StatusOperational, models.StatusDown))
	m.Acknowledge("db")

	view := m.View()
	if len(view.Pending) != 1 {
		t.Errorf("pending = %d, want 1", len(view.Pending))
	}
	if len(view.Acknowledged) != 1 || view.Acknowledged[0].Name != "db" {
		t.Errorf("acknowledged = %+v", view.Acknowledged)
	}
	if len(view.InCooldown) != 1 || view.InCooldown[0] != "web" {
		t.Errorf("cooldown = %v", view.InCooldown)
	}
}

func TestSelfTest(t *testing.T) {
	m, fake := managerWithFake(enabledConfig())

	if err := m.Test(TestOptions{Message: "hello"}); err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	sent := fake.notifications()
	if len(sent) != 1 || sent[0].Body != "hello" {
		t.Fatalf("unexpected test notification: %+v", sent)
	}
	if sent[0].Severity != models.SeverityWarning {
		t.Errorf("default severity = %s, want warning", sent[0].Severity)
	}
}

func TestSelfTestChannelFilter(t *testing.T) {
	m, fake := managerWithFake(enabledConfig())

	if err := m.Test(TestOptions{Channels: []string{"other"}}); err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if got := len(fake.notifications()); got != 0 {
		t.Errorf("notifications = %d, want 0 for non-matching filter", got)
	}
}

func TestFormatTargetList(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{[]string{"a"}, "a"},
		{[]string{"a", "b", "c"}, "a, b, c"},
		{[]string{"a", "b", "c", "d", "e"}, "a, b, c +2 more"},
	}

	for _, tt := range tests {
		if got := FormatTargetList(tt.names); got != tt.want {
			t.Errorf("FormatTargetList(%v) = %q, want %q", tt.names, got, tt.want)
		}
	}
}

func TestFormatGroupTitle(t *testing.T) {
	if got := FormatGroupTitle(models.StatusDown, 1); got != EmojiCritical+" 1 service down" {
		t.Errorf("title = %q", got)
	}
	if got := FormatGroupTitle(models.StatusOperational, 2); got != EmojiResolved+" 2 services recovered" {
		t.Errorf("title = %q", got)
	}
}
