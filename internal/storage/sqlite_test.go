package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jiin/lookout/internal/models"
)

func tempLog(t *testing.T) *SQLiteAlertLog {
	t.Helper()
	log, err := NewSQLiteAlertLog(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteAlertLog() error = %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func fired(target, group, newStatus string, at time.Time) *models.AlertRecord {
	return &models.AlertRecord{
		TargetName: target,
		Group:      group,
		OldStatus:  models.StatusOperational,
		NewStatus:  newStatus,
		Severity:   models.SeverityForStatus(newStatus),
		Message:    "status changed",
		FiredAt:    at,
		Channels:   "desktop",
	}
}

func TestSaveAssignsID(t *testing.T) {
	log := tempLog(t)

	a := fired("web", "prod", models.StatusDown, time.Now())
	if err := log.Save(a); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if a.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if a.Status != "" {
		// Save defaults status in the row, not in the struct
		t.Logf("status left as %q", a.Status)
	}
}

func TestResolve(t *testing.T) {
	log := tempLog(t)
	now := time.Now()

	if err := log.Save(fired("web", "prod", models.StatusDown, now)); err != nil {
		t.Fatal(err)
	}
	if err := log.Save(fired("db", "prod", models.StatusDown, now)); err != nil {
		t.Fatal(err)
	}

	if err := log.Resolve("web", now.Add(time.Minute)); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	active, err := log.ActiveByTarget()
	if err != nil {
		t.Fatalf("ActiveByTarget() error = %v", err)
	}
	if _, ok := active["web"]; ok {
		t.Error("web should be resolved")
	}
	if _, ok := active["db"]; !ok {
		t.Error("db should still be active")
	}
}

func TestActiveKeepsNewestPerTarget(t *testing.T) {
	log := tempLog(t)
	now := time.Now()

	log.Save(fired("web", "prod", models.StatusDegraded, now.Add(-time.Hour)))
	log.Save(fired("web", "prod", models.StatusDown, now))

	active, err := log.ActiveByTarget()
	if err != nil {
		t.Fatal(err)
	}
	if got := active["web"].NewStatus; got != models.StatusDown {
		t.Errorf("active status = %s, want down", got)
	}
}

func TestRecent(t *testing.T) {
	log := tempLog(t)
	now := time.Now()

	log.Save(fired("old", "", models.StatusDown, now.Add(-48*time.Hour)))
	log.Save(fired("a", "", models.StatusDown, now.Add(-2*time.Hour)))
	log.Save(fired("b", "", models.StatusDown, now.Add(-time.Hour)))

	alerts, err := log.Recent(now.Add(-24*time.Hour), now, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerts))
	}
	// Newest first
	if alerts[0].TargetName != "b" || alerts[1].TargetName != "a" {
		t.Errorf("unexpected order: %s, %s", alerts[0].TargetName, alerts[1].TargetName)
	}
}

func TestStats(t *testing.T) {
	log := tempLog(t)
	now := time.Now()

	log.Save(fired("web", "", models.StatusDown, now))
	log.Save(fired("web", "", models.StatusDegraded, now))
	log.Save(fired("db", "", models.StatusDown, now))
	log.Resolve("db", now.Add(time.Minute))

	stats, err := log.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalAlerts != 3 {
		t.Errorf("total = %d, want 3", stats.TotalAlerts)
	}
	if stats.ActiveAlerts != 2 || stats.ResolvedAlerts != 1 {
		t.Errorf("active/resolved = %d/%d, want 2/1", stats.ActiveAlerts, stats.ResolvedAlerts)
	}
	if stats.BySeverity[models.SeverityCritical] != 2 {
		t.Errorf("critical = %d, want 2", stats.BySeverity[models.SeverityCritical])
	}
	if stats.ByTarget["web"] != 2 {
		t.Errorf("web count = %d, want 2", stats.ByTarget["web"])
	}
}

func TestCleanup(t *testing.T) {
	log := tempLog(t)
	now := time.Now()

	log.Save(fired("old-resolved", "", models.StatusDown, now.Add(-72*time.Hour)))
	log.Resolve("old-resolved", now.Add(-71*time.Hour))
	log.Save(fired("old-active", "", models.StatusDown, now.Add(-72*time.Hour)))
	log.Save(fired("recent", "", models.StatusDown, now))

	removed, err := log.Cleanup(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	// Active alerts survive cleanup regardless of age
	active, _ := log.ActiveByTarget()
	if _, ok := active["old-active"]; !ok {
		t.Error("old active alert should survive cleanup")
	}
}
