package retention

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jiin/lookout/internal/config"
	"github.com/jiin/lookout/internal/models"
	"github.com/jiin/lookout/internal/tracker"
)

func TestRunCleanupRemovesOldEvents(t *testing.T) {
	store := tracker.NewStore(filepath.Join(t.TempDir(), "status.json"))

	old := float64(time.Now().Add(-48 * time.Hour).Unix())
	store.Record(models.StatusEvent{Timestamp: old, TargetName: "web", Status: "operational"})
	store.RecordResult("web", &models.CheckResult{Healthy: true, LatencyMs: 50})

	cfg := &config.RetentionConfig{MaxAge: "24h"}
	m := NewManager(store, nil, cfg)
	m.runCleanup()

	events := store.EventsFor("web", 0)
	if len(events) != 1 {
		t.Fatalf("expected 1 event after cleanup, got %d", len(events))
	}
	if events[0].Timestamp == old {
		t.Error("expected the stale event to be removed")
	}
}

func TestStartStop(t *testing.T) {
	store := tracker.NewStore(filepath.Join(t.TempDir(), "status.json"))

	m := NewManager(store, nil, &config.RetentionConfig{MaxAge: "24h"})
	m.Start(time.Hour)
	m.Stop()

	// Stop before Start is a no-op
	n := NewManager(store, nil, &config.RetentionConfig{MaxAge: "24h"})
	n.Stop()
}
