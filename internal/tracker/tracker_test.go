package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jiin/lookout/internal/models"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "status.json"))
	// Wait out async saves before TempDir cleanup removes the directory.
	t.Cleanup(func() { s.saveWG.Wait() })
	return s
}

func eventAt(name, status string, ts time.Time, latency int64) models.StatusEvent {
	return models.StatusEvent{
		Timestamp:  float64(ts.UnixNano()) / float64(time.Second),
		TargetName: name,
		Status:     status,
		LatencyMs:  latency,
	}
}

func TestRecordUpdatesStats(t *testing.T) {
	s := tempStore(t)
	now := time.Now()

	s.Record(eventAt("web", models.StatusOperational, now, 100))
	s.Record(eventAt("web", models.StatusOperational, now, 200))
	s.Record(eventAt("web", models.StatusDown, now, 0))

	st, ok := s.Stats("web")
	if !ok {
		t.Fatal("expected stats for web")
	}
	if st.TotalChecks != 3 || st.SuccessfulChecks != 2 || st.FailedChecks != 1 {
		t.Errorf("counts = %d/%d/%d", st.TotalChecks, st.SuccessfulChecks, st.FailedChecks)
	}
	// Average latency covers successful checks only
	if st.AverageLatencyMs != 150 {
		t.Errorf("average latency = %v, want 150", st.AverageLatencyMs)
	}
	wantUptime := 2.0 / 3.0 * 100
	if diff := st.UptimePercentage - wantUptime; diff > 0.01 || diff < -0.01 {
		t.Errorf("uptime = %v, want %v", st.UptimePercentage, wantUptime)
	}
	if st.LastStatus != models.StatusDown {
		t.Errorf("last status = %s", st.LastStatus)
	}
}

func TestDegradedCountsAgainstUptime(t *testing.T) {
	s := tempStore(t)
	s.Record(eventAt("api", models.StatusDegraded, time.Now(), 500))

	st, _ := s.Stats("api")
	if st.SuccessfulChecks != 0 || st.FailedChecks != 1 {
		t.Errorf("degraded should count failed, got %d/%d", st.SuccessfulChecks, st.FailedChecks)
	}
	// Latency average tracks operational checks only
	if st.AverageLatencyMs != 0 {
		t.Errorf("average latency = %v, want 0", st.AverageLatencyMs)
	}
	// The response time itself is still recorded
	if got := len(s.Latencies("api", 0)); got != 1 {
		t.Errorf("samples = %d, want 1", got)
	}
}

func TestLatencySampleCap(t *testing.T) {
	s := tempStore(t)
	now := time.Now()
	for i := 0; i < maxSamples+20; i++ {
		s.Record(eventAt("web", models.StatusOperational, now.Add(time.Duration(i)*time.Second), int64(i)))
	}

	samples := s.Latencies("web", 0)
	if len(samples) != maxSamples {
		t.Errorf("samples = %d, want %d", len(samples), maxSamples)
	}
	// Oldest samples are dropped first
	if samples[0].LatencyMs != 20 {
		t.Errorf("first sample latency = %d, want 20", samples[0].LatencyMs)
	}
}

func TestEventCap(t *testing.T) {
	s := tempStore(t)
	now := time.Now()
	for i := 0; i < maxEvents+50; i++ {
		s.Record(eventAt(fmt.Sprintf("t%d", i%7), models.StatusOperational, now, 10))
	}
	if got := len(s.Events(0)); got != maxEvents {
		t.Errorf("events = %d, want %d", got, maxEvents)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewStore(path)
	now := time.Now()

	s.Record(eventAt("web", models.StatusOperational, now, 120))
	s.Record(eventAt("web", models.StatusDown, now.Add(time.Second), 0))
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reloaded := NewStore(path)
	if got := len(reloaded.Events(0)); got != 2 {
		t.Fatalf("reloaded events = %d, want 2", got)
	}
	st, ok := reloaded.Stats("web")
	if !ok {
		t.Fatal("expected stats after reload")
	}
	if st.TotalChecks != 2 || st.LastStatus != models.StatusDown {
		t.Errorf("reloaded stats = %+v", st)
	}
	if got := len(reloaded.Latencies("web", 0)); got != 1 {
		t.Errorf("reloaded samples = %d, want 1", got)
	}
}

func TestCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path)
	if got := len(s.Events(0)); got != 0 {
		t.Errorf("expected empty store, got %d events", got)
	}
}

func TestStatusChanges(t *testing.T) {
	s := tempStore(t)
	base := time.Now().Add(-time.Hour)

	statuses := []string{
		models.StatusOperational,
		models.StatusOperational,
		models.StatusDown,
		models.StatusDown,
		models.StatusOperational,
	}
	for i, status := range statuses {
		s.Record(eventAt("web", status, base.Add(time.Duration(i)*time.Minute), 10))
	}

	changes := s.StatusChanges("web", base.Add(-time.Minute))
	if len(changes) != 3 {
		t.Fatalf("changes = %d, want 3", len(changes))
	}
	// First event of the window anchors the sequence
	if changes[0].Status != models.StatusOperational ||
		changes[1].Status != models.StatusDown ||
		changes[2].Status != models.StatusOperational {
		t.Errorf("unexpected change sequence: %+v", changes)
	}
}

func TestStatusChangesWindowCutoff(t *testing.T) {
	s := tempStore(t)
	base := time.Now().Add(-time.Hour)

	s.Record(eventAt("web", models.StatusDown, base, 0))
	s.Record(eventAt("web", models.StatusDown, base.Add(30*time.Minute), 0))

	// Only the second event is inside the window, and it counts as
	// the initial transition point even with no change before it.
	changes := s.StatusChanges("web", base.Add(15*time.Minute))
	if len(changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(changes))
	}
	if changes[0].Timestamp != float64(base.Add(30*time.Minute).UnixNano())/float64(time.Second) {
		t.Errorf("unexpected anchor event: %+v", changes[0])
	}
}

func TestDowntime(t *testing.T) {
	s := tempStore(t)
	base := time.Now().Add(-time.Hour)

	s.Record(eventAt("web", models.StatusOperational, base, 10))
	s.Record(eventAt("web", models.StatusDown, base.Add(10*time.Minute), 0))
	s.Record(eventAt("web", models.StatusOperational, base.Add(25*time.Minute), 10))

	got := s.Downtime("web", base.Add(-time.Minute))
	if got != 15*time.Minute {
		t.Errorf("downtime = %v, want 15m", got)
	}
}

func TestDowntimeCountsDegraded(t *testing.T) {
	s := tempStore(t)
	base := time.Now().Add(-time.Hour)

	s.Record(eventAt("web", models.StatusOperational, base, 10))
	s.Record(eventAt("web", models.StatusDegraded, base.Add(time.Minute), 900))
	s.Record(eventAt("web", models.StatusOperational, base.Add(5*time.Minute), 10))

	got := s.Downtime("web", base.Add(-time.Minute))
	if got != 4*time.Minute {
		t.Errorf("downtime = %v, want 4m", got)
	}
}

func TestDowntimeDegradedKeepsIntervalOpen(t *testing.T) {
	s := tempStore(t)
	base := time.Now().Add(-time.Hour)

	// down -> degraded -> operational is one continuous outage
	s.Record(eventAt("web", models.StatusDown, base, 0))
	s.Record(eventAt("web", models.StatusDegraded, base.Add(2*time.Minute), 800))
	s.Record(eventAt("web", models.StatusOperational, base.Add(10*time.Minute), 10))

	got := s.Downtime("web", base.Add(-time.Minute))
	if got != 10*time.Minute {
		t.Errorf("downtime = %v, want 10m", got)
	}
}

func TestDowntimeOpenOutage(t *testing.T) {
	s := tempStore(t)
	base := time.Now().Add(-30 * time.Minute)

	s.Record(eventAt("web", models.StatusDown, base, 0))

	got := s.Downtime("web", base.Add(-time.Minute))
	if got < 29*time.Minute || got > 31*time.Minute {
		t.Errorf("open outage downtime = %v, want about 30m", got)
	}
}

func TestCleanup(t *testing.T) {
	s := tempStore(t)
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	s.Record(eventAt("web", models.StatusOperational, old, 10))
	s.Record(eventAt("web", models.StatusOperational, recent, 20))

	removed := s.Cleanup(24 * time.Hour)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if got := len(s.Events(0)); got != 1 {
		t.Errorf("remaining events = %d, want 1", got)
	}
	if got := len(s.Latencies("web", 0)); got != 1 {
		t.Errorf("remaining samples = %d, want 1", got)
	}
}

func TestEventsNewestFirst(t *testing.T) {
	s := tempStore(t)
	base := time.Now().Add(-time.Hour)

	s.Record(eventAt("web", models.StatusOperational, base, 10))
	s.Record(eventAt("db", models.StatusOperational, base.Add(time.Minute), 20))
	s.Record(eventAt("web", models.StatusDown, base.Add(2*time.Minute), 0))

	events := s.Events(0)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].Status != models.StatusDown || events[2].TargetName != "web" {
		t.Errorf("expected newest first, got %+v", events)
	}

	web := s.EventsFor("web", 1)
	if len(web) != 1 || web[0].Status != models.StatusDown {
		t.Errorf("expected the most recent web event, got %+v", web)
	}
}

func TestLatenciesWindow(t *testing.T) {
	s := tempStore(t)

	s.Record(eventAt("web", models.StatusOperational, time.Now().Add(-48*time.Hour), 30))
	s.Record(eventAt("web", models.StatusOperational, time.Now(), 40))

	all := s.Latencies("web", 0)
	if len(all) != 2 {
		t.Fatalf("all samples = %d, want 2", len(all))
	}
	recent := s.Latencies("web", 24*time.Hour)
	if len(recent) != 1 || recent[0].LatencyMs != 40 {
		t.Errorf("windowed samples = %+v, want the recent one", recent)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	s := tempStore(t)

	s.Record(eventAt("web", models.StatusOperational, time.Now().Add(-48*time.Hour), 10))
	s.Record(eventAt("web", models.StatusOperational, time.Now(), 20))

	if removed := s.Cleanup(24 * time.Hour); removed != 1 {
		t.Fatalf("first cleanup removed %d, want 1", removed)
	}
	first := s.Events(0)

	if removed := s.Cleanup(24 * time.Hour); removed != 0 {
		t.Errorf("second cleanup removed %d, want 0", removed)
	}
	second := s.Events(0)
	if len(first) != len(second) {
		t.Errorf("retained set changed: %d vs %d", len(first), len(second))
	}
}

func TestSaveAppliesRetention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewStore(path)
	s.SetMaxEventAge(24 * time.Hour)

	s.Record(eventAt("web", models.StatusOperational, time.Now().Add(-48*time.Hour), 10))
	s.Record(eventAt("web", models.StatusOperational, time.Now(), 20))
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reloaded := NewStore(path)
	if got := len(reloaded.Events(0)); got != 1 {
		t.Errorf("persisted events = %d, want 1 after retention", got)
	}
}

func TestRemoveTarget(t *testing.T) {
	s := tempStore(t)
	now := time.Now()

	s.Record(eventAt("web", models.StatusOperational, now, 10))
	s.Record(eventAt("db", models.StatusOperational, now, 10))

	s.RemoveTarget("web")

	if _, ok := s.Stats("web"); ok {
		t.Error("expected web stats removed")
	}
	if _, ok := s.Stats("db"); !ok {
		t.Error("db stats should survive")
	}
	for _, e := range s.Events(0) {
		if e.TargetName == "web" {
			t.Error("web events should be removed")
		}
	}
}

func TestLastStatus(t *testing.T) {
	s := tempStore(t)
	if got := s.LastStatus("nope"); got != models.StatusUnknown {
		t.Errorf("unknown target status = %s", got)
	}

	s.Record(eventAt("web", models.StatusDown, time.Now(), 0))
	if got := s.LastStatus("web"); got != models.StatusDown {
		t.Errorf("status = %s, want down", got)
	}
}
