package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"garmin-activity-sync/internal/activity"
	"garmin-activity-sync/internal/config"
	"garmin-activity-sync/internal/database"
	"garmin-activity-sync/internal/garmin"
	"garmin-activity-sync/internal/periods"
)

// fakeFetcher serves canned summaries and counts vendor calls
type fakeFetcher struct {
	summaries []activity.RawActivitySummary
	fetchErr  error

	listCalls   int
	detailCalls int
	exportCalls int
}

func (f *fakeFetcher) FetchActivities(ctx context.Context, start, end time.Time) ([]activity.RawActivitySummary, error) {
	f.listCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.summaries, nil
}

func (f *fakeFetcher) FetchDetail(ctx context.Context, activityID int64) ([]byte, error) {
	f.detailCalls++
	return []byte(fmt.Sprintf(`{"activityId": %d}`, activityID)), nil
}

func (f *fakeFetcher) FetchExport(ctx context.Context, activityID int64, format garmin.ExportFormat) ([]byte, error) {
	f.exportCalls++
	return []byte("export"), nil
}

func summary(id int64, name, rawType, startLocal string) activity.RawActivitySummary {
	return activity.RawActivitySummary{
		ActivityID:      id,
		ActivityName:    name,
		ActivityTypeRaw: rawType,
		StartTimeLocal:  startLocal,
		Fields: map[string]any{
			"duration": 3600.0,
			"distance": 10000.0,
		},
	}
}

func testSetup(t *testing.T, fetcher Fetcher, fetchExports bool) (*Extractor, *database.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	calendar, err := periods.FromConfig(config.Calendar{
		Seasons: []config.Season{{Start: "2023-01-01", End: "2023-12-31"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	dataDir := filepath.Join(dir, "data")
	return New(db, fetcher, calendar, dataDir, fetchExports), db, dataDir
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRunIngestsOneWeek(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "Morning Run", "running", "2023-06-12 07:00:00"),
		summary(2, "Evening Ride", "cycling", "2023-06-14 18:00:00"),
	}}
	ext, db, _ := testSetup(t, fetcher, false)

	if err := ext.Run(context.Background(), date("2023-06-12"), date("2023-06-18"), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	count, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if fetcher.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", fetcher.listCalls)
	}
	if fetcher.detailCalls != 2 {
		t.Errorf("detailCalls = %d, want 2", fetcher.detailCalls)
	}
	if fetcher.exportCalls != 0 {
		t.Errorf("exportCalls = %d, want 0 with exports disabled", fetcher.exportCalls)
	}

	rec, err := db.Get(1)
	if err != nil || rec == nil {
		t.Fatalf("Get(1) = %v, %v", rec, err)
	}
	if rec.Group != activity.GroupRunning {
		t.Errorf("Group = %q, want running", rec.Group)
	}
	if rec.OffSeason {
		t.Error("2023-06-12 should be in season")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "Morning Run", "running", "2023-06-12 07:00:00"),
	}}
	ext, db, _ := testSetup(t, fetcher, false)

	start, end := date("2023-06-12"), date("2023-06-18")
	if err := ext.Run(context.Background(), start, end, false); err != nil {
		t.Fatal(err)
	}
	if err := ext.Run(context.Background(), start, end, false); err != nil {
		t.Fatal(err)
	}

	count, _ := db.Count()
	if count != 1 {
		t.Errorf("count = %d after double run, want 1", count)
	}
	// The second run is served from the on-disk week cache
	if fetcher.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1 (cache hit expected)", fetcher.listCalls)
	}
}

func TestRunFiltersSpillover(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "In Window", "running", "2023-06-12 07:00:00"),
		summary(2, "Spillover", "running", "2023-06-11 07:00:00"), // Sunday before
	}}
	ext, db, _ := testSetup(t, fetcher, false)

	if err := ext.Run(context.Background(), date("2023-06-12"), date("2023-06-18"), false); err != nil {
		t.Fatal(err)
	}

	if rec, _ := db.Get(2); rec != nil {
		t.Error("spillover record was persisted")
	}
	if rec, _ := db.Get(1); rec == nil {
		t.Error("in-window record missing")
	}
}

func TestRunSkipsWeekOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{fetchErr: errors.New("boom")}
	ext, db, _ := testSetup(t, fetcher, false)

	// Fetch failures skip the week; the run itself succeeds
	if err := ext.Run(context.Background(), date("2023-06-12"), date("2023-06-25"), false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fetcher.listCalls != 2 {
		t.Errorf("listCalls = %d, want 2 (one per week)", fetcher.listCalls)
	}
	count, _ := db.Count()
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestRunSkipsExistingActivityDirs(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "Morning Run", "running", "2023-06-12 07:00:00"),
	}}
	ext, _, dataDir := testSetup(t, fetcher, false)

	// Pre-existing directory marks the activity's files as already fetched
	dir := activityDir(dataDir, date("2023-06-12"), 1)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := ext.Run(context.Background(), date("2023-06-12"), date("2023-06-18"), false); err != nil {
		t.Fatal(err)
	}
	if fetcher.detailCalls != 0 {
		t.Errorf("detailCalls = %d, want 0", fetcher.detailCalls)
	}
}

func TestRunFetchesExports(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "Morning Run", "running", "2023-06-12 07:00:00"),
	}}
	ext, _, dataDir := testSetup(t, fetcher, true)

	if err := ext.Run(context.Background(), date("2023-06-12"), date("2023-06-18"), false); err != nil {
		t.Fatal(err)
	}
	if fetcher.exportCalls != len(garmin.ExportFormats) {
		t.Errorf("exportCalls = %d, want %d", fetcher.exportCalls, len(garmin.ExportFormats))
	}

	dir := activityDir(dataDir, date("2023-06-12"), 1)
	for _, name := range []string{"activity_1.json", "activity_1.gpx", "activity_1.tcx", "activity_1.csv"} {
		if !exists(filepath.Join(dir, name)) {
			t.Errorf("missing %s", name)
		}
	}
}

func TestRunWritesAuditCSV(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "Morning Run", "running", "2023-06-12 07:00:00"),
	}}
	ext, _, dataDir := testSetup(t, fetcher, false)

	if err := ext.Run(context.Background(), date("2023-06-12"), date("2023-06-18"), false); err != nil {
		t.Fatal(err)
	}
	if !exists(processedPath(dataDir, date("2023-06-12"))) {
		t.Error("processed CSV not written")
	}
}

func TestRunReset(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "Morning Run", "running", "2023-06-12 07:00:00"),
	}}
	ext, db, _ := testSetup(t, fetcher, false)

	start, end := date("2023-06-12"), date("2023-06-18")
	if err := ext.Run(context.Background(), start, end, false); err != nil {
		t.Fatal(err)
	}

	// Reset drops the store first; the week cache then repopulates it
	if err := ext.Run(context.Background(), start, end, true); err != nil {
		t.Fatal(err)
	}
	count, _ := db.Count()
	if count != 1 {
		t.Errorf("count = %d after reset run, want 1", count)
	}
}

func TestRunPropagatesStoreFailure(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "Morning Run", "running", "2023-06-12 07:00:00"),
	}}
	ext, db, _ := testSetup(t, fetcher, false)

	db.Close()
	err := ext.Run(context.Background(), date("2023-06-12"), date("2023-06-18"), false)
	if err == nil {
		t.Fatal("expected error when the store is unavailable")
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	fetcher := &fakeFetcher{}
	ext, _, _ := testSetup(t, fetcher, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ext.Run(ctx, date("2023-06-12"), date("2023-06-18"), false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if fetcher.listCalls != 0 {
		t.Errorf("listCalls = %d, want 0", fetcher.listCalls)
	}
}

func TestRunAlignsStartToMonday(t *testing.T) {
	fetcher := &fakeFetcher{summaries: []activity.RawActivitySummary{
		summary(1, "Morning Run", "running", "2023-06-12 07:00:00"),
	}}
	ext, db, _ := testSetup(t, fetcher, false)

	// Thursday start must still cover the whole Monday-anchored week
	if err := ext.Run(context.Background(), date("2023-06-15"), date("2023-06-18"), false); err != nil {
		t.Fatal(err)
	}
	count, _ := db.Count()
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDedupe(t *testing.T) {
	raws := []activity.RawActivitySummary{
		summary(1, "a", "running", "2023-06-12 07:00:00"),
		summary(2, "b", "running", "2023-06-13 07:00:00"),
		summary(1, "a again", "running", "2023-06-12 07:00:00"),
	}
	out := dedupe(raws)
	if len(out) != 2 {
		t.Fatalf("got %d, want 2", len(out))
	}
	if out[0].ActivityName != "a" {
		t.Errorf("first occurrence should win, got %q", out[0].ActivityName)
	}
}
