package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"garmin-activity-sync/internal/activity"
	"garmin-activity-sync/internal/database"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	dur := 3600.0
	dist := 10.0
	seed := []activity.Record{
		record(1, "Morning Run", activity.GroupRunning, time.Now().AddDate(0, 0, -1), &dur, &dist),
		record(2, "Old Run", activity.GroupRunning, time.Now().AddDate(0, 0, -90), &dur, &dist),
		record(3, "Evening Ride", activity.GroupCycling, time.Now().AddDate(0, 0, -2), &dur, &dist),
	}
	if _, err := db.InsertNew(seed); err != nil {
		t.Fatal(err)
	}

	return New(db, "localhost:0")
}

func record(id int64, name, group string, start time.Time, dur, dist *float64) activity.Record {
	return activity.Record{
		ActivityID:      id,
		ActivityName:    name,
		ActivityTypeRaw: "whatever",
		Group:           group,
		StartTime:       start,
		Day:             start.Format("2006-01-02"),
		Week:            activity.WeekStart(start).Format("2006-01-02"),
		Month:           start.Format("2006-01"),
		DurationSeconds: dur,
		DistanceKm:      dist,
	}
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestGetActivity(t *testing.T) {
	s := testServer(t)

	w := get(t, s, "/api/activities/1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var rec activity.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ActivityID != 1 || rec.ActivityName != "Morning Run" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestGetActivityNotFound(t *testing.T) {
	s := testServer(t)
	if w := get(t, s, "/api/activities/404404"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetActivityBadID(t *testing.T) {
	s := testServer(t)
	if w := get(t, s, "/api/activities/notanumber"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRecentActivities(t *testing.T) {
	s := testServer(t)

	w := get(t, s, "/api/activities/recent?group=running&days=30")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Group      string            `json:"group"`
		Days       int               `json:"days"`
		Activities []activity.Record `json:"activities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Days != 30 || resp.Group != "running" {
		t.Errorf("resp = %+v", resp)
	}
	// The 90-day-old run falls outside the window, the ride is cycling
	if len(resp.Activities) != 1 || resp.Activities[0].ActivityID != 1 {
		t.Errorf("activities = %+v", resp.Activities)
	}
}

func TestRecentActivitiesRequiresGroup(t *testing.T) {
	s := testServer(t)
	if w := get(t, s, "/api/activities/recent"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRecentActivitiesRejectsBadDays(t *testing.T) {
	s := testServer(t)
	if w := get(t, s, "/api/activities/recent?group=running&days=-5"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAggregates(t *testing.T) {
	s := testServer(t)

	w := get(t, s, "/api/aggregates?granularity=weekly&group=running")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Granularity string                  `json:"granularity"`
		Aggregates  []database.AggregateRow `json:"aggregates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Granularity != "weekly" {
		t.Errorf("granularity = %q", resp.Granularity)
	}
	if len(resp.Aggregates) == 0 {
		t.Fatal("no aggregate rows")
	}
	for _, row := range resp.Aggregates {
		if row.Group != "running" {
			t.Errorf("row for group %q leaked through filter", row.Group)
		}
	}
}

func TestAggregatesUnknownGranularity(t *testing.T) {
	s := testServer(t)
	if w := get(t, s, "/api/aggregates?granularity=hourly"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWeekDelta(t *testing.T) {
	s := testServer(t)

	w := get(t, s, "/api/weeks/delta?group=running")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var delta database.WeeklyDelta
	if err := json.Unmarshal(w.Body.Bytes(), &delta); err != nil {
		t.Fatal(err)
	}
	if delta.Week == "" {
		t.Error("empty week in delta")
	}
}

func TestWeekDeltaUnknownGroup(t *testing.T) {
	s := testServer(t)
	if w := get(t, s, "/api/weeks/delta?group=underwater_hockey"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q", resp["status"])
	}
}
