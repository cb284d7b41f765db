package normalize

import (
	"errors"
	"testing"

	"garmin-activity-sync/internal/activity"
)

func TestNormalizeBasics(t *testing.T) {
	raw := activity.RawActivitySummary{
		ActivityID:      9001,
		ActivityName:    "Morning Run",
		ActivityTypeRaw: "running",
		StartTimeLocal:  "2023-06-14T07:30:00.0",
		Fields: map[string]any{
			"duration":  3661.0,
			"distance":  10500.0,
			"calories":  650.0,
			"averageHR": 152.0,
		},
	}

	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if rec.Day != "2023-06-14" {
		t.Errorf("Day = %q, want 2023-06-14", rec.Day)
	}
	// 2023-06-14 is a Wednesday; week anchors to the preceding Monday
	if rec.Week != "2023-06-12" {
		t.Errorf("Week = %q, want 2023-06-12", rec.Week)
	}
	if rec.Month != "2023-06" {
		t.Errorf("Month = %q, want 2023-06", rec.Month)
	}
	if rec.DistanceKm == nil || *rec.DistanceKm != 10.5 {
		t.Errorf("DistanceKm = %v, want 10.5", rec.DistanceKm)
	}
	if rec.DurationFormatted != "01:01:01" {
		t.Errorf("DurationFormatted = %q, want 01:01:01", rec.DurationFormatted)
	}
	if rec.Group != "" {
		t.Errorf("Group should be empty before classification, got %q", rec.Group)
	}
}

func TestNormalizeWeekBucketAllWeekdays(t *testing.T) {
	// Every day of the week 2024-03-04 (Mon) .. 2024-03-10 (Sun) must
	// bucket to the same Monday.
	days := []string{"04", "05", "06", "07", "08", "09", "10"}
	for _, d := range days {
		raw := activity.RawActivitySummary{
			ActivityID:     1,
			StartTimeLocal: "2024-03-" + d + " 10:00:00",
		}
		rec, err := Normalize(raw)
		if err != nil {
			t.Fatalf("day %s: %v", d, err)
		}
		if rec.Week != "2024-03-04" {
			t.Errorf("day %s: Week = %q, want 2024-03-04", d, rec.Week)
		}
	}
}

func TestNormalizeMissingStartTime(t *testing.T) {
	for _, ts := range []string{"", "   ", "not-a-date"} {
		_, err := Normalize(activity.RawActivitySummary{ActivityID: 1, StartTimeLocal: ts})
		if !errors.Is(err, ErrNoStartTime) {
			t.Errorf("StartTimeLocal=%q: err = %v, want ErrNoStartTime", ts, err)
		}
	}
}

func TestMetricCoercion(t *testing.T) {
	fields := map[string]any{
		"plain":   123.5,
		"comma":   "4,5",
		"dotted":  "4.5",
		"nodata":  "--",
		"empty":   "",
		"garbage": "abc",
		"integer": 7,
	}

	tests := []struct {
		key  string
		want *float64
	}{
		{"plain", f(123.5)},
		{"comma", f(4.5)},
		{"dotted", f(4.5)},
		{"nodata", nil},
		{"empty", nil},
		{"garbage", nil},
		{"integer", f(7)},
		{"absent", nil},
	}
	for _, tt := range tests {
		got := Metric(fields, tt.key)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("Metric(%q) = %v, want nil", tt.key, *got)
		case tt.want != nil && got == nil:
			t.Errorf("Metric(%q) = nil, want %v", tt.key, *tt.want)
		case tt.want != nil && *got != *tt.want:
			t.Errorf("Metric(%q) = %v, want %v", tt.key, *got, *tt.want)
		}
	}
}

func TestMetricNeverZeroFills(t *testing.T) {
	// The no-data sentinel must become missing, not 0
	rec, err := Normalize(activity.RawActivitySummary{
		ActivityID:     2,
		StartTimeLocal: "2023-01-02 08:00:00",
		Fields:         map[string]any{"calories": "--", "averageHR": ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Calories != nil {
		t.Errorf("Calories = %v, want nil", *rec.Calories)
	}
	if rec.AverageHR != nil {
		t.Errorf("AverageHR = %v, want nil", *rec.AverageHR)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{61, "00:01:01"},
		{3600, "01:00:00"},
		{3723.9, "01:02:03"},
		{36000, "10:00:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestNormalizeStringPassthrough(t *testing.T) {
	rec, err := Normalize(activity.RawActivitySummary{
		ActivityID:     3,
		StartTimeLocal: "2023-01-02 08:00:00",
		Fields: map[string]any{
			"trainingEffectLabel": "TEMPO",
			"locationName":        "Montréal",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.TrainingEffectLabel != "TEMPO" {
		t.Errorf("TrainingEffectLabel = %q", rec.TrainingEffectLabel)
	}
	if rec.LocationName != "Montréal" {
		t.Errorf("LocationName = %q", rec.LocationName)
	}
}

func f(v float64) *float64 { return &v }
