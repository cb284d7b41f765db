// Package normalize converts raw vendor activity summaries into canonical
// records. It is a pure transform: one raw record in, one normalized
// record out, no side effects.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"garmin-activity-sync/internal/activity"
)

// ErrNoStartTime marks a record that cannot be placed in time. Such
// records are unprocessable and must be dropped by the caller, never
// persisted with a null bucket key.
var ErrNoStartTime = errors.New("record has no usable start timestamp")

// startTimeLayouts are the timestamp shapes the vendor has been observed
// to emit. Local time, no explicit zone.
var startTimeLayouts = []string{
	"2006-01-02T15:04:05.0",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize converts one raw summary into a canonical record. Numeric
// fields that fail coercion become missing (nil), never zero. The Group
// field is left empty; classification is a separate pass.
func Normalize(raw activity.RawActivitySummary) (activity.Record, error) {
	start, err := ParseStartTime(raw.StartTimeLocal)
	if err != nil {
		return activity.Record{}, err
	}

	rec := activity.Record{
		ActivityID:      raw.ActivityID,
		ActivityName:    raw.ActivityName,
		ActivityTypeRaw: raw.ActivityTypeRaw,
		StartTime:       start,
		Day:             start.Format("2006-01-02"),
		Week:            activity.WeekStart(start).Format("2006-01-02"),
		Month:           start.Format("2006-01"),
	}

	rec.DurationSeconds = Metric(raw.Fields, "duration")
	if rec.DurationSeconds != nil {
		rec.DurationFormatted = FormatDuration(*rec.DurationSeconds)
	}

	// Vendor distance is meters; the store is kilometers.
	if d := Metric(raw.Fields, "distance"); d != nil {
		km := *d / 1000
		rec.DistanceKm = &km
	}

	rec.Calories = Metric(raw.Fields, "calories")
	rec.AverageHR = Metric(raw.Fields, "averageHR")
	rec.MaxHR = Metric(raw.Fields, "maxHR")
	rec.MinHR = Metric(raw.Fields, "minHR")
	rec.AverageTemperature = Metric(raw.Fields, "averageTemperature")
	rec.MaxTemperature = Metric(raw.Fields, "maxTemperature")
	rec.MinTemperature = Metric(raw.Fields, "minTemperature")
	rec.WaterEstimated = Metric(raw.Fields, "waterEstimated")
	rec.ElevationGain = Metric(raw.Fields, "elevationGain")
	rec.ElevationLoss = Metric(raw.Fields, "elevationLoss")
	rec.MaxElevation = Metric(raw.Fields, "maxElevation")
	rec.MinElevation = Metric(raw.Fields, "minElevation")
	rec.AverageSpeed = Metric(raw.Fields, "averageSpeed")
	rec.MaxSpeed = Metric(raw.Fields, "maxSpeed")
	rec.AverageRunCadence = Metric(raw.Fields, "averageRunCadence")
	rec.MaxRunCadence = Metric(raw.Fields, "maxRunCadence")
	rec.TotalStrokes = Metric(raw.Fields, "totalNumberOfStrokes")
	rec.AverageStrokeDistance = Metric(raw.Fields, "averageStrokeDistance")
	rec.AverageSwolf = Metric(raw.Fields, "averageSwolf")
	rec.AverageSwimCadence = Metric(raw.Fields, "averageSwimCadence")
	rec.MaxSwimCadence = Metric(raw.Fields, "maxSwimCadence")
	rec.TrainingEffect = Metric(raw.Fields, "trainingEffect")
	rec.ModerateIntensityMinutes = Metric(raw.Fields, "moderateIntensityMinutes")
	rec.VigorousIntensityMinutes = Metric(raw.Fields, "vigorousIntensityMinutes")
	rec.Steps = Metric(raw.Fields, "steps")
	rec.BodyBatteryDelta = Metric(raw.Fields, "differenceBodyBattery")

	rec.TrainingEffectLabel = stringField(raw.Fields, "trainingEffectLabel")
	rec.LocationName = stringField(raw.Fields, "locationName")

	return rec, nil
}

// ParseStartTime parses a vendor-local timestamp string
func ParseStartTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrNoStartTime
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable %q", ErrNoStartTime, s)
}

// Metric coerces one optional vendor value to a float. The vendor emits
// plain numbers, comma-decimal strings, and the "--" no-data sentinel.
// Anything that fails coercion is missing, never zero.
func Metric(fields map[string]any, key string) *float64 {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		s := strings.TrimSpace(n)
		if s == "" || s == "--" {
			return nil
		}
		s = strings.ReplaceAll(s, ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// FormatDuration renders seconds as HH:MM:SS
func FormatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
