package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"garmin-activity-sync/internal/activity"
)

// TimeLayout is how start_time is stored; lexical order matches
// chronological order so range scans work on the TEXT column.
const TimeLayout = "2006-01-02 15:04:05"

const activityColumns = `activity_id, activity_name, activity_type_raw, activity_type_group,
	start_time, day, week, month,
	duration_seconds, duration_formatted, distance_km, calories,
	average_hr, max_hr, min_hr,
	average_temperature, max_temperature, min_temperature,
	water_estimated, elevation_gain, elevation_loss, max_elevation, min_elevation,
	average_speed, max_speed,
	average_run_cadence, max_run_cadence,
	total_strokes, average_stroke_distance, average_swolf, average_swim_cadence, max_swim_cadence,
	training_effect, training_effect_label,
	moderate_intensity_minutes, vigorous_intensity_minutes,
	steps, location_name, body_battery_delta,
	training_blocks, off_season, created_at`

// InsertNew appends the records whose activity_id is not yet present and
// returns how many were inserted. Existing rows are never touched; the
// store is append-only. A record with an empty activity_type_group is
// invalid and fails the whole batch before anything is written.
func (db *DB) InsertNew(records []activity.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	for _, r := range records {
		if r.Group == "" {
			return 0, fmt.Errorf("record %d has no activity_type_group", r.ActivityID)
		}
	}

	existing, err := db.ExistingIDs()
	if err != nil {
		return 0, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO activities (` + activityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	inserted := 0
	for _, r := range records {
		if _, ok := existing[r.ActivityID]; ok {
			continue
		}
		_, err := stmt.Exec(
			r.ActivityID, r.ActivityName, r.ActivityTypeRaw, r.Group,
			r.StartTime.Format(TimeLayout), r.Day, r.Week, r.Month,
			nullFloat(r.DurationSeconds), r.DurationFormatted, nullFloat(r.DistanceKm), nullFloat(r.Calories),
			nullFloat(r.AverageHR), nullFloat(r.MaxHR), nullFloat(r.MinHR),
			nullFloat(r.AverageTemperature), nullFloat(r.MaxTemperature), nullFloat(r.MinTemperature),
			nullFloat(r.WaterEstimated), nullFloat(r.ElevationGain), nullFloat(r.ElevationLoss),
			nullFloat(r.MaxElevation), nullFloat(r.MinElevation),
			nullFloat(r.AverageSpeed), nullFloat(r.MaxSpeed),
			nullFloat(r.AverageRunCadence), nullFloat(r.MaxRunCadence),
			nullFloat(r.TotalStrokes), nullFloat(r.AverageStrokeDistance), nullFloat(r.AverageSwolf),
			nullFloat(r.AverageSwimCadence), nullFloat(r.MaxSwimCadence),
			nullFloat(r.TrainingEffect), r.TrainingEffectLabel,
			nullFloat(r.ModerateIntensityMinutes), nullFloat(r.VigorousIntensityMinutes),
			nullFloat(r.Steps), r.LocationName, nullFloat(r.BodyBatteryDelta),
			joinBlocks(r.TrainingBlocks), r.OffSeason, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert activity %d: %w", r.ActivityID, err)
		}
		// Guard against duplicate ids within one batch
		existing[r.ActivityID] = struct{}{}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insert: %w", err)
	}
	return inserted, nil
}

// ExistingIDs returns the set of activity ids already in the store
func (db *DB) ExistingIDs() (map[int64]struct{}, error) {
	rows, err := db.conn.Query("SELECT activity_id FROM activities")
	if err != nil {
		return nil, fmt.Errorf("failed to query existing ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan activity id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity ids: %w", err)
	}
	return ids, nil
}

// Get retrieves a single activity by id, or nil if absent
func (db *DB) Get(activityID int64) (*activity.Record, error) {
	row := db.conn.QueryRow(`
		SELECT `+activityColumns+`
		FROM activities WHERE activity_id = ?
	`, activityID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity %d: %w", activityID, err)
	}
	return rec, nil
}

// Count returns the number of stored activities
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM activities").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

// ListByWeek returns all activities whose week bucket equals the given
// Monday date string, ordered by start time.
func (db *DB) ListByWeek(week string) ([]*activity.Record, error) {
	rows, err := db.conn.Query(`
		SELECT `+activityColumns+`
		FROM activities WHERE week = ?
		ORDER BY start_time
	`, week)
	if err != nil {
		return nil, fmt.Errorf("failed to list week %s: %w", week, err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*activity.Record, error) {
	var (
		r         activity.Record
		startTime string
		blocks    string
		createdAt int64

		durationSeconds, distanceKm, calories                                     sql.NullFloat64
		averageHR, maxHR, minHR                                                   sql.NullFloat64
		averageTemperature, maxTemperature, minTemperature                        sql.NullFloat64
		waterEstimated, elevationGain, elevationLoss, maxElevation, minElevation  sql.NullFloat64
		averageSpeed, maxSpeed, averageRunCadence, maxRunCadence                  sql.NullFloat64
		totalStrokes, averageStrokeDistance, averageSwolf                         sql.NullFloat64
		averageSwimCadence, maxSwimCadence, trainingEffect                        sql.NullFloat64
		moderateIntensityMinutes, vigorousIntensityMinutes, steps, bodyBatteryDelta sql.NullFloat64
	)

	err := s.Scan(
		&r.ActivityID, &r.ActivityName, &r.ActivityTypeRaw, &r.Group,
		&startTime, &r.Day, &r.Week, &r.Month,
		&durationSeconds, &r.DurationFormatted, &distanceKm, &calories,
		&averageHR, &maxHR, &minHR,
		&averageTemperature, &maxTemperature, &minTemperature,
		&waterEstimated, &elevationGain, &elevationLoss, &maxElevation, &minElevation,
		&averageSpeed, &maxSpeed,
		&averageRunCadence, &maxRunCadence,
		&totalStrokes, &averageStrokeDistance, &averageSwolf, &averageSwimCadence, &maxSwimCadence,
		&trainingEffect, &r.TrainingEffectLabel,
		&moderateIntensityMinutes, &vigorousIntensityMinutes,
		&steps, &r.LocationName, &bodyBatteryDelta,
		&blocks, &r.OffSeason, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(TimeLayout, startTime)
	if err != nil {
		return nil, fmt.Errorf("invalid stored start_time %q: %w", startTime, err)
	}
	r.StartTime = t
	r.TrainingBlocks = splitBlocks(blocks)

	r.DurationSeconds = toPtr(durationSeconds)
	r.DistanceKm = toPtr(distanceKm)
	r.Calories = toPtr(calories)
	r.AverageHR = toPtr(averageHR)
	r.MaxHR = toPtr(maxHR)
	r.MinHR = toPtr(minHR)
	r.AverageTemperature = toPtr(averageTemperature)
	r.MaxTemperature = toPtr(maxTemperature)
	r.MinTemperature = toPtr(minTemperature)
	r.WaterEstimated = toPtr(waterEstimated)
	r.ElevationGain = toPtr(elevationGain)
	r.ElevationLoss = toPtr(elevationLoss)
	r.MaxElevation = toPtr(maxElevation)
	r.MinElevation = toPtr(minElevation)
	r.AverageSpeed = toPtr(averageSpeed)
	r.MaxSpeed = toPtr(maxSpeed)
	r.AverageRunCadence = toPtr(averageRunCadence)
	r.MaxRunCadence = toPtr(maxRunCadence)
	r.TotalStrokes = toPtr(totalStrokes)
	r.AverageStrokeDistance = toPtr(averageStrokeDistance)
	r.AverageSwolf = toPtr(averageSwolf)
	r.AverageSwimCadence = toPtr(averageSwimCadence)
	r.MaxSwimCadence = toPtr(maxSwimCadence)
	r.TrainingEffect = toPtr(trainingEffect)
	r.ModerateIntensityMinutes = toPtr(moderateIntensityMinutes)
	r.VigorousIntensityMinutes = toPtr(vigorousIntensityMinutes)
	r.Steps = toPtr(steps)
	r.BodyBatteryDelta = toPtr(bodyBatteryDelta)

	return &r, nil
}

func collectRecords(rows *sql.Rows) ([]*activity.Record, error) {
	var records []*activity.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return records, nil
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func toPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func joinBlocks(blocks []string) string {
	return strings.Join(blocks, ", ")
}

func splitBlocks(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ", ")
	return parts
}
