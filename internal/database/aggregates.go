package database

import (
	"database/sql"
	"fmt"

	"garmin-activity-sync/internal/activity"
)

// AggregateRow is one aggregate bucket for the dashboard
type AggregateRow struct {
	Period               string   `json:"period"`
	Group                string   `json:"group"`
	TotalDurationSeconds float64  `json:"total_duration_seconds"`
	TotalDistanceKm      float64  `json:"total_distance_km"`
	ActivityCount        int      `json:"activity_count"`
	AvgHR                *float64 `json:"avg_hr,omitempty"`
	MaxHR                *float64 `json:"max_hr,omitempty"`
}

// WeeklyDelta compares the most recent week bucket with the one before it
type WeeklyDelta struct {
	Week                 string  `json:"week"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	TotalDistanceKm      float64 `json:"total_distance_km"`
	DurationDelta        float64 `json:"duration_delta_seconds"`
	DistanceDelta        float64 `json:"distance_delta_km"`
}

// periodColumns whitelists the bucket columns aggregate queries may group
// by; the dashboard passes user-controlled granularity strings.
var periodColumns = map[string]string{
	"weekly":  "week",
	"monthly": "month",
}

// Aggregate returns SUM/AVG/MAX rollups per period bucket, optionally
// restricted to one activity group. granularity is "weekly" or "monthly".
func (db *DB) Aggregate(granularity, group string) ([]AggregateRow, error) {
	col, ok := periodColumns[granularity]
	if !ok {
		return nil, fmt.Errorf("unknown granularity %q", granularity)
	}

	query := `
		SELECT ` + col + ` AS period, activity_type_group,
		       COALESCE(SUM(duration_seconds), 0),
		       COALESCE(SUM(distance_km), 0),
		       COUNT(*),
		       AVG(average_hr),
		       MAX(max_hr)
		FROM activities`
	var args []any
	if group != "" {
		query += " WHERE activity_type_group = ?"
		args = append(args, group)
	}
	query += `
		GROUP BY period, activity_type_group
		ORDER BY period`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate activities: %w", err)
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var (
			r            AggregateRow
			avgHR, maxHR sql.NullFloat64
		)
		if err := rows.Scan(&r.Period, &r.Group, &r.TotalDurationSeconds, &r.TotalDistanceKm, &r.ActivityCount, &avgHR, &maxHR); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		r.AvgHR = toPtr(avgHR)
		r.MaxHR = toPtr(maxHR)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregates: %w", err)
	}
	return out, nil
}

// RecentActivities returns the activities of the last `days` days for one
// group, newest first.
func (db *DB) RecentActivities(group string, days int) ([]*activity.Record, error) {
	rows, err := db.conn.Query(`
		SELECT `+activityColumns+`
		FROM activities
		WHERE activity_type_group = ?
		  AND start_time >= datetime('now', ?)
		ORDER BY start_time DESC
	`, group, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent activities: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// WeekDelta returns current-week totals for a group plus the difference
// to the previous week bucket. Returns nil if the group has no weeks.
func (db *DB) WeekDelta(group string) (*WeeklyDelta, error) {
	rows, err := db.conn.Query(`
		SELECT week,
		       COALESCE(SUM(duration_seconds), 0),
		       COALESCE(SUM(distance_km), 0)
		FROM activities
		WHERE activity_type_group = ?
		GROUP BY week
		ORDER BY week DESC
		LIMIT 2
	`, group)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly totals: %w", err)
	}
	defer rows.Close()

	type weekTotals struct {
		week               string
		duration, distance float64
	}
	var weeks []weekTotals
	for rows.Next() {
		var w weekTotals
		if err := rows.Scan(&w.week, &w.duration, &w.distance); err != nil {
			return nil, fmt.Errorf("failed to scan weekly totals: %w", err)
		}
		weeks = append(weeks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weekly totals: %w", err)
	}

	if len(weeks) == 0 {
		return nil, nil
	}

	delta := &WeeklyDelta{
		Week:                 weeks[0].week,
		TotalDurationSeconds: weeks[0].duration,
		TotalDistanceKm:      weeks[0].distance,
	}
	if len(weeks) == 2 {
		delta.DurationDelta = weeks[0].duration - weeks[1].duration
		delta.DistanceDelta = weeks[0].distance - weeks[1].distance
	} else {
		delta.DurationDelta = weeks[0].duration
		delta.DistanceDelta = weeks[0].distance
	}
	return delta, nil
}
