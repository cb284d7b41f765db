package extractor

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"garmin-activity-sync/internal/activity"
)

// auditHeader is the column order of the per-week processed CSV. The
// file is a human-readable audit trail mirroring what was inserted; the
// store remains the source of truth.
var auditHeader = []string{
	"activityId", "activityName", "activityType", "group",
	"startTimeLocal", "day", "week", "month",
	"duration", "durationFormatted", "distance_km", "calories",
	"averageHR", "maxHR", "minHR",
	"averageTemperature", "maxTemperature", "minTemperature",
	"waterEstimated",
	"elevationGain", "elevationLoss", "maxElevation", "minElevation",
	"averageSpeed", "maxSpeed",
	"averageRunCadence", "maxRunCadence",
	"totalStrokes", "averageStrokeDistance",
	"averageSwolf", "averageSwimCadence", "maxSwimCadence",
	"trainingEffect", "trainingEffectLabel",
	"moderateIntensityMinutes", "vigorousIntensityMinutes",
	"steps", "locationName", "differenceBodyBattery",
	"trainingBlocks", "offSeason",
}

// writeAudit writes the processed records for one week as a CSV under
// <dataDir>/processed/<YYYY-MM>/. Missing metrics render as empty cells.
func (e *Extractor) writeAudit(monday time.Time, records []activity.Record) error {
	path := processedPath(e.dataDir, monday)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(auditHeader); err != nil {
		f.Close()
		return err
	}
	for _, rec := range records {
		if err := w.Write(auditRow(rec)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func auditRow(rec activity.Record) []string {
	return []string{
		strconv.FormatInt(rec.ActivityID, 10),
		rec.ActivityName,
		rec.ActivityTypeRaw,
		rec.Group,
		rec.StartTime.Format("2006-01-02 15:04:05"),
		rec.Day,
		rec.Week,
		rec.Month,
		cell(rec.DurationSeconds),
		rec.DurationFormatted,
		cell(rec.DistanceKm),
		cell(rec.Calories),
		cell(rec.AverageHR),
		cell(rec.MaxHR),
		cell(rec.MinHR),
		cell(rec.AverageTemperature),
		cell(rec.MaxTemperature),
		cell(rec.MinTemperature),
		cell(rec.WaterEstimated),
		cell(rec.ElevationGain),
		cell(rec.ElevationLoss),
		cell(rec.MaxElevation),
		cell(rec.MinElevation),
		cell(rec.AverageSpeed),
		cell(rec.MaxSpeed),
		cell(rec.AverageRunCadence),
		cell(rec.MaxRunCadence),
		cell(rec.TotalStrokes),
		cell(rec.AverageStrokeDistance),
		cell(rec.AverageSwolf),
		cell(rec.AverageSwimCadence),
		cell(rec.MaxSwimCadence),
		cell(rec.TrainingEffect),
		rec.TrainingEffectLabel,
		cell(rec.ModerateIntensityMinutes),
		cell(rec.VigorousIntensityMinutes),
		cell(rec.Steps),
		rec.LocationName,
		cell(rec.BodyBatteryDelta),
		strings.Join(rec.TrainingBlocks, ", "),
		strconv.FormatBool(rec.OffSeason),
	}
}

func cell(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%g", *p)
}
