package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// On-disk layout, preserved for the dashboard's detail views:
//
//	<dataDir>/raw/<YYYY-MM>/activities_raw_<monday>.json   weekly cache
//	<dataDir>/raw/<YYYY-MM>/activity_<id>/                 per-activity files
//	<dataDir>/processed/<YYYY-MM>/activities_processed_<monday>.csv
//
// Per-activity directories are keyed by the month of the activity itself,
// which can differ from the week's month at month boundaries.

const dateLayout = "2006-01-02"

func rawMonthDir(dataDir string, t time.Time) string {
	return filepath.Join(dataDir, "raw", t.Format("2006-01"))
}

func weekCachePath(dataDir string, monday time.Time) string {
	return filepath.Join(rawMonthDir(dataDir, monday),
		fmt.Sprintf("activities_raw_%s.json", monday.Format(dateLayout)))
}

func activityDir(dataDir string, activityTime time.Time, activityID int64) string {
	return filepath.Join(rawMonthDir(dataDir, activityTime),
		fmt.Sprintf("activity_%d", activityID))
}

func processedPath(dataDir string, monday time.Time) string {
	return filepath.Join(dataDir, "processed", monday.Format("2006-01"),
		fmt.Sprintf("activities_processed_%s.csv", monday.Format(dateLayout)))
}

// exists reports whether a path is present on disk
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
