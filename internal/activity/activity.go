package activity

import "time"

// Activity type groups. The classifier guarantees every persisted record
// carries exactly one of these; GroupUnclassified is the fallback for raw
// types no rule matches.
const (
	GroupRunning               = "running"
	GroupCycling               = "cycling"
	GroupSwimming              = "swimming"
	GroupRowing                = "rowing"
	GroupHiking                = "hiking"
	GroupMusculation           = "musculation"
	GroupSkiing                = "skiing"
	GroupBackcountrySkiing     = "backcountry_skiing"
	GroupCrossCountrySkiing    = "cross_country_skiing"
	GroupPhysicalReinforcement = "physical_reinforcement"
	GroupGymFitness            = "gym_fitness"
	GroupUnclassified          = "unclassified"
)

// MetricFields lists the optional numeric summary fields the vendor may
// emit. Absence of a key is distinct from zero.
var MetricFields = []string{
	"duration", "elapsedDuration", "movingDuration",
	"distance", "calories",
	"averageHR", "maxHR", "minHR",
	"averageTemperature", "maxTemperature", "minTemperature",
	"waterEstimated",
	"elevationGain", "elevationLoss", "maxElevation", "minElevation",
	"averageSpeed", "maxSpeed",
	"averageRunCadence", "maxRunCadence",
	"totalNumberOfStrokes", "averageStrokeDistance",
	"averageSwolf", "averageSwimCadence", "maxSwimCadence",
	"trainingEffect",
	"moderateIntensityMinutes", "vigorousIntensityMinutes",
	"steps", "differenceBodyBattery",
}

// RawActivitySummary is one fetched-but-unprocessed vendor record.
// Fields holds the optional summary metrics keyed by vendor field name;
// values are whatever the vendor emitted (numbers, comma-decimal strings,
// or the "--" no-data sentinel). String passthrough fields like
// trainingEffectLabel and locationName also live in Fields.
type RawActivitySummary struct {
	ActivityID      int64          `json:"activityId"`
	ActivityName    string         `json:"activityName"`
	ActivityTypeRaw string         `json:"activityType"`
	StartTimeLocal  string         `json:"startTimeLocal"`
	Fields          map[string]any `json:"fields,omitempty"`
}

// Record is the canonical normalized activity. Nil metric pointers mean
// the vendor did not report the field; they are never zero-filled.
type Record struct {
	ActivityID      int64  `json:"activity_id"`
	ActivityName    string `json:"activity_name"`
	ActivityTypeRaw string `json:"activity_type"`
	Group           string `json:"group"`

	StartTime time.Time `json:"start_time"`
	Day       string    `json:"day"`   // 2006-01-02
	Week      string    `json:"week"`  // Monday on/before Day, 2006-01-02
	Month     string    `json:"month"` // 2006-01

	DurationSeconds   *float64 `json:"duration_seconds,omitempty"`
	DurationFormatted string   `json:"duration_formatted,omitempty"`
	DistanceKm        *float64 `json:"distance_km,omitempty"`
	Calories          *float64 `json:"calories,omitempty"`

	AverageHR *float64 `json:"average_hr,omitempty"`
	MaxHR     *float64 `json:"max_hr,omitempty"`
	MinHR     *float64 `json:"min_hr,omitempty"`

	AverageTemperature *float64 `json:"average_temperature,omitempty"`
	MaxTemperature     *float64 `json:"max_temperature,omitempty"`
	MinTemperature     *float64 `json:"min_temperature,omitempty"`

	WaterEstimated *float64 `json:"water_estimated,omitempty"`
	ElevationGain  *float64 `json:"elevation_gain,omitempty"`
	ElevationLoss  *float64 `json:"elevation_loss,omitempty"`
	MaxElevation   *float64 `json:"max_elevation,omitempty"`
	MinElevation   *float64 `json:"min_elevation,omitempty"`

	AverageSpeed *float64 `json:"average_speed,omitempty"`
	MaxSpeed     *float64 `json:"max_speed,omitempty"`

	AverageRunCadence *float64 `json:"average_run_cadence,omitempty"`
	MaxRunCadence     *float64 `json:"max_run_cadence,omitempty"`

	TotalStrokes          *float64 `json:"total_strokes,omitempty"`
	AverageStrokeDistance *float64 `json:"average_stroke_distance,omitempty"`
	AverageSwolf          *float64 `json:"average_swolf,omitempty"`
	AverageSwimCadence    *float64 `json:"average_swim_cadence,omitempty"`
	MaxSwimCadence        *float64 `json:"max_swim_cadence,omitempty"`

	TrainingEffect      *float64 `json:"training_effect,omitempty"`
	TrainingEffectLabel string   `json:"training_effect_label,omitempty"`

	ModerateIntensityMinutes *float64 `json:"moderate_intensity_minutes,omitempty"`
	VigorousIntensityMinutes *float64 `json:"vigorous_intensity_minutes,omitempty"`

	Steps            *float64 `json:"steps,omitempty"`
	LocationName     string   `json:"location_name,omitempty"`
	BodyBatteryDelta *float64 `json:"body_battery_delta,omitempty"`

	TrainingBlocks []string `json:"training_blocks,omitempty"`
	OffSeason      bool     `json:"off_season"`
}

// WeekStart returns the Monday on or before t, truncated to midnight in
// t's location. This is the grouping key for all weekly aggregates.
func WeekStart(t time.Time) time.Time {
	daysBack := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -daysBack)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}
