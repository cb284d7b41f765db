// Package classify assigns every normalized record its activity group and
// applies the manual correction rules for known historical data anomalies.
package classify

import (
	"math"
	"strings"

	"garmin-activity-sync/internal/activity"
	"garmin-activity-sync/internal/normalize"
)

// rule maps a raw-type substring onto a group
type rule struct {
	keyword string
	group   string
}

// rules is evaluated top to bottom with a last-match-wins policy: every
// matching rule is applied in order, so when several keywords match the
// same raw string the one declared last determines the group. Keep new
// rules at the position their precedence requires.
var rules = []rule{
	{"cycling", activity.GroupCycling},
	{"biking", activity.GroupCycling},
	{"virtual_ride", activity.GroupCycling},
	{"running", activity.GroupRunning},
	{"swimming", activity.GroupSwimming},
	{"rowing", activity.GroupRowing},
	{"walking", activity.GroupHiking},
	{"hiking", activity.GroupHiking},
	{"strength_training", activity.GroupMusculation},
	{"backcountry_skiing", activity.GroupBackcountrySkiing},
	{"cross_country_skiing_ws", activity.GroupCrossCountrySkiing},
	{"skate_skiing_ws", activity.GroupCrossCountrySkiing},
	{"resort_skiing", activity.GroupSkiing},
	{"fitness_equipment", activity.GroupPhysicalReinforcement},
	{"indoor_cardio", activity.GroupPhysicalReinforcement},
}

// Names assigned to the two halves of a split composite session
const (
	splitRideName = "Bike Indoor"
	splitGymName  = "Muscular Reinforcement"
)

// splitPlaceholderKm is the fixed placeholder distance assigned to both
// halves of a composite split; the merged vendor record carries no
// per-discipline distance worth preserving.
const splitPlaceholderKm = 30.0

// crossTalkPrimaryName identifies records created by the primary
// heart-rate app; secondary records start with crossTalkSecondaryPrefix.
const (
	crossTalkPrimaryName     = "Cardio Zwift"
	crossTalkSecondaryPrefix = "Zwift"
)

// Apply runs the full classification pipeline over one week batch:
// composite split, cross-talk correction, then group assignment.
// Corrections are batch-level because cross-talk pairs records within a
// calendar day.
func Apply(records []activity.Record) []activity.Record {
	records = SplitComposites(records)
	records = CorrectCrossTalk(records)
	for i := range records {
		Classify(&records[i])
	}
	return records
}

// Classify sets rec.Group from the raw type string. Unmatched types get
// GroupUnclassified; the result is never empty. For swim records the
// vendor occasionally emits meters where kilometers are expected, so
// distances above 100 are scaled down.
func Classify(rec *activity.Record) {
	raw := strings.ToLower(rec.ActivityTypeRaw)

	group := ""
	for _, r := range rules {
		if strings.Contains(raw, r.keyword) {
			group = r.group
		}
	}

	if strings.Contains(raw, "gym") {
		group = activity.GroupGymFitness
	}
	if group == "" {
		group = activity.GroupUnclassified
	}
	rec.Group = group

	if group == activity.GroupSwimming && rec.DistanceKm != nil && *rec.DistanceKm > 100 {
		fixed := *rec.DistanceKm / 1000
		rec.DistanceKm = &fixed
	}
}

// SplitComposites splits records whose name carries an "&" conjunction
// into a ride half and a strength half. These come from a historical
// period where the vendor's mobile integration merged two back-to-back
// workouts into one entry. Each half gets half the duration and half the
// calories; the ride half keeps the vendor id, the strength half gets the
// negated id (vendor ids are positive, so synthetic ids cannot collide).
func SplitComposites(records []activity.Record) []activity.Record {
	out := make([]activity.Record, 0, len(records))
	for _, rec := range records {
		if !strings.Contains(rec.ActivityName, "&") {
			out = append(out, rec)
			continue
		}

		ride := rec
		ride.ActivityName = splitRideName
		ride.ActivityTypeRaw = "virtual_cycling"
		ride.DistanceKm = ptr(splitPlaceholderKm)
		ride.DurationSeconds = halve(rec.DurationSeconds)
		ride.Calories = halveFloor(rec.Calories)
		if ride.DurationSeconds != nil {
			ride.DurationFormatted = normalize.FormatDuration(*ride.DurationSeconds)
		}

		gym := rec
		gym.ActivityID = -rec.ActivityID
		gym.ActivityName = splitGymName
		gym.ActivityTypeRaw = "gym_fitness"
		gym.DistanceKm = ptr(splitPlaceholderKm)
		gym.DurationSeconds = halve(rec.DurationSeconds)
		gym.Calories = halveFloor(rec.Calories)
		if gym.DurationSeconds != nil {
			gym.DurationFormatted = normalize.FormatDuration(*gym.DurationSeconds)
		}

		out = append(out, ride, gym)
	}
	return out
}

// CorrectCrossTalk repairs weeks where a chest strap broadcast to two
// apps at once. Per calendar day, the heart-rate statistics of the
// primary-app records ("Cardio Zwift") are copied onto the secondary
// records ("Zwift ..."), then the primary records are dropped to avoid
// double counting. With more than one primary record on a day the
// day-level maximum is used.
func CorrectCrossTalk(records []activity.Record) []activity.Record {
	type dayHR struct {
		avg, max *float64
	}
	byDay := make(map[string]dayHR)

	for _, rec := range records {
		if rec.ActivityName != crossTalkPrimaryName {
			continue
		}
		hr := byDay[rec.Day]
		hr.avg = maxPtr(hr.avg, rec.AverageHR)
		hr.max = maxPtr(hr.max, rec.MaxHR)
		byDay[rec.Day] = hr
	}

	if len(byDay) == 0 {
		return records
	}

	out := make([]activity.Record, 0, len(records))
	for _, rec := range records {
		if rec.ActivityName == crossTalkPrimaryName {
			continue
		}
		if hr, ok := byDay[rec.Day]; ok && strings.HasPrefix(rec.ActivityName, crossTalkSecondaryPrefix) {
			if hr.avg != nil {
				rec.AverageHR = ptr(*hr.avg)
			}
			if hr.max != nil {
				rec.MaxHR = ptr(*hr.max)
			}
		}
		out = append(out, rec)
	}
	return out
}

func ptr(f float64) *float64 {
	return &f
}

func halve(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return ptr(*p / 2)
}

func halveFloor(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return ptr(math.Floor(*p / 2))
}

func maxPtr(a, b *float64) *float64 {
	if b == nil {
		return a
	}
	if a == nil || *b > *a {
		return b
	}
	return a
}

