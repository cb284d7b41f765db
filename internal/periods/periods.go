// Package periods annotates activities with training-block membership
// and the off-season flag. The calendar is declarative configuration;
// Annotate is a pure function over it.
package periods

import (
	"fmt"
	"time"

	"garmin-activity-sync/internal/config"
)

const dateLayout = "2006-01-02"

// Block is one named race-preparation window
type Block struct {
	Name     string
	Distance string
	Start    time.Time
	End      time.Time // inclusive, whole day
}

// Season is one in-season date range
type Season struct {
	Start time.Time
	End   time.Time // inclusive, whole day
}

// Calendar holds the parsed training calendar
type Calendar struct {
	Blocks  []Block
	Seasons []Season
}

// FromConfig parses and validates the configured calendar
func FromConfig(cc config.Calendar) (*Calendar, error) {
	cal := &Calendar{}

	for i, b := range cc.TrainingBlocks {
		start, end, err := parseRange(b.Start, b.End)
		if err != nil {
			return nil, fmt.Errorf("training block %q (index %d): %w", b.Name, i, err)
		}
		cal.Blocks = append(cal.Blocks, Block{
			Name:     b.Name,
			Distance: b.Distance,
			Start:    start,
			End:      end,
		})
	}

	for i, s := range cc.Seasons {
		start, end, err := parseRange(s.Start, s.End)
		if err != nil {
			return nil, fmt.Errorf("season index %d: %w", i, err)
		}
		cal.Seasons = append(cal.Seasons, Season{Start: start, End: end})
	}

	return cal, nil
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startStr, err)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endStr, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s before start date %s", endStr, startStr)
	}
	return start, end, nil
}

// Annotate returns the names of every training block containing t (zero,
// one, or many; blocks may overlap) and the off-season flag, which is
// true unless t falls inside at least one season. Defined for any time.
func (c *Calendar) Annotate(t time.Time) ([]string, bool) {
	var blocks []string
	for _, b := range c.Blocks {
		if containsDay(b.Start, b.End, t) {
			blocks = append(blocks, b.Name)
		}
	}

	offSeason := true
	for _, s := range c.Seasons {
		if containsDay(s.Start, s.End, t) {
			offSeason = false
			break
		}
	}

	return blocks, offSeason
}

// containsDay treats [start, end] as whole days: any timestamp on the end
// date is still inside the range.
func containsDay(start, end, t time.Time) bool {
	if t.Before(start) {
		return false
	}
	return t.Before(end.AddDate(0, 0, 1))
}
