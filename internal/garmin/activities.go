package garmin

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"garmin-activity-sync/internal/activity"
	"garmin-activity-sync/internal/metrics"
)

// ExportFormat identifies a per-activity binary export
type ExportFormat string

const (
	ExportGPX ExportFormat = "gpx" // GPS track
	ExportTCX ExportFormat = "tcx" // training-center XML
	ExportCSV ExportFormat = "csv" // tabular lap export
)

// ExportFormats lists every export fetched for an activity
var ExportFormats = []ExportFormat{ExportGPX, ExportTCX, ExportCSV}

const dateLayout = "2006-01-02"

// FetchActivities returns the activity summaries whose start date falls in
// [start, end] according to the vendor. The vendor has been observed to
// include adjacent-day spillover; callers filter.
func (c *Client) FetchActivities(ctx context.Context, start, end time.Time) ([]activity.RawActivitySummary, error) {
	params := url.Values{
		"startDate": {start.Format(dateLayout)},
		"endDate":   {end.Format(dateLayout)},
		"start":     {"0"},
		"limit":     {"200"},
	}
	path := "/activitylist-service/activities/search/activities?" + params.Encode()

	body, err := c.doRequest(ctx, path, metrics.OpFetchActivities)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities %s..%s: %w",
			start.Format(dateLayout), end.Format(dateLayout), err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activity list: %w", err)
	}

	summaries := make([]activity.RawActivitySummary, 0, len(raw))
	for _, entry := range raw {
		summaries = append(summaries, flattenSummary(entry))
	}
	return summaries, nil
}

// FetchDetail returns the raw detail blob for one activity
func (c *Client) FetchDetail(ctx context.Context, activityID int64) ([]byte, error) {
	path := fmt.Sprintf("/activity-service/activity/%d", activityID)
	body, err := c.doRequest(ctx, path, metrics.OpFetchDetail)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch detail for activity %d: %w", activityID, err)
	}
	return body, nil
}

// FetchExport downloads one binary export file for an activity
func (c *Client) FetchExport(ctx context.Context, activityID int64, format ExportFormat) ([]byte, error) {
	path := fmt.Sprintf("/download-service/export/%s/activity/%d", format, activityID)
	body, err := c.doRequest(ctx, path, metrics.OpFetchExport)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s export for activity %d: %w", format, activityID, err)
	}
	return body, nil
}

// flattenSummary maps one vendor list entry onto RawActivitySummary.
// Identity fields are pulled out; every known optional metric key is
// copied into Fields as-is so absence stays distinguishable from zero.
func flattenSummary(entry map[string]any) activity.RawActivitySummary {
	s := activity.RawActivitySummary{
		Fields: make(map[string]any),
	}

	if v, ok := entry["activityId"].(float64); ok {
		s.ActivityID = int64(v)
	}
	if v, ok := entry["activityName"].(string); ok {
		s.ActivityName = v
	}
	if v, ok := entry["startTimeLocal"].(string); ok {
		s.StartTimeLocal = v
	}
	// The list endpoint nests the type key; detail payloads flatten it.
	if typeDTO, ok := entry["activityType"].(map[string]any); ok {
		if v, ok := typeDTO["typeKey"].(string); ok {
			s.ActivityTypeRaw = v
		}
	} else if v, ok := entry["activityType"].(string); ok {
		s.ActivityTypeRaw = v
	}

	for _, key := range activity.MetricFields {
		if v, ok := entry[key]; ok && v != nil {
			s.Fields[key] = v
		}
	}
	for _, key := range []string{"trainingEffectLabel", "locationName"} {
		if v, ok := entry[key]; ok && v != nil {
			s.Fields[key] = v
		}
	}
	return s
}
