// Package extractor drives the weekly backfill: it walks Monday-aligned
// weeks from a start date to an end date, fetches raw activities through
// the vendor client, runs normalization, classification and period
// annotation, and appends the result to the store.
//
// Three independent layers make an interrupted run resumable, each with
// one predicate per unit of work:
//   - week:     the weekly raw cache file exists and is non-empty
//   - activity: the per-activity directory exists (written atomically)
//   - record:   the activity id is already present in the store
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"garmin-activity-sync/internal/activity"
	"garmin-activity-sync/internal/classify"
	"garmin-activity-sync/internal/database"
	"garmin-activity-sync/internal/garmin"
	"garmin-activity-sync/internal/metrics"
	"garmin-activity-sync/internal/normalize"
	"garmin-activity-sync/internal/periods"
)

// Fetcher is the vendor fetch service contract the extractor depends on
type Fetcher interface {
	FetchActivities(ctx context.Context, start, end time.Time) ([]activity.RawActivitySummary, error)
	FetchDetail(ctx context.Context, activityID int64) ([]byte, error)
	FetchExport(ctx context.Context, activityID int64, format garmin.ExportFormat) ([]byte, error)
}

// Extractor is the weekly batch extraction pipeline
type Extractor struct {
	db           *database.DB
	fetcher      Fetcher
	calendar     *periods.Calendar
	dataDir      string
	fetchExports bool
	logger       *slog.Logger
}

// New creates an extractor writing raw and processed files under dataDir
func New(db *database.DB, fetcher Fetcher, calendar *periods.Calendar, dataDir string, fetchExports bool) *Extractor {
	return &Extractor{
		db:           db,
		fetcher:      fetcher,
		calendar:     calendar,
		dataDir:      dataDir,
		fetchExports: fetchExports,
		logger:       slog.Default(),
	}
}

// Run walks weeks from the Monday on/before start through end. Fetch and
// processing failures are logged and skipped per week or per record; only
// a store write failure aborts the walk. When reset is true the entire
// store is dropped first; nothing else ever deletes rows.
func (e *Extractor) Run(ctx context.Context, start, end time.Time, reset bool) error {
	if reset {
		e.logger.Warn("full reset requested, dropping activities store")
		if err := e.db.Reset(); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
	}

	monday := activity.WeekStart(start)
	e.logger.Info("starting backfill",
		"start", monday.Format(dateLayout),
		"end", end.Format(dateLayout))

	for wk := monday; !wk.After(end); wk = wk.AddDate(0, 0, 7) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// processWeek only returns store failures
		if err := e.processWeek(ctx, wk); err != nil {
			return err
		}
	}

	e.logger.Info("backfill complete", "end", end.Format(dateLayout))
	return nil
}

// processWeek handles one Monday-anchored week end to end
func (e *Extractor) processWeek(ctx context.Context, monday time.Time) error {
	sunday := monday.AddDate(0, 0, 6)
	week := monday.Format(dateLayout)
	log := e.logger.With("week", week)

	raws, cached, err := e.weekRaw(ctx, monday, sunday)
	if err != nil {
		log.Error("week fetch failed, skipping", "error", err)
		metrics.WeeksProcessedTotal.WithLabelValues(metrics.WeekResultFetchFailed).Inc()
		return nil
	}
	if len(raws) == 0 {
		log.Info("no activities this week")
		metrics.WeeksProcessedTotal.WithLabelValues(metrics.WeekResultEmpty).Inc()
		return nil
	}
	if cached {
		log.Info("using cached raw data", "count", len(raws))
		metrics.WeekCacheHitsTotal.Inc()
	}

	// The vendor's date-range fetch returns adjacent-week spillover;
	// keep only [Monday, Sunday].
	filtered := filterWindow(raws, monday, sunday)
	if dropped := len(raws) - len(filtered); dropped > 0 {
		log.Info("filtered records outside week window", "dropped", dropped)
	}
	if len(filtered) == 0 {
		log.Info("no activities within week window")
		metrics.WeeksProcessedTotal.WithLabelValues(metrics.WeekResultFiltered).Inc()
		return nil
	}

	records := e.transform(filtered, log)
	if len(records) == 0 {
		log.Warn("all records dropped during processing")
		metrics.WeeksProcessedTotal.WithLabelValues(metrics.WeekResultEmpty).Inc()
		return nil
	}

	inserted, err := e.db.InsertNew(records)
	if err != nil {
		return fmt.Errorf("failed to persist week %s: %w", week, err)
	}
	metrics.RecordsPersistedTotal.Add(float64(inserted))

	// Audit export is not authoritative; a write failure does not fail
	// the week.
	if err := e.writeAudit(monday, records); err != nil {
		log.Warn("failed to write audit export", "error", err)
	}

	log.Info("week processed",
		"fetched", len(raws),
		"processed", len(records),
		"inserted", inserted)
	metrics.WeeksProcessedTotal.WithLabelValues(metrics.WeekResultSuccess).Inc()
	return nil
}

// weekRaw returns the raw summaries for a week, from the on-disk cache
// when present, otherwise from the vendor (also fetching per-activity
// files and writing the cache).
func (e *Extractor) weekRaw(ctx context.Context, monday, sunday time.Time) ([]activity.RawActivitySummary, bool, error) {
	cachePath := weekCachePath(e.dataDir, monday)
	if raws, err := readWeekCache(cachePath); err == nil && len(raws) > 0 {
		return raws, true, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		// A corrupt cache is treated as missing and refetched
		e.logger.Warn("unreadable week cache, refetching", "path", cachePath, "error", err)
	}

	raws, err := e.fetcher.FetchActivities(ctx, monday, sunday)
	if err != nil {
		return nil, false, err
	}

	// The vendor occasionally repeats entries across pages
	raws = dedupe(raws)

	for _, raw := range raws {
		e.fetchActivityFiles(ctx, raw, monday)
	}

	if len(raws) > 0 {
		if err := writeWeekCache(cachePath, raws); err != nil {
			e.logger.Warn("failed to write week cache", "path", cachePath, "error", err)
		}
	}

	return raws, false, nil
}

// fetchActivityFiles downloads the detail blob and binary exports for one
// activity into its directory. The directory's existence is the
// resumability predicate, so everything is written into a temporary
// directory that is renamed only on full success; a failure leaves no
// directory behind and the activity is retried on the next run. Failures
// are logged, never fatal: downstream consumers tolerate missing files.
func (e *Extractor) fetchActivityFiles(ctx context.Context, raw activity.RawActivitySummary, fallback time.Time) {
	at := fallback
	if t, err := normalize.ParseStartTime(raw.StartTimeLocal); err == nil {
		at = t
	}

	dir := activityDir(e.dataDir, at, raw.ActivityID)
	if exists(dir) {
		metrics.ActivityFilesSkippedTotal.Inc()
		return
	}

	log := e.logger.With("activity_id", raw.ActivityID)

	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		log.Warn("failed to clear stale temp dir", "error", err)
		return
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		log.Warn("failed to create activity dir", "error", err)
		return
	}

	ok := func() bool {
		detail, err := e.fetcher.FetchDetail(ctx, raw.ActivityID)
		if err != nil {
			log.Warn("detail fetch failed", "error", err)
			return false
		}
		name := fmt.Sprintf("activity_%d.json", raw.ActivityID)
		if err := os.WriteFile(filepath.Join(tmp, name), detail, 0o644); err != nil {
			log.Warn("failed to write detail file", "error", err)
			return false
		}

		if !e.fetchExports {
			return true
		}
		for _, format := range garmin.ExportFormats {
			data, err := e.fetcher.FetchExport(ctx, raw.ActivityID, format)
			if err != nil {
				log.Warn("export fetch failed", "format", format, "error", err)
				return false
			}
			name := fmt.Sprintf("activity_%d.%s", raw.ActivityID, format)
			if err := os.WriteFile(filepath.Join(tmp, name), data, 0o644); err != nil {
				log.Warn("failed to write export file", "format", format, "error", err)
				return false
			}
		}
		return true
	}()

	if !ok {
		os.RemoveAll(tmp)
		return
	}

	if err := os.Rename(tmp, dir); err != nil {
		log.Warn("failed to finalize activity dir", "error", err)
		os.RemoveAll(tmp)
		return
	}
	metrics.ActivityFilesFetchedTotal.Inc()
}

// transform runs normalize → classify → annotate over a filtered week
// batch. A record that fails processing is skipped with a logged reason;
// it never aborts the batch.
func (e *Extractor) transform(raws []activity.RawActivitySummary, log *slog.Logger) []activity.Record {
	records := make([]activity.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := normalize.Normalize(raw)
		if err != nil {
			reason := metrics.DropReasonNormalize
			if errors.Is(err, normalize.ErrNoStartTime) {
				reason = metrics.DropReasonNoStartTime
			}
			log.Warn("dropping unprocessable record",
				"activity_id", raw.ActivityID,
				"reason", reason,
				"error", err)
			metrics.RecordsDroppedTotal.WithLabelValues(reason).Inc()
			continue
		}
		metrics.RecordsNormalizedTotal.Inc()
		records = append(records, rec)
	}

	records = classify.Apply(records)

	for i := range records {
		blocks, offSeason := e.calendar.Annotate(records[i].StartTime)
		records[i].TrainingBlocks = blocks
		records[i].OffSeason = offSeason
	}
	return records
}

// filterWindow drops records whose start date falls outside [monday,
// sunday]. Records whose timestamp cannot be parsed are kept; the
// normalizer drops them with a logged reason.
func filterWindow(raws []activity.RawActivitySummary, monday, sunday time.Time) []activity.RawActivitySummary {
	out := make([]activity.RawActivitySummary, 0, len(raws))
	for _, raw := range raws {
		t, err := normalize.ParseStartTime(raw.StartTimeLocal)
		if err != nil {
			out = append(out, raw)
			continue
		}
		day := t.Format(dateLayout)
		if day >= monday.Format(dateLayout) && day <= sunday.Format(dateLayout) {
			out = append(out, raw)
		}
	}
	return out
}

func dedupe(raws []activity.RawActivitySummary) []activity.RawActivitySummary {
	seen := make(map[int64]struct{}, len(raws))
	out := make([]activity.RawActivitySummary, 0, len(raws))
	for _, raw := range raws {
		if _, ok := seen[raw.ActivityID]; ok {
			continue
		}
		seen[raw.ActivityID] = struct{}{}
		out = append(out, raw)
	}
	return out
}

func readWeekCache(path string) ([]activity.RawActivitySummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raws []activity.RawActivitySummary
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("invalid week cache %s: %w", path, err)
	}
	return raws, nil
}

func writeWeekCache(path string, raws []activity.RawActivitySummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(raws)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
