// Package server exposes the read-only dashboard query API. It never
// writes to the store; all mutation happens in the extraction pipeline.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"garmin-activity-sync/internal/database"
	"garmin-activity-sync/internal/metrics"
	"garmin-activity-sync/internal/middleware"
)

const defaultRecentDays = 30

// Server is the dashboard query API
type Server struct {
	db     *database.DB
	logger *slog.Logger
	http   *http.Server
}

// New creates the query API server listening on addr
func New(db *database.DB, addr string) *Server {
	s := &Server{
		db:     db,
		logger: slog.Default(),
	}

	r := chi.NewRouter()
	r.Get("/health", middleware.Metrics(metrics.EndpointHealth, s.handleHealth))
	r.Route("/api", func(r chi.Router) {
		r.Get("/activities/recent", middleware.Metrics(metrics.EndpointRecent, s.handleRecent))
		r.Get("/activities/{activityID}", middleware.Metrics(metrics.EndpointActivity, s.handleActivity))
		r.Get("/aggregates", middleware.Metrics(metrics.EndpointAggregates, s.handleAggregates))
		r.Get("/weeks/delta", middleware.Metrics(metrics.EndpointWeekDelta, s.handleWeekDelta))
	})

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown or failure
func (s *Server) ListenAndServe() error {
	s.logger.Info("query API listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "activityID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	rec, err := s.db.Get(id)
	if err != nil {
		s.logger.Error("failed to load activity", "activity_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("activity %d not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		s.writeError(w, http.StatusBadRequest, "group parameter is required")
		return
	}

	days := defaultRecentDays
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	records, err := s.db.RecentActivities(group, days)
	if err != nil {
		s.logger.Error("failed to list recent activities", "group", group, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"group":      group,
		"days":       days,
		"activities": records,
	})
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	granularity := r.URL.Query().Get("granularity")
	if granularity == "" {
		granularity = "weekly"
	}
	group := r.URL.Query().Get("group")

	rows, err := s.db.Aggregate(granularity, group)
	if err != nil {
		// Aggregate rejects unknown granularities before touching the DB
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"granularity": granularity,
		"aggregates":  rows,
	})
}

func (s *Server) handleWeekDelta(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		s.writeError(w, http.StatusBadRequest, "group parameter is required")
		return
	}

	delta, err := s.db.WeekDelta(group)
	if err != nil {
		s.logger.Error("failed to compute week delta", "group", group, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if delta == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no weeks recorded for group %q", group))
		return
	}
	s.writeJSON(w, http.StatusOK, delta)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Health(); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
