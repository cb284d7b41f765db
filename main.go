package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"garmin-activity-sync/internal/config"
	"garmin-activity-sync/internal/database"
	"garmin-activity-sync/internal/extractor"
	"garmin-activity-sync/internal/garmin"
	"garmin-activity-sync/internal/periods"
	"garmin-activity-sync/internal/server"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (default: config.yaml if present)")
		startStr   = flag.String("start", "", "Backfill start date YYYY-MM-DD (default: pipeline.epoch_start)")
		endStr     = flag.String("end", "", "Backfill end date YYYY-MM-DD (default: today)")
		reset      = flag.Bool("reset", false, "Drop and recreate the activities store before backfilling")
		serve      = flag.Bool("serve", false, "Run the dashboard query API instead of a backfill")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel, *serve)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled {
		go serveMetrics(cfg)
	}

	if *serve {
		runServer(ctx, cfg, db)
		return
	}

	if err := runBackfill(ctx, cfg, db, *startStr, *endStr, *reset); err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

// setupLogging wires the process-wide logger: human-readable text for
// interactive backfills, JSON when running as the query API service.
func setupLogging(level string, serve bool) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if serve {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runBackfill(ctx context.Context, cfg *config.Config, db *database.DB, startStr, endStr string, reset bool) error {
	if startStr == "" {
		startStr = cfg.Pipeline.EpochStart
	}
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", startStr, err)
	}

	end := time.Now()
	if endStr != "" {
		end, err = time.Parse(dateLayout, endStr)
		if err != nil {
			return fmt.Errorf("invalid end date %q: %w", endStr, err)
		}
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s is before start date %s", end.Format(dateLayout), start.Format(dateLayout))
	}

	calendar, err := periods.FromConfig(cfg.Calendar)
	if err != nil {
		return fmt.Errorf("invalid training calendar: %w", err)
	}

	client, err := garmin.NewClient(&cfg.Garmin, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create garmin client: %w", err)
	}

	ext := extractor.New(db, client, calendar, cfg.DataDir, cfg.Pipeline.FetchExports)
	return ext.Run(ctx, start, end, reset)
}

func runServer(ctx context.Context, cfg *config.Config, db *database.DB) {
	srv := server.New(db, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("server failed", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func serveMetrics(cfg *config.Config) {
	addr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}
