package garmin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"garmin-activity-sync/internal/config"
	"garmin-activity-sync/internal/metrics"
)

// Client talks to the Garmin Connect API using a pre-obtained session
// token. There is no automatic retry: a failed request surfaces to the
// caller, which skips the unit of work and leaves it for a later re-run.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger

	// Fixed pause between requests. The vendor publishes no official
	// rate limit; sequential paced requests have proven safe.
	requestDelay time.Duration
	lastRequest  time.Time
}

// NewClient creates a Garmin API client from configuration, loading the
// session token from the configured token file.
func NewClient(cfg *config.GarminConfig, logger *slog.Logger) (*Client, error) {
	token, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		token:        token,
		logger:       logger,
		requestDelay: time.Duration(cfg.RequestDelayMS) * time.Millisecond,
	}, nil
}

// loadToken reads the session token written by the external login helper
func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file %s: %w", path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

// doRequest performs one paced GET request and returns the response body.
// Non-2xx responses become *HTTPError.
func (c *Client) doRequest(ctx context.Context, path, operation string) ([]byte, error) {
	c.pace(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("garmin request failed", "operation", operation, "error", err, "duration_ms", duration.Milliseconds())
		metrics.VendorRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("garmin request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("garmin_api_request",
		"operation", operation,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds())
	metrics.VendorRequestsTotal.WithLabelValues(operation, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	metrics.VendorRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// pace sleeps so that consecutive requests are at least requestDelay
// apart. Context cancellation cuts the wait short.
func (c *Client) pace(ctx context.Context) {
	if c.requestDelay <= 0 {
		return
	}
	elapsed := time.Since(c.lastRequest)
	if wait := c.requestDelay - elapsed; wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	c.lastRequest = time.Now()
}
