package garmin

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a non-2xx response from the Garmin API
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("garmin API returned status %d: %s", e.StatusCode, e.Body)
}

func hasStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a 401 response
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsTooManyRequests reports whether err is a 429 response
func IsTooManyRequests(err error) bool {
	return hasStatus(err, http.StatusTooManyRequests)
}
