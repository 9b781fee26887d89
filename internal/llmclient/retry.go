package llmclient

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// defaultBackOff retries with exponential delays, at most maxRetries times
// after the first attempt.
func defaultBackOff(maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithMaxRetries(b, uint64(maxRetries))
}

// isTransientStatus reports whether an HTTP status is worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
		return true
	default:
		return false
	}
}
