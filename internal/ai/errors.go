package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrUpstreamUnavailable = errors.New("classifier upstream unavailable")
	ErrInvalidCredentials  = errors.New("classifier credentials rejected")
	ErrMalformedResponse   = errors.New("classifier response malformed")
	ErrNoCandidates        = errors.New("no candidate prompts")
)

// StatusError is a non-2xx reply from the classifier endpoint. It unwraps to
// ErrInvalidCredentials for 401/403 and ErrUpstreamUnavailable otherwise.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("classifier request: http %d: %s", e.StatusCode, body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrInvalidCredentials
	}
	return ErrUpstreamUnavailable
}

// Transient reports whether the request may succeed if repeated.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}
