package api

import (
	"errors"
	"fmt"
	"net/http"

	"finwise/internal/core"
)

var (
	// ErrUnauthorized is returned for missing, malformed or expired tokens and
	// for 401/403 answers of the backend.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = core.ErrNotFound
	// ErrUnavailable wraps transport failures and 5xx answers.
	ErrUnavailable = errors.New("backend unavailable")
)

// APIError is a non-2xx answer of the backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrUnavailable
	}
	return nil
}
