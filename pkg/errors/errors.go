// Package errors defines the sentinel errors shared across the crawler, the
// index and the search service, plus an AppError carrying an HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is the "no result" outcome of a query. ErrEmptyQuery and
	// ErrNoMatch both wrap it.
	ErrNotFound = errors.New("not found")

	ErrEmptyQuery       = fmt.Errorf("query produced no terms: %w", ErrNotFound)
	ErrNoMatch          = fmt.Errorf("no query term matched the vocabulary: %w", ErrNotFound)
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrIndexNotReady    = errors.New("index not ready")
	ErrSnapshotCorrupt  = errors.New("snapshot corrupt")
	ErrSnapshotVersion  = errors.New("unsupported snapshot version")
	ErrDocumentNotFound = errors.New("document not found")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Reason returns a short machine-readable label for a not-found outcome,
// or "" when err is not one.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotReady), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
