package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNotFoundFamily(t *testing.T) {
	for _, err := range []error{ErrEmptyQuery, ErrNoMatch} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%v should wrap ErrNotFound", err)
		}
	}
	if errors.Is(ErrEmptyQuery, ErrNoMatch) || errors.Is(ErrNoMatch, ErrEmptyQuery) {
		t.Error("empty query and no match must stay distinguishable")
	}
}

func TestReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrEmptyQuery, "empty_query"},
		{fmt.Errorf("query: %w", ErrNoMatch), "no_match"},
		{ErrNotFound, "not_found"},
		{ErrInternal, ""},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := Reason(tc.err); got != tc.want {
			t.Errorf("Reason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrNoMatch, http.StatusNotFound},
		{fmt.Errorf("k: %w", ErrInvalidArgument), http.StatusBadRequest},
		{ErrIndexNotReady, http.StatusServiceUnavailable},
		{ErrFetchFailed, http.StatusBadGateway},
		{New(ErrInternal, http.StatusTeapot, "custom"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatusCode(tc.err); got != tc.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrSnapshotCorrupt, http.StatusInternalServerError, "bad checksum %x", 0xdead)
	if !errors.Is(err, ErrSnapshotCorrupt) {
		t.Fatal("AppError should unwrap to its sentinel")
	}
	if err.Error() != "snapshot corrupt: bad checksum dead" {
		t.Errorf("Error() = %q", err.Error())
	}
}
