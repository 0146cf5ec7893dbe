package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated    = fmt.Errorf("missing or invalid credentials")
	ErrInvalidParticipant = fmt.Errorf("invalid participant")
	ErrNotAMember         = fmt.Errorf("not a member of this conversation")
	ErrNotFound           = fmt.Errorf("not found")
	ErrEmptyMessage       = fmt.Errorf("message needs text or an image")
	ErrInvalidImage       = fmt.Errorf("unsupported image")
)

// MapToHTTPStatus translates a domain error into the status returned by the
// REST layer. Anything outside the taxonomy is a store failure: surfaced as
// 503 so the caller knows it may retry.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidParticipant),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}
