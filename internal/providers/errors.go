package providers

import (
	"errors"
	"net/http"
)

// ErrNotFound indicates the requested provider does not exist.
var ErrNotFound = errors.New("provider not found")

// MapHTTPStatus maps provider domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
