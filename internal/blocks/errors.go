package blocks

import (
	"errors"
	"net/http"
)

// Domain errors for dynamic block operations.
var (
	ErrNotFound         = errors.New("dynamic block not found")
	ErrInvalidCondition = errors.New("invalid block condition")
)

// MapHTTPStatus maps block domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidCondition) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
