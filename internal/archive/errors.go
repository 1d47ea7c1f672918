package archive

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("snapshot not found")
	ErrWriteFailed       = errors.New("archive write failed")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrIntegrityMismatch = errors.New("artifact integrity mismatch")
	ErrInvalidArtifact   = errors.New("invalid artifact")
)

// MapHTTPStatus maps archive errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSnapshotExists):
		return http.StatusConflict
	case errors.Is(err, ErrIntegrityMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidArtifact):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
