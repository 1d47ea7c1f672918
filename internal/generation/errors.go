package generation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/blocks"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
)

var (
	ErrEmptySelection  = errors.New("no providers selected")
	ErrMissingTemplate = errors.New("provider has no assigned template")
	ErrTooManyItems    = errors.New("selection exceeds the run limit")
	ErrMergeFailed     = errors.New("contract generation failed")
	ErrRunNotFound     = errors.New("generation run not found")
	ErrRunFinished     = errors.New("generation run already finished")
	ErrRunActive       = errors.New("generation run still active")
	ErrNothingToRetry  = errors.New("generation run has no failed items")
	ErrNoPackage       = errors.New("generation run produced no package")
)

// ValidationError rejects a whole run before any item is processed.
type ValidationError struct {
	Err       error
	Providers []uuid.UUID
}

func (e *ValidationError) Error() string {
	if len(e.Providers) == 0 {
		return e.Err.Error()
	}
	ids := make([]string, len(e.Providers))
	for i, id := range e.Providers {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", e.Err, strings.Join(ids, ", "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MapHTTPStatus maps generation errors, and the repository errors a run
// surfaces while loading its selection, to HTTP status codes.
func MapHTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRunNotFound), errors.Is(err, ErrNoPackage),
		errors.Is(err, providers.ErrNotFound), errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, templates.ErrInvalidMapping), errors.Is(err, blocks.ErrInvalidCondition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRunFinished), errors.Is(err, ErrRunActive), errors.Is(err, ErrNothingToRetry):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
