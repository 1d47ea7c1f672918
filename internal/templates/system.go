package templates

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/pagination"
)

// System is the read-only template repository.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Template], error)
	// Find returns the template with its placeholder set derived from the current body.
	Find(ctx context.Context, id uuid.UUID) (*Template, error)
	// Mappings returns the validated field mappings for a template.
	Mappings(ctx context.Context, templateID uuid.UUID) ([]Mapping, error)
	// Placeholders extracts the placeholder set of an arbitrary body.
	Placeholders(body string) []string
}
