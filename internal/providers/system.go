package providers

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/pagination"
)

// System is the read-only provider repository.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Record], error)
	Find(ctx context.Context, id uuid.UUID) (*Record, error)
	// FindMany returns the records for ids in the order requested.
	// A missing id is reported as ErrNotFound.
	FindMany(ctx context.Context, ids []uuid.UUID) ([]Record, error)
}
