package blocks

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/pagination"
)

// System is the read-only dynamic block repository.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Block], error)
	Find(ctx context.Context, id uuid.UUID) (*Block, error)
	// FindMany returns the blocks for ids keyed by id. Missing ids are ErrNotFound.
	FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Block, error)
}
