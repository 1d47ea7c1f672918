package blocks

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/pagination"
	"github.com/JaimeStill/accord/pkg/query"
	"github.com/JaimeStill/accord/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a Postgres-backed dynamic block repository.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "blocks"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Block], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Placeholder").
		OrderBy(page.Sort)

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanBlock)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Block, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	b, err := repository.QueryOne(ctx, r.db, q, args, scanBlock)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) FindMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Block, error) {
	out := make(map[uuid.UUID]Block, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}

	q, args := query.NewBuilder(projection).WhereIn("ID", values).Build()
	found, err := repository.QueryMany(ctx, r.db, q, args, scanBlock)
	if err != nil {
		return nil, fmt.Errorf("find blocks: %w", err)
	}

	for _, b := range found {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		out[b.ID] = b
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return out, nil
}
