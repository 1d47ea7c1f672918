package templates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/pagination"
	"github.com/JaimeStill/accord/pkg/query"
	"github.com/JaimeStill/accord/pkg/repository"
)

type repo struct {
	db         *sql.DB
	cache      *PlaceholderCache
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a Postgres-backed template repository.
func New(db *sql.DB, cache *PlaceholderCache, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		cache:      cache,
		logger:     logger.With("system", "templates"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Template], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name").
		OrderBy(page.Sort)
	filters.Apply(qb)

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanTemplate)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	for i := range result.Data {
		result.Data[i].Derive(r.cache)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Template, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	t, err := repository.QueryOne(ctx, r.db, q, args, scanTemplate)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, err)
	}

	stale := t.BodyHash != Hash(t.Body)
	t.Derive(r.cache)
	if stale {
		r.logger.Warn("stored placeholders stale, re-derived", "template_id", id)
	}
	return &t, nil
}

func (r *repo) Mappings(ctx context.Context, templateID uuid.UUID) ([]Mapping, error) {
	q, args := query.NewBuilder(mappingProjection, query.SortField{Field: "Placeholder"}).
		WhereEquals("TemplateID", templateID).
		Build()

	mappings, err := repository.QueryMany(ctx, r.db, q, args, scanMapping)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}

	var errs []error
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return mappings, nil
}

func (r *repo) Placeholders(body string) []string {
	return r.cache.Get(body)
}
