package api

import (
	"github.com/JaimeStill/accord/internal/archive"
	"github.com/JaimeStill/accord/internal/blocks"
	"github.com/JaimeStill/accord/internal/config"
	"github.com/JaimeStill/accord/internal/generation"
	"github.com/JaimeStill/accord/internal/merge"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Providers  providers.System
	Templates  templates.System
	Blocks     blocks.System
	Archive    archive.System
	Generation generation.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime, cfg *config.Config) *Domain {
	db := runtime.Database.Connection()

	providersSystem := providers.New(db, runtime.Logger, runtime.Pagination)

	templatesSystem := templates.New(
		db,
		templates.NewPlaceholderCache(cfg.Generation.CacheEntries),
		runtime.Logger,
		runtime.Pagination,
	)

	blocksSystem := blocks.New(db, runtime.Logger, runtime.Pagination)

	archiveSystem := archive.New(runtime.Storage, runtime.Logger)

	orchestrator := &generation.Orchestrator{
		Merger: merge.Merger{
			Schema: providers.DefaultSchema,
			Policy: cfg.Generation.Policy(),
		},
		Archive: archiveSystem,
		Storage: runtime.Storage,
		Reporter: generation.Reporters{
			generation.NewLogReporter(runtime.Logger.With("system", "generation")),
			generation.NewEventReporter(runtime.Events, runtime.Logger),
		},
		Logger:         runtime.Logger,
		ArchiveTimeout: cfg.Generation.ArchiveTimeoutDuration(),
		PackagePrefix:  cfg.Generation.PackagePrefix,
		MaxItems:       cfg.Generation.MaxItems,
	}

	generationSystem := generation.New(generation.Deps{
		Providers:    providersSystem,
		Templates:    templatesSystem,
		Blocks:       blocksSystem,
		Orchestrator: orchestrator,
		Storage:      runtime.Storage,
		History:      generation.NewHistory(db, runtime.Logger, runtime.Pagination),
		Lifecycle:    runtime.Lifecycle,
		Pagination:   runtime.Pagination,
		Logger:       runtime.Logger,
	})

	return &Domain{
		Providers:  providersSystem,
		Templates:  templatesSystem,
		Blocks:     blocksSystem,
		Archive:    archiveSystem,
		Generation: generationSystem,
	}
}
