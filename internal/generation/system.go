package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/artifact"
	"github.com/JaimeStill/accord/internal/blocks"
	"github.com/JaimeStill/accord/internal/merge"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
	"github.com/JaimeStill/accord/pkg/lifecycle"
	"github.com/JaimeStill/accord/pkg/pagination"
	"github.com/JaimeStill/accord/pkg/storage"
)

// retainedRuns bounds how many finished runs stay queryable in memory.
const retainedRuns = 256

// StartCommand selects providers for a run. TemplateID overrides each
// provider's assigned template.
type StartCommand struct {
	ProviderIDs []uuid.UUID `json:"provider_ids"`
	TemplateID  *uuid.UUID  `json:"template_id,omitempty"`
}

// PreviewCommand merges one provider without encoding or archiving.
type PreviewCommand struct {
	ProviderID uuid.UUID  `json:"provider_id"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

// PreviewResult is the merge of one provider and template.
type PreviewResult struct {
	merge.Result
	ProviderID   uuid.UUID `json:"provider_id"`
	TemplateID   uuid.UUID `json:"template_id"`
	Placeholders []string  `json:"placeholders"`
}

// System runs and tracks bulk generations.
type System interface {
	Handler() *Handler

	Preview(ctx context.Context, cmd PreviewCommand) (*PreviewResult, error)
	// Start validates the selection and launches the run in the background.
	Start(ctx context.Context, cmd StartCommand) (*State, error)
	Find(id uuid.UUID) (*State, error)
	// Cancel requests a cooperative stop of an active run.
	Cancel(id uuid.UUID) (*State, error)
	// Retry launches a new run over the FAILED items of a finished run.
	Retry(ctx context.Context, id uuid.UUID) (*State, error)
	History(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[RunRecord], error)
	Package(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Package, error)
}

// Deps are the collaborators a generation system reads from and writes to.
type Deps struct {
	Providers    providers.System
	Templates    templates.System
	Blocks       blocks.System
	Orchestrator *Orchestrator
	Storage      storage.System
	// History is optional; finished runs are persisted when set.
	History    History
	Lifecycle  *lifecycle.Coordinator
	Pagination pagination.Config
	Logger     *slog.Logger
}

type entry struct {
	run   *Run
	items []Item
	done  chan struct{}
}

type system struct {
	deps   Deps
	ctx    context.Context
	logger *slog.Logger
	wg     sync.WaitGroup

	mu    sync.RWMutex
	runs  map[uuid.UUID]*entry
	order []uuid.UUID
}

// New creates a generation system. When deps.Lifecycle is set, active runs
// stop at their next item boundary on shutdown and are awaited.
func New(deps Deps) System {
	s := &system{
		deps:   deps,
		ctx:    context.Background(),
		logger: deps.Logger.With("system", "generation"),
		runs:   make(map[uuid.UUID]*entry),
	}

	if lc := deps.Lifecycle; lc != nil {
		s.ctx = lc.Context()
		lc.OnShutdown(func() {
			<-lc.Context().Done()
			s.wg.Wait()
			s.logger.Info("generation runs drained")
		})
	}
	return s
}

func (s *system) Handler() *Handler {
	return NewHandler(s, s.logger, s.deps.Pagination)
}

func (s *system) Preview(ctx context.Context, cmd PreviewCommand) (*PreviewResult, error) {
	rec, err := s.deps.Providers.Find(ctx, cmd.ProviderID)
	if err != nil {
		return nil, err
	}

	loader := s.newLoader()
	item, err := loader.item(ctx, *rec, cmd.TemplateID)
	if err != nil {
		return nil, err
	}
	if item.Template == nil {
		return nil, &ValidationError{Err: ErrMissingTemplate, Providers: []uuid.UUID{rec.ID}}
	}

	res := s.deps.Orchestrator.Merger.Merge(*item.Template, item.Provider, item.Bindings)
	return &PreviewResult{
		Result:       res,
		ProviderID:   rec.ID,
		TemplateID:   item.Template.ID,
		Placeholders: item.Template.Placeholders,
	}, nil
}

func (s *system) Start(ctx context.Context, cmd StartCommand) (*State, error) {
	if len(cmd.ProviderIDs) == 0 {
		return s.launch(nil)
	}

	recs, err := s.deps.Providers.FindMany(ctx, cmd.ProviderIDs)
	if err != nil {
		if errors.Is(err, providers.ErrNotFound) {
			return nil, &ValidationError{Err: err}
		}
		return nil, fmt.Errorf("load providers: %w", err)
	}

	loader := s.newLoader()
	items := make([]Item, 0, len(recs))
	for _, rec := range recs {
		it, err := loader.item(ctx, rec, cmd.TemplateID)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return s.launch(items)
}

func (s *system) Find(id uuid.UUID) (*State, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	st := e.run.State()
	return &st, nil
}

func (s *system) Cancel(id uuid.UUID) (*State, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	if e.run.Status().Finished() {
		return nil, fmt.Errorf("%w: %s", ErrRunFinished, id)
	}

	e.run.Cancel()
	s.logger.Info("run cancellation requested", "run_id", id)

	st := e.run.State()
	return &st, nil
}

func (s *system) Retry(ctx context.Context, id uuid.UUID) (*State, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	st := e.run.State()
	if !st.Status.Finished() {
		return nil, fmt.Errorf("%w: %s", ErrRunActive, id)
	}
	if st.Summary == nil {
		return nil, fmt.Errorf("%w: %s", ErrNothingToRetry, id)
	}

	items := RetryItems(st.Summary, e.items)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToRetry, id)
	}

	s.logger.Info("retrying failed items", "run_id", id, "items", len(items))
	return s.launch(items)
}

func (s *system) History(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[RunRecord], error) {
	if s.deps.History == nil {
		result := pagination.NewPageResult([]RunRecord{}, 0, page)
		return &result, nil
	}
	return s.deps.History.List(ctx, page)
}

func (s *system) Package(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Package, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, nil, err
	}

	st := e.run.State()
	if st.Summary == nil || st.Summary.Package == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoPackage, id)
	}

	pkg := st.Summary.Package
	rc, err := s.deps.Storage.Download(ctx, pkg.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoPackage, id)
		}
		return nil, nil, err
	}
	return rc, pkg, nil
}

// launch registers a run, validates items, and executes them on a
// background goroutine. A rejected run stays registered and its state is
// returned alongside the *ValidationError.
func (s *system) launch(items []Item) (*State, error) {
	run := NewRun()
	e := &entry{run: run, items: items, done: make(chan struct{})}

	if err := s.deps.Orchestrator.Admit(run, items); err != nil {
		close(e.done)
		s.register(e)
		st := run.State()
		return &st, err
	}
	s.register(e)

	s.wg.Go(func() {
		defer close(e.done)

		summary := s.deps.Orchestrator.process(s.ctx, run, items)

		if s.deps.History != nil {
			if err := s.deps.History.Record(context.WithoutCancel(s.ctx), *summary); err != nil {
				s.logger.Error("run history write failed", "run_id", run.ID(), "error", err)
			}
		}
	})

	st := run.State()
	return &st, nil
}

func (s *system) register(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := e.run.ID()
	s.runs[id] = e
	s.order = append(s.order, id)

	for len(s.order) > retainedRuns {
		oldest := s.runs[s.order[0]]
		if !oldest.run.Status().Finished() {
			break
		}
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *system) entry(id uuid.UUID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return e, nil
}

func (s *system) newLoader() *loader {
	return &loader{
		templates: s.deps.Templates,
		blocks:    s.deps.Blocks,
		cache:     make(map[uuid.UUID]*loaded),
	}
}

// loader resolves each template, its mappings, and referenced blocks once per selection.
type loader struct {
	templates templates.System
	blocks    blocks.System
	cache     map[uuid.UUID]*loaded
}

type loaded struct {
	template *templates.Template
	mappings []templates.Mapping
	bindings merge.Bindings
}

func (l *loader) item(ctx context.Context, rec providers.Record, override *uuid.UUID) (Item, error) {
	it := Item{Provider: rec}

	tid := override
	if tid == nil {
		tid = rec.TemplateID
	}
	if tid == nil {
		return it, nil
	}

	ld, err := l.load(ctx, *tid)
	if err != nil {
		return it, err
	}

	it.Template = ld.template
	it.Mappings = ld.mappings
	it.Bindings = ld.bindings
	return it, nil
}

func (l *loader) load(ctx context.Context, id uuid.UUID) (*loaded, error) {
	if ld, ok := l.cache[id]; ok {
		return ld, nil
	}

	ld := &loaded{}
	tmpl, err := l.templates.Find(ctx, id)
	if err != nil {
		if !errors.Is(err, templates.ErrNotFound) {
			return nil, fmt.Errorf("load template %s: %w", id, err)
		}
		l.cache[id] = ld
		return ld, nil
	}

	if _, err := artifact.For(tmpl.Format); err != nil {
		return nil, &ValidationError{Err: err}
	}

	mappings, err := l.templates.Mappings(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load mappings for %s: %w", id, err)
	}

	found, err := l.blocks.FindMany(ctx, merge.BlockIDs(mappings))
	if err != nil {
		if errors.Is(err, blocks.ErrNotFound) {
			return nil, &ValidationError{Err: fmt.Errorf("template %s: %w", id, err)}
		}
		return nil, fmt.Errorf("load blocks for %s: %w", id, err)
	}

	list := make([]blocks.Block, 0, len(found))
	for _, b := range found {
		list = append(list, b)
	}

	ld.template = tmpl
	ld.mappings = mappings
	ld.bindings = merge.NewBindings(mappings, list)
	l.cache[id] = ld
	return ld, nil
}
