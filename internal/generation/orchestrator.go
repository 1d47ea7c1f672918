package generation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/accord/internal/archive"
	"github.com/JaimeStill/accord/internal/artifact"
	"github.com/JaimeStill/accord/internal/merge"
	"github.com/JaimeStill/accord/internal/templates"
	"github.com/JaimeStill/accord/pkg/formatting"
	"github.com/JaimeStill/accord/pkg/storage"
)

// Orchestrator drives bulk runs one item at a time.
type Orchestrator struct {
	Merger   merge.Merger
	Archive  archive.System
	Storage  storage.System
	Reporter Reporter
	Logger   *slog.Logger

	// ArchiveTimeout bounds each archive write. Zero disables the bound.
	ArchiveTimeout time.Duration
	// PackagePrefix is the storage key prefix for run packages.
	PackagePrefix string
	// MaxItems caps the selection size. Zero means unlimited.
	MaxItems int
}

// Validate rejects selections that must not start: empty, too large, or
// containing providers with no template.
func (o *Orchestrator) Validate(items []Item) error {
	if len(items) == 0 {
		return &ValidationError{Err: ErrEmptySelection}
	}
	if o.MaxItems > 0 && len(items) > o.MaxItems {
		return &ValidationError{Err: fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(items), o.MaxItems)}
	}

	var missing ValidationError
	for _, it := range items {
		if it.Template == nil {
			missing.Providers = append(missing.Providers, it.Provider.ID)
		}
	}
	if len(missing.Providers) > 0 {
		missing.Err = ErrMissingTemplate
		return &missing
	}
	return nil
}

// Admit moves run through VALIDATING. A failed validation leaves run
// REJECTED and returns the *ValidationError.
func (o *Orchestrator) Admit(run *Run, items []Item) error {
	run.validating(len(items))
	if err := o.Validate(items); err != nil {
		run.reject(err)
		o.logger().Warn("run rejected", "run_id", run.ID(), "error", err)
		return err
	}
	return nil
}

// Execute validates items and generates each in order, recording outcomes
// on run. A validation failure returns a *ValidationError with nothing
// processed. Cancellation, through run.Cancel or ctx, is checked between
// items and ends the run as CANCELLED with prior outcomes kept.
func (o *Orchestrator) Execute(ctx context.Context, run *Run, items []Item) (*Summary, error) {
	if err := o.Admit(run, items); err != nil {
		return nil, err
	}
	return o.process(ctx, run, items), nil
}

// process generates items for an admitted run.
func (o *Orchestrator) process(ctx context.Context, run *Run, items []Item) *Summary {
	logger := o.logger().With("run_id", run.ID())

	started := time.Now().UTC()
	run.running()
	logger.Info("run started", "items", len(items))
	o.report(ctx, run)

	status := StatusCompleted
	for i, it := range items {
		if run.Cancelled() || ctx.Err() != nil {
			status = StatusCancelled
			logger.Info("run cancelled", "completed", i, "total", len(items))
			break
		}

		run.begin(fmt.Sprintf("Generating contract %d of %d for %s", i+1, len(items), it.Provider.Name))
		o.report(ctx, run)

		out := o.generate(ctx, it)
		run.record(out)

		if out.Status == OutcomeFailed {
			logger.Error("item failed",
				"provider_id", out.ProviderID,
				"template_id", out.TemplateID,
				"error", out.Error,
			)
		} else {
			logger.Info("item generated",
				"provider_id", out.ProviderID,
				"status", out.Status,
				"warnings", len(out.Warnings),
			)
		}
		o.report(ctx, run)
	}

	outcomes := run.Outcomes()
	summary := summarize(run, status, len(items), outcomes, started)
	if hasSuccess(outcomes) {
		pkg, err := o.pack(ctx, run, outcomes)
		if err != nil {
			logger.Error("packaging failed", "error", err)
			summary.PackageError = err.Error()
		} else {
			summary.Package = pkg
		}
	}
	release(outcomes)

	run.finish(status, summary)
	if o.Reporter != nil {
		o.Reporter.Complete(ctx, *summary)
	}
	return summary
}

// generate merges, encodes, and archives one item. Every failure is
// captured in the returned outcome.
func (o *Orchestrator) generate(ctx context.Context, it Item) (out Outcome) {
	tmpl := *it.Template
	out = Outcome{
		ProviderID:   it.Provider.ID,
		ProviderName: it.Provider.Name,
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		Warnings:     []string{},
		Timestamp:    time.Now().UTC(),
	}

	fail := func(err error) Outcome {
		out.Status = OutcomeFailed
		out.Error = err.Error()
		out.Artifact = nil
		return out
	}

	res, data, enc, err := o.build(tmpl, it)
	if err != nil {
		return fail(err)
	}
	out.Warnings = res.Warnings

	out.Status = OutcomeSuccess
	if !res.Success {
		out.Status = OutcomePartialSuccess
	}
	out.Filename = artifact.Filename(it.Provider.Name, tmpl.Name, enc.Extension())
	out.ContentType = enc.ContentType()
	out.Artifact = data

	if o.Archive == nil {
		return out
	}

	actx := context.WithoutCancel(ctx)
	if o.ArchiveTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, o.ArchiveTimeout)
		defer cancel()
	}

	snap, err := o.Archive.Store(actx, archive.StoreCommand{
		Artifact:    data,
		Filename:    out.Filename,
		ContentType: out.ContentType,
		Provider:    it.Provider,
		Template:    tmpl,
		Mappings:    it.Mappings,
		Warnings:    res.Warnings,
	})
	if err != nil {
		return fail(err)
	}

	out.ContractID = &snap.ContractID
	out.Version = snap.Version
	out.Hash = snap.Hash
	out.Ref = snap.Ref
	return out
}

// build runs the merge and encoder, converting a panic into ErrMergeFailed.
func (o *Orchestrator) build(tmpl templates.Template, it Item) (res merge.Result, data []byte, enc artifact.Encoder, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMergeFailed, r)
		}
	}()

	enc, err = artifact.For(tmpl.Format)
	if err != nil {
		return res, nil, nil, fmt.Errorf("%w: %w", ErrMergeFailed, err)
	}

	res = o.Merger.Merge(tmpl, it.Provider, it.Bindings)

	data, err = enc.Encode(res.Body, tmpl.Shell)
	if err != nil {
		return res, nil, nil, fmt.Errorf("%w: %w", ErrMergeFailed, err)
	}
	return res, data, enc, nil
}

func (o *Orchestrator) pack(ctx context.Context, run *Run, outcomes []Outcome) (*Package, error) {
	if o.Storage == nil {
		return nil, fmt.Errorf("no package storage configured")
	}

	data, files, err := Bundle(outcomes)
	if err != nil {
		return nil, err
	}

	key := packageKey(o.PackagePrefix, run.ID().String(), time.Now())
	ref, err := o.Storage.Upload(context.WithoutCancel(ctx), key, bytes.NewReader(data), artifact.ContentTypeZip, map[string]string{
		"run_id": run.ID().String(),
		"files":  fmt.Sprint(len(files)),
	})
	if err != nil {
		return nil, fmt.Errorf("store package %s: %w", key, err)
	}

	o.logger().Info("package stored",
		"run_id", run.ID(),
		"key", key,
		"files", len(files),
		"size", formatting.FormatBytes(int64(len(data)), 1),
	)
	return &Package{Key: key, Ref: ref, Files: files, Size: int64(len(data))}, nil
}

func (o *Orchestrator) report(ctx context.Context, run *Run) {
	if o.Reporter != nil {
		o.Reporter.Progress(ctx, run.State())
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
