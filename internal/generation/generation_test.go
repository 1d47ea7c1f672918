package generation_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/archive"
	"github.com/JaimeStill/accord/internal/generation"
	"github.com/JaimeStill/accord/internal/merge"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
	"github.com/JaimeStill/accord/pkg/storage"
)

type countingArchive struct {
	archive.System
	stores atomic.Int32
	fail   map[uuid.UUID]bool
}

func (c *countingArchive) Store(ctx context.Context, cmd archive.StoreCommand) (*archive.Snapshot, error) {
	c.stores.Add(1)
	if c.fail[cmd.Provider.ID] {
		return nil, fmt.Errorf("%w: upload timed out", archive.ErrWriteFailed)
	}
	return c.System.Store(ctx, cmd)
}

type recordingReporter struct {
	states  []generation.State
	summary *generation.Summary
	onState func(generation.State)
}

func (r *recordingReporter) Progress(ctx context.Context, s generation.State) {
	r.states = append(r.states, s)
	if r.onState != nil {
		r.onState(s)
	}
}

func (r *recordingReporter) Complete(ctx context.Context, s generation.Summary) {
	r.summary = &s
}

func newStore(t *testing.T) storage.System {
	t.Helper()
	store, err := storage.NewFilesystem(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return store
}

func newOrchestrator(t *testing.T) (*generation.Orchestrator, *countingArchive, *recordingReporter) {
	t.Helper()
	store := newStore(t)
	arch := &countingArchive{System: archive.New(store, slog.Default()), fail: map[uuid.UUID]bool{}}
	rep := &recordingReporter{}

	return &generation.Orchestrator{
		Merger:        merge.Merger{Schema: providers.DefaultSchema},
		Archive:       arch,
		Storage:       store,
		Reporter:      rep,
		Logger:        slog.Default(),
		PackagePrefix: "packages",
	}, arch, rep
}

var physician = &templates.Template{
	ID:     uuid.MustParse("33333333-3333-3333-3333-333333333333"),
	Name:   "Physician",
	Format: templates.FormatHTML,
	Body:   "<p>{{ProviderName}} earns {{BaseSalary}} from {{EffectiveDate}}</p>",
}

func item(name string, tmpl *templates.Template) generation.Item {
	return generation.Item{
		Provider: providers.NewRecord(uuid.New(), name, map[string]string{
			"ProviderName":  name,
			"BaseSalary":    "250000",
			"EffectiveDate": "2025-07-01",
		}, providers.DefaultSchema),
		Template: tmpl,
	}
}

func statuses(outcomes []generation.Outcome) []generation.OutcomeStatus {
	out := make([]generation.OutcomeStatus, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Status
	}
	return out
}

func TestExecuteRejectsMissingTemplate(t *testing.T) {
	orch, arch, _ := newOrchestrator(t)
	items := []generation.Item{item("A", physician), item("B", nil), item("C", physician)}
	run := generation.NewRun()

	summary, err := orch.Execute(context.Background(), run, items)

	var ve *generation.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, generation.ErrMissingTemplate) {
		t.Fatalf("err = %v, want ValidationError(ErrMissingTemplate)", err)
	}
	if diff := cmp.Diff([]uuid.UUID{items[1].Provider.ID}, ve.Providers); diff != "" {
		t.Errorf("Providers mismatch (-want +got):\n%s", diff)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil", summary)
	}
	if n := len(run.Outcomes()); n != 0 {
		t.Errorf("outcomes = %d, want 0", n)
	}
	if arch.stores.Load() != 0 {
		t.Errorf("archive stores = %d, want 0", arch.stores.Load())
	}
	if run.Status() != generation.StatusRejected {
		t.Errorf("status = %s, want REJECTED", run.Status())
	}
}

func TestExecuteEmptySelection(t *testing.T) {
	orch, _, _ := newOrchestrator(t)

	_, err := orch.Execute(context.Background(), generation.NewRun(), nil)
	if !errors.Is(err, generation.ErrEmptySelection) {
		t.Fatalf("err = %v, want ErrEmptySelection", err)
	}
}

func TestExecuteMaxItems(t *testing.T) {
	orch, _, _ := newOrchestrator(t)
	orch.MaxItems = 1

	_, err := orch.Execute(context.Background(), generation.NewRun(), []generation.Item{item("A", physician), item("B", physician)})
	if !errors.Is(err, generation.ErrTooManyItems) {
		t.Fatalf("err = %v, want ErrTooManyItems", err)
	}
}

func TestExecuteContinuesAfterFailure(t *testing.T) {
	orch, arch, rep := newOrchestrator(t)

	broken := &templates.Template{ID: uuid.New(), Name: "Broken", Format: templates.FormatDOCX, Body: "x", Shell: []byte("not a zip")}
	items := []generation.Item{item("A", physician), item("B", broken), item("C", physician)}

	summary, err := orch.Execute(context.Background(), generation.NewRun(), items)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []generation.OutcomeStatus{generation.OutcomeSuccess, generation.OutcomeFailed, generation.OutcomeSuccess}
	if diff := cmp.Diff(want, statuses(summary.Outcomes)); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
	if summary.Status != generation.StatusCompleted {
		t.Errorf("status = %s", summary.Status)
	}
	if summary.Succeeded != 2 || summary.Failed != 1 || summary.Unprocessed != 0 {
		t.Errorf("counts = %+v", summary)
	}
	if summary.Outcomes[1].Error == "" || summary.Outcomes[1].ContractID != nil {
		t.Errorf("failed outcome = %+v", summary.Outcomes[1])
	}
	if arch.stores.Load() != 2 {
		t.Errorf("archive stores = %d, want 2", arch.stores.Load())
	}
	if summary.Package == nil || len(summary.Package.Files) != 2 {
		t.Fatalf("package = %+v, want 2 files", summary.Package)
	}
	if rep.summary == nil || rep.summary.RunID != summary.RunID {
		t.Error("reporter did not receive completion")
	}
}

func TestExecuteArchiveFailure(t *testing.T) {
	orch, arch, _ := newOrchestrator(t)
	items := []generation.Item{item("A", physician), item("B", physician)}
	arch.fail[items[0].Provider.ID] = true

	summary, err := orch.Execute(context.Background(), generation.NewRun(), items)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []generation.OutcomeStatus{generation.OutcomeFailed, generation.OutcomeSuccess}
	if diff := cmp.Diff(want, statuses(summary.Outcomes)); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
	if summary.Package == nil || len(summary.Package.Files) != 1 {
		t.Errorf("package = %+v, want only the archived artifact", summary.Package)
	}
}

func TestExecutePartialSuccess(t *testing.T) {
	orch, _, _ := newOrchestrator(t)
	gaps := &templates.Template{ID: uuid.New(), Name: "Gaps", Format: templates.FormatText, Body: "{{ProviderName}} {{Unknown}}"}

	t.Run("partial only has no package", func(t *testing.T) {
		summary, err := orch.Execute(context.Background(), generation.NewRun(), []generation.Item{item("A", gaps)})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		o := summary.Outcomes[0]
		if o.Status != generation.OutcomePartialSuccess || len(o.Warnings) != 1 || o.ContractID == nil {
			t.Errorf("outcome = %+v", o)
		}
		if summary.Package != nil {
			t.Errorf("package = %+v, want none without a SUCCESS", summary.Package)
		}
	})

	t.Run("partial packaged alongside success", func(t *testing.T) {
		summary, err := orch.Execute(context.Background(), generation.NewRun(), []generation.Item{item("A", gaps), item("B", physician)})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if summary.Package == nil || len(summary.Package.Files) != 2 {
			t.Errorf("package = %+v, want 2 files", summary.Package)
		}
	})
}

func TestExecuteCancellation(t *testing.T) {
	orch, arch, rep := newOrchestrator(t)
	run := generation.NewRun()
	rep.onState = func(s generation.State) {
		if s.Completed == 1 {
			run.Cancel()
		}
	}

	items := make([]generation.Item, 5)
	for i := range items {
		items[i] = item(fmt.Sprintf("P%d", i), physician)
	}

	summary, err := orch.Execute(context.Background(), run, items)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(summary.Outcomes) != 1 {
		t.Errorf("outcomes = %d, want 1", len(summary.Outcomes))
	}
	if summary.Status != generation.StatusCancelled || run.Status() != generation.StatusCancelled {
		t.Errorf("status = %s / %s, want CANCELLED", summary.Status, run.Status())
	}
	if summary.Unprocessed != 4 {
		t.Errorf("unprocessed = %d, want 4", summary.Unprocessed)
	}
	if arch.stores.Load() != 1 {
		t.Errorf("archive stores = %d, want 1", arch.stores.Load())
	}
}

func TestExecuteContextCancelled(t *testing.T) {
	orch, arch, _ := newOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := orch.Execute(ctx, generation.NewRun(), []generation.Item{item("A", physician)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary.Status != generation.StatusCancelled || len(summary.Outcomes) != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if arch.stores.Load() != 0 {
		t.Errorf("archive stores = %d", arch.stores.Load())
	}
}

func TestExecuteProgressMonotonic(t *testing.T) {
	orch, _, rep := newOrchestrator(t)
	items := []generation.Item{item("A", physician), item("B", physician), item("C", physician)}

	run := generation.NewRun()
	if _, err := orch.Execute(context.Background(), run, items); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	last := -1
	for _, s := range rep.states {
		if s.Percent < last {
			t.Fatalf("percent decreased: %d after %d", s.Percent, last)
		}
		last = s.Percent
	}
	if last != 100 {
		t.Errorf("final percent = %d, want 100", last)
	}

	st := run.State()
	if st.Completed != 3 || st.Summary == nil || st.FinishedAt == nil {
		t.Errorf("state = %+v", st)
	}
}

func TestExecuteReleasesArtifacts(t *testing.T) {
	orch, _, _ := newOrchestrator(t)
	run := generation.NewRun()

	summary, err := orch.Execute(context.Background(), run, []generation.Item{item("A", physician), item("B", physician)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if summary.Package == nil || len(summary.Package.Files) != 2 {
		t.Fatalf("package = %+v, want two files", summary.Package)
	}

	for _, o := range append(summary.Outcomes, run.Outcomes()...) {
		if o.Artifact != nil {
			t.Errorf("%s retains %d artifact bytes", o.Filename, len(o.Artifact))
		}
		if o.ContractID == nil {
			t.Errorf("%s has no archived contract", o.Filename)
		}
	}
}

func TestAdmit(t *testing.T) {
	orch, _, _ := newOrchestrator(t)

	t.Run("accepted", func(t *testing.T) {
		run := generation.NewRun()
		if err := orch.Admit(run, []generation.Item{item("A", physician)}); err != nil {
			t.Fatalf("Admit: %v", err)
		}
		if run.Status() != generation.StatusValidating {
			t.Errorf("status = %s, want VALIDATING", run.Status())
		}
	})

	t.Run("rejected", func(t *testing.T) {
		run := generation.NewRun()
		err := orch.Admit(run, []generation.Item{item("A", nil)})
		if !errors.Is(err, generation.ErrMissingTemplate) {
			t.Fatalf("err = %v, want ErrMissingTemplate", err)
		}
		st := run.State()
		if st.Status != generation.StatusRejected || st.Error == "" || st.FinishedAt == nil {
			t.Errorf("state = %+v, want finished REJECTED", st)
		}
	})
}

func TestExecuteMergedContent(t *testing.T) {
	orch, _, _ := newOrchestrator(t)
	it := item("Dr. Ada", physician)

	summary, err := orch.Execute(context.Background(), generation.NewRun(), []generation.Item{it})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	o := summary.Outcomes[0]
	snap, err := orch.Archive.Find(context.Background(), *o.ContractID, o.Version)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	data, err := orch.Archive.Artifact(context.Background(), *snap)
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}

	want := "<p>Dr. Ada earns $250,000 from 07/01/2025</p>"
	if !strings.Contains(string(data), want) {
		t.Errorf("artifact = %q, want it to contain %q", data, want)
	}
	if o.Filename != "Dr_Ada_Physician.html" {
		t.Errorf("filename = %q", o.Filename)
	}
}

func TestRetryItems(t *testing.T) {
	items := []generation.Item{item("A", physician), item("B", physician), item("C", physician), item("D", nil)}
	summary := &generation.Summary{Outcomes: []generation.Outcome{
		{ProviderID: items[0].Provider.ID, TemplateID: physician.ID, Status: generation.OutcomeSuccess},
		{ProviderID: items[1].Provider.ID, TemplateID: physician.ID, Status: generation.OutcomeFailed},
		{ProviderID: items[2].Provider.ID, TemplateID: physician.ID, Status: generation.OutcomePartialSuccess},
	}}

	retry := generation.RetryItems(summary, items)
	if len(retry) != 1 || retry[0].Provider.ID != items[1].Provider.ID {
		t.Errorf("retry = %d items, want only B", len(retry))
	}
}

func TestBundle(t *testing.T) {
	outcomes := []generation.Outcome{
		{Status: generation.OutcomeSuccess, Filename: "a.html", Artifact: []byte("1")},
		{Status: generation.OutcomePartialSuccess, Filename: "a.html", Artifact: []byte("2")},
		{Status: generation.OutcomeFailed, Filename: "b.html"},
		{Status: generation.OutcomeSuccess, Filename: "a-2.html", Artifact: []byte("3")},
	}

	_, files, err := generation.Bundle(outcomes)
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	want := []string{"a.html", "a-2.html", "a-2-2.html"}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &generation.ValidationError{Err: generation.ErrEmptySelection}, http.StatusUnprocessableEntity},
		{"run not found", generation.ErrRunNotFound, http.StatusNotFound},
		{"provider not found", fmt.Errorf("x: %w", providers.ErrNotFound), http.StatusNotFound},
		{"finished", generation.ErrRunFinished, http.StatusConflict},
		{"nothing to retry", generation.ErrNothingToRetry, http.StatusConflict},
		{"invalid mapping", templates.ErrInvalidMapping, http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generation.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	id := uuid.MustParse("44444444-4444-4444-4444-444444444444")
	err := &generation.ValidationError{Err: generation.ErrMissingTemplate, Providers: []uuid.UUID{id}}

	want := "provider has no assigned template: 44444444-4444-4444-4444-444444444444"
	if err.Error() != want {
		t.Errorf("Error = %q, want %q", err.Error(), want)
	}
}
