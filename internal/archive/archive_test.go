package archive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/archive"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
	"github.com/JaimeStill/accord/pkg/storage"
)

func newStore(t *testing.T) (storage.System, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFilesystem(root, slog.Default())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return store, root
}

func command() archive.StoreCommand {
	return archive.StoreCommand{
		Artifact:    []byte("<p>Dr. Ada: $250,000</p>"),
		Filename:    "Dr_Ada_Physician.html",
		ContentType: "text/html; charset=utf-8",
		Provider: providers.Record{
			ID:     uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			Name:   "Dr. Ada",
			Fields: map[string]any{"BaseSalary": 250000.0},
			Extra:  map[string]string{"Pager": "x1"},
		},
		Template: templates.Template{
			ID:           uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			Name:         "Physician",
			ContractYear: 2025,
			Format:       templates.FormatHTML,
			Body:         "<p>{{ProviderName}}: {{BaseSalary}}</p>",
			Placeholders: []string{"ProviderName", "BaseSalary"},
		},
		Warnings: []string{"unresolved placeholder: ProviderName"},
	}
}

func TestContractID(t *testing.T) {
	p, tmpl := uuid.New(), uuid.New()

	if archive.ContractID(p, tmpl) != archive.ContractID(p, tmpl) {
		t.Error("ContractID not deterministic")
	}
	if archive.ContractID(p, tmpl) == archive.ContractID(tmpl, p) {
		t.Error("ContractID ignores argument order")
	}
}

func TestStoreAndVerify(t *testing.T) {
	store, _ := newStore(t)
	w := archive.New(store, slog.Default())
	ctx := context.Background()

	cmd := command()
	snap, err := w.Store(ctx, cmd)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if snap.ContractID != archive.ContractID(cmd.Provider.ID, cmd.Template.ID) {
		t.Errorf("ContractID = %s", snap.ContractID)
	}
	if snap.Hash != archive.Digest(cmd.Artifact) || snap.Algorithm != archive.HashAlgorithm {
		t.Errorf("Hash = %s/%s", snap.Algorithm, snap.Hash)
	}
	if !strings.HasPrefix(snap.Ref, "file://") || !strings.HasSuffix(snap.Key, cmd.Filename) {
		t.Errorf("Ref = %s, Key = %s", snap.Ref, snap.Key)
	}

	ok, err := w.Verify(ctx, *snap)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v; want true", ok, err)
	}

	found, err := w.Find(ctx, snap.ContractID, snap.Version)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if diff := cmp.Diff(snap.Provider, found.Provider); diff != "" {
		t.Errorf("provider snapshot mismatch (-stored +found):\n%s", diff)
	}
	if diff := cmp.Diff(snap.Warnings, found.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-stored +found):\n%s", diff)
	}
	if found.Template.Body != cmd.Template.Body {
		t.Errorf("template body = %q", found.Template.Body)
	}
	if found.ShellHash != "" {
		t.Errorf("ShellHash = %q for a template without a shell", found.ShellHash)
	}
}

func TestStoreRecordsShellHash(t *testing.T) {
	store, _ := newStore(t)
	w := archive.New(store, slog.Default())
	ctx := context.Background()

	cmd := command()
	cmd.Template.Format = templates.FormatDOCX
	cmd.Template.Shell = []byte("PK shell v2")

	snap, err := w.Store(ctx, cmd)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if snap.ShellHash != archive.Digest(cmd.Template.Shell) {
		t.Errorf("ShellHash = %q", snap.ShellHash)
	}

	found, err := w.Find(ctx, snap.ContractID, snap.Version)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.ShellHash != snap.ShellHash {
		t.Errorf("stored ShellHash = %q, want %q", found.ShellHash, snap.ShellHash)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	store, root := newStore(t)
	w := archive.New(store, slog.Default())
	ctx := context.Background()

	snap, err := w.Store(ctx, command())
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	p := filepath.Join(root, filepath.FromSlash(snap.Key))
	if err := os.Chmod(p, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.WriteFile(p, []byte("<p>Dr. Ada: $999,999</p>"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	ok, err := w.Verify(ctx, *snap)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify = true after out-of-band modification")
	}
}

func TestStoreVersions(t *testing.T) {
	store, _ := newStore(t)
	w := archive.New(store, slog.Default())
	ctx := context.Background()

	first, err := w.Store(ctx, command())
	if err != nil {
		t.Fatalf("first Store: %v", err)
	}

	cmd := command()
	cmd.Artifact = []byte("<p>Dr. Ada: $260,000</p>")
	second, err := w.Store(ctx, cmd)
	if err != nil {
		t.Fatalf("second Store: %v", err)
	}

	if first.ContractID != second.ContractID {
		t.Fatal("same provider and template should share a contract id")
	}
	if first.Version == second.Version || first.Key == second.Key {
		t.Fatal("second store reused the first version")
	}

	versions, err := w.Versions(ctx, first.ContractID)
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("Versions len = %d, want 2", len(versions))
	}
	if versions[0].Version != second.Version || versions[1].Version != first.Version {
		t.Errorf("Versions not newest first: %s, %s", versions[0].Version, versions[1].Version)
	}

	for _, snap := range []*archive.Snapshot{first, second} {
		ok, err := w.Verify(ctx, *snap)
		if err != nil || !ok {
			t.Errorf("Verify(%s) = %v, %v", snap.Version, ok, err)
		}
	}
}

func TestVersionsUnknownContract(t *testing.T) {
	store, _ := newStore(t)
	w := archive.New(store, slog.Default())

	versions, err := w.Versions(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("Versions = %v, want none", versions)
	}
}

func TestFindMissing(t *testing.T) {
	store, _ := newStore(t)
	w := archive.New(store, slog.Default())

	tests := []string{"20250101T000000.000000000Z-deadbeef", "", "../x"}
	for _, version := range tests {
		t.Run(version, func(t *testing.T) {
			_, err := w.Find(context.Background(), uuid.New(), version)
			if !errors.Is(err, archive.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreInvalidFilename(t *testing.T) {
	store, _ := newStore(t)
	w := archive.New(store, slog.Default())

	for _, name := range []string{"", "a/b.html", "snapshot.json", ".hidden"} {
		t.Run(name, func(t *testing.T) {
			cmd := command()
			cmd.Filename = name
			_, err := w.Store(context.Background(), cmd)
			if !errors.Is(err, archive.ErrInvalidArtifact) {
				t.Errorf("err = %v, want ErrInvalidArtifact", err)
			}
		})
	}
}

// failingStore rejects uploads whose key ends with failSuffix.
type failingStore struct {
	storage.System
	failSuffix string
	deleted    []string
}

func (f *failingStore) Upload(ctx context.Context, key string, r io.Reader, ct string, md map[string]string) (string, error) {
	if strings.HasSuffix(key, f.failSuffix) {
		return "", errors.New("connection reset")
	}
	return f.System.Upload(ctx, key, r, ct, md)
}

func (f *failingStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.System.Delete(ctx, key)
}

func TestStoreMetadataFailureCompensates(t *testing.T) {
	base, _ := newStore(t)
	store := &failingStore{System: base, failSuffix: "snapshot.json"}
	w := archive.New(store, slog.Default())
	ctx := context.Background()

	cmd := command()
	_, err := w.Store(ctx, cmd)
	if !errors.Is(err, archive.ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}

	if len(store.deleted) != 1 {
		t.Fatalf("deleted = %v, want the artifact", store.deleted)
	}
	if exists, _ := base.Exists(ctx, store.deleted[0]); exists {
		t.Error("artifact survived a failed snapshot write")
	}

	versions, err := w.Versions(ctx, archive.ContractID(cmd.Provider.ID, cmd.Template.ID))
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("Versions = %d, want 0", len(versions))
	}
}

func TestStoreArtifactFailure(t *testing.T) {
	base, _ := newStore(t)
	store := &failingStore{System: base, failSuffix: ".html"}
	w := archive.New(store, slog.Default())

	_, err := w.Store(context.Background(), command())
	if !errors.Is(err, archive.ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want nothing", store.deleted)
	}
}

func TestHandler(t *testing.T) {
	store, root := newStore(t)
	sys := archive.New(store, slog.Default())
	ctx := context.Background()

	snap, err := sys.Store(ctx, command())
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	mux := http.NewServeMux()
	for _, rt := range sys.Handler().Routes().Routes {
		mux.HandleFunc(rt.Method+" /archive"+rt.Pattern, rt.Handler)
	}

	base := "/archive/" + snap.ContractID.String()

	t.Run("versions", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", base, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got []archive.Snapshot
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || len(got) != 1 {
			t.Errorf("decode = %v, %d snapshots", err, len(got))
		}
	})

	t.Run("download", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", base+"/"+snap.Version+"/download", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !bytes.Equal(rec.Body.Bytes(), command().Artifact) {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("verify", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", base+"/"+snap.Version+"/verify", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("verify mismatch", func(t *testing.T) {
		p := filepath.Join(root, filepath.FromSlash(snap.Key))
		os.Chmod(p, 0o644)
		if err := os.WriteFile(p, []byte("tampered"), 0o644); err != nil {
			t.Fatalf("tamper: %v", err)
		}

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", base+"/"+snap.Version+"/verify", nil))
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		var got archive.VerifyResult
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || got.Valid {
			t.Errorf("result = %+v, %v", got, err)
		}
	})

	t.Run("bad contract id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/archive/nope", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}
