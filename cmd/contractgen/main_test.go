package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/archive"
	"github.com/JaimeStill/accord/internal/generation"
)

const (
	templateID = "7f1c2d3e-0000-4000-8000-000000000001"
	blockID    = "7f1c2d3e-0000-4000-8000-000000000002"
	janeID     = "7f1c2d3e-0000-4000-8000-0000000000a1"
	omarID     = "7f1c2d3e-0000-4000-8000-0000000000a2"
	orphanID   = "7f1c2d3e-0000-4000-8000-0000000000a3"
)

const manifestYAML = `
templates:
  - id: ` + templateID + `
    name: Physician Agreement
    contract_year: 2026
    format: text
    body_file: agreement.txt
    mappings:
      - placeholder: Name
        type: field
        column: ProviderName
      - placeholder: Salary
        type: field
        column: BaseSalary
      - placeholder: Incentives
        type: dynamic
        block_id: ` + blockID + `
blocks:
  - id: ` + blockID + `
    name: incentives
    placeholder: Incentives
    conditions:
      - field: SigningBonus
        operator: exists
        text: "Signing bonus: {{SigningBonus}}"
providers:
  - id: ` + janeID + `
    name: Jane Doe
    template: ` + templateID + `
    columns:
      ProviderName: Jane Doe
      BaseSalary: 250000
      SigningBonus: 15000
  - id: ` + omarID + `
    name: Omar Reyes
    template: ` + templateID + `
    columns:
      ProviderName: Omar Reyes
  - id: ` + orphanID + `
    name: No Template
    columns:
      ProviderName: No Template
`

const agreementBody = "Agreement for {{Name}}.\nSalary: {{Salary}}\n{{Incentives}}\n"

func writeManifest(t *testing.T) (manifest, out string) {
	t.Helper()
	dir := t.TempDir()
	manifest = filepath.Join(dir, "accord.yaml")
	if err := os.WriteFile(manifest, []byte(manifestYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "agreement.txt"), []byte(agreementBody), 0o644); err != nil {
		t.Fatal(err)
	}
	return manifest, filepath.Join(dir, "storage")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestLoadManifest(t *testing.T) {
	manifest, _ := writeManifest(t)

	m, err := loadManifest(manifest)
	if err != nil {
		t.Fatalf("loadManifest() error = %v", err)
	}

	if len(m.Templates) != 1 || len(m.Blocks) != 1 || len(m.Providers) != 3 {
		t.Fatalf("counts: %d templates, %d blocks, %d providers", len(m.Templates), len(m.Blocks), len(m.Providers))
	}

	tmpl := m.Templates[0]
	if tmpl.Body != agreementBody {
		t.Errorf("body not read from body_file: %q", tmpl.Body)
	}
	want := []string{"Name", "Salary", "Incentives"}
	if strings.Join(tmpl.Placeholders, ",") != strings.Join(want, ",") {
		t.Errorf("placeholders: got %v, want %v", tmpl.Placeholders, want)
	}
}

func TestManifestItems(t *testing.T) {
	manifest, _ := writeManifest(t)
	m, err := loadManifest(manifest)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("all providers", func(t *testing.T) {
		items, err := m.Items(nil)
		if err != nil {
			t.Fatalf("Items() error = %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("items: got %d, want 3", len(items))
		}
		if items[0].Template == nil || items[2].Template != nil {
			t.Error("template assignment not carried to items")
		}
		if _, ok := items[0].Bindings.Blocks[uuid.MustParse(blockID)]; !ok {
			t.Error("dynamic block not bound")
		}
		if v, _ := items[0].Provider.Lookup("BaseSalary"); v != 250000.0 {
			t.Errorf("BaseSalary: got %v (%T), want typed number", v, v)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, err := m.Items([]uuid.UUID{uuid.New()}); err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})
}

func TestRunAndVerify(t *testing.T) {
	manifest, out := writeManifest(t)

	stdout, err := execute(t, "run", "-m", manifest, "-o", out, "-p", janeID, "-p", omarID)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	var summary generation.Summary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, stdout)
	}

	if summary.Status != generation.StatusCompleted {
		t.Errorf("status: got %s, want COMPLETED", summary.Status)
	}
	if summary.Succeeded != 1 || summary.PartialSuccess != 1 || summary.Failed != 0 {
		t.Errorf("counts: %+v", summary)
	}
	if summary.Package == nil {
		t.Fatal("expected a package for a run with a success")
	}
	if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(summary.Package.Key))); err != nil {
		t.Errorf("package not written: %v", err)
	}

	jane := summary.Outcomes[0]
	if jane.ContractID == nil {
		t.Fatal("jane outcome has no contract id")
	}
	if want := archive.ContractID(uuid.MustParse(janeID), uuid.MustParse(templateID)); *jane.ContractID != want {
		t.Errorf("contract id: got %s, want %s", jane.ContractID, want)
	}

	omar := summary.Outcomes[1]
	if omar.Status != generation.OutcomePartialSuccess || len(omar.Warnings) == 0 {
		t.Errorf("omar: got %s with %v, want PARTIAL_SUCCESS with warnings", omar.Status, omar.Warnings)
	}

	verified, err := execute(t, "verify", "-o", out, jane.ContractID.String())
	if err != nil {
		t.Fatalf("verify error = %v", err)
	}
	if !strings.Contains(verified, jane.Version) || !strings.HasSuffix(strings.TrimSpace(verified), "ok") {
		t.Errorf("verify output: %q", verified)
	}

	artifactPath := filepath.Join(out, "contracts", jane.ContractID.String(), jane.Version, jane.Filename)
	if err := os.WriteFile(artifactPath, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	tampered, err := execute(t, "verify", "-o", out, jane.ContractID.String(), jane.Version)
	if !errors.Is(err, archive.ErrIntegrityMismatch) {
		t.Fatalf("verify tampered: got %v, want ErrIntegrityMismatch", err)
	}
	if !strings.Contains(tampered, "MISMATCH") {
		t.Errorf("verify output: %q", tampered)
	}
}

func TestRunRejectsMissingTemplate(t *testing.T) {
	manifest, out := writeManifest(t)

	_, err := execute(t, "run", "-m", manifest, "-o", out)

	var verr *generation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("run error: got %v, want ValidationError", err)
	}
	if len(verr.Providers) != 1 || verr.Providers[0] != uuid.MustParse(orphanID) {
		t.Errorf("providers: got %v, want [%s]", verr.Providers, orphanID)
	}
	if _, err := os.Stat(filepath.Join(out, "contracts")); !os.IsNotExist(err) {
		t.Error("rejected run archived artifacts")
	}
}

func TestPreview(t *testing.T) {
	manifest, _ := writeManifest(t)

	stdout, err := execute(t, "preview", "-m", manifest, janeID)
	if err != nil {
		t.Fatalf("preview error = %v", err)
	}

	for _, want := range []string{"Agreement for Jane Doe.", "Signing bonus:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("preview missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "{{") {
		t.Errorf("preview left tokens:\n%s", stdout)
	}
}

func TestPlaceholders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body.txt")
	if err := os.WriteFile(path, []byte("{{A}} {{ B }} {{A}} {{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, err := execute(t, "placeholders", path)
	if err != nil {
		t.Fatalf("placeholders error = %v", err)
	}
	if got := strings.Fields(stdout); strings.Join(got, ",") != "A,B" {
		t.Errorf("placeholders: got %v, want [A B]", got)
	}
}
