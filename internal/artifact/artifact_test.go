package artifact_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/accord/internal/artifact"
	"github.com/JaimeStill/accord/internal/templates"
)

func TestFor(t *testing.T) {
	tests := []struct {
		format  templates.Format
		ext     string
		wantErr bool
	}{
		{templates.FormatHTML, ".html", false},
		{templates.FormatText, ".txt", false},
		{templates.FormatDOCX, ".docx", false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			enc, err := artifact.For(tt.format)
			if tt.wantErr {
				if !errors.Is(err, artifact.ErrUnsupportedFormat) {
					t.Errorf("err = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("For: %v", err)
			}
			if enc.Extension() != tt.ext {
				t.Errorf("Extension = %q, want %q", enc.Extension(), tt.ext)
			}
		})
	}
}

func TestHTMLEncode(t *testing.T) {
	enc, _ := artifact.For(templates.FormatHTML)

	tests := []struct {
		name  string
		body  string
		shell []byte
		want  string
	}{
		{"shell marker", "<p>hi</p>", []byte("<main>" + artifact.BodyMarker + "</main>"), "<main><p>hi</p></main>"},
		{"full document", "<html><body>x</body></html>", nil, "<html><body>x</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.Encode(tt.body, tt.shell)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("fragment wrapped", func(t *testing.T) {
		got, err := enc.Encode("<p>x</p>", nil)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if !strings.HasPrefix(string(got), "<!DOCTYPE html>") || !strings.Contains(string(got), "<p>x</p>") {
			t.Errorf("Encode = %q", got)
		}
	})
}

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open package: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(b)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestDOCXEncode(t *testing.T) {
	enc, _ := artifact.For(templates.FormatDOCX)

	t.Run("minimal package", func(t *testing.T) {
		data, err := enc.Encode("Salary: $1,000\nTerms & <conditions>", nil)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		doc := readPart(t, data, "word/document.xml")
		if strings.Count(doc, "<w:p>") != 2 {
			t.Errorf("expected 2 paragraphs in %s", doc)
		}
		if !strings.Contains(doc, "Terms &amp; &lt;conditions&gt;") {
			t.Errorf("body not escaped: %s", doc)
		}
		readPart(t, data, "[Content_Types].xml")
	})

	t.Run("shell parts preserved", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for name, content := range map[string]string{
			"[Content_Types].xml": "types",
			"word/styles.xml":     "styles",
			"word/document.xml":   "old",
		} {
			w, _ := zw.Create(name)
			w.Write([]byte(content))
		}
		zw.Close()

		data, err := enc.Encode("new body", buf.Bytes())
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if got := readPart(t, data, "word/styles.xml"); got != "styles" {
			t.Errorf("styles = %q", got)
		}
		if doc := readPart(t, data, "word/document.xml"); !strings.Contains(doc, "new body") || strings.Contains(doc, "old") {
			t.Errorf("document = %q", doc)
		}
	})

	t.Run("invalid shell", func(t *testing.T) {
		_, err := enc.Encode("x", []byte("not a zip"))
		if !errors.Is(err, artifact.ErrEncodeFailed) {
			t.Errorf("err = %v, want ErrEncodeFailed", err)
		}
	})
}

func TestFilename(t *testing.T) {
	tests := []struct {
		provider, template, ext string
		want                    string
	}{
		{"Ada Lovelace, MD", "Physician 2025", ".docx", "Ada_Lovelace_MD_Physician_2025.docx"},
		{"", "", ".txt", "contract.txt"},
		{"../etc", "", ".html", "etc.html"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := artifact.Filename(tt.provider, tt.template, tt.ext); got != tt.want {
				t.Errorf("Filename = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageCountNonPDF(t *testing.T) {
	if got := artifact.PageCount(slog.Default(), []byte("<p>x</p>"), artifact.ContentTypeHTML); got != nil {
		t.Errorf("PageCount = %v, want nil", *got)
	}
	if got := artifact.PageCount(slog.Default(), []byte("not a pdf"), artifact.ContentTypePDF); got != nil {
		t.Errorf("PageCount = %v, want nil for unreadable pdf", *got)
	}
}
