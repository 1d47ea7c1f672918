// Package artifact encodes merged template bodies into the binary documents
// that are archived and packaged.
package artifact

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/accord/internal/templates"
)

// Content types produced or inspected by this package.
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF  = "application/pdf"
	ContentTypeZip  = "application/zip"
)

// Encoder turns a merged body into final document bytes. Shell is the
// template's binary container and may be empty.
type Encoder interface {
	Encode(body string, shell []byte) ([]byte, error)
	ContentType() string
	Extension() string
}

var encoders = map[templates.Format]Encoder{
	templates.FormatHTML: htmlEncoder{},
	templates.FormatText: textEncoder{},
	templates.FormatDOCX: docxEncoder{},
}

// For returns the encoder for a template format.
func For(format templates.Format) (Encoder, error) {
	enc, ok := encoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return enc, nil
}

// Filename builds an artifact filename from the provider and template names.
func Filename(provider, template, ext string) string {
	name := slug(provider)
	if t := slug(template); t != "" {
		if name != "" {
			name += "_"
		}
		name += t
	}
	if name == "" {
		name = "contract"
	}
	return name + ext
}

// PageCount returns the page count of PDF data, or nil for other content
// types and unreadable PDFs.
func PageCount(logger *slog.Logger, data []byte, contentType string) *int {
	if !strings.HasPrefix(contentType, ContentTypePDF) {
		return nil
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "error", err)
		return nil
	}
	return &count
}

func slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
