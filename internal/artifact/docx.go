package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const documentPart = "word/document.xml"

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

type docxEncoder struct{}

func (docxEncoder) ContentType() string { return ContentTypeDOCX }
func (docxEncoder) Extension() string   { return ".docx" }

// Encode writes body into word/document.xml, one paragraph per line. Other
// parts of a shell package are copied through unchanged.
func (docxEncoder) Encode(body string, shell []byte) ([]byte, error) {
	doc, err := documentXML(body)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if len(shell) > 0 {
		if err := copyShell(zw, shell); err != nil {
			return nil, err
		}
	} else {
		if err := writePart(zw, "[Content_Types].xml", []byte(contentTypesXML)); err != nil {
			return nil, err
		}
		if err := writePart(zw, "_rels/.rels", []byte(relsXML)); err != nil {
			return nil, err
		}
	}

	if err := writePart(zw, documentPart, doc); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close package: %w", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

func copyShell(zw *zip.Writer, shell []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(shell), int64(len(shell)))
	if err != nil {
		return fmt.Errorf("%w: read shell: %w", ErrEncodeFailed, err)
	}

	for _, f := range zr.File {
		if f.Name == documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: open %s: %w", ErrEncodeFailed, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrEncodeFailed, f.Name, err)
		}
		if err := writePart(zw, f.Name, data); err != nil {
			return err
		}
	}
	return nil
}

func writePart(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrEncodeFailed, name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrEncodeFailed, name, err)
	}
	return nil
}

func documentXML(body string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	for line := range strings.SplitSeq(body, "\n") {
		b.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		if err := xml.EscapeText(&b, []byte(strings.TrimRight(line, "\r"))); err != nil {
			return nil, fmt.Errorf("%w: escape body: %w", ErrEncodeFailed, err)
		}
		b.WriteString(`</w:t></w:r></w:p>`)
	}

	b.WriteString(`</w:body></w:document>`)
	return b.Bytes(), nil
}
