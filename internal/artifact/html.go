package artifact

import "strings"

// BodyMarker is replaced by the merged body when present in an HTML shell.
const BodyMarker = "<!--accord:body-->"

type htmlEncoder struct{}

func (htmlEncoder) ContentType() string { return ContentTypeHTML }
func (htmlEncoder) Extension() string   { return ".html" }

func (htmlEncoder) Encode(body string, shell []byte) ([]byte, error) {
	if s := string(shell); strings.Contains(s, BodyMarker) {
		return []byte(strings.Replace(s, BodyMarker, body, 1)), nil
	}

	if strings.Contains(strings.ToLower(body), "<html") {
		return []byte(body), nil
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"></head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return []byte(b.String()), nil
}

type textEncoder struct{}

func (textEncoder) ContentType() string { return ContentTypeText }
func (textEncoder) Extension() string   { return ".txt" }

func (textEncoder) Encode(body string, _ []byte) ([]byte, error) {
	return []byte(body), nil
}
