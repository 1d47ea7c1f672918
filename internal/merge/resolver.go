// Package merge substitutes provider values into template bodies: field
// formatting, dynamic block assembly, and the single-pass merge itself.
package merge

import (
	"strings"

	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/pkg/formatting"
)

var heuristics = []struct {
	format providers.Format
	terms  []string
}{
	{providers.FormatCurrency, []string{"salary", "bonus", "amount", "wage"}},
	{providers.FormatDate, []string{"date"}},
	{providers.FormatFTE, []string{"fte"}},
	{providers.FormatNumber, []string{"target", "factor"}},
}

// FormatFor returns the format applied to field. An explicit schema format
// wins; otherwise the field name is matched against the naming heuristic.
func FormatFor(field string, schema providers.Schema) providers.Format {
	if f, ok := schema.Field(field); ok && f.Format != "" {
		return f.Format
	}

	lower := strings.ToLower(field)
	for _, h := range heuristics {
		for _, term := range h.terms {
			if strings.Contains(lower, term) {
				return h.format
			}
		}
	}
	return providers.FormatText
}

// Format renders v in the given format. Blank values render empty.
func Format(format providers.Format, v any) string {
	if formatting.IsBlank(v) {
		return ""
	}

	switch format {
	case providers.FormatCurrency:
		return formatting.FormatCurrency(v)
	case providers.FormatDate:
		return formatting.FormatDate(v)
	case providers.FormatFTE:
		return formatting.FormatFTE(v)
	case providers.FormatNumber:
		return formatting.FormatNumber(v)
	default:
		return formatting.Stringify(v)
	}
}

// Resolve looks field up on rec and returns its formatted text.
// The bool is false when the record carries no such field.
func Resolve(rec providers.Record, field string, schema providers.Schema) (string, bool) {
	v, ok := resolve(rec, field, schema)
	return v.text, ok
}

type value struct {
	text     string
	format   providers.Format
	mismatch bool
}

func resolve(rec providers.Record, field string, schema providers.Schema) (value, bool) {
	raw, ok := rec.Lookup(field)
	if !ok {
		return value{}, false
	}
	return render(field, raw, schema), true
}

func render(field string, raw any, schema providers.Schema) value {
	format := FormatFor(field, schema)
	v := value{format: format}

	switch format {
	case providers.FormatCurrency, providers.FormatFTE, providers.FormatNumber:
		if !formatting.IsBlank(raw) {
			if _, numeric := formatting.ToFloat(raw); !numeric {
				v.mismatch = true
				v.text = formatting.Stringify(raw)
				return v
			}
		}
	}

	v.text = Format(format, raw)
	return v
}
