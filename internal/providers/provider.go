// Package providers holds provider records: the typed schema fields and the
// free-form extra columns merged into contract templates.
package providers

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Format declares how a schema field renders when merged.
// The zero value leaves formatting to the field-name heuristic.
type Format string

const (
	FormatText     Format = "text"
	FormatCurrency Format = "currency"
	FormatDate     Format = "date"
	FormatFTE      Format = "fte"
	FormatNumber   Format = "number"
)

// Field is one recognized provider column.
type Field struct {
	Name   string `json:"name" yaml:"name"`
	Format Format `json:"format,omitempty" yaml:"format,omitempty"`
}

// Schema is the set of recognized provider columns.
type Schema []Field

// DefaultSchema lists the columns of a standard provider roster.
var DefaultSchema = Schema{
	{Name: "ProviderName", Format: FormatText},
	{Name: "NPI", Format: FormatText},
	{Name: "Specialty", Format: FormatText},
	{Name: "Credentials", Format: FormatText},
	{Name: "Department", Format: FormatText},
	{Name: "Location", Format: FormatText},
	{Name: "EffectiveDate", Format: FormatDate},
	{Name: "ExpirationDate", Format: FormatDate},
	{Name: "BaseSalary", Format: FormatCurrency},
	{Name: "SigningBonus", Format: FormatCurrency},
	{Name: "RelocationAmount", Format: FormatCurrency},
	{Name: "HourlyWage", Format: FormatCurrency},
	{Name: "ClinicalFTE"},
	{Name: "AdministrativeFTE"},
	{Name: "ResearchFTE"},
	{Name: "TeachingFTE"},
	{Name: "TotalFTE"},
	{Name: "WRVUTarget"},
	{Name: "ConversionFactor"},
}

// Field returns the schema entry named name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Record is a provider row. Recognized columns live in Fields as typed
// scalars; every other column lives only in Extra.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	TemplateID *uuid.UUID        `json:"template_id,omitempty"`
	Fields     map[string]any    `json:"fields"`
	Extra      map[string]string `json:"extra"`
}

// NewRecord splits imported columns between schema fields and extra fields.
// Blank values are dropped. Schema fields whose format or name implies a
// number are stored as float64 when they parse as one.
func NewRecord(id uuid.UUID, name string, columns map[string]string, schema Schema) Record {
	rec := Record{
		ID:     id,
		Name:   name,
		Fields: make(map[string]any),
		Extra:  make(map[string]string),
	}

	for col, raw := range columns {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}

		f, ok := schema.Field(col)
		if !ok {
			rec.Extra[col] = v
			continue
		}
		rec.Fields[col] = typed(f, v)
	}

	return rec
}

// Lookup resolves name against schema fields, then extra fields, then extra
// fields case-insensitively. The first hit wins.
func (r Record) Lookup(name string) (any, bool) {
	if v, ok := r.Fields[name]; ok {
		return v, true
	}
	if v, ok := r.Extra[name]; ok {
		return v, true
	}
	for _, k := range slices.Sorted(maps.Keys(r.Extra)) {
		if strings.EqualFold(k, name) {
			return r.Extra[k], true
		}
	}
	return nil, false
}

// LookupFold is Lookup with case-insensitive matching on schema fields as well.
func (r Record) LookupFold(name string) (string, any, bool) {
	if v, ok := r.Lookup(name); ok {
		return name, v, true
	}
	for _, k := range slices.Sorted(maps.Keys(r.Fields)) {
		if strings.EqualFold(k, name) {
			return k, r.Fields[k], true
		}
	}
	return "", nil, false
}

func typed(f Field, v string) any {
	numeric := false
	switch f.Format {
	case FormatCurrency, FormatFTE, FormatNumber:
		numeric = true
	case "":
		lower := strings.ToLower(f.Name)
		numeric = strings.Contains(lower, "fte") ||
			strings.Contains(lower, "target") ||
			strings.Contains(lower, "factor")
	}
	if !numeric {
		return v
	}

	clean := strings.NewReplacer(",", "", "$", "").Replace(v)
	if n, err := strconv.ParseFloat(clean, 64); err == nil {
		return n
	}
	return v
}
