// Package templates holds contract templates, their derived placeholder sets,
// and the placeholder-to-value mappings that drive a merge.
package templates

import (
	"fmt"

	"github.com/google/uuid"
)

// Format is the artifact kind a template body renders into.
type Format string

const (
	FormatHTML Format = "html"
	FormatDOCX Format = "docx"
	FormatText Format = "text"
)

// ParseFormat validates s as a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatHTML, FormatDOCX, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// Template is a contract body containing {{Placeholder}} tokens.
// Shell optionally carries the binary container the body is encoded into.
type Template struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	ContractYear int       `json:"contract_year" yaml:"contract_year"`
	Format       Format    `json:"format" yaml:"format"`
	Body         string    `json:"body" yaml:"body"`
	Shell        []byte    `json:"-" yaml:"-"`
	Placeholders []string  `json:"placeholders" yaml:"-"`
	BodyHash     string    `json:"body_hash" yaml:"-"`
}

// Derive recomputes Placeholders through cache when the body no longer
// matches BodyHash. Templates whose hash is current are left untouched.
func (t *Template) Derive(cache *PlaceholderCache) {
	hash := Hash(t.Body)
	if hash == t.BodyHash && t.Placeholders != nil {
		return
	}
	t.BodyHash = hash
	t.Placeholders = cache.Get(t.Body)
}

// MappingType selects what a placeholder resolves against.
type MappingType string

const (
	MappingField   MappingType = "field"
	MappingDynamic MappingType = "dynamic"
)

// Mapping binds one placeholder to a provider column or a dynamic block.
type Mapping struct {
	Placeholder string      `json:"placeholder" yaml:"placeholder"`
	Type        MappingType `json:"mapping_type" yaml:"type"`
	Column      string      `json:"mapped_column,omitempty" yaml:"column,omitempty"`
	BlockID     *uuid.UUID  `json:"mapped_dynamic_block_id,omitempty" yaml:"block_id,omitempty"`
	Notes       string      `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Validate checks that exactly the target matching Type is set.
func (m Mapping) Validate() error {
	if m.Placeholder == "" {
		return fmt.Errorf("%w: placeholder required", ErrInvalidMapping)
	}

	switch m.Type {
	case MappingField:
		if m.Column == "" || m.BlockID != nil {
			return fmt.Errorf("%w: field mapping %s needs a column and no block", ErrInvalidMapping, m.Placeholder)
		}
	case MappingDynamic:
		if m.BlockID == nil || m.Column != "" {
			return fmt.Errorf("%w: dynamic mapping %s needs a block and no column", ErrInvalidMapping, m.Placeholder)
		}
	default:
		return fmt.Errorf("%w: unknown mapping type %q for %s", ErrInvalidMapping, m.Type, m.Placeholder)
	}
	return nil
}

// Index keys mappings by placeholder. Later entries for the same placeholder win.
func Index(mappings []Mapping) map[string]Mapping {
	idx := make(map[string]Mapping, len(mappings))
	for _, m := range mappings {
		idx[m.Placeholder] = m
	}
	return idx
}
