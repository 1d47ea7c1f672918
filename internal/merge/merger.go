package merge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/blocks"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
)

// UnresolvedPolicy decides what replaces a placeholder with no value.
type UnresolvedPolicy string

const (
	// PolicyBlank substitutes an empty string and records a warning.
	PolicyBlank UnresolvedPolicy = "blank"
	// PolicyKeep leaves the original token in place and records a warning.
	PolicyKeep UnresolvedPolicy = "keep"
	// PolicyIgnore substitutes an empty string silently.
	PolicyIgnore UnresolvedPolicy = "ignore"
)

// ParsePolicy validates s. The empty string selects PolicyBlank.
func ParsePolicy(s string) (UnresolvedPolicy, error) {
	switch p := UnresolvedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyBlank, nil
	case PolicyBlank, PolicyKeep, PolicyIgnore:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

// Bindings are the mappings and dynamic blocks a template merges against.
type Bindings struct {
	Mappings map[string]templates.Mapping
	Blocks   map[uuid.UUID]blocks.Block
}

// NewBindings indexes mappings by placeholder and blocks by id.
func NewBindings(mappings []templates.Mapping, list []blocks.Block) Bindings {
	b := Bindings{
		Mappings: templates.Index(mappings),
		Blocks:   make(map[uuid.UUID]blocks.Block, len(list)),
	}
	for _, blk := range list {
		b.Blocks[blk.ID] = blk
	}
	return b
}

// BlockIDs returns the ids of every dynamic block the mappings reference.
func BlockIDs(mappings []templates.Mapping) []uuid.UUID {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, m := range mappings {
		if m.Type != templates.MappingDynamic || m.BlockID == nil || seen[*m.BlockID] {
			continue
		}
		seen[*m.BlockID] = true
		ids = append(ids, *m.BlockID)
	}
	return ids
}

// Result is the outcome of one merge.
type Result struct {
	Body     string   `json:"body"`
	Warnings []string `json:"warnings"`
	Success  bool     `json:"success"`
}

// Merger fills templates from provider records.
type Merger struct {
	Schema providers.Schema
	Policy UnresolvedPolicy
}

// Merge replaces every well-formed token in tmpl.Body in one pass. Each
// distinct placeholder is resolved once, so repeated occurrences are
// identical and warn once. Success is true iff no warnings were recorded.
// tmpl.Placeholders is used only while BodyHash matches the body.
func (m Merger) Merge(tmpl templates.Template, rec providers.Record, b Bindings) Result {
	names := tmpl.Placeholders
	if names == nil || tmpl.BodyHash != templates.Hash(tmpl.Body) {
		names = templates.ExtractPlaceholders(tmpl.Body)
	}

	res := Result{Warnings: []string{}}
	table := make(map[string]resolution, len(names))

	lookup := func(name string) resolution {
		r, ok := table[name]
		if !ok {
			r = m.placeholder(name, rec, b)
			table[name] = r
			if r.warning != "" {
				res.Warnings = append(res.Warnings, r.warning)
			}
		}
		return r
	}

	for _, name := range names {
		lookup(name)
	}

	pattern := templates.TokenPattern()
	res.Body = pattern.ReplaceAllStringFunc(tmpl.Body, func(token string) string {
		r := lookup(strings.TrimSpace(pattern.FindStringSubmatch(token)[1]))
		if r.keep {
			return token
		}
		return r.text
	})

	res.Success = len(res.Warnings) == 0
	return res
}

type resolution struct {
	text    string
	warning string
	keep    bool
}

func (m Merger) placeholder(name string, rec providers.Record, b Bindings) resolution {
	mapping, mapped := b.Mappings[name]
	if !mapped {
		key, raw, ok := rec.LookupFold(name)
		if !ok {
			return m.unresolved(name, ErrUnresolvedPlaceholder, "no mapping or matching field")
		}
		return m.rendered(name, render(key, raw, m.Schema))
	}

	if err := mapping.Validate(); err != nil {
		return m.unresolved(name, ErrUnresolvedPlaceholder, err.Error())
	}

	switch mapping.Type {
	case templates.MappingDynamic:
		blk, ok := b.Blocks[*mapping.BlockID]
		if !ok {
			return m.unresolved(name, ErrUnboundBlock, mapping.BlockID.String())
		}
		return resolution{text: Evaluate(blk, rec, m.Schema)}
	default:
		v, ok := resolve(rec, mapping.Column, m.Schema)
		if !ok {
			return m.unresolved(name, ErrUnresolvedPlaceholder, fmt.Sprintf("column %s not found", mapping.Column))
		}
		return m.rendered(name, v)
	}
}

func (m Merger) rendered(name string, v value) resolution {
	r := resolution{text: v.text}
	if v.mismatch {
		r.warning = fmt.Sprintf("%s: %s: %q is not a %s value", ErrTypeMismatch, name, v.text, v.format)
	}
	return r
}

func (m Merger) unresolved(name string, cause error, detail string) resolution {
	warning := fmt.Sprintf("%s: %s (%s)", cause, name, detail)
	switch m.Policy {
	case PolicyIgnore:
		return resolution{}
	case PolicyKeep:
		return resolution{keep: true, warning: warning}
	default:
		return resolution{warning: warning}
	}
}
