package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/accord/internal/blocks"
	"github.com/JaimeStill/accord/internal/generation"
	"github.com/JaimeStill/accord/internal/merge"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
)

// Manifest is an offline catalog: templates with their mappings, dynamic
// blocks, and provider rows. Relative file paths resolve against the
// manifest's directory.
type Manifest struct {
	Templates []TemplateEntry `yaml:"templates"`
	Blocks    []blocks.Block  `yaml:"blocks"`
	Providers []ProviderEntry `yaml:"providers"`

	dir string
}

// TemplateEntry is a template whose body is inline or read from BodyFile.
// ShellFile names an optional binary container, such as a .docx, that the
// body is encoded into.
type TemplateEntry struct {
	templates.Template `yaml:",inline"`
	BodyFile           string              `yaml:"body_file,omitempty"`
	ShellFile          string              `yaml:"shell_file,omitempty"`
	Mappings           []templates.Mapping `yaml:"mappings"`
}

// ProviderEntry is one roster row. Columns outside the provider schema are
// carried as extra fields.
type ProviderEntry struct {
	ID       uuid.UUID         `yaml:"id"`
	Name     string            `yaml:"name"`
	Template *uuid.UUID        `yaml:"template,omitempty"`
	Columns  map[string]string `yaml:"columns"`
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)

	cache := templates.NewPlaceholderCache(0)
	for i := range m.Templates {
		if err := m.Templates[i].load(m.dir, cache); err != nil {
			return nil, err
		}
	}
	for _, b := range m.Blocks {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("block %s: %w", b.Name, err)
		}
	}
	return &m, nil
}

func (e *TemplateEntry) load(dir string, cache *templates.PlaceholderCache) error {
	if _, err := templates.ParseFormat(string(e.Format)); err != nil {
		return fmt.Errorf("template %s: %w", e.Name, err)
	}

	if e.BodyFile != "" {
		body, err := os.ReadFile(resolve(dir, e.BodyFile))
		if err != nil {
			return fmt.Errorf("template %s body: %w", e.Name, err)
		}
		e.Body = string(body)
	}
	if e.ShellFile != "" {
		shell, err := os.ReadFile(resolve(dir, e.ShellFile))
		if err != nil {
			return fmt.Errorf("template %s shell: %w", e.Name, err)
		}
		e.Shell = shell
	}

	for _, mp := range e.Mappings {
		if err := mp.Validate(); err != nil {
			return fmt.Errorf("template %s: %w", e.Name, err)
		}
	}

	e.Derive(cache)
	return nil
}

// Items builds the generation items for ids, or for every provider when ids
// is empty. Providers without a resolvable template yield an item with a nil
// Template so the run is rejected as a whole.
func (m *Manifest) Items(ids []uuid.UUID) ([]generation.Item, error) {
	rows := m.Providers
	if len(ids) > 0 {
		rows = make([]ProviderEntry, 0, len(ids))
		for _, id := range ids {
			p, ok := m.provider(id)
			if !ok {
				return nil, fmt.Errorf("%w: %s", providers.ErrNotFound, id)
			}
			rows = append(rows, p)
		}
	}

	index := make(map[uuid.UUID]blocks.Block, len(m.Blocks))
	for _, b := range m.Blocks {
		index[b.ID] = b
	}

	items := make([]generation.Item, 0, len(rows))
	for _, p := range rows {
		item := generation.Item{
			Provider: providers.NewRecord(p.ID, p.Name, p.Columns, providers.DefaultSchema),
		}
		item.Provider.TemplateID = p.Template

		if p.Template != nil {
			if t, ok := m.template(*p.Template); ok {
				list := make([]blocks.Block, 0)
				for _, id := range merge.BlockIDs(t.Mappings) {
					b, ok := index[id]
					if !ok {
						return nil, fmt.Errorf("template %s: %w: %s", t.Name, blocks.ErrNotFound, id)
					}
					list = append(list, b)
				}

				tmpl := t.Template
				item.Template = &tmpl
				item.Mappings = t.Mappings
				item.Bindings = merge.NewBindings(t.Mappings, list)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *Manifest) provider(id uuid.UUID) (ProviderEntry, bool) {
	for _, p := range m.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderEntry{}, false
}

func (m *Manifest) template(id uuid.UUID) (TemplateEntry, bool) {
	for _, t := range m.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return TemplateEntry{}, false
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
