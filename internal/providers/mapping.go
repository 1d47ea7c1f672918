package providers

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/query"
	"github.com/JaimeStill/accord/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "providers", "p").
	Project("id", "ID").
	Project("name", "Name").
	Project("template_id", "TemplateID").
	Project("fields", "Fields").
	Project("extra", "Extra")

var defaultSort = query.SortField{Field: "Name"}

// Filters narrows provider listings.
type Filters struct {
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.WhereEquals("TemplateID", f.TemplateID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if id, err := uuid.Parse(values.Get("template_id")); err == nil {
		f.TemplateID = &id
	}
	return f
}

func scanRecord(s repository.Scanner) (Record, error) {
	var (
		r             Record
		fields, extra []byte
	)
	if err := s.Scan(&r.ID, &r.Name, &r.TemplateID, &fields, &extra); err != nil {
		return r, err
	}

	r.Fields = make(map[string]any)
	r.Extra = make(map[string]string)
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return r, fmt.Errorf("decode fields for provider %s: %w", r.ID, err)
		}
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &r.Extra); err != nil {
			return r, fmt.Errorf("decode extra for provider %s: %w", r.ID, err)
		}
	}
	return r, nil
}
