package templates

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/query"
	"github.com/JaimeStill/accord/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "templates", "t").
	Project("id", "ID").
	Project("name", "Name").
	Project("contract_year", "ContractYear").
	Project("format", "Format").
	Project("body", "Body").
	Project("shell", "Shell").
	Project("placeholders", "Placeholders").
	Project("body_hash", "BodyHash")

var defaultSort = query.SortField{Field: "Name"}

var mappingProjection = query.
	NewProjectionMap("public", "template_mappings", "m").
	Project("placeholder", "Placeholder").
	Project("mapping_type", "Type").
	Project("mapped_column", "Column").
	Project("mapped_block_id", "BlockID").
	Project("notes", "Notes").
	Project("template_id", "TemplateID")

// Filters narrows template listings.
type Filters struct {
	ContractYear *int    `json:"contract_year,omitempty"`
	Format       *Format `json:"format,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ContractYear", f.ContractYear).
		WhereEquals("Format", f.Format)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if y, err := strconv.Atoi(values.Get("contract_year")); err == nil {
		f.ContractYear = &y
	}
	if fmtv, err := ParseFormat(values.Get("format")); err == nil {
		f.Format = &fmtv
	}
	return f
}

func scanTemplate(s repository.Scanner) (Template, error) {
	var (
		t            Template
		placeholders []byte
		hash         sql.NullString
	)
	err := s.Scan(
		&t.ID,
		&t.Name,
		&t.ContractYear,
		&t.Format,
		&t.Body,
		&t.Shell,
		&placeholders,
		&hash,
	)
	if err != nil {
		return t, err
	}

	t.BodyHash = hash.String
	if len(placeholders) > 0 {
		if err := json.Unmarshal(placeholders, &t.Placeholders); err != nil {
			return t, fmt.Errorf("decode placeholders for template %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func scanMapping(s repository.Scanner) (Mapping, error) {
	var (
		m       Mapping
		column  sql.NullString
		notes   sql.NullString
		blockID *uuid.UUID
		tmplID  uuid.UUID
	)
	if err := s.Scan(&m.Placeholder, &m.Type, &column, &blockID, &notes, &tmplID); err != nil {
		return m, err
	}
	m.Column = column.String
	m.BlockID = blockID
	m.Notes = notes.String
	return m, nil
}
