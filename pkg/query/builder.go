package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField is one ORDER BY term expressed as a view field name.
type SortField struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// ParseSortFields parses "name,-createdAt" into sort fields.
// A leading "-" selects descending order. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Builder accumulates WHERE conditions and ordering for a projection.
// Placeholders are numbered as values are added, so conditions may be
// appended in any order.
type Builder struct {
	projection  *ProjectionMap
	where       []string
	args        []any
	sort        []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder with optional default ordering.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// Build returns the SELECT statement and its arguments.
func (b *Builder) Build() (string, []any) {
	return fmt.Sprintf(
		"SELECT %s FROM %s%s%s",
		b.projection.Columns(), b.projection.Table(), b.whereClause(), b.orderClause(),
	), b.args
}

// BuildCount returns a COUNT(*) statement over the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM %s%s",
		b.projection.Table(), b.whereClause(),
	), b.args
}

// BuildPage returns the SELECT statement limited to one page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, pageSize, (page-1)*pageSize), args
}

// BuildSingle returns a SELECT statement for the row whose idField equals id.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	b.WhereEquals(idField, id)
	return b.Build()
}

// OrderBy replaces the default ordering. Fields outside the projection are ignored.
func (b *Builder) OrderBy(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// WhereEquals adds "field = value". Nil values, including typed nil
// pointers, add nothing.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, fmt.Sprintf("%s = %s", b.column(field), b.bind(value)))
	return b
}

// WhereIn adds "field IN (...)". An empty value list adds nothing.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	params := make([]string, len(values))
	for i, v := range values {
		params[i] = b.bind(v)
	}
	b.where = append(b.where, fmt.Sprintf("%s IN (%s)", b.column(field), strings.Join(params, ", ")))
	return b
}

// WhereSearch matches search case-insensitively against any of fields.
// A nil or empty search adds nothing.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	param := b.bind("%" + *search + "%")
	clauses := make([]string, len(fields))
	for i, f := range fields {
		clauses[i] = fmt.Sprintf("%s ILIKE %s", b.column(f), param)
	}
	b.where = append(b.where, "("+strings.Join(clauses, " OR ")+")")
	return b
}

func (b *Builder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *Builder) column(field string) string {
	if col, ok := b.projection.Column(field); ok {
		return col
	}
	return field
}

func (b *Builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *Builder) orderClause() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := b.projection.Column(f.Field)
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		terms = append(terms, col+" "+dir)
	}

	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
