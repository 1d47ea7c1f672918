// Package blocks defines dynamic blocks: ordered, conditionally included text
// fragments bound to a single placeholder.
package blocks

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/pkg/formatting"
)

// Operator names a condition predicate.
type Operator string

const (
	OpExists    Operator = "exists"
	OpMissing   Operator = "missing"
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpGT        Operator = "gt"
	OpGTE       Operator = "gte"
	OpLT        Operator = "lt"
	OpLTE       Operator = "lte"
	OpContains  Operator = "contains"
	OpNonZero   Operator = "nonzero"
	OpBefore    Operator = "before"
	OpAfter     Operator = "after"
)

var operators = map[Operator]bool{
	OpExists: true, OpMissing: true, OpEquals: true, OpNotEquals: true,
	OpGT: true, OpGTE: true, OpLT: true, OpLTE: true,
	OpContains: true, OpNonZero: true, OpBefore: true, OpAfter: true,
}

// Block is a named fragment list rendered at one placeholder.
type Block struct {
	ID            uuid.UUID   `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Placeholder   string      `json:"placeholder" yaml:"placeholder"`
	Shape         string      `json:"shape" yaml:"shape"`
	Conditions    []Condition `json:"conditions" yaml:"conditions"`
	AlwaysInclude []string    `json:"always_include" yaml:"always_include"`
}

// Condition emits Text when Field satisfies Operator against Value.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
	Text     string   `json:"text" yaml:"text"`
}

// Validate checks every condition names a field and a known operator.
func (b Block) Validate() error {
	for i, c := range b.Conditions {
		if c.Field == "" {
			return fmt.Errorf("%w: block %s condition %d has no field", ErrInvalidCondition, b.Name, i)
		}
		if !operators[c.Operator] {
			return fmt.Errorf("%w: block %s condition %d has unknown operator %q", ErrInvalidCondition, b.Name, i, c.Operator)
		}
	}
	return nil
}

// Holds reports whether the condition is true for rec. Comparisons against
// a missing field are false; unknown operators never hold.
func (c Condition) Holds(rec providers.Record) bool {
	v, ok := rec.Lookup(c.Field)
	present := ok && !formatting.IsBlank(v)

	switch c.Operator {
	case OpExists:
		return present
	case OpMissing:
		return !present
	}

	if !present {
		return false
	}

	switch c.Operator {
	case OpEquals:
		return equal(v, c.Value)
	case OpNotEquals:
		return !equal(v, c.Value)
	case OpGT:
		return numeric(v, c.Value, func(a, b float64) bool { return a > b })
	case OpGTE:
		return numeric(v, c.Value, func(a, b float64) bool { return a >= b })
	case OpLT:
		return numeric(v, c.Value, func(a, b float64) bool { return a < b })
	case OpLTE:
		return numeric(v, c.Value, func(a, b float64) bool { return a <= b })
	case OpContains:
		return strings.Contains(
			strings.ToLower(formatting.Stringify(v)),
			strings.ToLower(formatting.Stringify(c.Value)),
		)
	case OpNonZero:
		f, ok := formatting.ToFloat(v)
		return ok && f != 0
	case OpBefore:
		return dates(v, c.Value, time.Time.Before)
	case OpAfter:
		return dates(v, c.Value, time.Time.After)
	}
	return false
}

// equal compares numerically when both sides read as numbers and as
// case-insensitive trimmed text otherwise.
func equal(a, b any) bool {
	if b == nil {
		return false
	}
	if x, ok := formatting.ToFloat(a); ok {
		if y, ok := formatting.ToFloat(b); ok {
			return x == y
		}
	}
	return strings.EqualFold(
		strings.TrimSpace(formatting.Stringify(a)),
		strings.TrimSpace(formatting.Stringify(b)),
	)
}

func numeric(a, b any, cmp func(float64, float64) bool) bool {
	x, ok := formatting.ToFloat(a)
	if !ok {
		return false
	}
	y, ok := formatting.ToFloat(b)
	if !ok {
		return false
	}
	return cmp(x, y)
}

func dates(a, b any, cmp func(time.Time, time.Time) bool) bool {
	x, ok := parseDate(a)
	if !ok {
		return false
	}
	y, ok := parseDate(b)
	if !ok {
		return false
	}
	return cmp(x, y)
}

func parseDate(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	s := strings.TrimSpace(formatting.Stringify(v))
	for _, layout := range []string{time.DateOnly, time.RFC3339, "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
