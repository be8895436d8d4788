// Package schema models a dataset's ordered field list and its evolution rules.
package schema

import (
	"fmt"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
)

// Schema is an immutable ordered sequence of fields with unique names.
// Every mutation returns a new Schema.
type Schema struct {
	fields []Field
}

// New builds a Schema from already validated fields, rejecting duplicate names.
func New(fields []Field) (Schema, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return Schema{}, fmt.Errorf("duplicate field name '%s': %w", f.Name(), domain.ErrInvalidDatasetSchema)
		}
		seen[f.Name()] = true
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return Schema{fields: out}, nil
}

// Validate builds and validates a Schema from caller specs.
func Validate(specs []FieldSpec) (Schema, error) {
	fields := make([]Field, 0, len(specs))
	for _, spec := range specs {
		f, err := NewField(spec)
		if err != nil {
			return Schema{}, fmt.Errorf("%w: %w", domain.ErrInvalidDatasetSchema, err)
		}
		fields = append(fields, f)
	}
	return New(fields)
}

// Reconstruct creates a Schema without validation (storage hydration).
func Reconstruct(fields []Field) Schema {
	out := make([]Field, len(fields))
	copy(out, fields)
	return Schema{fields: out}
}

// Fields returns a copy of the ordered fields.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Field looks a field up by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether a field named name exists.
func (s Schema) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// UniqueFields returns the fields flagged unique, in schema order.
func (s Schema) UniqueFields() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Unique() {
			out = append(out, f)
		}
	}
	return out
}

func (s Schema) indexOf(name string) int {
	for i, f := range s.fields {
		if f.Name() == name {
			return i
		}
	}
	return -1
}
