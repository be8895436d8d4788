package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
)

// FieldUpdate is the outcome of a validated single-field change.
type FieldUpdate struct {
	Old    Field
	New    Field
	Schema Schema
	NoOp   bool
}

// NeedsMigration reports whether stored values must be re-validated under the new field.
func (u FieldUpdate) NeedsMigration() bool {
	if u.NoOp {
		return false
	}
	return u.Old.Type() != u.New.Type() || !slices.Equal(u.Old.Options(), u.New.Options())
}

// BecameRequired reports whether the update promotes an optional field to required.
func (u FieldUpdate) BecameRequired() bool {
	return !u.NoOp && u.New.Required() && !u.Old.Required()
}

// BecameUnique reports whether the update adds a uniqueness constraint.
func (u FieldUpdate) BecameUnique() bool {
	return !u.NoOp && u.New.Unique() && !u.Old.Unique()
}

// UpdateField validates replacing the field called name with spec.
func (s Schema) UpdateField(name string, spec FieldSpec) (FieldUpdate, error) {
	idx := s.indexOf(name)
	if idx < 0 {
		return FieldUpdate{}, fmt.Errorf("field '%s' not found: %w", name, domain.ErrInvalidDatasetSchema)
	}
	old := s.fields[idx]

	if spec.Name == "" {
		spec.Name = name
	}
	if spec.Name != name {
		return FieldUpdate{}, fmt.Errorf("renaming field '%s' to '%s' is not supported: %w",
			name, spec.Name, domain.ErrInvalidSchemaUpdate)
	}

	updated, err := NewField(spec)
	if err != nil {
		return FieldUpdate{}, fmt.Errorf("%w: %w", domain.ErrInvalidDatasetSchema, err)
	}
	if updated.Equal(old) {
		return FieldUpdate{Old: old, New: old, Schema: s, NoOp: true}, nil
	}

	if err := checkTransition(old, updated); err != nil {
		return FieldUpdate{}, err
	}

	fields := s.Fields()
	fields[idx] = updated
	next, err := New(fields)
	if err != nil {
		return FieldUpdate{}, err
	}
	return FieldUpdate{Old: old, New: updated, Schema: next}, nil
}

// AddField validates appending a new field. A required field needs a default so
// existing records stay valid.
func (s Schema) AddField(spec FieldSpec) (Schema, Field, error) {
	if s.Has(spec.Name) {
		return Schema{}, Field{}, fmt.Errorf("field '%s' already exists: %w", spec.Name, domain.ErrInvalidDatasetSchema)
	}
	f, err := NewField(spec)
	if err != nil {
		return Schema{}, Field{}, fmt.Errorf("%w: %w", domain.ErrInvalidDatasetSchema, err)
	}
	if f.Required() && !f.HasDefault() {
		return Schema{}, Field{}, fmt.Errorf("new required field '%s' must have a default value: %w",
			f.Name(), domain.ErrInvalidSchemaUpdate)
	}
	next, err := New(append(s.Fields(), f))
	if err != nil {
		return Schema{}, Field{}, err
	}
	return next, f, nil
}

// DeleteField returns the schema without the field called name.
func (s Schema) DeleteField(name string) (Schema, Field, error) {
	idx := s.indexOf(name)
	if idx < 0 {
		return Schema{}, Field{}, fmt.Errorf("field '%s' not found: %w", name, domain.ErrInvalidDatasetSchema)
	}
	removed := s.fields[idx]
	fields := s.Fields()
	fields = append(fields[:idx], fields[idx+1:]...)
	return Schema{fields: fields}, removed, nil
}

// ValidateUpdate checks a whole-schema replacement. Fields kept across the update
// must change type safely; fields that are new, or newly required, must carry a default.
func ValidateUpdate(old, next Schema) error {
	for _, f := range next.fields {
		prev, ok := old.Field(f.Name())
		if !ok {
			if f.Required() && !f.HasDefault() {
				return fmt.Errorf("new required field '%s' must have a default value: %w",
					f.Name(), domain.ErrInvalidSchemaUpdate)
			}
			continue
		}
		if err := checkTransition(prev, f); err != nil {
			return err
		}
	}
	return nil
}

func checkTransition(old, updated Field) error {
	if !fieldtype.CanConvert(old.Type(), updated.Type()) {
		return fmt.Errorf("cannot convert field '%s' from %s to %s (%s): %w",
			old.Name(), old.Type(), updated.Type(), allowedTargets(old.Type()), domain.ErrInvalidSchemaUpdate)
	}
	if updated.Required() && !old.Required() && !updated.HasDefault() {
		return fmt.Errorf("field '%s' cannot become required without a default value: %w",
			old.Name(), domain.ErrInvalidSchemaUpdate)
	}
	return nil
}

func allowedTargets(from fieldtype.Type) string {
	targets := fieldtype.SafeTargets(from)
	if len(targets) == 0 {
		return fmt.Sprintf("%s fields cannot change type", from)
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	return "allowed: " + strings.Join(names, ", ")
}
