package schema

import (
	"fmt"
	"reflect"
	"slices"
	"unicode/utf8"

	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
)

const (
	maxNameLen        = 128
	maxDescriptionLen = 500
)

// FieldSpec is the caller-supplied definition of a field.
type FieldSpec struct {
	Name        string
	Description string
	Type        fieldtype.Type
	Required    bool
	Unique      bool
	Default     any
	Options     []string
}

// Field is an immutable, validated column definition.
type Field struct {
	name         string
	description  string
	fieldType    fieldtype.Type
	required     bool
	unique       bool
	defaultValue any
	options      []string
}

// NewField validates spec and returns a Field whose default is already coerced
// to the canonical value of its type.
func NewField(spec FieldSpec) (Field, error) {
	if spec.Name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if utf8.RuneCountInString(spec.Name) > maxNameLen {
		return Field{}, fmt.Errorf("field name %q too long (max %d)", spec.Name, maxNameLen)
	}
	if spec.Description == "" {
		return Field{}, fmt.Errorf("field '%s': description is required", spec.Name)
	}
	if utf8.RuneCountInString(spec.Description) > maxDescriptionLen {
		return Field{}, fmt.Errorf("field '%s': description too long (max %d)", spec.Name, maxDescriptionLen)
	}
	if !spec.Type.IsValid() {
		return Field{}, fmt.Errorf("field '%s': unknown type %q", spec.Name, spec.Type)
	}

	var options []string
	if spec.Type.RequiresOptions() {
		if len(spec.Options) == 0 {
			return Field{}, fmt.Errorf("field '%s': options are required for %s fields", spec.Name, spec.Type)
		}
		seen := make(map[string]bool, len(spec.Options))
		for _, o := range spec.Options {
			if seen[o] {
				return Field{}, fmt.Errorf("field '%s': duplicate option %q", spec.Name, o)
			}
			seen[o] = true
		}
		options = slices.Clone(spec.Options)
	}

	v, err := fieldtype.For(spec.Type, options)
	if err != nil {
		return Field{}, fmt.Errorf("field '%s': %w", spec.Name, err)
	}
	def, err := v.ValidateDefault(spec.Default)
	if err != nil {
		return Field{}, fmt.Errorf("field '%s': invalid default: %w", spec.Name, err)
	}

	return Field{
		name:         spec.Name,
		description:  spec.Description,
		fieldType:    spec.Type,
		required:     spec.Required,
		unique:       spec.Unique,
		defaultValue: def,
		options:      options,
	}, nil
}

// ReconstructField creates a Field without validation (storage hydration).
func ReconstructField(spec FieldSpec) Field {
	return Field{
		name:         spec.Name,
		description:  spec.Description,
		fieldType:    spec.Type,
		required:     spec.Required,
		unique:       spec.Unique,
		defaultValue: spec.Default,
		options:      slices.Clone(spec.Options),
	}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Description returns the human description used in embedding projections.
func (f Field) Description() string { return f.description }

// Type returns the declared field type.
func (f Field) Type() fieldtype.Type { return f.fieldType }

// Required reports whether every record must carry a value.
func (f Field) Required() bool { return f.required }

// Unique reports whether values must be distinct across the dataset's records.
func (f Field) Unique() bool { return f.unique }

// Default returns the canonical default value, or nil.
func (f Field) Default() any { return f.defaultValue }

// HasDefault reports whether a default is declared.
func (f Field) HasDefault() bool { return f.defaultValue != nil }

// Options returns a copy of the allowed values for Select and Multi Select fields.
func (f Field) Options() []string { return slices.Clone(f.options) }

// Spec returns the field as a FieldSpec.
func (f Field) Spec() FieldSpec {
	return FieldSpec{
		Name:        f.name,
		Description: f.description,
		Type:        f.fieldType,
		Required:    f.required,
		Unique:      f.unique,
		Default:     f.defaultValue,
		Options:     f.Options(),
	}
}

// Validator returns the field type's validator with this field's options bound.
func (f Field) Validator() (fieldtype.Validator, error) {
	return fieldtype.For(f.fieldType, f.options)
}

// Equal reports whether two fields are definitionally identical.
func (f Field) Equal(o Field) bool {
	return f.name == o.name &&
		f.description == o.description &&
		f.fieldType == o.fieldType &&
		f.required == o.required &&
		f.unique == o.unique &&
		slices.Equal(f.options, o.options) &&
		reflect.DeepEqual(f.defaultValue, o.defaultValue)
}
