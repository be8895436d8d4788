package record

import (
	"fmt"
	"slices"
	"strings"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

// ValidateData coerces data against s and returns a map holding only schema fields
// that were supplied or defaulted. A nil value counts as not supplied.
func ValidateData(data map[string]any, s schema.Schema) (map[string]any, error) {
	var unknown []string
	for k := range data {
		if !s.Has(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("unknown fields: %s: %w", strings.Join(unknown, ", "), domain.ErrInvalidRecordData)
	}

	out := make(map[string]any, s.Len())
	for _, f := range s.Fields() {
		raw, present := data[f.Name()]
		if present && raw == nil {
			present = false
		}

		if !present {
			switch {
			case f.HasDefault():
				out[f.Name()] = f.Default()
			case f.Required():
				return nil, fmt.Errorf("Required field '%s' is missing: %w", f.Name(), domain.ErrInvalidRecordData)
			}
			continue
		}

		v, err := f.Validator()
		if err != nil {
			return nil, domain.NewFieldValueError(f.Name(), err)
		}
		coerced, err := v.Validate(raw)
		if err != nil {
			return nil, domain.NewFieldValueError(f.Name(), err)
		}
		out[f.Name()] = coerced
	}
	return out, nil
}

// ValidatePartial coerces the supplied values only. Unknown fields are rejected,
// while required fields and defaults are ignored. It serves similarity searches,
// which describe a record shape rather than a storable record.
func ValidatePartial(data map[string]any, s schema.Schema) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for k, raw := range data {
		f, ok := s.Field(k)
		if !ok {
			return nil, fmt.Errorf("unknown field '%s': %w", k, domain.ErrInvalidRecordData)
		}
		if raw == nil {
			continue
		}
		v, err := f.Validator()
		if err != nil {
			return nil, domain.NewFieldValueError(k, err)
		}
		coerced, err := v.Validate(raw)
		if err != nil {
			return nil, domain.NewFieldValueError(k, err)
		}
		out[k] = coerced
	}
	return out, nil
}
