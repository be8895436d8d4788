package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

var (
	numericFunctions  = []Function{Sum, Avg, Min, Max, Count}
	temporalFunctions = []Function{Min, Max, Count}
	countOnly         = []Function{Count}
)

// validFunctions lists the aggregations each field type supports.
var validFunctions = map[fieldtype.Type][]Function{
	fieldtype.Integer:     numericFunctions,
	fieldtype.Float:       numericFunctions,
	fieldtype.Date:        temporalFunctions,
	fieldtype.Datetime:    temporalFunctions,
	fieldtype.String:      countOnly,
	fieldtype.Boolean:     countOnly,
	fieldtype.Select:      countOnly,
	fieldtype.MultiSelect: countOnly,
}

// Supports reports whether fn may aggregate a field of type t.
func Supports(t fieldtype.Type, fn Function) bool {
	return slices.Contains(validFunctions[t], fn)
}

// Validate resolves q against s. It returns a copy whose filter values are coerced
// to canonical field values and whose aggregations carry explicit aliases.
func Validate(q Query, s schema.Schema) (Query, error) {
	if q.Limit < 0 {
		return Query{}, fmt.Errorf("limit must not be negative: %w", domain.ErrInvalidQuery)
	}

	out := Query{Limit: q.Limit}

	for _, name := range q.GroupBy {
		if !s.Has(name) {
			return Query{}, fmt.Errorf("group by field '%s' not found in schema: %w", name, domain.ErrInvalidQuery)
		}
		if slices.Contains(out.GroupBy, name) {
			return Query{}, fmt.Errorf("duplicate group by field '%s': %w", name, domain.ErrInvalidQuery)
		}
		out.GroupBy = append(out.GroupBy, name)
	}

	aliases := make(map[string]bool, len(q.Aggregations))
	for _, agg := range q.Aggregations {
		resolved, err := validateAggregation(agg, s, out.GroupBy)
		if err != nil {
			return Query{}, err
		}
		if aliases[resolved.Alias] {
			return Query{}, fmt.Errorf("duplicate aggregation alias '%s': %w", resolved.Alias, domain.ErrInvalidQuery)
		}
		aliases[resolved.Alias] = true
		out.Aggregations = append(out.Aggregations, resolved)
	}

	if q.Filter != nil {
		filter, err := validateNode(q.Filter, s, 1)
		if err != nil {
			return Query{}, err
		}
		out.Filter = filter
	}

	for _, key := range q.Sort {
		if key.Order != Ascending && key.Order != Descending {
			return Query{}, fmt.Errorf("invalid sort order %d for '%s': %w", key.Order, key.Field, domain.ErrInvalidQuery)
		}
		if out.Aggregating() {
			if !slices.Contains(out.GroupBy, key.Field) && !aliases[key.Field] {
				return Query{}, fmt.Errorf("sort field '%s' must be a group by field or aggregation alias: %w",
					key.Field, domain.ErrInvalidQuery)
			}
		} else if !s.Has(key.Field) {
			return Query{}, fmt.Errorf("sort field '%s' not found in schema: %w", key.Field, domain.ErrInvalidQuery)
		}
		out.Sort = append(out.Sort, key)
	}

	return out, nil
}

func validateAggregation(agg Aggregation, s schema.Schema, groupBy []string) (Aggregation, error) {
	f, ok := s.Field(agg.Field)
	if !ok {
		return Aggregation{}, fmt.Errorf("aggregation field '%s' not found in schema: %w", agg.Field, domain.ErrInvalidQuery)
	}
	if !Supports(f.Type(), agg.Function) {
		return Aggregation{}, fmt.Errorf("aggregation '%s' is not supported for %s field '%s': %w",
			agg.Function, f.Type(), agg.Field, domain.ErrInvalidQuery)
	}
	alias := agg.Name()
	if alias == "_id" || strings.HasPrefix(alias, "$") || strings.Contains(alias, ".") {
		return Aggregation{}, fmt.Errorf("invalid aggregation alias '%s': %w", alias, domain.ErrInvalidQuery)
	}
	if slices.Contains(groupBy, alias) {
		return Aggregation{}, fmt.Errorf("aggregation alias '%s' collides with a group by field: %w",
			alias, domain.ErrInvalidQuery)
	}
	return Aggregation{Field: agg.Field, Function: agg.Function, Alias: alias}, nil
}

func validateNode(n Node, s schema.Schema, depth int) (Node, error) {
	if depth > MaxFilterDepth {
		return nil, fmt.Errorf("filter nested deeper than %d levels: %w", MaxFilterDepth, domain.ErrInvalidQuery)
	}
	switch x := n.(type) {
	case Condition:
		return validateCondition(x, s)
	case *Condition:
		return validateCondition(*x, s)
	case Expression:
		return validateExpression(x, s, depth)
	case *Expression:
		return validateExpression(*x, s, depth)
	default:
		return nil, fmt.Errorf("unsupported filter node %T: %w", n, domain.ErrInvalidQuery)
	}
}

func validateExpression(e Expression, s schema.Schema, depth int) (Node, error) {
	if !e.Operator.IsValid() {
		return nil, fmt.Errorf("invalid logical operator %q: %w", e.Operator, domain.ErrInvalidQuery)
	}
	if len(e.Children) == 0 {
		return nil, fmt.Errorf("%s expression needs at least one condition: %w", e.Operator, domain.ErrInvalidQuery)
	}
	children := make([]Node, 0, len(e.Children))
	for _, c := range e.Children {
		v, err := validateNode(c, s, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, v)
	}
	return Expression{Operator: e.Operator, Children: children}, nil
}

// validateCondition coerces the comparison value through the field's validator.
// A coercion failure is a record-data error, like any other bad field value.
func validateCondition(c Condition, s schema.Schema) (Node, error) {
	if !c.Operator.IsValid() {
		return nil, fmt.Errorf("invalid comparison operator %q: %w", c.Operator, domain.ErrInvalidQuery)
	}
	f, ok := s.Field(c.Field)
	if !ok {
		return nil, fmt.Errorf("filter field '%s' not found in schema: %w", c.Field, domain.ErrInvalidQuery)
	}
	if c.Value == nil {
		return Condition{Field: c.Field, Operator: c.Operator}, nil
	}
	v, err := f.Validator()
	if err != nil {
		return nil, domain.NewFieldValueError(c.Field, err)
	}
	coerced, err := v.Validate(c.Value)
	if err != nil {
		return nil, domain.NewFieldValueError(c.Field, err)
	}
	return Condition{Field: c.Field, Operator: c.Operator, Value: coerced}, nil
}
