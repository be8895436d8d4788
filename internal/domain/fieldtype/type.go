// Package fieldtype defines the closed set of dataset field types and one validator per type.
package fieldtype

import (
	"fmt"
	"strings"
)

// Type is the declared type of a dataset field.
type Type string

// Field type constants. The string values are the persisted representation.
const (
	Integer     Type = "Integer"
	Float       Type = "Float"
	String      Type = "String"
	Boolean     Type = "Boolean"
	Date        Type = "Date"
	Datetime    Type = "Datetime"
	Select      Type = "Select"
	MultiSelect Type = "Multi Select"
)

var all = []Type{Integer, Float, String, Boolean, Date, Datetime, Select, MultiSelect}

// IsValid reports whether t is one of the supported types.
func (t Type) IsValid() bool {
	_, ok := registry[t]
	return ok
}

// RequiresOptions reports whether values of t must come from a declared option set.
func (t Type) RequiresOptions() bool {
	return t == Select || t == MultiSelect
}

// Parse converts a persisted or user-supplied type name into a Type.
func Parse(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		names := make([]string, len(all))
		for i, ft := range all {
			names[i] = string(ft)
		}
		return "", fmt.Errorf("unknown field type %q, expected one of: %s", s, strings.Join(names, ", "))
	}
	return t, nil
}
