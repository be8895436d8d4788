package fieldtype

import "slices"

// safeConversions lists, per source type, the target types a populated field may
// change to. String has no entry: free text cannot be narrowed safely.
var safeConversions = map[Type][]Type{
	Integer:     {Float, String},
	Float:       {String},
	Boolean:     {String},
	Date:        {String, Datetime},
	Datetime:    {String},
	Select:      {Select},
	MultiSelect: {MultiSelect},
}

// CanConvert reports whether a field of type from may change to type to.
// A type always converts to itself.
func CanConvert(from, to Type) bool {
	if from == to {
		return true
	}
	return slices.Contains(safeConversions[from], to)
}

// SafeTargets returns the types a field of type from may change to.
func SafeTargets(from Type) []Type {
	return slices.Clone(safeConversions[from])
}
