package query

import (
	"fmt"
	"maps"
)

// Function is an aggregation function.
type Function string

// Aggregation functions.
const (
	Sum   Function = "sum"
	Avg   Function = "avg"
	Min   Function = "min"
	Max   Function = "max"
	Count Function = "count"
)

// Aggregation applies Function to Field and exposes the result under Alias.
type Aggregation struct {
	Field    string
	Function Function
	Alias    string
}

// Name returns the alias, or "field_function" when none is set.
func (a Aggregation) Name() string {
	if a.Alias != "" {
		return a.Alias
	}
	return fmt.Sprintf("%s_%s", a.Field, a.Function)
}

// Order is a sort direction.
type Order int

// Sort directions, matching the backing store's 1/-1 convention.
const (
	Ascending  Order = 1
	Descending Order = -1
)

// SortKey orders results by a schema field or an aggregation alias.
type SortKey struct {
	Field string
	Order Order
}

// Query selects and optionally aggregates the records of one dataset.
type Query struct {
	GroupBy      []string
	Aggregations []Aggregation
	Filter       Node
	Sort         []SortKey
	Limit        int
}

// Aggregating reports whether the query produces grouped rows instead of records.
func (q Query) Aggregating() bool {
	return len(q.GroupBy) > 0 || len(q.Aggregations) > 0
}

// Row is one grouped aggregation result with group-by values flattened to the top level.
type Row map[string]any

// Flatten lifts the fields of a nested group key to the top level of row and drops the key.
func Flatten(row map[string]any, groupKey string) Row {
	out := make(Row, len(row))
	for k, v := range row {
		if k == groupKey {
			continue
		}
		out[k] = v
	}
	if key, ok := row[groupKey].(map[string]any); ok {
		maps.Copy(out, key)
	}
	return out
}
