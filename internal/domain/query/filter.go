// Package query defines the record filter tree and the grouped aggregation query.
package query

// MaxFilterDepth bounds the nesting of logical expressions.
const MaxFilterDepth = 8

// ComparisonOperator compares a field with a value.
type ComparisonOperator string

// Comparison operators.
const (
	Eq  ComparisonOperator = "eq"
	Ne  ComparisonOperator = "ne"
	Gt  ComparisonOperator = "gt"
	Gte ComparisonOperator = "gte"
	Lt  ComparisonOperator = "lt"
	Lte ComparisonOperator = "lte"
)

// IsValid reports whether op is a known comparison operator.
func (op ComparisonOperator) IsValid() bool {
	switch op {
	case Eq, Ne, Gt, Gte, Lt, Lte:
		return true
	}
	return false
}

// LogicalOperator combines child nodes.
type LogicalOperator string

// Logical operators.
const (
	And LogicalOperator = "and"
	Or  LogicalOperator = "or"
)

// IsValid reports whether op is a known logical operator.
func (op LogicalOperator) IsValid() bool { return op == And || op == Or }

// Node is either a Condition or an Expression.
type Node interface {
	node()
}

// Condition is a leaf comparing one field with a value.
type Condition struct {
	Field    string
	Operator ComparisonOperator
	Value    any
}

func (Condition) node() {}

// Expression joins child nodes with a logical operator.
type Expression struct {
	Operator LogicalOperator
	Children []Node
}

func (Expression) node() {}

// Cond builds a Condition.
func Cond(field string, op ComparisonOperator, value any) Condition {
	return Condition{Field: field, Operator: op, Value: value}
}

// AllOf builds an AND expression.
func AllOf(children ...Node) Expression {
	return Expression{Operator: And, Children: children}
}

// AnyOf builds an OR expression.
func AnyOf(children ...Node) Expression {
	return Expression{Operator: Or, Children: children}
}
