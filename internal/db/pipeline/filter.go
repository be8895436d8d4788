// Package pipeline compiles validated record queries into MongoDB aggregation stages.
package pipeline

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
)

// DataPrefix is the document path under which record values are stored.
const DataPrefix = "data."

var comparisonOps = map[query.ComparisonOperator]string{
	query.Eq:  "$eq",
	query.Ne:  "$ne",
	query.Gt:  "$gt",
	query.Gte: "$gte",
	query.Lt:  "$lt",
	query.Lte: "$lte",
}

var logicalOps = map[query.LogicalOperator]string{
	query.And: "$and",
	query.Or:  "$or",
}

// Filter translates a validated filter tree into a match document.
// Leaves become {"data.<field>": {<op>: value}}; AND/OR nodes nest their children.
func Filter(n query.Node) bson.D {
	switch x := n.(type) {
	case query.Condition:
		return condition(x)
	case *query.Condition:
		return condition(*x)
	case query.Expression:
		return expression(x)
	case *query.Expression:
		return expression(*x)
	default:
		return bson.D{}
	}
}

func condition(c query.Condition) bson.D {
	return bson.D{{Key: DataPrefix + c.Field, Value: bson.D{{Key: comparisonOps[c.Operator], Value: c.Value}}}}
}

func expression(e query.Expression) bson.D {
	children := make(bson.A, 0, len(e.Children))
	for _, c := range e.Children {
		children = append(children, Filter(c))
	}
	return bson.D{{Key: logicalOps[e.Operator], Value: children}}
}
