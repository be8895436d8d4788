package pipeline

import (
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
)

// GroupKey is the document key holding group-by values in aggregation output.
const GroupKey = "_id"

// EmbeddingField is excluded from every read projection.
const EmbeddingField = "embedding"

var accumulators = map[query.Function]string{
	query.Sum: "$sum",
	query.Avg: "$avg",
	query.Min: "$min",
	query.Max: "$max",
}

// Scope matches the records of one dataset owned by one tenant.
func Scope(userID, datasetID string) bson.D {
	return bson.D{{Key: "user_id", Value: userID}, {Key: "dataset_id", Value: datasetID}}
}

// Records builds the pipeline for a validated query, in stage order:
// tenant match, filter, group, sort, limit. Absent stages are omitted.
// Plain queries additionally drop the embedding from output.
func Records(userID, datasetID string, q query.Query) mongo.Pipeline {
	p := mongo.Pipeline{{{Key: "$match", Value: Scope(userID, datasetID)}}}

	if q.Filter != nil {
		p = append(p, bson.D{{Key: "$match", Value: Filter(q.Filter)}})
	}
	if q.Aggregating() {
		p = append(p, bson.D{{Key: "$group", Value: group(q)}})
	}
	if len(q.Sort) > 0 {
		p = append(p, bson.D{{Key: "$sort", Value: sortDoc(q)}})
	}
	if q.Limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: int64(q.Limit)}})
	}
	if !q.Aggregating() {
		p = append(p, bson.D{{Key: "$project", Value: bson.D{{Key: EmbeddingField, Value: 0}}}})
	}
	return p
}

func group(q query.Query) bson.D {
	var id any
	if len(q.GroupBy) > 0 {
		key := make(bson.D, 0, len(q.GroupBy))
		for _, f := range q.GroupBy {
			key = append(key, bson.E{Key: f, Value: "$" + DataPrefix + f})
		}
		id = key
	}

	g := bson.D{{Key: GroupKey, Value: id}}
	for _, a := range q.Aggregations {
		g = append(g, bson.E{Key: a.Name(), Value: accumulator(a)})
	}
	return g
}

func accumulator(a query.Aggregation) bson.D {
	if a.Function == query.Count {
		return bson.D{{Key: "$sum", Value: 1}}
	}
	return bson.D{{Key: accumulators[a.Function], Value: "$" + DataPrefix + a.Field}}
}

// sortDoc maps sort keys to document paths: group-by fields live under the group key,
// aliases at the top level and plain fields under data.
func sortDoc(q query.Query) bson.D {
	doc := make(bson.D, 0, len(q.Sort))
	for _, k := range q.Sort {
		doc = append(doc, bson.E{Key: sortPath(q, k.Field), Value: int(k.Order)})
	}
	return doc
}

func sortPath(q query.Query, field string) string {
	if !q.Aggregating() {
		return DataPrefix + field
	}
	if slices.Contains(q.GroupBy, field) {
		return GroupKey + "." + field
	}
	return field
}

// Duplicates finds one value of field shared by more than one record in the dataset.
func Duplicates(userID, datasetID, field string) mongo.Pipeline {
	path := DataPrefix + field
	return mongo.Pipeline{
		{{Key: "$match", Value: Scope(userID, datasetID)}},
		{{Key: "$match", Value: bson.D{{Key: path, Value: bson.D{{Key: "$exists", Value: true}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: GroupKey, Value: "$" + path},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$limit", Value: int64(1)}},
	}
}
