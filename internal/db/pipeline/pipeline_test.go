package pipeline

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
)

func stageNames(p mongo.Pipeline) []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s[0].Key
	}
	return names
}

func TestFilter_Leaf(t *testing.T) {
	got := Filter(query.Cond("amt", query.Gte, int64(10)))
	want := bson.D{{Key: "data.amt", Value: bson.D{{Key: "$gte", Value: int64(10)}}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFilter_Nested(t *testing.T) {
	got := Filter(query.AllOf(
		query.Cond("cat", query.Eq, "a"),
		query.AnyOf(query.Cond("amt", query.Lt, int64(5)), query.Cond("amt", query.Gt, int64(50))),
	))
	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "data.cat", Value: bson.D{{Key: "$eq", Value: "a"}}}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "data.amt", Value: bson.D{{Key: "$lt", Value: int64(5)}}}},
			bson.D{{Key: "data.amt", Value: bson.D{{Key: "$gt", Value: int64(50)}}}},
		}}},
	}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRecords_PlainQuery(t *testing.T) {
	p := Records("u1", "d1", query.Query{
		Filter: query.Cond("amt", query.Gt, int64(1)),
		Sort:   []query.SortKey{{Field: "amt", Order: query.Descending}},
		Limit:  5,
	})

	if got, want := stageNames(p), []string{"$match", "$match", "$sort", "$limit", "$project"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(p[0][0].Value, Scope("u1", "d1")) {
		t.Errorf("scope stage = %v", p[0][0].Value)
	}
	if want := (bson.D{{Key: "data.amt", Value: -1}}); !reflect.DeepEqual(p[2][0].Value, want) {
		t.Errorf("sort = %v, want %v", p[2][0].Value, want)
	}
	if p[3][0].Value != int64(5) {
		t.Errorf("limit = %v", p[3][0].Value)
	}
}

func TestRecords_OmitsAbsentStages(t *testing.T) {
	p := Records("u1", "d1", query.Query{})
	if got, want := stageNames(p), []string{"$match", "$project"}; !reflect.DeepEqual(got, want) {
		t.Errorf("stages = %v, want %v", got, want)
	}
}

func TestRecords_GroupedAggregation(t *testing.T) {
	q := query.Query{
		GroupBy: []string{"cat"},
		Aggregations: []query.Aggregation{
			{Field: "amt", Function: query.Sum, Alias: "amt_sum"},
			{Field: "amt", Function: query.Count, Alias: "n"},
		},
		Sort: []query.SortKey{{Field: "cat", Order: query.Ascending}, {Field: "amt_sum", Order: query.Descending}},
	}
	p := Records("u1", "d1", q)

	if got, want := stageNames(p), []string{"$match", "$group", "$sort"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}

	wantGroup := bson.D{
		{Key: "_id", Value: bson.D{{Key: "cat", Value: "$data.cat"}}},
		{Key: "amt_sum", Value: bson.D{{Key: "$sum", Value: "$data.amt"}}},
		{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
	}
	if !reflect.DeepEqual(p[1][0].Value, wantGroup) {
		t.Errorf("group = %v, want %v", p[1][0].Value, wantGroup)
	}

	wantSort := bson.D{{Key: "_id.cat", Value: 1}, {Key: "amt_sum", Value: -1}}
	if !reflect.DeepEqual(p[2][0].Value, wantSort) {
		t.Errorf("sort = %v, want %v", p[2][0].Value, wantSort)
	}
}

func TestRecords_UngroupedAggregation(t *testing.T) {
	p := Records("u1", "d1", query.Query{
		Aggregations: []query.Aggregation{{Field: "amt", Function: query.Avg, Alias: "amt_avg"}},
	})
	group := p[1][0].Value.(bson.D)
	if group[0].Key != "_id" || group[0].Value != nil {
		t.Errorf("expected null group key, got %v", group[0])
	}
}

func TestDuplicates(t *testing.T) {
	p := Duplicates("u1", "d1", "email")
	if got, want := stageNames(p), []string{"$match", "$match", "$group", "$match", "$limit"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	group := p[2][0].Value.(bson.D)
	if group[0].Value != "$data.email" {
		t.Errorf("group key = %v", group[0].Value)
	}
}
