package vectorindex

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
)

// Index names a search index and carries its definition.
type Index struct {
	Name       string
	Definition bson.D
}

// Definition builds a vectorSearch index definition over path with optional filter paths.
func Definition(dims int, similarity, path string, filterPaths ...string) bson.D {
	fields := bson.A{bson.D{
		{Key: "type", Value: "vector"},
		{Key: "path", Value: path},
		{Key: "numDimensions", Value: dims},
		{Key: "similarity", Value: similarity},
	}}
	for _, f := range filterPaths {
		fields = append(fields, bson.D{{Key: "type", Value: "filter"}, {Key: "path", Value: f}})
	}
	return bson.D{{Key: "fields", Value: fields}}
}

// DatasetIndex is the index over dataset embeddings, filterable by tenant.
func DatasetIndex(cfg domain.VectorSearchConfig) Index {
	return Index{
		Name:       cfg.DatasetIndexName,
		Definition: Definition(cfg.Dimensions, cfg.Similarity, cfg.FieldPath, "user_id"),
	}
}

// RecordIndex is the index over record embeddings, filterable by tenant and dataset.
func RecordIndex(cfg domain.VectorSearchConfig) Index {
	return Index{
		Name:       cfg.RecordIndexName,
		Definition: Definition(cfg.Dimensions, cfg.Similarity, cfg.FieldPath, "user_id", "dataset_id"),
	}
}
