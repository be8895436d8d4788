package dataset

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/oyiakoumis/poco-sub000/internal/db/mongo"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

// fieldDoc is the persisted shape of one schema field.
type fieldDoc struct {
	Name        string   `bson:"field_name"`
	Description string   `bson:"description"`
	Type        string   `bson:"type"`
	Required    bool     `bson:"required"`
	Unique      bool     `bson:"unique"`
	Default     any      `bson:"default"`
	Options     []string `bson:"options,omitempty"`
}

// datasetDoc is the persisted shape of a dataset.
type datasetDoc struct {
	ID          string     `bson:"_id"`
	UserID      string     `bson:"user_id"`
	Name        string     `bson:"name"`
	Description string     `bson:"description"`
	Schema      []fieldDoc `bson:"dataset_schema"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	Embedding   []float32  `bson:"embedding,omitempty"`
}

func toDoc(d domds.Dataset) datasetDoc {
	fields := d.Schema().Fields()
	docs := make([]fieldDoc, 0, len(fields))
	for _, f := range fields {
		docs = append(docs, fieldDoc{
			Name:        f.Name(),
			Description: f.Description(),
			Type:        string(f.Type()),
			Required:    f.Required(),
			Unique:      f.Unique(),
			Default:     f.Default(),
			Options:     f.Options(),
		})
	}
	return datasetDoc{
		ID:          d.ID(),
		UserID:      d.UserID(),
		Name:        d.Name(),
		Description: d.Description(),
		Schema:      docs,
		CreatedAt:   d.CreatedAt(),
		UpdatedAt:   d.UpdatedAt(),
		Embedding:   d.Embedding(),
	}
}

func fromDoc(doc datasetDoc) (domds.Dataset, error) {
	fields := make([]schema.Field, 0, len(doc.Schema))
	for _, fd := range doc.Schema {
		t, err := fieldtype.Parse(fd.Type)
		if err != nil {
			return domds.Dataset{}, fmt.Errorf("dataset %s field %s: %w", doc.ID, fd.Name, err)
		}
		fields = append(fields, schema.ReconstructField(schema.FieldSpec{
			Name:        fd.Name,
			Description: fd.Description,
			Type:        t,
			Required:    fd.Required,
			Unique:      fd.Unique,
			Default:     mongo.Normalize(fd.Default),
			Options:     fd.Options,
		}))
	}
	d := domds.Reconstruct(doc.ID, doc.UserID, doc.Name, doc.Description,
		schema.Reconstruct(fields), doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if len(doc.Embedding) > 0 {
		d = d.WithEmbedding(doc.Embedding)
	}
	return d, nil
}

func decode(raw bson.Raw) (domds.Dataset, error) {
	var doc datasetDoc
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return domds.Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return fromDoc(doc)
}
