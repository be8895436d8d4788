package record

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/oyiakoumis/poco-sub000/internal/db/mongo"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
)

// recordDoc is the persisted shape of a record.
type recordDoc struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"user_id"`
	DatasetID string         `bson:"dataset_id"`
	Data      map[string]any `bson:"data"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
	Embedding []float32      `bson:"embedding,omitempty"`
}

func toDoc(r domrec.Record) recordDoc {
	data := r.Data()
	if data == nil {
		data = map[string]any{}
	}
	return recordDoc{
		ID:        r.ID(),
		UserID:    r.UserID(),
		DatasetID: r.DatasetID(),
		Data:      data,
		CreatedAt: r.CreatedAt(),
		UpdatedAt: r.UpdatedAt(),
		Embedding: r.Embedding(),
	}
}

func fromDoc(doc recordDoc) domrec.Record {
	r := domrec.Reconstruct(doc.ID, doc.UserID, doc.DatasetID, mongo.NormalizeMap(doc.Data),
		doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if len(doc.Embedding) > 0 {
		r = r.WithEmbedding(doc.Embedding)
	}
	return r
}

func decode(raw bson.Raw) (domrec.Record, error) {
	var doc recordDoc
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return domrec.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return fromDoc(doc), nil
}

func decodeAll(raws []bson.Raw) ([]domrec.Record, error) {
	out := make([]domrec.Record, 0, len(raws))
	for _, raw := range raws {
		r, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
