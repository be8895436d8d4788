// Package record holds dataset rows and their validation against a schema.
package record

import (
	"maps"
	"slices"
	"time"
)

// Record is one schema-conformant row of a dataset (immutable value object).
type Record struct {
	id        string
	userID    string
	datasetID string
	data      map[string]any
	createdAt time.Time
	updatedAt time.Time
	embedding []float32
}

// New creates a Record from already validated data.
func New(id, userID, datasetID string, data map[string]any, now time.Time) Record {
	return Record{
		id:        id,
		userID:    userID,
		datasetID: datasetID,
		data:      maps.Clone(data),
		createdAt: now,
		updatedAt: now,
	}
}

// Reconstruct creates a Record from stored values (storage hydration).
func Reconstruct(id, userID, datasetID string, data map[string]any, createdAt, updatedAt time.Time) Record {
	return Record{
		id:        id,
		userID:    userID,
		datasetID: datasetID,
		data:      maps.Clone(data),
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the record id.
func (r Record) ID() string { return r.id }

// UserID returns the owning tenant.
func (r Record) UserID() string { return r.userID }

// DatasetID returns the dataset the record belongs to.
func (r Record) DatasetID() string { return r.datasetID }

// Data returns a shallow copy of the typed field values.
func (r Record) Data() map[string]any { return maps.Clone(r.data) }

// Value returns the value stored for field.
func (r Record) Value(field string) (any, bool) {
	v, ok := r.data[field]
	return v, ok
}

// CreatedAt returns the creation time.
func (r Record) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last modification time.
func (r Record) UpdatedAt() time.Time { return r.updatedAt }

// Embedding returns the vector to persist. Records read back from storage have none.
func (r Record) Embedding() []float32 { return r.embedding }

// WithData returns a copy carrying new data and a bumped update time.
func (r Record) WithData(data map[string]any, now time.Time) Record {
	r.data = maps.Clone(data)
	r.updatedAt = now
	r.embedding = nil
	return r
}

// WithEmbedding returns a copy carrying vec.
func (r Record) WithEmbedding(vec []float32) Record {
	r.embedding = slices.Clone(vec)
	return r
}
