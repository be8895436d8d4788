// Package dataset holds the tenant-owned dataset aggregate.
package dataset

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

const (
	maxNameLen        = 128
	maxDescriptionLen = 1000
)

// Dataset is a named schema owned by one user (immutable value object).
type Dataset struct {
	id          string
	userID      string
	name        string
	description string
	schema      schema.Schema
	createdAt   time.Time
	updatedAt   time.Time
	embedding   []float32
}

func validateDetails(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("dataset name is required: %w", domain.ErrInvalidDataset)
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("dataset name too long (max %d): %w", maxNameLen, domain.ErrInvalidDataset)
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return fmt.Errorf("dataset description too long (max %d): %w", maxDescriptionLen, domain.ErrInvalidDataset)
	}
	return nil
}

// New validates and creates a Dataset.
func New(id, userID, name, description string, s schema.Schema, now time.Time) (Dataset, error) {
	if userID == "" {
		return Dataset{}, domain.ErrMissingTenant
	}
	if err := validateDetails(name, description); err != nil {
		return Dataset{}, err
	}
	return Dataset{
		id:          id,
		userID:      userID,
		name:        name,
		description: description,
		schema:      s,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct creates a Dataset without validation (storage hydration).
func Reconstruct(id, userID, name, description string, s schema.Schema, createdAt, updatedAt time.Time) Dataset {
	return Dataset{
		id:          id,
		userID:      userID,
		name:        name,
		description: description,
		schema:      s,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the dataset id.
func (d Dataset) ID() string { return d.id }

// UserID returns the owning tenant.
func (d Dataset) UserID() string { return d.userID }

// Name returns the dataset name, unique per user.
func (d Dataset) Name() string { return d.name }

// Description returns the dataset description.
func (d Dataset) Description() string { return d.description }

// Schema returns the current schema snapshot.
func (d Dataset) Schema() schema.Schema { return d.schema }

// CreatedAt returns the creation time.
func (d Dataset) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last modification time.
func (d Dataset) UpdatedAt() time.Time { return d.updatedAt }

// Embedding returns the vector to persist. Datasets read back from storage have none.
func (d Dataset) Embedding() []float32 { return d.embedding }

// WithSchema returns a copy carrying s. The embedding is cleared and must be regenerated.
func (d Dataset) WithSchema(s schema.Schema, now time.Time) Dataset {
	d.schema = s
	d.updatedAt = now
	d.embedding = nil
	return d
}

// WithDetails returns a copy with a new name and description.
func (d Dataset) WithDetails(name, description string, now time.Time) (Dataset, error) {
	if err := validateDetails(name, description); err != nil {
		return Dataset{}, err
	}
	d.name = name
	d.description = description
	d.updatedAt = now
	d.embedding = nil
	return d, nil
}

// WithEmbedding returns a copy carrying vec.
func (d Dataset) WithEmbedding(vec []float32) Dataset {
	d.embedding = slices.Clone(vec)
	return d
}
