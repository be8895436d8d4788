package manager

import (
	"context"
	"time"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/vectorindex"
)

// DatasetRepository defines the storage contract for datasets.
type DatasetRepository interface {
	EnsureIndexes(ctx context.Context) error
	SearchIndexes() vectorindex.Backend
	Insert(ctx context.Context, d domds.Dataset) error
	Get(ctx context.Context, userID, id string) (domds.Dataset, error)
	List(ctx context.Context, userID string) ([]domds.Dataset, error)
	Exists(ctx context.Context, userID, id string) (bool, error)
	Replace(ctx context.Context, d domds.Dataset) error
	Delete(ctx context.Context, userID, id string) error
	SearchSimilar(ctx context.Context, s vectorindex.Search) ([]domds.Dataset, error)
}

// RecordRepository defines the storage contract for records.
//
//nolint:interfacebloat // records need CRUD, bulk, uniqueness checks, field migrations, queries and similarity
type RecordRepository interface {
	EnsureIndexes(ctx context.Context) error
	SearchIndexes() vectorindex.Backend
	Insert(ctx context.Context, rec domrec.Record) error
	InsertMany(ctx context.Context, recs []domrec.Record) error
	Get(ctx context.Context, userID, datasetID, id string) (domrec.Record, error)
	List(ctx context.Context, userID, datasetID string) ([]domrec.Record, error)
	WithField(ctx context.Context, userID, datasetID, field string) ([]domrec.Record, error)
	WithoutField(ctx context.Context, userID, datasetID, field string) ([]domrec.Record, error)
	Exists(ctx context.Context, userID, datasetID, id string) (bool, error)
	ExistingIDs(ctx context.Context, userID, datasetID string, ids []string) ([]string, error)
	ValueExists(ctx context.Context, userID, datasetID, field string, value any, exclude []string) (bool, error)
	FindDuplicate(ctx context.Context, userID, datasetID, field string) (*domrec.Duplicate, error)
	Update(ctx context.Context, rec domrec.Record) (int64, error)
	UpdateMany(ctx context.Context, recs []domrec.Record) (int64, error)
	UnsetField(ctx context.Context, userID, datasetID, field string, at time.Time) (int64, error)
	FillField(ctx context.Context, userID, datasetID, field string, value any, at time.Time) (int64, error)
	SetField(ctx context.Context, recs []domrec.Record, field string) (int64, error)
	SetEmbeddings(ctx context.Context, recs []domrec.Record) (int64, error)
	Delete(ctx context.Context, userID, datasetID, id string) error
	DeleteByIDs(ctx context.Context, userID, datasetID string, ids []string) (int64, error)
	DeleteByDataset(ctx context.Context, userID, datasetID string) (int64, error)
	Query(ctx context.Context, userID, datasetID string, q query.Query) ([]domrec.Record, error)
	Aggregate(ctx context.Context, userID, datasetID string, q query.Query) ([]query.Row, error)
	SearchSimilar(ctx context.Context, s vectorindex.Search) ([]domrec.Record, error)
}

// Embedder vectorizes text projections.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Transactor runs fn atomically. Repository calls made with the context handed
// to fn join the transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IndexLifecycle drives a vector index to a queryable state.
type IndexLifecycle interface {
	Ensure(ctx context.Context, b vectorindex.Backend, idx vectorindex.Index) error
}
