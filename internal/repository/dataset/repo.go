// Package dataset persists datasets in the datasets collection.
package dataset

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oyiakoumis/poco-sub000/internal/db"
	dbmongo "github.com/oyiakoumis/poco-sub000/internal/db/mongo"
	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/vectorindex"
)

// store is the consumer interface for the datasets collection (ISP).
//
//nolint:interfacebloat // dataset repo needs CRUD, similarity and index management operations
type store interface {
	vectorindex.Backend
	InsertOne(ctx context.Context, doc any) error
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) (bson.Raw, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]bson.Raw, error)
	CountDocuments(ctx context.Context, filter any, limit int64) (int64, error)
	ReplaceOne(ctx context.Context, filter, doc any) (int64, error)
	DeleteOne(ctx context.Context, filter any) (int64, error)
	Aggregate(ctx context.Context, pipeline any) ([]bson.Raw, error)
	CreateIndexes(ctx context.Context, models []mongo.IndexModel) error
}

// Compile-time check: the mongo collection satisfies the store contract.
var _ store = (*dbmongo.Collection)(nil)

// Repo implements usecase/manager.DatasetRepository.
type Repo struct {
	store store
}

// New creates a dataset repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

var withoutEmbedding = bson.D{{Key: "embedding", Value: 0}}

func byID(userID, id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}}
}

// EnsureIndexes creates the unique (user_id, name) index and the tenant listing index.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	err := r.store.CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	return domain.NewDatabaseError("ensure dataset indexes", err)
}

// SearchIndexes exposes the collection's search index API to the index lifecycle.
func (r *Repo) SearchIndexes() vectorindex.Backend {
	return r.store
}

// Insert stores a new dataset. A (user_id, name) collision yields ErrDatasetNameExists.
func (r *Repo) Insert(ctx context.Context, d domds.Dataset) error {
	if err := r.store.InsertOne(ctx, toDoc(d)); err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			return domain.ErrDatasetNameExists
		}
		return domain.NewDatabaseError("insert dataset", err)
	}
	return nil
}

// Get returns the tenant's dataset without its embedding.
func (r *Repo) Get(ctx context.Context, userID, id string) (domds.Dataset, error) {
	raw, err := r.store.FindOne(ctx, byID(userID, id), options.FindOne().SetProjection(withoutEmbedding))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domds.Dataset{}, domain.ErrDatasetNotFound
		}
		return domds.Dataset{}, domain.NewDatabaseError("get dataset", err)
	}
	d, err := decode(raw)
	if err != nil {
		return domds.Dataset{}, domain.NewDatabaseError("get dataset", err)
	}
	return d, nil
}

// List returns every dataset of the tenant in creation order.
func (r *Repo) List(ctx context.Context, userID string) ([]domds.Dataset, error) {
	opts := options.Find().
		SetProjection(withoutEmbedding).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	raws, err := r.store.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, domain.NewDatabaseError("list datasets", err)
	}
	return decodeAll(raws, "list datasets")
}

// Exists reports whether the tenant owns a dataset with id.
func (r *Repo) Exists(ctx context.Context, userID, id string) (bool, error) {
	n, err := r.store.CountDocuments(ctx, byID(userID, id), 1)
	if err != nil {
		return false, domain.NewDatabaseError("dataset exists", err)
	}
	return n > 0, nil
}

// Replace overwrites the stored dataset with d.
func (r *Repo) Replace(ctx context.Context, d domds.Dataset) error {
	matched, err := r.store.ReplaceOne(ctx, byID(d.UserID(), d.ID()), toDoc(d))
	if err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			return domain.ErrDatasetNameExists
		}
		return domain.NewDatabaseError("replace dataset", err)
	}
	if matched == 0 {
		return domain.ErrDatasetNotFound
	}
	return nil
}

// Delete removes the dataset document.
func (r *Repo) Delete(ctx context.Context, userID, id string) error {
	deleted, err := r.store.DeleteOne(ctx, byID(userID, id))
	if err != nil {
		return domain.NewDatabaseError("delete dataset", err)
	}
	if deleted == 0 {
		return domain.ErrDatasetNotFound
	}
	return nil
}

// SearchSimilar runs a similarity pipeline over dataset embeddings.
func (r *Repo) SearchSimilar(ctx context.Context, s vectorindex.Search) ([]domds.Dataset, error) {
	raws, err := r.store.Aggregate(ctx, s.Pipeline())
	if err != nil {
		return nil, domain.NewDatabaseError("search similar datasets", err)
	}
	return decodeAll(raws, "search similar datasets")
}

func decodeAll(raws []bson.Raw, op string) ([]domds.Dataset, error) {
	out := make([]domds.Dataset, 0, len(raws))
	for _, raw := range raws {
		d, err := decode(raw)
		if err != nil {
			return nil, domain.NewDatabaseError(op, err)
		}
		out = append(out, d)
	}
	return out, nil
}
