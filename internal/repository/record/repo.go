// Package record persists dataset records in the records collection.
package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oyiakoumis/poco-sub000/internal/db"
	dbmongo "github.com/oyiakoumis/poco-sub000/internal/db/mongo"
	"github.com/oyiakoumis/poco-sub000/internal/db/pipeline"
	"github.com/oyiakoumis/poco-sub000/internal/domain"
	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/vectorindex"
)

// store is the consumer interface for the records collection (ISP).
//
//nolint:interfacebloat // record repo needs CRUD, bulk, aggregation and index management operations
type store interface {
	vectorindex.Backend
	InsertOne(ctx context.Context, doc any) error
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) (bson.Raw, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]bson.Raw, error)
	CountDocuments(ctx context.Context, filter any, limit int64) (int64, error)
	UpdateOne(ctx context.Context, filter, update any) (int64, int64, error)
	UpdateMany(ctx context.Context, filter, update any) (int64, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel) (dbmongo.BulkResult, error)
	DeleteOne(ctx context.Context, filter any) (int64, error)
	DeleteMany(ctx context.Context, filter any) (int64, error)
	Aggregate(ctx context.Context, pipeline any) ([]bson.Raw, error)
	CreateIndexes(ctx context.Context, models []mongo.IndexModel) error
}

// Compile-time check: the mongo collection satisfies the store contract.
var _ store = (*dbmongo.Collection)(nil)

// Repo implements usecase/manager.RecordRepository.
type Repo struct {
	store store
}

// New creates a record repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

var withoutEmbedding = bson.D{{Key: pipeline.EmbeddingField, Value: 0}}

func byID(userID, datasetID, id string) bson.D {
	return append(pipeline.Scope(userID, datasetID), bson.E{Key: "_id", Value: id})
}

func withField(userID, datasetID, field string, exists bool) bson.D {
	return append(pipeline.Scope(userID, datasetID),
		bson.E{Key: pipeline.DataPrefix + field, Value: bson.D{{Key: "$exists", Value: exists}}})
}

// EnsureIndexes creates the per-dataset lookup indexes.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	err := r.store.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "dataset_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "dataset_id", Value: 1}, {Key: "_id", Value: 1}}},
	})
	return domain.NewDatabaseError("ensure record indexes", err)
}

// SearchIndexes exposes the collection's search index API to the index lifecycle.
func (r *Repo) SearchIndexes() vectorindex.Backend {
	return r.store
}

// Insert stores one record.
func (r *Repo) Insert(ctx context.Context, rec domrec.Record) error {
	return domain.NewDatabaseError("insert record", r.store.InsertOne(ctx, toDoc(rec)))
}

// InsertMany stores records with one unordered bulk write.
func (r *Repo) InsertMany(ctx context.Context, recs []domrec.Record) error {
	models := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		models = append(models, mongo.NewInsertOneModel().SetDocument(toDoc(rec)))
	}
	res, err := r.store.BulkWrite(ctx, models)
	if err != nil {
		return domain.NewDatabaseError("insert records", err)
	}
	if res.Inserted != int64(len(recs)) {
		return domain.NewDatabaseError("insert records",
			fmt.Errorf("inserted %d of %d records", res.Inserted, len(recs)))
	}
	return nil
}

// Get returns one record without its embedding.
func (r *Repo) Get(ctx context.Context, userID, datasetID, id string) (domrec.Record, error) {
	raw, err := r.store.FindOne(ctx, byID(userID, datasetID, id), options.FindOne().SetProjection(withoutEmbedding))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domrec.Record{}, domain.ErrRecordNotFound
		}
		return domrec.Record{}, domain.NewDatabaseError("get record", err)
	}
	rec, err := decode(raw)
	if err != nil {
		return domrec.Record{}, domain.NewDatabaseError("get record", err)
	}
	return rec, nil
}

// List returns every record of the dataset in creation order.
func (r *Repo) List(ctx context.Context, userID, datasetID string) ([]domrec.Record, error) {
	return r.find(ctx, "list records", pipeline.Scope(userID, datasetID))
}

// WithField returns the records that store a value for field.
func (r *Repo) WithField(ctx context.Context, userID, datasetID, field string) ([]domrec.Record, error) {
	return r.find(ctx, "find records with field", withField(userID, datasetID, field, true))
}

// WithoutField returns the records that store no value for field.
func (r *Repo) WithoutField(ctx context.Context, userID, datasetID, field string) ([]domrec.Record, error) {
	return r.find(ctx, "find records without field", withField(userID, datasetID, field, false))
}

func (r *Repo) find(ctx context.Context, op string, filter bson.D) ([]domrec.Record, error) {
	opts := options.Find().
		SetProjection(withoutEmbedding).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	raws, err := r.store.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.NewDatabaseError(op, err)
	}
	recs, err := decodeAll(raws)
	if err != nil {
		return nil, domain.NewDatabaseError(op, err)
	}
	return recs, nil
}

// Exists reports whether the record is stored.
func (r *Repo) Exists(ctx context.Context, userID, datasetID, id string) (bool, error) {
	n, err := r.store.CountDocuments(ctx, byID(userID, datasetID, id), 1)
	if err != nil {
		return false, domain.NewDatabaseError("record exists", err)
	}
	return n > 0, nil
}

// ExistingIDs returns the subset of ids that are stored.
func (r *Repo) ExistingIDs(ctx context.Context, userID, datasetID string, ids []string) ([]string, error) {
	filter := append(pipeline.Scope(userID, datasetID),
		bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}})
	raws, err := r.store.Find(ctx, filter, options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, domain.NewDatabaseError("existing record ids", err)
	}
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		id, ok := raw.Lookup("_id").StringValueOK()
		if !ok {
			return nil, domain.NewDatabaseError("existing record ids", fmt.Errorf("non-string record id"))
		}
		out = append(out, id)
	}
	return out, nil
}

// ValueExists reports whether another record of the dataset stores value for field.
// Records listed in exclude are ignored.
func (r *Repo) ValueExists(ctx context.Context, userID, datasetID, field string, value any, exclude []string) (bool, error) {
	filter := append(pipeline.Scope(userID, datasetID), bson.E{Key: pipeline.DataPrefix + field, Value: value})
	if len(exclude) > 0 {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$nin", Value: exclude}}})
	}
	n, err := r.store.CountDocuments(ctx, filter, 1)
	if err != nil {
		return false, domain.NewDatabaseError("check unique value", err)
	}
	return n > 0, nil
}

// FindDuplicate returns one value of field shared by several records, if any.
func (r *Repo) FindDuplicate(ctx context.Context, userID, datasetID, field string) (*domrec.Duplicate, error) {
	raws, err := r.store.Aggregate(ctx, pipeline.Duplicates(userID, datasetID, field))
	if err != nil {
		return nil, domain.NewDatabaseError("find duplicate values", err)
	}
	if len(raws) == 0 {
		return nil, nil
	}
	row, err := dbmongo.DecodeMap(raws[0])
	if err != nil {
		return nil, domain.NewDatabaseError("find duplicate values", err)
	}
	count, _ := row["count"].(int64)
	return &domrec.Duplicate{Value: row[pipeline.GroupKey], Count: count}, nil
}

func setRecord(rec domrec.Record) bson.D {
	set := bson.D{
		{Key: "data", Value: toDoc(rec).Data},
		{Key: "updated_at", Value: rec.UpdatedAt()},
	}
	if emb := rec.Embedding(); len(emb) > 0 {
		set = append(set, bson.E{Key: pipeline.EmbeddingField, Value: emb})
	}
	return bson.D{{Key: "$set", Value: set}}
}

// Update rewrites the data, timestamp and embedding of one record and returns the
// modified count. Zero does not tell a missing record from an unchanged one.
func (r *Repo) Update(ctx context.Context, rec domrec.Record) (int64, error) {
	_, modified, err := r.store.UpdateOne(ctx, byID(rec.UserID(), rec.DatasetID(), rec.ID()), setRecord(rec))
	if err != nil {
		return 0, domain.NewDatabaseError("update record", err)
	}
	return modified, nil
}

// UpdateMany rewrites recs with one unordered bulk write and returns the modified count.
func (r *Repo) UpdateMany(ctx context.Context, recs []domrec.Record) (int64, error) {
	models := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(byID(rec.UserID(), rec.DatasetID(), rec.ID())).
			SetUpdate(setRecord(rec)))
	}
	res, err := r.store.BulkWrite(ctx, models)
	if err != nil {
		return 0, domain.NewDatabaseError("update records", err)
	}
	return res.Modified, nil
}

// UnsetField removes field from every record of the dataset that stores it and
// returns the modified count.
func (r *Repo) UnsetField(ctx context.Context, userID, datasetID, field string, at time.Time) (int64, error) {
	update := bson.D{
		{Key: "$unset", Value: bson.D{{Key: pipeline.DataPrefix + field, Value: ""}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: at}}},
	}
	modified, err := r.store.UpdateMany(ctx, withField(userID, datasetID, field, true), update)
	if err != nil {
		return 0, domain.NewDatabaseError("unset field", err)
	}
	return modified, nil
}

// FillField sets field to value on every record of the dataset that stores no
// value for it and returns the modified count.
func (r *Repo) FillField(ctx context.Context, userID, datasetID, field string, value any, at time.Time) (int64, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: pipeline.DataPrefix + field, Value: value},
		{Key: "updated_at", Value: at},
	}}}
	modified, err := r.store.UpdateMany(ctx, withField(userID, datasetID, field, false), update)
	if err != nil {
		return 0, domain.NewDatabaseError("fill field", err)
	}
	return modified, nil
}

// SetField writes the value of field held by each record, together with its
// timestamp and embedding. Other data fields are left as stored.
func (r *Repo) SetField(ctx context.Context, recs []domrec.Record, field string) (int64, error) {
	models := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		value, _ := rec.Value(field)
		set := bson.D{
			{Key: pipeline.DataPrefix + field, Value: value},
			{Key: "updated_at", Value: rec.UpdatedAt()},
		}
		if emb := rec.Embedding(); len(emb) > 0 {
			set = append(set, bson.E{Key: pipeline.EmbeddingField, Value: emb})
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(byID(rec.UserID(), rec.DatasetID(), rec.ID())).
			SetUpdate(bson.D{{Key: "$set", Value: set}}))
	}
	res, err := r.store.BulkWrite(ctx, models)
	if err != nil {
		return 0, domain.NewDatabaseError("set field", err)
	}
	return res.Modified, nil
}

// SetEmbeddings writes only the embedding of each record that carries one.
func (r *Repo) SetEmbeddings(ctx context.Context, recs []domrec.Record) (int64, error) {
	models := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		emb := rec.Embedding()
		if len(emb) == 0 {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(byID(rec.UserID(), rec.DatasetID(), rec.ID())).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{{Key: pipeline.EmbeddingField, Value: emb}}}}))
	}
	res, err := r.store.BulkWrite(ctx, models)
	if err != nil {
		return 0, domain.NewDatabaseError("set embeddings", err)
	}
	return res.Modified, nil
}

// Delete removes one record.
func (r *Repo) Delete(ctx context.Context, userID, datasetID, id string) error {
	deleted, err := r.store.DeleteOne(ctx, byID(userID, datasetID, id))
	if err != nil {
		return domain.NewDatabaseError("delete record", err)
	}
	if deleted == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// DeleteByIDs removes the listed records and returns how many were deleted.
func (r *Repo) DeleteByIDs(ctx context.Context, userID, datasetID string, ids []string) (int64, error) {
	filter := append(pipeline.Scope(userID, datasetID),
		bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}})
	deleted, err := r.store.DeleteMany(ctx, filter)
	if err != nil {
		return 0, domain.NewDatabaseError("delete records", err)
	}
	return deleted, nil
}

// DeleteByDataset removes every record of the dataset.
func (r *Repo) DeleteByDataset(ctx context.Context, userID, datasetID string) (int64, error) {
	deleted, err := r.store.DeleteMany(ctx, pipeline.Scope(userID, datasetID))
	if err != nil {
		return 0, domain.NewDatabaseError("delete dataset records", err)
	}
	return deleted, nil
}

// Query runs a validated plain query and returns matching records.
func (r *Repo) Query(ctx context.Context, userID, datasetID string, q query.Query) ([]domrec.Record, error) {
	raws, err := r.store.Aggregate(ctx, pipeline.Records(userID, datasetID, q))
	if err != nil {
		return nil, domain.NewDatabaseError("query records", err)
	}
	recs, err := decodeAll(raws)
	if err != nil {
		return nil, domain.NewDatabaseError("query records", err)
	}
	return recs, nil
}

// Aggregate runs a validated aggregating query and returns flattened rows.
func (r *Repo) Aggregate(ctx context.Context, userID, datasetID string, q query.Query) ([]query.Row, error) {
	raws, err := r.store.Aggregate(ctx, pipeline.Records(userID, datasetID, q))
	if err != nil {
		return nil, domain.NewDatabaseError("aggregate records", err)
	}
	rows := make([]query.Row, 0, len(raws))
	for _, raw := range raws {
		m, err := dbmongo.DecodeMap(raw)
		if err != nil {
			return nil, domain.NewDatabaseError("aggregate records", err)
		}
		rows = append(rows, query.Flatten(m, pipeline.GroupKey))
	}
	return rows, nil
}

// SearchSimilar runs a similarity pipeline over record embeddings.
func (r *Repo) SearchSimilar(ctx context.Context, s vectorindex.Search) ([]domrec.Record, error) {
	raws, err := r.store.Aggregate(ctx, s.Pipeline())
	if err != nil {
		return nil, domain.NewDatabaseError("search similar records", err)
	}
	recs, err := decodeAll(raws)
	if err != nil {
		return nil, domain.NewDatabaseError("search similar records", err)
	}
	return recs, nil
}
