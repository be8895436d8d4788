package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oyiakoumis/poco-sub000/internal/db"
	"github.com/oyiakoumis/poco-sub000/internal/metrics"
)

// BulkResult reports the counts of an unordered bulk write.
type BulkResult struct {
	Inserted int64
	Matched  int64
	Modified int64
	Deleted  int64
}

// Collection wraps a driver collection. Reads return raw documents so callers decode
// into their own persistence shapes; every call is timed and failures carry the op name.
type Collection struct {
	name string
	coll *mongo.Collection
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// InsertOne inserts doc. A unique index violation wraps db.ErrDuplicateKey.
func (c *Collection) InsertOne(ctx context.Context, doc any) (err error) {
	defer c.observe(db.OpInsert, time.Now(), &err)
	if _, err = c.coll.InsertOne(ctx, doc); err != nil {
		return c.wrap(db.OpInsert, err)
	}
	return nil
}

// FindOne returns the first document matching filter, or db.ErrKeyNotFound.
func (c *Collection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) (raw bson.Raw, err error) {
	defer c.observe(db.OpFind, time.Now(), &err)
	raw, err = c.coll.FindOne(ctx, filter, opts...).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, db.ErrKeyNotFound
		}
		return nil, c.wrap(db.OpFind, err)
	}
	return raw, nil
}

// Find returns every document matching filter.
func (c *Collection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (docs []bson.Raw, err error) {
	defer c.observe(db.OpFind, time.Now(), &err)
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, c.wrap(db.OpFind, err)
	}
	docs, err = drain(ctx, cur)
	if err != nil {
		return nil, c.wrap(db.OpFind, err)
	}
	return docs, nil
}

// Aggregate runs pipeline and returns every output document.
func (c *Collection) Aggregate(ctx context.Context, pipeline any) (docs []bson.Raw, err error) {
	defer c.observe(db.OpAggregate, time.Now(), &err)
	cur, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, c.wrap(db.OpAggregate, err)
	}
	docs, err = drain(ctx, cur)
	if err != nil {
		return nil, c.wrap(db.OpAggregate, err)
	}
	return docs, nil
}

// CountDocuments counts matches, stopping at limit when limit is positive.
func (c *Collection) CountDocuments(ctx context.Context, filter any, limit int64) (n int64, err error) {
	defer c.observe(db.OpCount, time.Now(), &err)
	opts := options.Count()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	n, err = c.coll.CountDocuments(ctx, filter, opts)
	if err != nil {
		return 0, c.wrap(db.OpCount, err)
	}
	return n, nil
}

// ReplaceOne replaces the document matching filter and returns the matched count.
func (c *Collection) ReplaceOne(ctx context.Context, filter, doc any) (matched int64, err error) {
	defer c.observe(db.OpReplace, time.Now(), &err)
	res, err := c.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return 0, c.wrap(db.OpReplace, err)
	}
	return res.MatchedCount, nil
}

// UpdateOne applies update to the first match and returns the matched and modified counts.
func (c *Collection) UpdateOne(ctx context.Context, filter, update any) (matched, modified int64, err error) {
	defer c.observe(db.OpUpdate, time.Now(), &err)
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, 0, c.wrap(db.OpUpdate, err)
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

// UpdateMany applies update to every match and returns the modified count.
func (c *Collection) UpdateMany(ctx context.Context, filter, update any) (modified int64, err error) {
	defer c.observe(db.OpUpdate, time.Now(), &err)
	res, err := c.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, c.wrap(db.OpUpdate, err)
	}
	return res.ModifiedCount, nil
}

// BulkWrite issues models as one unordered bulk write.
func (c *Collection) BulkWrite(ctx context.Context, models []mongo.WriteModel) (out BulkResult, err error) {
	if len(models) == 0 {
		return BulkResult{}, nil
	}
	defer c.observe(db.OpBulkWrite, time.Now(), &err)
	res, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if res != nil {
		out = BulkResult{
			Inserted: res.InsertedCount,
			Matched:  res.MatchedCount,
			Modified: res.ModifiedCount,
			Deleted:  res.DeletedCount,
		}
	}
	if err != nil {
		return out, c.wrap(db.OpBulkWrite, err)
	}
	return out, nil
}

// DeleteOne deletes the first match and returns the deleted count.
func (c *Collection) DeleteOne(ctx context.Context, filter any) (deleted int64, err error) {
	defer c.observe(db.OpDelete, time.Now(), &err)
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, c.wrap(db.OpDelete, err)
	}
	return res.DeletedCount, nil
}

// DeleteMany deletes every match and returns the deleted count.
func (c *Collection) DeleteMany(ctx context.Context, filter any) (deleted int64, err error) {
	defer c.observe(db.OpDelete, time.Now(), &err)
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, c.wrap(db.OpDelete, err)
	}
	return res.DeletedCount, nil
}

// CreateIndexes creates regular indexes. Existing identical indexes are left in place.
func (c *Collection) CreateIndexes(ctx context.Context, models []mongo.IndexModel) (err error) {
	defer c.observe(db.OpCreateIndex, time.Now(), &err)
	if _, err = c.coll.Indexes().CreateMany(ctx, models); err != nil {
		return c.wrap(db.OpCreateIndex, err)
	}
	return nil
}

func (c *Collection) wrap(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		err = fmt.Errorf("%w: %w", db.ErrDuplicateKey, err)
	}
	return &db.Error{Op: op, Err: err}
}

func (c *Collection) observe(op string, start time.Time, errp *error) {
	metrics.StoreOpDuration.WithLabelValues(c.name, op).Observe(time.Since(start).Seconds())
	if errp != nil && *errp != nil && !errors.Is(*errp, db.ErrKeyNotFound) {
		metrics.StoreOpErrorsTotal.WithLabelValues(c.name, op).Inc()
	}
}

func drain(ctx context.Context, cur *mongo.Cursor) ([]bson.Raw, error) {
	defer cur.Close(ctx)
	var docs []bson.Raw
	for cur.Next(ctx) {
		docs = append(docs, append(bson.Raw(nil), cur.Current...))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
