package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oyiakoumis/poco-sub000/internal/db"
)

// SearchIndexType is the Atlas search index type used for ANN indexes.
const SearchIndexType = "vectorSearch"

type searchIndexInfo struct {
	Name   string `bson:"name"`
	Status string `bson:"status"`
}

// SearchIndexStatus returns the raw status string of the named search index,
// or an empty string when no such index is listed.
func (c *Collection) SearchIndexStatus(ctx context.Context, name string) (status string, err error) {
	defer c.observe(db.OpSearchIndexLs, time.Now(), &err)
	cur, err := c.coll.SearchIndexes().List(ctx, options.SearchIndexes().SetName(name))
	if err != nil {
		return "", c.wrap(db.OpSearchIndexLs, err)
	}
	docs, err := drain(ctx, cur)
	if err != nil {
		return "", c.wrap(db.OpSearchIndexLs, err)
	}
	for _, raw := range docs {
		var info searchIndexInfo
		if err := bson.Unmarshal(raw, &info); err != nil {
			return "", c.wrap(db.OpSearchIndexLs, err)
		}
		if info.Name == name {
			return info.Status, nil
		}
	}
	return "", nil
}

// CreateSearchIndex submits a vector search index build. The build runs asynchronously.
func (c *Collection) CreateSearchIndex(ctx context.Context, name string, definition any) (err error) {
	defer c.observe(db.OpSearchIndex, time.Now(), &err)
	model := mongo.SearchIndexModel{
		Definition: definition,
		Options:    options.SearchIndexes().SetName(name).SetType(SearchIndexType),
	}
	if _, err = c.coll.SearchIndexes().CreateOne(ctx, model); err != nil {
		return c.wrap(db.OpSearchIndex, err)
	}
	return nil
}

// DropSearchIndex requests removal of the named search index. The drop runs asynchronously.
func (c *Collection) DropSearchIndex(ctx context.Context, name string) (err error) {
	defer c.observe(db.OpSearchIndexDel, time.Now(), &err)
	if err = c.coll.SearchIndexes().DropOne(ctx, name); err != nil {
		return c.wrap(db.OpSearchIndexDel, err)
	}
	return nil
}
