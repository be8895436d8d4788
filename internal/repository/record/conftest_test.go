package record

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	dbmongo "github.com/oyiakoumis/poco-sub000/internal/db/mongo"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	insertOneFn  func(ctx context.Context, doc any) error
	findOneFn    func(ctx context.Context, filter any) (bson.Raw, error)
	findFn       func(ctx context.Context, filter any) ([]bson.Raw, error)
	countFn      func(ctx context.Context, filter any, limit int64) (int64, error)
	updateOneFn  func(ctx context.Context, filter, update any) (int64, int64, error)
	updateManyFn func(ctx context.Context, filter, update any) (int64, error)
	bulkWriteFn  func(ctx context.Context, models []mongo.WriteModel) (dbmongo.BulkResult, error)
	deleteOneFn  func(ctx context.Context, filter any) (int64, error)
	deleteManyFn func(ctx context.Context, filter any) (int64, error)
	aggregateFn  func(ctx context.Context, pipeline any) ([]bson.Raw, error)
}

func (m *mockStore) InsertOne(ctx context.Context, doc any) error {
	if m.insertOneFn != nil {
		return m.insertOneFn(ctx, doc)
	}
	return nil
}

func (m *mockStore) FindOne(ctx context.Context, filter any, _ ...*options.FindOneOptions) (bson.Raw, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockStore) Find(ctx context.Context, filter any, _ ...*options.FindOptions) ([]bson.Raw, error) {
	if m.findFn != nil {
		return m.findFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockStore) CountDocuments(ctx context.Context, filter any, limit int64) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, filter, limit)
	}
	return 0, nil
}

func (m *mockStore) UpdateOne(ctx context.Context, filter, update any) (int64, int64, error) {
	if m.updateOneFn != nil {
		return m.updateOneFn(ctx, filter, update)
	}
	return 1, 1, nil
}

func (m *mockStore) UpdateMany(ctx context.Context, filter, update any) (int64, error) {
	if m.updateManyFn != nil {
		return m.updateManyFn(ctx, filter, update)
	}
	return 0, nil
}

func (m *mockStore) BulkWrite(ctx context.Context, models []mongo.WriteModel) (dbmongo.BulkResult, error) {
	if m.bulkWriteFn != nil {
		return m.bulkWriteFn(ctx, models)
	}
	return dbmongo.BulkResult{Inserted: int64(len(models)), Modified: int64(len(models))}, nil
}

func (m *mockStore) DeleteOne(ctx context.Context, filter any) (int64, error) {
	if m.deleteOneFn != nil {
		return m.deleteOneFn(ctx, filter)
	}
	return 1, nil
}

func (m *mockStore) DeleteMany(ctx context.Context, filter any) (int64, error) {
	if m.deleteManyFn != nil {
		return m.deleteManyFn(ctx, filter)
	}
	return 0, nil
}

func (m *mockStore) Aggregate(ctx context.Context, pipeline any) ([]bson.Raw, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, pipeline)
	}
	return nil, nil
}

func (m *mockStore) CreateIndexes(context.Context, []mongo.IndexModel) error   { return nil }
func (m *mockStore) SearchIndexStatus(context.Context, string) (string, error) { return "READY", nil }
func (m *mockStore) CreateSearchIndex(context.Context, string, any) error     { return nil }
func (m *mockStore) DropSearchIndex(context.Context, string) error            { return nil }

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

var testTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testRecord(id string) domrec.Record {
	return domrec.New(id, "u1", "d1", map[string]any{
		"title": "buy milk",
		"done":  false,
		"qty":   int64(2),
		"due":   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		"tags":  []string{"home"},
	}, testTime)
}

func mustRaw(t *testing.T, v any) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(v)
	if err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}
	return b
}
