package dataset

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	insertOneFn     func(ctx context.Context, doc any) error
	findOneFn       func(ctx context.Context, filter any) (bson.Raw, error)
	findFn          func(ctx context.Context, filter any) ([]bson.Raw, error)
	countFn         func(ctx context.Context, filter any, limit int64) (int64, error)
	replaceOneFn    func(ctx context.Context, filter, doc any) (int64, error)
	deleteOneFn     func(ctx context.Context, filter any) (int64, error)
	aggregateFn     func(ctx context.Context, pipeline any) ([]bson.Raw, error)
	createIndexesFn func(ctx context.Context, models []mongo.IndexModel) error
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

func (m *mockStore) ReplaceOne(ctx context.Context, filter, doc any) (int64, error) {
	if m.replaceOneFn != nil {
		return m.replaceOneFn(ctx, filter, doc)
	}
	return 1, nil
}

func (m *mockStore) DeleteOne(ctx context.Context, filter any) (int64, error) {
	if m.deleteOneFn != nil {
		return m.deleteOneFn(ctx, filter)
	}
	return 1, nil
}

func (m *mockStore) Aggregate(ctx context.Context, pipeline any) ([]bson.Raw, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, pipeline)
	}
	return nil, nil
}

func (m *mockStore) CreateIndexes(ctx context.Context, models []mongo.IndexModel) error {
	if m.createIndexesFn != nil {
		return m.createIndexesFn(ctx, models)
	}
	return nil
}

func (m *mockStore) SearchIndexStatus(context.Context, string) (string, error) { return "READY", nil }
func (m *mockStore) CreateSearchIndex(context.Context, string, any) error     { return nil }
func (m *mockStore) DropSearchIndex(context.Context, string) error            { return nil }

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

var testTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testDataset(t *testing.T) domds.Dataset {
	t.Helper()
	s, err := schema.Validate([]schema.FieldSpec{
		{Name: "title", Description: "What to do", Type: fieldtype.String, Required: true},
		{Name: "done", Description: "Finished", Type: fieldtype.Boolean, Default: false},
		{Name: "due", Description: "Due date", Type: fieldtype.Date, Default: "2024-06-01"},
		{Name: "tags", Description: "Labels", Type: fieldtype.MultiSelect, Options: []string{"home", "work"}, Default: "work"},
		{Name: "points", Description: "Effort", Type: fieldtype.Integer, Unique: true},
	})
	if err != nil {
		t.Fatalf("schema.Validate: %v", err)
	}
	d, err := domds.New("d1", "u1", "Todos", "Things to do", s, testTime)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	return d
}

func mustRaw(t *testing.T, v any) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(v)
	if err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}
	return b
}
