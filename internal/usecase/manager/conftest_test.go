package manager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
	"github.com/oyiakoumis/poco-sub000/internal/vectorindex"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// --- Dataset repository ---

type mockDatasetRepo struct {
	ensureIndexesFn func(ctx context.Context) error
	insertFn        func(ctx context.Context, d domds.Dataset) error
	getFn           func(ctx context.Context, userID, id string) (domds.Dataset, error)
	listFn          func(ctx context.Context, userID string) ([]domds.Dataset, error)
	existsFn        func(ctx context.Context, userID, id string) (bool, error)
	replaceFn       func(ctx context.Context, d domds.Dataset) error
	deleteFn        func(ctx context.Context, userID, id string) error
	searchFn        func(ctx context.Context, s vectorindex.Search) ([]domds.Dataset, error)

	replaced []domds.Dataset
}

func (m *mockDatasetRepo) EnsureIndexes(ctx context.Context) error {
	if m.ensureIndexesFn != nil {
		return m.ensureIndexesFn(ctx)
	}
	return nil
}

func (m *mockDatasetRepo) SearchIndexes() vectorindex.Backend { return datasetBackend }

func (m *mockDatasetRepo) Insert(ctx context.Context, d domds.Dataset) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, d)
	}
	return nil
}

func (m *mockDatasetRepo) Get(ctx context.Context, userID, id string) (domds.Dataset, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return domds.Dataset{}, domain.ErrDatasetNotFound
}

func (m *mockDatasetRepo) List(ctx context.Context, userID string) ([]domds.Dataset, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDatasetRepo) Exists(ctx context.Context, userID, id string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, userID, id)
	}
	return true, nil
}

func (m *mockDatasetRepo) Replace(ctx context.Context, d domds.Dataset) error {
	m.replaced = append(m.replaced, d)
	if m.replaceFn != nil {
		return m.replaceFn(ctx, d)
	}
	return nil
}

func (m *mockDatasetRepo) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockDatasetRepo) SearchSimilar(ctx context.Context, s vectorindex.Search) ([]domds.Dataset, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, s)
	}
	return nil, nil
}

// --- Record repository ---

type mockRecordRepo struct {
	ensureIndexesFn   func(ctx context.Context) error
	insertFn          func(ctx context.Context, rec domrec.Record) error
	insertManyFn      func(ctx context.Context, recs []domrec.Record) error
	getFn             func(ctx context.Context, userID, datasetID, id string) (domrec.Record, error)
	listFn            func(ctx context.Context, userID, datasetID string) ([]domrec.Record, error)
	withFieldFn       func(ctx context.Context, userID, datasetID, field string) ([]domrec.Record, error)
	withoutFieldFn    func(ctx context.Context, userID, datasetID, field string) ([]domrec.Record, error)
	existsFn          func(ctx context.Context, userID, datasetID, id string) (bool, error)
	existingIDsFn     func(ctx context.Context, userID, datasetID string, ids []string) ([]string, error)
	valueExistsFn     func(ctx context.Context, userID, datasetID, field string, value any, exclude []string) (bool, error)
	findDuplicateFn   func(ctx context.Context, userID, datasetID, field string) (*domrec.Duplicate, error)
	updateFn          func(ctx context.Context, rec domrec.Record) (int64, error)
	updateManyFn      func(ctx context.Context, recs []domrec.Record) (int64, error)
	unsetFieldFn      func(ctx context.Context, userID, datasetID, field string, at time.Time) (int64, error)
	fillFieldFn       func(ctx context.Context, userID, datasetID, field string, value any, at time.Time) (int64, error)
	setFieldFn        func(ctx context.Context, recs []domrec.Record, field string) (int64, error)
	setEmbeddingsFn   func(ctx context.Context, recs []domrec.Record) (int64, error)
	deleteFn          func(ctx context.Context, userID, datasetID, id string) error
	deleteByIDsFn     func(ctx context.Context, userID, datasetID string, ids []string) (int64, error)
	deleteByDatasetFn func(ctx context.Context, userID, datasetID string) (int64, error)
	queryFn           func(ctx context.Context, userID, datasetID string, q query.Query) ([]domrec.Record, error)
	aggregateFn       func(ctx context.Context, userID, datasetID string, q query.Query) ([]query.Row, error)
	searchFn          func(ctx context.Context, s vectorindex.Search) ([]domrec.Record, error)

	inserted   []domrec.Record
	updated    []domrec.Record
	reembedded []domrec.Record
	unset      []string
	filled     map[string]any
}

func (m *mockRecordRepo) EnsureIndexes(ctx context.Context) error {
	if m.ensureIndexesFn != nil {
		return m.ensureIndexesFn(ctx)
	}
	return nil
}

func (m *mockRecordRepo) SearchIndexes() vectorindex.Backend { return recordBackend }

func (m *mockRecordRepo) Insert(ctx context.Context, rec domrec.Record) error {
	m.inserted = append(m.inserted, rec)
	if m.insertFn != nil {
		return m.insertFn(ctx, rec)
	}
	return nil
}

func (m *mockRecordRepo) InsertMany(ctx context.Context, recs []domrec.Record) error {
	m.inserted = append(m.inserted, recs...)
	if m.insertManyFn != nil {
		return m.insertManyFn(ctx, recs)
	}
	return nil
}

func (m *mockRecordRepo) Get(ctx context.Context, userID, datasetID, id string) (domrec.Record, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, datasetID, id)
	}
	return domrec.Record{}, domain.ErrRecordNotFound
}

func (m *mockRecordRepo) List(ctx context.Context, userID, datasetID string) ([]domrec.Record, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, datasetID)
	}
	return nil, nil
}

func (m *mockRecordRepo) WithField(ctx context.Context, userID, datasetID, field string) ([]domrec.Record, error) {
	if m.withFieldFn != nil {
		return m.withFieldFn(ctx, userID, datasetID, field)
	}
	return nil, nil
}

func (m *mockRecordRepo) WithoutField(ctx context.Context, userID, datasetID, field string) ([]domrec.Record, error) {
	if m.withoutFieldFn != nil {
		return m.withoutFieldFn(ctx, userID, datasetID, field)
	}
	return nil, nil
}

func (m *mockRecordRepo) Exists(ctx context.Context, userID, datasetID, id string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, userID, datasetID, id)
	}
	return true, nil
}

func (m *mockRecordRepo) ExistingIDs(ctx context.Context, userID, datasetID string, ids []string) ([]string, error) {
	if m.existingIDsFn != nil {
		return m.existingIDsFn(ctx, userID, datasetID, ids)
	}
	return ids, nil
}

func (m *mockRecordRepo) ValueExists(
	ctx context.Context, userID, datasetID, field string, value any, exclude []string,
) (bool, error) {
	if m.valueExistsFn != nil {
		return m.valueExistsFn(ctx, userID, datasetID, field, value, exclude)
	}
	return false, nil
}

func (m *mockRecordRepo) FindDuplicate(ctx context.Context, userID, datasetID, field string) (*domrec.Duplicate, error) {
	if m.findDuplicateFn != nil {
		return m.findDuplicateFn(ctx, userID, datasetID, field)
	}
	return nil, nil
}

func (m *mockRecordRepo) Update(ctx context.Context, rec domrec.Record) (int64, error) {
	m.updated = append(m.updated, rec)
	if m.updateFn != nil {
		return m.updateFn(ctx, rec)
	}
	return 1, nil
}

func (m *mockRecordRepo) UpdateMany(ctx context.Context, recs []domrec.Record) (int64, error) {
	m.updated = append(m.updated, recs...)
	if m.updateManyFn != nil {
		return m.updateManyFn(ctx, recs)
	}
	return int64(len(recs)), nil
}

func (m *mockRecordRepo) UnsetField(ctx context.Context, userID, datasetID, field string, at time.Time) (int64, error) {
	m.unset = append(m.unset, field)
	if m.unsetFieldFn != nil {
		return m.unsetFieldFn(ctx, userID, datasetID, field, at)
	}
	return 0, nil
}

func (m *mockRecordRepo) FillField(
	ctx context.Context, userID, datasetID, field string, value any, at time.Time,
) (int64, error) {
	if m.filled == nil {
		m.filled = make(map[string]any)
	}
	m.filled[field] = value
	if m.fillFieldFn != nil {
		return m.fillFieldFn(ctx, userID, datasetID, field, value, at)
	}
	return 0, nil
}

func (m *mockRecordRepo) SetField(ctx context.Context, recs []domrec.Record, field string) (int64, error) {
	m.updated = append(m.updated, recs...)
	if m.setFieldFn != nil {
		return m.setFieldFn(ctx, recs, field)
	}
	return int64(len(recs)), nil
}

func (m *mockRecordRepo) SetEmbeddings(ctx context.Context, recs []domrec.Record) (int64, error) {
	m.reembedded = append(m.reembedded, recs...)
	if m.setEmbeddingsFn != nil {
		return m.setEmbeddingsFn(ctx, recs)
	}
	return int64(len(recs)), nil
}

func (m *mockRecordRepo) Delete(ctx context.Context, userID, datasetID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, datasetID, id)
	}
	return nil
}

func (m *mockRecordRepo) DeleteByIDs(ctx context.Context, userID, datasetID string, ids []string) (int64, error) {
	if m.deleteByIDsFn != nil {
		return m.deleteByIDsFn(ctx, userID, datasetID, ids)
	}
	return int64(len(ids)), nil
}

func (m *mockRecordRepo) DeleteByDataset(ctx context.Context, userID, datasetID string) (int64, error) {
	if m.deleteByDatasetFn != nil {
		return m.deleteByDatasetFn(ctx, userID, datasetID)
	}
	return 0, nil
}

func (m *mockRecordRepo) Query(ctx context.Context, userID, datasetID string, q query.Query) ([]domrec.Record, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, userID, datasetID, q)
	}
	return nil, nil
}

func (m *mockRecordRepo) Aggregate(ctx context.Context, userID, datasetID string, q query.Query) ([]query.Row, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, userID, datasetID, q)
	}
	return nil, nil
}

func (m *mockRecordRepo) SearchSimilar(ctx context.Context, s vectorindex.Search) ([]domrec.Record, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, s)
	}
	return nil, nil
}

// --- Embedder, transactions, index lifecycle ---

// mockEmbedder returns a one-dimensional vector and remembers every text.
type mockEmbedder struct {
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	m.texts = append(m.texts, text)
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}, TotalTokens: 1}, nil
}

type txKey struct{}

// inTx reports whether ctx was handed out by fakeTx.
func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// fakeTx runs fn inline with a marked context. A returned error counts as an abort.
type fakeTx struct {
	calls  int
	aborts int
}

func (f *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		f.aborts++
		return err
	}
	return nil
}

type backendName string

func (backendName) SearchIndexStatus(context.Context, string) (string, error)   { return "READY", nil }
func (backendName) CreateSearchIndex(context.Context, string, any) error         { return nil }
func (backendName) DropSearchIndex(context.Context, string) error                { return nil }

const (
	datasetBackend backendName = "datasets"
	recordBackend  backendName = "records"
)

type ensureCall struct {
	backend vectorindex.Backend
	index   string
}

type mockLifecycle struct {
	err   error
	calls []ensureCall
}

func (m *mockLifecycle) Ensure(_ context.Context, b vectorindex.Backend, idx vectorindex.Index) error {
	m.calls = append(m.calls, ensureCall{backend: b, index: idx.Name})
	return m.err
}

// --- Fixture ---

type fixture struct {
	mgr       *Manager
	datasets  *mockDatasetRepo
	records   *mockRecordRepo
	embedder  *mockEmbedder
	tx        *fakeTx
	lifecycle *mockLifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		datasets:  &mockDatasetRepo{},
		records:   &mockRecordRepo{},
		embedder:  &mockEmbedder{},
		tx:        &fakeTx{},
		lifecycle: &mockLifecycle{},
	}
	seq := 0
	f.mgr = New(f.datasets, f.records, f.embedder, f.tx,
		WithLifecycle(f.lifecycle),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	return f
}

// withDataset makes the dataset repository serve d.
func (f *fixture) withDataset(d domds.Dataset) {
	f.datasets.getFn = func(_ context.Context, userID, id string) (domds.Dataset, error) {
		if userID != d.UserID() || id != d.ID() {
			return domds.Dataset{}, domain.ErrDatasetNotFound
		}
		return d, nil
	}
	f.datasets.existsFn = func(_ context.Context, userID, id string) (bool, error) {
		return userID == d.UserID() && id == d.ID(), nil
	}
}

func mustSchema(t *testing.T, specs ...schema.FieldSpec) schema.Schema {
	t.Helper()
	s, err := schema.Validate(specs)
	if err != nil {
		t.Fatalf("schema.Validate: %v", err)
	}
	return s
}

func mustDataset(t *testing.T, s schema.Schema) domds.Dataset {
	t.Helper()
	d, err := domds.New("ds1", "u1", "todos", "Things to do", s, testNow)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	return d
}

func todoSpecs() []schema.FieldSpec {
	return []schema.FieldSpec{
		{Name: "title", Description: "Task title", Type: fieldtype.String, Required: true},
		{Name: "done", Description: "Completed", Type: fieldtype.Boolean, Default: false},
	}
}

func storedRecord(id string, data map[string]any) domrec.Record {
	return domrec.Reconstruct(id, "u1", "ds1", data, testNow, testNow)
}
