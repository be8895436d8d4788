package chi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
	healthuc "github.com/oyiakoumis/poco-sub000/internal/usecase/health"
	"github.com/oyiakoumis/poco-sub000/internal/usecase/manager"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// mockManager fails every call whose fn is not set.
type mockManager struct {
	createDatasetFn func(ctx context.Context, userID, name, desc string, fields []schema.FieldSpec) (domds.Dataset, error)
	getDatasetFn    func(ctx context.Context, userID, datasetID string) (domds.Dataset, error)
	listDatasetsFn  func(ctx context.Context, userID string) ([]domds.Dataset, error)
	updateDatasetFn func(ctx context.Context, userID, datasetID, name, desc string) (domds.Dataset, error)
	deleteDatasetFn func(ctx context.Context, userID, datasetID string) error
	addFieldFn      func(ctx context.Context, userID, datasetID string, spec schema.FieldSpec) (domds.Dataset, error)
	updateFieldFn   func(ctx context.Context, userID, datasetID, name string, spec schema.FieldSpec) (domds.Dataset, error)
	deleteFieldFn   func(ctx context.Context, userID, datasetID, name string) (domds.Dataset, error)
	createRecordFn  func(ctx context.Context, userID, datasetID string, data map[string]any) (domrec.Record, error)
	getRecordFn     func(ctx context.Context, userID, datasetID, recordID string) (domrec.Record, error)
	listRecordsFn   func(ctx context.Context, userID, datasetID string) ([]domrec.Record, error)
	updateRecordFn  func(ctx context.Context, userID, datasetID, recordID string, data map[string]any) (domrec.Record, error)
	deleteRecordFn  func(ctx context.Context, userID, datasetID, recordID string) error
	batchCreateFn   func(ctx context.Context, userID, datasetID string, items []map[string]any) ([]string, error)
	batchUpdateFn   func(ctx context.Context, userID, datasetID string, updates []manager.RecordUpdate) ([]string, error)
	batchDeleteFn   func(ctx context.Context, userID, datasetID string, ids []string) ([]string, error)
	queryFn         func(ctx context.Context, userID, datasetID string, q query.Query, idsOnly bool) (manager.QueryResult, error)
	searchDatasetFn func(ctx context.Context, userID string, sample manager.DatasetShape, opts manager.SearchOptions) ([]domds.Dataset, error)
	searchRecordFn  func(ctx context.Context, userID, datasetID string, sample map[string]any, opts manager.SearchOptions) ([]domrec.Record, error)
}

var errUnexpectedCall = domain.NewDatabaseError("mock", io.ErrUnexpectedEOF)

func (m *mockManager) CreateDataset(
	ctx context.Context, userID, name, desc string, fields []schema.FieldSpec,
) (domds.Dataset, error) {
	if m.createDatasetFn != nil {
		return m.createDatasetFn(ctx, userID, name, desc, fields)
	}
	return domds.Dataset{}, errUnexpectedCall
}

func (m *mockManager) GetDataset(ctx context.Context, userID, datasetID string) (domds.Dataset, error) {
	if m.getDatasetFn != nil {
		return m.getDatasetFn(ctx, userID, datasetID)
	}
	return domds.Dataset{}, errUnexpectedCall
}

func (m *mockManager) ListDatasets(ctx context.Context, userID string) ([]domds.Dataset, error) {
	if m.listDatasetsFn != nil {
		return m.listDatasetsFn(ctx, userID)
	}
	return nil, errUnexpectedCall
}

func (m *mockManager) UpdateDataset(ctx context.Context, userID, datasetID, name, desc string) (domds.Dataset, error) {
	if m.updateDatasetFn != nil {
		return m.updateDatasetFn(ctx, userID, datasetID, name, desc)
	}
	return domds.Dataset{}, errUnexpectedCall
}

func (m *mockManager) DeleteDataset(ctx context.Context, userID, datasetID string) error {
	if m.deleteDatasetFn != nil {
		return m.deleteDatasetFn(ctx, userID, datasetID)
	}
	return errUnexpectedCall
}

func (m *mockManager) AddField(ctx context.Context, userID, datasetID string, spec schema.FieldSpec) (domds.Dataset, error) {
	if m.addFieldFn != nil {
		return m.addFieldFn(ctx, userID, datasetID, spec)
	}
	return domds.Dataset{}, errUnexpectedCall
}

func (m *mockManager) UpdateField(
	ctx context.Context, userID, datasetID, name string, spec schema.FieldSpec,
) (domds.Dataset, error) {
	if m.updateFieldFn != nil {
		return m.updateFieldFn(ctx, userID, datasetID, name, spec)
	}
	return domds.Dataset{}, errUnexpectedCall
}

func (m *mockManager) DeleteField(ctx context.Context, userID, datasetID, name string) (domds.Dataset, error) {
	if m.deleteFieldFn != nil {
		return m.deleteFieldFn(ctx, userID, datasetID, name)
	}
	return domds.Dataset{}, errUnexpectedCall
}

func (m *mockManager) CreateRecord(
	ctx context.Context, userID, datasetID string, data map[string]any,
) (domrec.Record, error) {
	if m.createRecordFn != nil {
		return m.createRecordFn(ctx, userID, datasetID, data)
	}
	return domrec.Record{}, errUnexpectedCall
}

func (m *mockManager) GetRecord(ctx context.Context, userID, datasetID, recordID string) (domrec.Record, error) {
	if m.getRecordFn != nil {
		return m.getRecordFn(ctx, userID, datasetID, recordID)
	}
	return domrec.Record{}, errUnexpectedCall
}

func (m *mockManager) ListRecords(ctx context.Context, userID, datasetID string) ([]domrec.Record, error) {
	if m.listRecordsFn != nil {
		return m.listRecordsFn(ctx, userID, datasetID)
	}
	return nil, errUnexpectedCall
}

func (m *mockManager) UpdateRecord(
	ctx context.Context, userID, datasetID, recordID string, data map[string]any,
) (domrec.Record, error) {
	if m.updateRecordFn != nil {
		return m.updateRecordFn(ctx, userID, datasetID, recordID, data)
	}
	return domrec.Record{}, errUnexpectedCall
}

func (m *mockManager) DeleteRecord(ctx context.Context, userID, datasetID, recordID string) error {
	if m.deleteRecordFn != nil {
		return m.deleteRecordFn(ctx, userID, datasetID, recordID)
	}
	return errUnexpectedCall
}

func (m *mockManager) BatchCreateRecords(
	ctx context.Context, userID, datasetID string, items []map[string]any,
) ([]string, error) {
	if m.batchCreateFn != nil {
		return m.batchCreateFn(ctx, userID, datasetID, items)
	}
	return nil, errUnexpectedCall
}

func (m *mockManager) BatchUpdateRecords(
	ctx context.Context, userID, datasetID string, updates []manager.RecordUpdate,
) ([]string, error) {
	if m.batchUpdateFn != nil {
		return m.batchUpdateFn(ctx, userID, datasetID, updates)
	}
	return nil, errUnexpectedCall
}

func (m *mockManager) BatchDeleteRecords(ctx context.Context, userID, datasetID string, ids []string) ([]string, error) {
	if m.batchDeleteFn != nil {
		return m.batchDeleteFn(ctx, userID, datasetID, ids)
	}
	return nil, errUnexpectedCall
}

func (m *mockManager) QueryRecords(
	ctx context.Context, userID, datasetID string, q query.Query, idsOnly bool,
) (manager.QueryResult, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, userID, datasetID, q, idsOnly)
	}
	return manager.QueryResult{}, errUnexpectedCall
}

func (m *mockManager) SearchSimilarDatasets(
	ctx context.Context, userID string, sample manager.DatasetShape, opts manager.SearchOptions,
) ([]domds.Dataset, error) {
	if m.searchDatasetFn != nil {
		return m.searchDatasetFn(ctx, userID, sample, opts)
	}
	return nil, errUnexpectedCall
}

func (m *mockManager) SearchSimilarRecords(
	ctx context.Context, userID, datasetID string, sample map[string]any, opts manager.SearchOptions,
) ([]domrec.Record, error) {
	if m.searchRecordFn != nil {
		return m.searchRecordFn(ctx, userID, datasetID, sample, opts)
	}
	return nil, errUnexpectedCall
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func newTestRouter(t *testing.T, m *mockManager) http.Handler {
	t.Helper()
	health := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckOK},
	}}
	return newTestRouterWithHealth(t, m, health)
}

func newTestRouterWithHealth(t *testing.T, m *mockManager, h HealthChecker) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	NewServer(m, h, zap.NewNop()).Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(UserIDHeader, "u1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func testDataset(t *testing.T) domds.Dataset {
	t.Helper()
	s, err := schema.Validate([]schema.FieldSpec{
		{Name: "title", Description: "Task title", Type: fieldtype.String, Required: true},
		{Name: "done", Description: "Completed", Type: fieldtype.Boolean, Default: false},
	})
	if err != nil {
		t.Fatalf("schema.Validate: %v", err)
	}
	d, err := domds.New("ds1", "u1", "todos", "Things to do", s, testNow)
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}
	return d
}

func testRecord(id string, data map[string]any) domrec.Record {
	return domrec.Reconstruct(id, "u1", "ds1", data, testNow, testNow)
}
