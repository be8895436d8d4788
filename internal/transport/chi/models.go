package chi

import (
	"fmt"
	"time"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
	"github.com/oyiakoumis/poco-sub000/internal/usecase/manager"
)

type errorCode string

const (
	codeBadRequest           errorCode = "bad_request"
	codeUnauthorized         errorCode = "unauthorized"
	codeValidationFailed     errorCode = "validation_failed"
	codeMissingTenant        errorCode = "missing_tenant"
	codeInvalidQuery         errorCode = "invalid_query"
	codeInvalidSchemaUpdate  errorCode = "invalid_schema_update"
	codeTypeConversionFailed errorCode = "type_conversion_failed"
	codeDatasetNotFound      errorCode = "dataset_not_found"
	codeRecordNotFound       errorCode = "record_not_found"
	codeDatasetExists        errorCode = "dataset_already_exists"
	codeEmbeddingProvider    errorCode = "embedding_provider_error"
	codeInternal             errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type fieldJSON struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Unique      bool     `json:"unique"`
	Default     any      `json:"default,omitempty"`
	Options     []string `json:"options,omitempty"`
}

func (f fieldJSON) spec() schema.FieldSpec {
	return schema.FieldSpec{
		Name:        f.Name,
		Description: f.Description,
		Type:        fieldtype.Type(f.Type),
		Required:    f.Required,
		Unique:      f.Unique,
		Default:     f.Default,
		Options:     f.Options,
	}
}

func specsFromJSON(fields []fieldJSON) []schema.FieldSpec {
	specs := make([]schema.FieldSpec, len(fields))
	for i, f := range fields {
		specs[i] = f.spec()
	}
	return specs
}

func fieldToJSON(f schema.Field) fieldJSON {
	return fieldJSON{
		Name:        f.Name(),
		Description: f.Description(),
		Type:        string(f.Type()),
		Required:    f.Required(),
		Unique:      f.Unique(),
		Default:     f.Default(),
		Options:     f.Options(),
	}
}

type datasetRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Fields      []fieldJSON `json:"fields"`
}

type datasetJSON struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Fields      []fieldJSON `json:"fields"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func datasetToJSON(d domds.Dataset) datasetJSON {
	fields := d.Schema().Fields()
	out := datasetJSON{
		ID:          d.ID(),
		Name:        d.Name(),
		Description: d.Description(),
		Fields:      make([]fieldJSON, len(fields)),
		CreatedAt:   d.CreatedAt(),
		UpdatedAt:   d.UpdatedAt(),
	}
	for i, f := range fields {
		out.Fields[i] = fieldToJSON(f)
	}
	return out
}

func datasetsToJSON(ds []domds.Dataset) []datasetJSON {
	out := make([]datasetJSON, len(ds))
	for i, d := range ds {
		out[i] = datasetToJSON(d)
	}
	return out
}

type recordJSON struct {
	ID        string         `json:"id"`
	DatasetID string         `json:"dataset_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func recordToJSON(rec domrec.Record) recordJSON {
	data := rec.Data()
	if data == nil {
		data = map[string]any{}
	}
	return recordJSON{
		ID:        rec.ID(),
		DatasetID: rec.DatasetID(),
		Data:      data,
		CreatedAt: rec.CreatedAt(),
		UpdatedAt: rec.UpdatedAt(),
	}
}

func recordsToJSON(recs []domrec.Record) []recordJSON {
	out := make([]recordJSON, len(recs))
	for i, rec := range recs {
		out[i] = recordToJSON(rec)
	}
	return out
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

type idsResponse struct {
	IDs []string `json:"ids"`
}

type rowsResponse struct {
	Rows []query.Row `json:"rows"`
}

type batchCreateRequest struct {
	Items []map[string]any `json:"items"`
}

type batchUpdateItem struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

type batchUpdateRequest struct {
	Items []batchUpdateItem `json:"items"`
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// filterJSON is either a condition (field, operator, value) or a logical
// expression (operator "and"/"or" with conditions).
type filterJSON struct {
	Field      string       `json:"field,omitempty"`
	Operator   string       `json:"operator"`
	Value      any          `json:"value,omitempty"`
	Conditions []filterJSON `json:"conditions,omitempty"`
}

func (f *filterJSON) node() query.Node {
	if f == nil {
		return nil
	}
	if op := query.LogicalOperator(f.Operator); op.IsValid() {
		children := make([]query.Node, len(f.Conditions))
		for i := range f.Conditions {
			children[i] = f.Conditions[i].node()
		}
		return query.Expression{Operator: op, Children: children}
	}
	return query.Condition{Field: f.Field, Operator: query.ComparisonOperator(f.Operator), Value: f.Value}
}

type aggregationJSON struct {
	Field    string `json:"field"`
	Function string `json:"function"`
	Alias    string `json:"alias,omitempty"`
}

type sortJSON struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

type queryRequest struct {
	GroupBy      []string          `json:"group_by"`
	Aggregations []aggregationJSON `json:"aggregations"`
	Filter       *filterJSON       `json:"filter"`
	Sort         []sortJSON        `json:"sort"`
	Limit        int               `json:"limit"`
	IDsOnly      bool              `json:"ids_only"`
}

func (q queryRequest) query() (query.Query, error) {
	out := query.Query{GroupBy: q.GroupBy, Filter: q.Filter.node(), Limit: q.Limit}
	for _, a := range q.Aggregations {
		out.Aggregations = append(out.Aggregations, query.Aggregation{
			Field: a.Field, Function: query.Function(a.Function), Alias: a.Alias,
		})
	}
	for _, s := range q.Sort {
		var order query.Order
		switch s.Order {
		case "", "asc":
			order = query.Ascending
		case "desc":
			order = query.Descending
		default:
			return query.Query{}, fmt.Errorf("sort order %q for '%s' must be asc or desc: %w",
				s.Order, s.Field, domain.ErrInvalidQuery)
		}
		out.Sort = append(out.Sort, query.SortKey{Field: s.Field, Order: order})
	}
	return out, nil
}

type searchOptionsJSON struct {
	Limit    int         `json:"limit"`
	MinScore *float64    `json:"min_score"`
	Filter   *filterJSON `json:"filter"`
}

func (o searchOptionsJSON) options() manager.SearchOptions {
	return manager.SearchOptions{Limit: o.Limit, MinScore: o.MinScore, Filter: o.Filter.node()}
}

type datasetSearchRequest struct {
	datasetRequest
	searchOptionsJSON
}

type recordSearchRequest struct {
	Data map[string]any `json:"data"`
	searchOptionsJSON
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
