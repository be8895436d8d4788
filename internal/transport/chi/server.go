// Package chi serves the document store operations over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
	"github.com/oyiakoumis/poco-sub000/internal/logger"
	healthuc "github.com/oyiakoumis/poco-sub000/internal/usecase/health"
	"github.com/oyiakoumis/poco-sub000/internal/usecase/manager"
)

// UserIDHeader carries the tenant of every dataset and record request.
const UserIDHeader = "X-User-ID"

const maxBatchSize = 500

// Manager is the dataset and record API served over HTTP.
//
//nolint:interfacebloat // mirrors the public manager operations one to one
type Manager interface {
	CreateDataset(ctx context.Context, userID, name, description string, fields []schema.FieldSpec) (domds.Dataset, error)
	GetDataset(ctx context.Context, userID, datasetID string) (domds.Dataset, error)
	ListDatasets(ctx context.Context, userID string) ([]domds.Dataset, error)
	UpdateDataset(ctx context.Context, userID, datasetID, name, description string) (domds.Dataset, error)
	DeleteDataset(ctx context.Context, userID, datasetID string) error

	AddField(ctx context.Context, userID, datasetID string, spec schema.FieldSpec) (domds.Dataset, error)
	UpdateField(ctx context.Context, userID, datasetID, name string, spec schema.FieldSpec) (domds.Dataset, error)
	DeleteField(ctx context.Context, userID, datasetID, name string) (domds.Dataset, error)

	CreateRecord(ctx context.Context, userID, datasetID string, data map[string]any) (domrec.Record, error)
	GetRecord(ctx context.Context, userID, datasetID, recordID string) (domrec.Record, error)
	ListRecords(ctx context.Context, userID, datasetID string) ([]domrec.Record, error)
	UpdateRecord(ctx context.Context, userID, datasetID, recordID string, data map[string]any) (domrec.Record, error)
	DeleteRecord(ctx context.Context, userID, datasetID, recordID string) error

	BatchCreateRecords(ctx context.Context, userID, datasetID string, items []map[string]any) ([]string, error)
	BatchUpdateRecords(ctx context.Context, userID, datasetID string, updates []manager.RecordUpdate) ([]string, error)
	BatchDeleteRecords(ctx context.Context, userID, datasetID string, ids []string) ([]string, error)

	QueryRecords(ctx context.Context, userID, datasetID string, q query.Query, idsOnly bool) (manager.QueryResult, error)
	SearchSimilarDatasets(
		ctx context.Context, userID string, sample manager.DatasetShape, opts manager.SearchOptions,
	) ([]domds.Dataset, error)
	SearchSimilarRecords(
		ctx context.Context, userID, datasetID string, sample map[string]any, opts manager.SearchOptions,
	) ([]domrec.Record, error)
}

// HealthChecker reports the health of the service dependencies.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	manager       Manager
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(m Manager, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{manager: m, health: health, logger: logger}
	s.errorHandlers = []errorHandler{
		typeConversionHandler,
		sentinelHandler(domain.ErrDatasetNotFound, http.StatusNotFound, codeDatasetNotFound),
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, codeRecordNotFound),
		sentinelHandler(domain.ErrDatasetNameExists, http.StatusConflict, codeDatasetExists),
		sentinelHandler(domain.ErrMissingTenant, http.StatusBadRequest, codeMissingTenant),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrInvalidSchemaUpdate, http.StatusBadRequest, codeInvalidSchemaUpdate),
		validationHandler,
		providerHandler,
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/datasets", func(r chi.Router) {
		r.Post("/", s.CreateDataset)
		r.Get("/", s.ListDatasets)
		r.Post("/search", s.SearchDatasets)

		r.Route("/{datasetID}", func(r chi.Router) {
			r.Get("/", s.GetDataset)
			r.Put("/", s.UpdateDataset)
			r.Delete("/", s.DeleteDataset)

			r.Post("/fields", s.AddField)
			r.Put("/fields/{field}", s.UpdateField)
			r.Delete("/fields/{field}", s.DeleteField)

			r.Post("/query", s.QueryRecords)

			r.Route("/records", func(r chi.Router) {
				r.Post("/", s.CreateRecord)
				r.Get("/", s.ListRecords)
				r.Post("/batch", s.BatchCreateRecords)
				r.Put("/batch", s.BatchUpdateRecords)
				r.Post("/batch/delete", s.BatchDeleteRecords)
				r.Post("/search", s.SearchRecords)
				r.Get("/{recordID}", s.GetRecord)
				r.Put("/{recordID}", s.UpdateRecord)
				r.Delete("/{recordID}", s.DeleteRecord)
			})
		})
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func userID(r *http.Request) string {
	return r.Header.Get(UserIDHeader)
}

// decodeJSON reads the request body keeping numbers as json.Number, so integer
// values survive until the field validators coerce them.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v) //nolint:wrapcheck // reported to the client as a bad request
}

func (s *Server) badBody(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Embedded() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// typeConversionHandler reports the record and field that blocked a migration.
func typeConversionHandler(w http.ResponseWriter, err error) bool {
	var tce *domain.TypeConversionError
	if !errors.As(err, &tce) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"code":      codeTypeConversionFailed,
		"message":   tce.Error(),
		"record_id": tce.RecordID,
		"field":     tce.Field,
	})
	return true
}

// validationHandler catches the rest of the validation family, including
// per-field value errors.
func validationHandler(w http.ResponseWriter, err error) bool {
	if !domain.IsValidation(err) {
		return false
	}
	var fve *domain.FieldValueError
	if errors.As(err, &fve) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    codeValidationFailed,
			"message": err.Error(),
			"field":   fve.Field,
		})
		return true
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	return true
}

// providerHandler hides provider details behind the sentinel message.
func providerHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		return false
	}
	writeError(w, http.StatusBadGateway, codeEmbeddingProvider, domain.ErrEmbeddingProviderError.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
