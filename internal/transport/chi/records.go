package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	"github.com/oyiakoumis/poco-sub000/internal/usecase/manager"
)

// CreateRecord handles POST /datasets/{datasetID}/records.
func (s *Server) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := decodeJSON(r, &data); err != nil {
		s.badBody(w, err)
		return
	}

	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	rec, err := s.manager.CreateRecord(ctx, userID(r), chi.URLParam(r, "datasetID"), data)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, recordToJSON(rec))
}

// ListRecords handles GET /datasets/{datasetID}/records.
func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.manager.ListRecords(r.Context(), userID(r), chi.URLParam(r, "datasetID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[recordJSON]{Items: recordsToJSON(recs)})
}

// GetRecord handles GET /datasets/{datasetID}/records/{recordID}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.GetRecord(r.Context(), userID(r), chi.URLParam(r, "datasetID"), chi.URLParam(r, "recordID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToJSON(rec))
}

// UpdateRecord handles PUT /datasets/{datasetID}/records/{recordID}. The body replaces the record data.
func (s *Server) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := decodeJSON(r, &data); err != nil {
		s.badBody(w, err)
		return
	}

	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	rec, err := s.manager.UpdateRecord(ctx, userID(r), chi.URLParam(r, "datasetID"), chi.URLParam(r, "recordID"), data)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, recordToJSON(rec))
}

// DeleteRecord handles DELETE /datasets/{datasetID}/records/{recordID}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	err := s.manager.DeleteRecord(r.Context(), userID(r), chi.URLParam(r, "datasetID"), chi.URLParam(r, "recordID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchCreateRecords handles POST /datasets/{datasetID}/records/batch.
func (s *Server) BatchCreateRecords(w http.ResponseWriter, r *http.Request) {
	var req batchCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}
	if !checkBatchSize(w, len(req.Items)) {
		return
	}

	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	ids, err := s.manager.BatchCreateRecords(ctx, userID(r), chi.URLParam(r, "datasetID"), req.Items)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, idsResponse{IDs: nonNil(ids)})
}

// BatchUpdateRecords handles PUT /datasets/{datasetID}/records/batch.
func (s *Server) BatchUpdateRecords(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}
	if !checkBatchSize(w, len(req.Items)) {
		return
	}

	updates := make([]manager.RecordUpdate, len(req.Items))
	for i, item := range req.Items {
		updates[i] = manager.RecordUpdate{ID: item.ID, Data: item.Data}
	}
	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	ids, err := s.manager.BatchUpdateRecords(ctx, userID(r), chi.URLParam(r, "datasetID"), updates)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, idsResponse{IDs: nonNil(ids)})
}

// BatchDeleteRecords handles POST /datasets/{datasetID}/records/batch/delete.
func (s *Server) BatchDeleteRecords(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}
	if !checkBatchSize(w, len(req.IDs)) {
		return
	}

	ids, err := s.manager.BatchDeleteRecords(r.Context(), userID(r), chi.URLParam(r, "datasetID"), req.IDs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse{IDs: nonNil(ids)})
}

// QueryRecords handles POST /datasets/{datasetID}/query.
func (s *Server) QueryRecords(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}
	q, err := req.query()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.manager.QueryRecords(r.Context(), userID(r), chi.URLParam(r, "datasetID"), q, req.IDsOnly)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	switch {
	case res.Aggregated():
		writeJSON(w, http.StatusOK, rowsResponse{Rows: nonNil(res.Rows)})
	case req.IDsOnly:
		writeJSON(w, http.StatusOK, idsResponse{IDs: nonNil(res.IDs)})
	default:
		writeJSON(w, http.StatusOK, listResponse[recordJSON]{Items: recordsToJSON(res.Records)})
	}
}

// SearchRecords handles POST /datasets/{datasetID}/records/search.
func (s *Server) SearchRecords(w http.ResponseWriter, r *http.Request) {
	var req recordSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}

	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	recs, err := s.manager.SearchSimilarRecords(ctx, userID(r), chi.URLParam(r, "datasetID"), req.Data, req.options())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, listResponse[recordJSON]{Items: recordsToJSON(recs)})
}

func checkBatchSize(w http.ResponseWriter, n int) bool {
	if n > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("batch size %d exceeds maximum %d", n, maxBatchSize))
		return false
	}
	return true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
