package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	"github.com/oyiakoumis/poco-sub000/internal/usecase/manager"
)

// CreateDataset handles POST /datasets.
func (s *Server) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}

	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	d, err := s.manager.CreateDataset(ctx, userID(r), req.Name, req.Description, specsFromJSON(req.Fields))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, datasetToJSON(d))
}

// ListDatasets handles GET /datasets.
func (s *Server) ListDatasets(w http.ResponseWriter, r *http.Request) {
	ds, err := s.manager.ListDatasets(r.Context(), userID(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[datasetJSON]{Items: datasetsToJSON(ds)})
}

// GetDataset handles GET /datasets/{datasetID}.
func (s *Server) GetDataset(w http.ResponseWriter, r *http.Request) {
	d, err := s.manager.GetDataset(r.Context(), userID(r), chi.URLParam(r, "datasetID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetToJSON(d))
}

// UpdateDataset handles PUT /datasets/{datasetID}. Only name and description change.
func (s *Server) UpdateDataset(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}
	if len(req.Fields) > 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"fields are changed through the /fields endpoints")
		return
	}

	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	d, err := s.manager.UpdateDataset(ctx, userID(r), chi.URLParam(r, "datasetID"), req.Name, req.Description)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, datasetToJSON(d))
}

// DeleteDataset handles DELETE /datasets/{datasetID}.
func (s *Server) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteDataset(r.Context(), userID(r), chi.URLParam(r, "datasetID")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddField handles POST /datasets/{datasetID}/fields.
func (s *Server) AddField(w http.ResponseWriter, r *http.Request) {
	var req fieldJSON
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}

	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	d, err := s.manager.AddField(ctx, userID(r), chi.URLParam(r, "datasetID"), req.spec())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, datasetToJSON(d))
}

// UpdateField handles PUT /datasets/{datasetID}/fields/{field}.
func (s *Server) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req fieldJSON
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}

	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	d, err := s.manager.UpdateField(ctx, userID(r), chi.URLParam(r, "datasetID"), chi.URLParam(r, "field"), req.spec())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, datasetToJSON(d))
}

// DeleteField handles DELETE /datasets/{datasetID}/fields/{field}.
func (s *Server) DeleteField(w http.ResponseWriter, r *http.Request) {
	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	d, err := s.manager.DeleteField(ctx, userID(r), chi.URLParam(r, "datasetID"), chi.URLParam(r, "field"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, datasetToJSON(d))
}

// SearchDatasets handles POST /datasets/search.
func (s *Server) SearchDatasets(w http.ResponseWriter, r *http.Request) {
	var req datasetSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badBody(w, err)
		return
	}

	sample := manager.DatasetShape{
		Name:        req.Name,
		Description: req.Description,
		Fields:      specsFromJSON(req.Fields),
	}
	ctx, usage := domain.WithEmbeddingUsage(r.Context())
	ds, err := s.manager.SearchSimilarDatasets(ctx, userID(r), sample, req.options())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, listResponse[datasetJSON]{Items: datasetsToJSON(ds)})
}
