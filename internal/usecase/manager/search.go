package manager

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/db/pipeline"
	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
	"github.com/oyiakoumis/poco-sub000/internal/vectorindex"
)

// DefaultSearchLimit is the number of results returned when none is requested.
const DefaultSearchLimit = 10

// SearchOptions tunes a similarity search.
type SearchOptions struct {
	Limit int
	// MinScore overrides the configured threshold when set.
	MinScore *float64
	// Filter restricts record results; it is validated against the dataset schema.
	Filter query.Node
}

// DatasetShape describes a dataset shape to compare against stored datasets.
type DatasetShape struct {
	Name        string
	Description string
	Fields      []schema.FieldSpec
}

// SearchSimilarDatasets returns the tenant's datasets closest to sample.
func (m *Manager) SearchSimilarDatasets(
	ctx context.Context, userID string, sample DatasetShape, opts SearchOptions,
) ([]domds.Dataset, error) {
	if err := requireTenant(userID); err != nil {
		return nil, err
	}
	if opts.Filter != nil {
		return nil, fmt.Errorf("filters apply to record search only: %w", domain.ErrInvalidQuery)
	}
	s, err := schema.Validate(sample.Fields)
	if err != nil {
		return nil, err
	}
	vec, err := m.embedText(ctx, vectorindex.DatasetShapeText(sample.Name, sample.Description, s))
	if err != nil {
		return nil, err
	}
	search, err := m.similarity(m.search.DatasetIndexName, vec, userID, opts)
	if err != nil {
		return nil, err
	}

	ds, err := m.datasets.SearchSimilar(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("search similar datasets: %w", err)
	}
	m.log(ctx, userID).Debug("Similar datasets found", zap.Int("count", len(ds)))
	return ds, nil
}

// SearchSimilarRecords returns the dataset's records closest to the sample values.
// Sample values are coerced like record data, but required fields may be left out.
func (m *Manager) SearchSimilarRecords(
	ctx context.Context, userID, datasetID string, sample map[string]any, opts SearchOptions,
) ([]domrec.Record, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return nil, err
	}
	data, err := domrec.ValidatePartial(sample, d.Schema())
	if err != nil {
		return nil, err
	}
	search, err := m.similarity(m.search.RecordIndexName, nil, userID, opts)
	if err != nil {
		return nil, err
	}
	if opts.Filter != nil {
		q, err := query.Validate(query.Query{Filter: opts.Filter}, d.Schema())
		if err != nil {
			return nil, err
		}
		search.Filter = pipeline.Filter(q.Filter)
	}
	search.Scope = bson.D{{Key: "dataset_id", Value: datasetID}}

	search.Vector, err = m.embedText(ctx, vectorindex.RecordText(data, d.Schema()))
	if err != nil {
		return nil, err
	}

	recs, err := m.records.SearchSimilar(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("search similar records: %w", err)
	}
	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Debug("Similar records found",
		zap.Int("count", len(recs)))
	return recs, nil
}

func (m *Manager) similarity(index string, vec []float32, userID string, opts SearchOptions) (vectorindex.Search, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 0 {
		return vectorindex.Search{}, fmt.Errorf("limit must be positive: %w", domain.ErrInvalidQuery)
	}
	minScore := m.search.MinScore
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	}
	if minScore < 0 || minScore > 1 {
		return vectorindex.Search{}, fmt.Errorf("min score %v outside [0, 1]: %w", minScore, domain.ErrInvalidQuery)
	}
	return vectorindex.Search{
		Index:               index,
		Path:                m.search.FieldPath,
		Vector:              vec,
		Limit:               limit,
		CandidateMultiplier: m.search.NumCandidatesMultiplier,
		MinScore:            minScore,
		UserID:              userID,
	}, nil
}
