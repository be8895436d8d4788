package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/domain/query"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
)

// QueryResult holds exactly one of the three query result shapes.
type QueryResult struct {
	// Rows is set for aggregating queries.
	Rows []query.Row
	// IDs is set for plain queries run with ids only.
	IDs []string
	// Records is set for plain queries.
	Records []domrec.Record
}

// Aggregated reports whether the result holds grouped rows.
func (r QueryResult) Aggregated() bool { return r.Rows != nil }

// QueryRecords validates q against the dataset schema and runs it. Aggregating
// queries return rows; plain queries return records, or only their ids when idsOnly
// is set.
func (m *Manager) QueryRecords(
	ctx context.Context, userID, datasetID string, q query.Query, idsOnly bool,
) (QueryResult, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return QueryResult{}, err
	}
	validated, err := query.Validate(q, d.Schema())
	if err != nil {
		return QueryResult{}, err
	}
	log := m.log(ctx, userID, zap.String("dataset_id", datasetID))

	if validated.Aggregating() {
		rows, err := m.records.Aggregate(ctx, userID, datasetID, validated)
		if err != nil {
			return QueryResult{}, fmt.Errorf("aggregate records: %w", err)
		}
		if rows == nil {
			rows = []query.Row{}
		}
		log.Debug("Aggregation query completed", zap.Int("rows", len(rows)))
		return QueryResult{Rows: rows}, nil
	}

	recs, err := m.records.Query(ctx, userID, datasetID, validated)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query records: %w", err)
	}
	log.Debug("Query completed", zap.Int("records", len(recs)))

	if idsOnly {
		ids := make([]string, len(recs))
		for i, rec := range recs {
			ids[i] = rec.ID()
		}
		return QueryResult{IDs: ids}, nil
	}
	return QueryResult{Records: recs}, nil
}
