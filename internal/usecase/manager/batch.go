package manager

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
)

// RecordUpdate is one item of a batch update: the record id and its new data.
type RecordUpdate struct {
	ID   string
	Data map[string]any
}

// BatchCreateRecords validates every item, checks unique fields within the batch
// and against the store, embeds all items and inserts them with one bulk write.
// Nothing is written unless every item is valid. Batches are not chunked.
func (m *Manager) BatchCreateRecords(
	ctx context.Context, userID, datasetID string, items []map[string]any,
) ([]string, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	validated := make([]map[string]any, len(items))
	for i, data := range items {
		v, err := domrec.ValidateData(data, d.Schema())
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		validated[i] = v
	}
	if err := m.checkUnique(ctx, d, validated, nil); err != nil {
		return nil, err
	}

	now := m.now()
	recs := make([]domrec.Record, len(validated))
	ids := make([]string, len(validated))
	for i, data := range validated {
		recs[i] = domrec.New(m.newID(), userID, datasetID, data, now)
		ids[i] = recs[i].ID()
	}
	recs, err = m.embedRecords(ctx, recs, d.Schema())
	if err != nil {
		return nil, err
	}
	if err := m.records.InsertMany(ctx, recs); err != nil {
		return nil, fmt.Errorf("batch create records: %w", err)
	}

	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Records created",
		zap.Int("count", len(recs)))
	return ids, nil
}

// BatchUpdateRecords validates every update, checks unique fields excluding the
// records being updated, re-embeds all items and writes them with one bulk write.
// When fewer records change than requested, the missing ids are resolved: absent
// records yield domain.ErrRecordNotFound, unchanged ones are not an error.
func (m *Manager) BatchUpdateRecords(
	ctx context.Context, userID, datasetID string, updates []RecordUpdate,
) ([]string, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(updates))
	validated := make([]map[string]any, len(updates))
	seen := make(map[string]bool, len(updates))
	for i, u := range updates {
		if u.ID == "" || len(u.Data) == 0 {
			return nil, fmt.Errorf("item %d: record update needs an id and data: %w", i, domain.ErrInvalidRecordData)
		}
		if seen[u.ID] {
			return nil, fmt.Errorf("item %d: record %s is updated twice: %w", i, u.ID, domain.ErrInvalidRecordData)
		}
		seen[u.ID] = true

		v, err := domrec.ValidateData(u.Data, d.Schema())
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		ids[i] = u.ID
		validated[i] = v
	}
	if err := m.checkUnique(ctx, d, validated, ids); err != nil {
		return nil, err
	}

	now := m.now()
	recs := make([]domrec.Record, len(updates))
	for i, id := range ids {
		recs[i] = domrec.New(id, userID, datasetID, validated[i], now)
	}
	recs, err = m.embedRecords(ctx, recs, d.Schema())
	if err != nil {
		return nil, err
	}

	modified, err := m.records.UpdateMany(ctx, recs)
	if err != nil {
		return nil, fmt.Errorf("batch update records: %w", err)
	}
	log := m.log(ctx, userID, zap.String("dataset_id", datasetID))
	if modified < int64(len(recs)) {
		existing, err := m.records.ExistingIDs(ctx, userID, datasetID, ids)
		if err != nil {
			return nil, fmt.Errorf("check records: %w", err)
		}
		var missing []string
		for _, id := range ids {
			if !slices.Contains(existing, id) {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("records %s: %w", strings.Join(missing, ", "), domain.ErrRecordNotFound)
		}
		log.Debug("Some records were not modified, but all exist",
			zap.Int64("modified", modified), zap.Int("requested", len(recs)))
	}

	log.Info("Records updated", zap.Int64("modified", modified), zap.Int("requested", len(recs)))
	return ids, nil
}

// BatchDeleteRecords removes the listed records and returns the requested ids.
// Ids that match no record are ignored.
func (m *Manager) BatchDeleteRecords(ctx context.Context, userID, datasetID string, ids []string) ([]string, error) {
	if err := m.requireDataset(ctx, userID, datasetID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	deleted, err := m.records.DeleteByIDs(ctx, userID, datasetID, ids)
	if err != nil {
		return nil, fmt.Errorf("batch delete records: %w", err)
	}

	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Records deleted",
		zap.Int64("deleted", deleted), zap.Int("requested", len(ids)))
	return ids, nil
}
