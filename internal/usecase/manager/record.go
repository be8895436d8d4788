package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/vectorindex"
)

// CreateRecord validates data against the dataset schema, enforces unique fields,
// embeds the record and stores it.
func (m *Manager) CreateRecord(
	ctx context.Context, userID, datasetID string, data map[string]any,
) (domrec.Record, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return domrec.Record{}, err
	}
	validated, err := domrec.ValidateData(data, d.Schema())
	if err != nil {
		return domrec.Record{}, err
	}
	if err := m.checkUnique(ctx, d, []map[string]any{validated}, nil); err != nil {
		return domrec.Record{}, err
	}

	rec := domrec.New(m.newID(), userID, datasetID, validated, m.now())
	vec, err := m.embedText(ctx, vectorindex.RecordText(validated, d.Schema()))
	if err != nil {
		return domrec.Record{}, err
	}
	if err := m.records.Insert(ctx, rec.WithEmbedding(vec)); err != nil {
		return domrec.Record{}, fmt.Errorf("create record: %w", err)
	}

	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Record created",
		zap.String("record_id", rec.ID()))
	return rec, nil
}

// GetRecord returns one record of the dataset.
func (m *Manager) GetRecord(ctx context.Context, userID, datasetID, recordID string) (domrec.Record, error) {
	if err := m.requireDataset(ctx, userID, datasetID); err != nil {
		return domrec.Record{}, err
	}
	rec, err := m.records.Get(ctx, userID, datasetID, recordID)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListRecords returns every record of the dataset.
func (m *Manager) ListRecords(ctx context.Context, userID, datasetID string) ([]domrec.Record, error) {
	if err := m.requireDataset(ctx, userID, datasetID); err != nil {
		return nil, err
	}
	recs, err := m.records.List(ctx, userID, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

// UpdateRecord replaces the data of a record after validation and uniqueness checks,
// then re-embeds it. Writing identical data is not an error.
func (m *Manager) UpdateRecord(
	ctx context.Context, userID, datasetID, recordID string, data map[string]any,
) (domrec.Record, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return domrec.Record{}, err
	}
	validated, err := domrec.ValidateData(data, d.Schema())
	if err != nil {
		return domrec.Record{}, err
	}
	if err := m.checkUnique(ctx, d, []map[string]any{validated}, []string{recordID}); err != nil {
		return domrec.Record{}, err
	}

	current, err := m.records.Get(ctx, userID, datasetID, recordID)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("get record: %w", err)
	}
	rec := current.WithData(validated, m.now())
	vec, err := m.embedText(ctx, vectorindex.RecordText(validated, d.Schema()))
	if err != nil {
		return domrec.Record{}, err
	}

	modified, err := m.records.Update(ctx, rec.WithEmbedding(vec))
	if err != nil {
		return domrec.Record{}, fmt.Errorf("update record: %w", err)
	}
	log := m.log(ctx, userID, zap.String("dataset_id", datasetID), zap.String("record_id", recordID))
	if modified == 0 {
		ok, err := m.records.Exists(ctx, userID, datasetID, recordID)
		if err != nil {
			return domrec.Record{}, fmt.Errorf("check record: %w", err)
		}
		if !ok {
			return domrec.Record{}, domain.ErrRecordNotFound
		}
		log.Debug("Record exists but no changes were made")
		return current, nil
	}

	log.Info("Record updated")
	return rec, nil
}

// DeleteRecord removes one record of the dataset.
func (m *Manager) DeleteRecord(ctx context.Context, userID, datasetID, recordID string) error {
	if err := m.requireDataset(ctx, userID, datasetID); err != nil {
		return err
	}
	if err := m.records.Delete(ctx, userID, datasetID, recordID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Record deleted",
		zap.String("record_id", recordID))
	return nil
}

// checkUnique enforces the dataset's unique fields for items about to be written.
// Values must differ within items and from every stored record not listed in exclude.
// The store lookup is a read before the write, so concurrent writers can still race.
func (m *Manager) checkUnique(ctx context.Context, d domds.Dataset, items []map[string]any, exclude []string) error {
	for _, f := range d.Schema().UniqueFields() {
		seen := make(map[string]int, len(items))
		for i, data := range items {
			v, ok := data[f.Name()]
			if !ok {
				continue
			}
			key := domrec.ValueKey(v)
			if j, dup := seen[key]; dup {
				return domain.NewFieldValueError(f.Name(),
					fmt.Errorf("value %s is used by items %d and %d of the batch", fieldtype.Format(v), j, i))
			}
			seen[key] = i

			exists, err := m.records.ValueExists(ctx, d.UserID(), d.ID(), f.Name(), v, exclude)
			if err != nil {
				return fmt.Errorf("check unique value: %w", err)
			}
			if exists {
				return domain.NewFieldValueError(f.Name(),
					fmt.Errorf("value %s already exists in another record", fieldtype.Format(v)))
			}
		}
	}
	return nil
}
