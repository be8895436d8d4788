package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

// CreateDataset validates the schema, embeds the dataset and stores it.
// A name already used by the tenant yields domain.ErrDatasetNameExists.
func (m *Manager) CreateDataset(
	ctx context.Context, userID, name, description string, fields []schema.FieldSpec,
) (domds.Dataset, error) {
	if err := requireTenant(userID); err != nil {
		return domds.Dataset{}, err
	}
	s, err := schema.Validate(fields)
	if err != nil {
		return domds.Dataset{}, err
	}
	d, err := domds.New(m.newID(), userID, name, description, s, m.now())
	if err != nil {
		return domds.Dataset{}, err
	}
	d, err = m.embedDataset(ctx, d)
	if err != nil {
		return domds.Dataset{}, err
	}
	if err := m.datasets.Insert(ctx, d); err != nil {
		return domds.Dataset{}, fmt.Errorf("create dataset: %w", err)
	}

	m.log(ctx, userID, zap.String("dataset_id", d.ID())).Info("Dataset created",
		zap.String("name", d.Name()), zap.Int("fields", s.Len()))
	return d.WithEmbedding(nil), nil
}

// GetDataset returns one dataset of the tenant.
func (m *Manager) GetDataset(ctx context.Context, userID, datasetID string) (domds.Dataset, error) {
	return m.loadDataset(ctx, userID, datasetID)
}

// ListDatasets returns every dataset of the tenant.
func (m *Manager) ListDatasets(ctx context.Context, userID string) ([]domds.Dataset, error) {
	if err := requireTenant(userID); err != nil {
		return nil, err
	}
	ds, err := m.datasets.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return ds, nil
}

// UpdateDataset renames and redescribes a dataset, keeping its schema, and re-embeds it.
func (m *Manager) UpdateDataset(
	ctx context.Context, userID, datasetID, name, description string,
) (domds.Dataset, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return domds.Dataset{}, err
	}
	d, err = d.WithDetails(name, description, m.now())
	if err != nil {
		return domds.Dataset{}, err
	}
	d, err = m.embedDataset(ctx, d)
	if err != nil {
		return domds.Dataset{}, err
	}
	if err := m.datasets.Replace(ctx, d); err != nil {
		return domds.Dataset{}, fmt.Errorf("update dataset: %w", err)
	}

	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Dataset updated")
	return d.WithEmbedding(nil), nil
}

// DeleteDataset removes the dataset and all of its records in one transaction.
func (m *Manager) DeleteDataset(ctx context.Context, userID, datasetID string) error {
	if err := requireTenant(userID); err != nil {
		return err
	}
	var deleted int64
	err := m.tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := m.records.DeleteByDataset(ctx, userID, datasetID)
		if err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		if err := m.datasets.Delete(ctx, userID, datasetID); err != nil {
			return fmt.Errorf("delete dataset: %w", err)
		}
		deleted = n
		return nil
	})
	if err != nil {
		return err
	}

	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Dataset deleted",
		zap.Int64("records_deleted", deleted))
	return nil
}
