package manager

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

// AddField appends a field to the dataset schema. When the field has a default,
// every existing record receives it, in the same transaction as the schema change.
func (m *Manager) AddField(ctx context.Context, userID, datasetID string, spec schema.FieldSpec) (domds.Dataset, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return domds.Dataset{}, err
	}
	next, f, err := d.Schema().AddField(spec)
	if err != nil {
		return domds.Dataset{}, err
	}

	var p plan
	if f.HasDefault() {
		p.step(m.fillDefault(d, next, f))
	}

	updated, err := m.replaceSchema(ctx, &p, d, next)
	if err != nil {
		return domds.Dataset{}, err
	}
	changed, err := m.apply(ctx, p)
	if err != nil {
		return domds.Dataset{}, fmt.Errorf("add field: %w", err)
	}

	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Field added",
		zap.String("field", f.Name()), zap.Int("records_updated", changed))
	return updated, nil
}

// UpdateField replaces the definition of an existing field. Type and option changes
// re-validate every stored value inside the transaction; one record that cannot
// convert aborts the whole update with a domain.TypeConversionError.
func (m *Manager) UpdateField(
	ctx context.Context, userID, datasetID, name string, spec schema.FieldSpec,
) (domds.Dataset, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return domds.Dataset{}, err
	}
	upd, err := d.Schema().UpdateField(name, spec)
	if err != nil {
		return domds.Dataset{}, err
	}
	if upd.NoOp {
		return d, nil
	}

	var p plan
	if upd.NeedsMigration() {
		v, err := upd.New.Validator()
		if err != nil {
			return domds.Dataset{}, fmt.Errorf("%w: %w", domain.ErrInvalidDatasetSchema, err)
		}
		p.step(m.convertField(d, upd, v))
	}
	if upd.BecameRequired() && upd.New.HasDefault() {
		p.step(m.fillDefault(d, upd.Schema, upd.New))
	}
	if upd.New.Unique() && (upd.BecameUnique() || len(p.steps) > 0) {
		p.check(m.uniqueCheck(d.UserID(), d.ID(), upd.New.Name()))
	}

	updated, err := m.replaceSchema(ctx, &p, d, upd.Schema)
	if err != nil {
		return domds.Dataset{}, err
	}
	changed, err := m.apply(ctx, p)
	if err != nil {
		return domds.Dataset{}, fmt.Errorf("update field: %w", err)
	}

	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Field updated",
		zap.String("field", name),
		zap.String("from", string(upd.Old.Type())),
		zap.String("to", string(upd.New.Type())),
		zap.Int("records_updated", changed),
	)
	return updated, nil
}

// DeleteField removes a field from the schema and unsets it on every record.
func (m *Manager) DeleteField(ctx context.Context, userID, datasetID, name string) (domds.Dataset, error) {
	d, err := m.loadDataset(ctx, userID, datasetID)
	if err != nil {
		return domds.Dataset{}, err
	}
	next, _, err := d.Schema().DeleteField(name)
	if err != nil {
		return domds.Dataset{}, err
	}

	var p plan
	p.step(m.unsetField(d, next, name))
	updated, err := m.replaceSchema(ctx, &p, d, next)
	if err != nil {
		return domds.Dataset{}, err
	}
	changed, err := m.apply(ctx, p)
	if err != nil {
		return domds.Dataset{}, fmt.Errorf("delete field: %w", err)
	}

	m.log(ctx, userID, zap.String("dataset_id", datasetID)).Info("Field deleted",
		zap.String("field", name), zap.Int("records_updated", changed))
	return updated, nil
}

// replaceSchema re-embeds d under s and schedules the dataset replacement.
func (m *Manager) replaceSchema(ctx context.Context, p *plan, d domds.Dataset, s schema.Schema) (domds.Dataset, error) {
	updated, err := m.embedDataset(ctx, d.WithSchema(s, m.now()))
	if err != nil {
		return domds.Dataset{}, err
	}
	p.replace(updated)
	return updated.WithEmbedding(nil), nil
}

// unsetField removes name from every record that stores it and re-embeds those
// records under s.
func (m *Manager) unsetField(
	d domds.Dataset, s schema.Schema, name string,
) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		holders, err := m.records.WithField(ctx, d.UserID(), d.ID(), name)
		if err != nil {
			return 0, fmt.Errorf("find records with field: %w", err)
		}
		if len(holders) == 0 {
			return 0, nil
		}
		now := m.now()
		stripped, err := m.rewrite(ctx, holders, s, now, func(rec domrec.Record) (map[string]any, bool, error) {
			data := rec.Data()
			delete(data, name)
			return data, true, nil
		})
		if err != nil {
			return 0, err
		}
		if _, err := m.records.UnsetField(ctx, d.UserID(), d.ID(), name, now); err != nil {
			return 0, fmt.Errorf("unset field: %w", err)
		}
		if _, err := m.records.SetEmbeddings(ctx, stripped); err != nil {
			return 0, fmt.Errorf("store embeddings: %w", err)
		}
		return len(stripped), nil
	}
}

// fillDefault sets f's default on every record that stores no value for it.
func (m *Manager) fillDefault(
	d domds.Dataset, s schema.Schema, f schema.Field,
) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		lacking, err := m.records.WithoutField(ctx, d.UserID(), d.ID(), f.Name())
		if err != nil {
			return 0, fmt.Errorf("find records without field: %w", err)
		}
		if len(lacking) == 0 {
			return 0, nil
		}
		if f.Unique() && len(lacking) > 1 {
			return 0, fmt.Errorf("default for unique field '%s' would be shared by %d records: %w",
				f.Name(), len(lacking), domain.ErrInvalidSchemaUpdate)
		}
		now := m.now()
		filled, err := m.rewrite(ctx, lacking, s, now, func(rec domrec.Record) (map[string]any, bool, error) {
			data := rec.Data()
			data[f.Name()] = f.Default()
			return data, true, nil
		})
		if err != nil {
			return 0, err
		}
		if _, err := m.records.FillField(ctx, d.UserID(), d.ID(), f.Name(), f.Default(), now); err != nil {
			return 0, fmt.Errorf("fill field: %w", err)
		}
		if _, err := m.records.SetEmbeddings(ctx, filled); err != nil {
			return 0, fmt.Errorf("store embeddings: %w", err)
		}
		return len(filled), nil
	}
}

// convertField re-validates the stored values of the updated field with v and
// writes back the ones that changed.
func (m *Manager) convertField(
	d domds.Dataset, upd schema.FieldUpdate, v fieldtype.Validator,
) func(ctx context.Context) (int, error) {
	name := upd.New.Name()
	return func(ctx context.Context) (int, error) {
		holders, err := m.records.WithField(ctx, d.UserID(), d.ID(), name)
		if err != nil {
			return 0, fmt.Errorf("find records with field: %w", err)
		}
		convert := func(rec domrec.Record) (map[string]any, bool, error) {
			old, _ := rec.Value(name)
			value, err := v.Validate(old)
			if err != nil {
				return nil, false, &domain.TypeConversionError{
					RecordID: rec.ID(),
					Field:    name,
					From:     string(upd.Old.Type()),
					To:       string(upd.New.Type()),
					Err:      err,
				}
			}
			if reflect.DeepEqual(value, old) {
				return nil, false, nil
			}
			data := rec.Data()
			data[name] = value
			return data, true, nil
		}
		converted, err := m.rewrite(ctx, holders, upd.Schema, m.now(), convert)
		if err != nil {
			return 0, err
		}
		if len(converted) == 0 {
			return 0, nil
		}
		if _, err := m.records.SetField(ctx, converted, name); err != nil {
			return 0, fmt.Errorf("store converted values: %w", err)
		}
		return len(converted), nil
	}
}

// uniqueCheck fails when two records of the dataset share a value of field.
func (m *Manager) uniqueCheck(userID, datasetID, field string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		dup, err := m.records.FindDuplicate(ctx, userID, datasetID, field)
		if err != nil {
			return fmt.Errorf("scan duplicates: %w", err)
		}
		if dup != nil {
			return fmt.Errorf("field '%s' cannot be unique: value %s is stored by %d records: %w",
				field, fieldtype.Format(dup.Value), dup.Count, domain.ErrInvalidSchemaUpdate)
		}
		return nil
	}
}
