package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/domain/fieldtype"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

func scoreSchema(t *testing.T) schema.Schema {
	t.Helper()
	return mustSchema(t,
		schema.FieldSpec{Name: "title", Description: "Title", Type: fieldtype.String, Required: true},
		schema.FieldSpec{Name: "score", Description: "Score", Type: fieldtype.Integer},
	)
}

func TestAddField_WithDefaultFillsRecords(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))
	f.records.withoutFieldFn = func(_ context.Context, _, _, field string) ([]domrec.Record, error) {
		if field != "priority" {
			t.Errorf("unexpected field %q", field)
		}
		return []domrec.Record{
			storedRecord("r1", map[string]any{"title": "a"}),
			storedRecord("r2", map[string]any{"title": "b"}),
		}, nil
	}

	d, err := f.mgr.AddField(context.Background(), "u1", "ds1", schema.FieldSpec{
		Name: "priority", Description: "Priority", Type: fieldtype.String, Required: true, Default: "low",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Schema().Has("priority") {
		t.Error("expected the new field in the schema")
	}
	if f.tx.calls != 1 {
		t.Errorf("expected one transaction, got %d", f.tx.calls)
	}
	if v, ok := f.records.filled["priority"]; !ok || v != "low" {
		t.Errorf("expected the default filled, got %v", f.records.filled)
	}
	if len(f.records.updated) != 0 {
		t.Errorf("a fill must not rewrite whole records, got %d", len(f.records.updated))
	}
	if len(f.records.reembedded) != 2 {
		t.Fatalf("expected 2 records re-embedded, got %d", len(f.records.reembedded))
	}
	for _, rec := range f.records.reembedded {
		if v, _ := rec.Value("priority"); v != "low" {
			t.Errorf("record %s: expected default in the embedded data, got %v", rec.ID(), v)
		}
		if len(rec.Embedding()) == 0 {
			t.Errorf("record %s should be re-embedded", rec.ID())
		}
		if !rec.UpdatedAt().Equal(testNow) {
			t.Errorf("record %s should carry the new timestamp", rec.ID())
		}
	}
}

func TestAddField_WithoutDefaultLeavesRecords(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))
	f.records.withoutFieldFn = func(context.Context, string, string, string) ([]domrec.Record, error) {
		t.Error("records must not be scanned for a field without default")
		return nil, nil
	}

	_, err := f.mgr.AddField(context.Background(), "u1", "ds1", schema.FieldSpec{
		Name: "notes", Description: "Notes", Type: fieldtype.String,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.datasets.replaced) != 1 || len(f.records.filled) != 0 || len(f.records.reembedded) != 0 {
		t.Errorf("expected only the dataset replaced, got %d/%v/%d",
			len(f.datasets.replaced), f.records.filled, len(f.records.reembedded))
	}
}

func TestAddField_RequiredWithoutDefault(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))

	_, err := f.mgr.AddField(context.Background(), "u1", "ds1", schema.FieldSpec{
		Name: "owner", Description: "Owner", Type: fieldtype.String, Required: true,
	})
	if !errors.Is(err, domain.ErrInvalidSchemaUpdate) {
		t.Fatalf("expected ErrInvalidSchemaUpdate, got %v", err)
	}
	if f.tx.calls != 0 {
		t.Error("no transaction expected")
	}
}

func TestAddField_UniqueDefaultShared(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))
	f.records.withoutFieldFn = func(context.Context, string, string, string) ([]domrec.Record, error) {
		return []domrec.Record{
			storedRecord("r1", map[string]any{"title": "a"}),
			storedRecord("r2", map[string]any{"title": "b"}),
		}, nil
	}

	_, err := f.mgr.AddField(context.Background(), "u1", "ds1", schema.FieldSpec{
		Name: "code", Description: "Code", Type: fieldtype.String, Unique: true, Default: "x",
	})
	if !errors.Is(err, domain.ErrInvalidSchemaUpdate) {
		t.Fatalf("expected ErrInvalidSchemaUpdate, got %v", err)
	}
	if f.tx.aborts != 1 || len(f.records.filled) != 0 {
		t.Errorf("expected an abort before any fill, got aborts=%d filled=%v", f.tx.aborts, f.records.filled)
	}
}

func TestUpdateField_RequiredWithoutDefault(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))

	_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "score", schema.FieldSpec{
		Description: "Score", Type: fieldtype.Integer, Required: true,
	})
	if !errors.Is(err, domain.ErrInvalidSchemaUpdate) {
		t.Fatalf("expected ErrInvalidSchemaUpdate, got %v", err)
	}
	if f.tx.calls != 0 || len(f.datasets.replaced) != 0 {
		t.Error("nothing should be written")
	}
}

func TestUpdateField_RequiredWithDefault(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))

	d, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "score", schema.FieldSpec{
		Description: "Score", Type: fieldtype.Integer, Required: true, Default: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	field, _ := d.Schema().Field("score")
	if !field.Required() || field.Default() != int64(0) {
		t.Errorf("unexpected field %+v", field.Spec())
	}
	if len(f.records.filled) != 0 || len(f.records.reembedded) != 0 {
		t.Errorf("no records lack the field, got %v/%d", f.records.filled, len(f.records.reembedded))
	}
	if len(f.datasets.replaced) != 1 {
		t.Errorf("expected the dataset replaced once, got %d", len(f.datasets.replaced))
	}
}

func TestUpdateField_NoOp(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))

	_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "score", schema.FieldSpec{
		Description: "Score", Type: fieldtype.Integer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.tx.calls != 0 || len(f.embedder.texts) != 0 {
		t.Error("an identical definition must not write or embed")
	}
}

func TestUpdateField_IntegerToFloat(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))
	f.records.withFieldFn = func(context.Context, string, string, string) ([]domrec.Record, error) {
		return []domrec.Record{
			storedRecord("r1", map[string]any{"title": "a", "score": int64(3)}),
			storedRecord("r2", map[string]any{"title": "b", "score": int64(-7)}),
		}, nil
	}

	d, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "score", schema.FieldSpec{
		Description: "Score", Type: fieldtype.Float,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if field, _ := d.Schema().Field("score"); field.Type() != fieldtype.Float {
		t.Errorf("expected Float, got %s", field.Type())
	}
	want := map[string]float64{"r1": 3, "r2": -7}
	if len(f.records.updated) != 2 {
		t.Fatalf("expected 2 migrated records, got %d", len(f.records.updated))
	}
	for _, rec := range f.records.updated {
		v, _ := rec.Value("score")
		if v != want[rec.ID()] {
			t.Errorf("record %s: expected %v, got %#v", rec.ID(), want[rec.ID()], v)
		}
	}
}

func TestUpdateField_UnsafeConversion(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))

	_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "score", schema.FieldSpec{
		Description: "Score", Type: fieldtype.Date,
	})
	if !errors.Is(err, domain.ErrInvalidSchemaUpdate) {
		t.Fatalf("expected ErrInvalidSchemaUpdate, got %v", err)
	}
}

func TestUpdateField_ConversionErrorAborts(t *testing.T) {
	f := newFixture(t)
	s := mustSchema(t, schema.FieldSpec{
		Name: "status", Description: "Status", Type: fieldtype.Select, Options: []string{"open", "closed", "archived"},
	})
	f.withDataset(mustDataset(t, s))
	f.records.withFieldFn = func(context.Context, string, string, string) ([]domrec.Record, error) {
		return []domrec.Record{
			storedRecord("r1", map[string]any{"status": "open"}),
			storedRecord("r2", map[string]any{"status": "archived"}),
		}, nil
	}

	_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "status", schema.FieldSpec{
		Description: "Status", Type: fieldtype.Select, Options: []string{"open", "closed"},
	})
	var convErr *domain.TypeConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected TypeConversionError, got %v", err)
	}
	if convErr.RecordID != "r2" || convErr.Field != "status" {
		t.Errorf("unexpected conversion error %+v", convErr)
	}
	if !errors.Is(err, domain.ErrTypeConversion) {
		t.Error("expected ErrTypeConversion in the chain")
	}
	if f.tx.aborts != 1 || len(f.records.updated) != 0 {
		t.Error("a failed conversion must abort the transaction before any record write")
	}
}

func TestUpdateField_ConversionWritesOnlyChangedValues(t *testing.T) {
	f := newFixture(t)
	s := mustSchema(t, schema.FieldSpec{
		Name: "status", Description: "Status", Type: fieldtype.Select, Options: []string{"open", "closed"},
	})
	f.withDataset(mustDataset(t, s))
	f.records.withFieldFn = func(context.Context, string, string, string) ([]domrec.Record, error) {
		return []domrec.Record{storedRecord("r1", map[string]any{"status": "open"})}, nil
	}
	var field string
	f.records.setFieldFn = func(_ context.Context, recs []domrec.Record, name string) (int64, error) {
		field = name
		return int64(len(recs)), nil
	}

	_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "status", schema.FieldSpec{
		Description: "Status", Type: fieldtype.Select, Options: []string{"open", "closed", "blocked"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if field != "" || len(f.records.updated) != 0 {
		t.Errorf("values valid under the widened options must not be rewritten, got %d", len(f.records.updated))
	}
}

func TestUpdateField_BecomeUniqueWithDuplicates(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))
	f.records.findDuplicateFn = func(_ context.Context, _, _, field string) (*domrec.Duplicate, error) {
		return &domrec.Duplicate{Value: "a", Count: 2}, nil
	}

	_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "title", schema.FieldSpec{
		Description: "Title", Type: fieldtype.String, Required: true, Unique: true,
	})
	if !errors.Is(err, domain.ErrInvalidSchemaUpdate) {
		t.Fatalf("expected ErrInvalidSchemaUpdate, got %v", err)
	}
	if f.tx.aborts != 1 {
		t.Errorf("expected the transaction to abort, got %d", f.tx.aborts)
	}
}

func TestUpdateField_BecomeUnique(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))
	scanned := false
	f.records.findDuplicateFn = func(context.Context, string, string, string) (*domrec.Duplicate, error) {
		scanned = true
		return nil, nil
	}

	_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "title", schema.FieldSpec{
		Description: "Title", Type: fieldtype.String, Required: true, Unique: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !scanned {
		t.Error("expected a duplicate scan inside the transaction")
	}
}

func TestUpdateField_UnknownField(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))

	_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "nope", schema.FieldSpec{
		Description: "x", Type: fieldtype.String,
	})
	if !errors.Is(err, domain.ErrInvalidDatasetSchema) {
		t.Fatalf("expected ErrInvalidDatasetSchema, got %v", err)
	}
}

func TestDeleteField(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))
	f.records.withFieldFn = func(context.Context, string, string, string) ([]domrec.Record, error) {
		return []domrec.Record{storedRecord("r1", map[string]any{"title": "a", "score": int64(1)})}, nil
	}

	d, err := f.mgr.DeleteField(context.Background(), "u1", "ds1", "score")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Schema().Has("score") {
		t.Error("field should be gone from the schema")
	}
	if len(f.records.unset) != 1 || f.records.unset[0] != "score" {
		t.Errorf("expected score unset, got %v", f.records.unset)
	}
	if len(f.records.reembedded) != 1 {
		t.Fatalf("expected 1 record re-embedded, got %d", len(f.records.reembedded))
	}
	if _, ok := f.records.reembedded[0].Value("score"); ok {
		t.Error("the embedded data should not contain the removed value")
	}
}

func TestDeleteField_NoHolders(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))

	if _, err := f.mgr.DeleteField(context.Background(), "u1", "ds1", "score"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.records.unset) != 0 || len(f.embedder.texts) != 1 {
		t.Errorf("only the dataset should be re-embedded, got unset=%v texts=%d",
			f.records.unset, len(f.embedder.texts))
	}
}

func TestFieldMigrations_ReadInsideTransaction(t *testing.T) {
	tests := []struct {
		name string
		run  func(f *fixture) error
	}{
		{"add field", func(f *fixture) error {
			_, err := f.mgr.AddField(context.Background(), "u1", "ds1", schema.FieldSpec{
				Name: "owner", Description: "Owner", Type: fieldtype.String, Required: true, Default: "nobody",
			})
			return err
		}},
		{"convert field", func(f *fixture) error {
			_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "score", schema.FieldSpec{
				Description: "Score", Type: fieldtype.Float,
			})
			return err
		}},
		{"require field", func(f *fixture) error {
			_, err := f.mgr.UpdateField(context.Background(), "u1", "ds1", "score", schema.FieldSpec{
				Description: "Score", Type: fieldtype.Integer, Required: true, Default: 0,
			})
			return err
		}},
		{"delete field", func(f *fixture) error {
			_, err := f.mgr.DeleteField(context.Background(), "u1", "ds1", "score")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.withDataset(mustDataset(t, scoreSchema(t)))
			reads := 0
			read := func(ctx context.Context, data map[string]any) ([]domrec.Record, error) {
				reads++
				if !inTx(ctx) {
					t.Error("records read outside the transaction")
				}
				return []domrec.Record{storedRecord("r1", data)}, nil
			}
			f.records.withFieldFn = func(ctx context.Context, _, _, _ string) ([]domrec.Record, error) {
				return read(ctx, map[string]any{"title": "a", "score": int64(1)})
			}
			f.records.withoutFieldFn = func(ctx context.Context, _, _, _ string) ([]domrec.Record, error) {
				return read(ctx, map[string]any{"title": "a"})
			}
			writeInTx := func(ctx context.Context) {
				if !inTx(ctx) {
					t.Error("records written outside the transaction")
				}
			}
			f.records.setFieldFn = func(ctx context.Context, recs []domrec.Record, _ string) (int64, error) {
				writeInTx(ctx)
				return int64(len(recs)), nil
			}
			f.records.setEmbeddingsFn = func(ctx context.Context, recs []domrec.Record) (int64, error) {
				writeInTx(ctx)
				return int64(len(recs)), nil
			}

			if err := tt.run(f); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reads != 1 {
				t.Errorf("expected one record read, got %d", reads)
			}
		})
	}
}

func TestDeleteField_ReplaceErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.withDataset(mustDataset(t, scoreSchema(t)))
	f.datasets.replaceFn = func(context.Context, domds.Dataset) error { return domain.ErrDatasetNotFound }

	_, err := f.mgr.DeleteField(context.Background(), "u1", "ds1", "score")
	if !errors.Is(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
	if f.tx.aborts != 1 {
		t.Errorf("expected the transaction to abort, got %d", f.tx.aborts)
	}
}
