package manager

import (
	"context"
	"fmt"
	"time"

	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
)

// plan is the write side of a schema change. Caller input is validated while the
// plan is built; apply then replaces the dataset and runs the record migrations
// and checks atomically.
type plan struct {
	dataset *domds.Dataset
	// steps read and rewrite records inside the transaction. Each returns how many
	// records it changed.
	steps []func(ctx context.Context) (int, error)
	// verify runs after every step and sees their writes.
	verify []func(ctx context.Context) error
}

func (p *plan) replace(d domds.Dataset) { p.dataset = &d }

func (p *plan) step(fn func(ctx context.Context) (int, error)) { p.steps = append(p.steps, fn) }

func (p *plan) check(fn func(ctx context.Context) error) { p.verify = append(p.verify, fn) }

// rewrite computes new data for each record with fn, stamps it with now and
// re-embeds the result under s. Records for which fn reports no change are skipped.
func (m *Manager) rewrite(
	ctx context.Context, recs []domrec.Record, s schema.Schema, now time.Time,
	fn func(rec domrec.Record) (data map[string]any, changed bool, err error),
) ([]domrec.Record, error) {
	out := make([]domrec.Record, 0, len(recs))
	for _, rec := range recs {
		data, changed, err := fn(rec)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		out = append(out, rec.WithData(data, now))
	}
	return m.embedRecords(ctx, out, s)
}

// apply replaces the dataset, runs the plan's steps and then its checks inside one
// transaction, and returns the number of records changed. Any failure aborts every write.
func (m *Manager) apply(ctx context.Context, p plan) (int, error) {
	var changed int
	err := m.tx.WithTransaction(ctx, func(ctx context.Context) error {
		changed = 0
		if p.dataset != nil {
			if err := m.datasets.Replace(ctx, *p.dataset); err != nil {
				return fmt.Errorf("replace dataset: %w", err)
			}
		}
		for _, step := range p.steps {
			n, err := step(ctx)
			if err != nil {
				return err
			}
			changed += n
		}
		for _, check := range p.verify {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}
