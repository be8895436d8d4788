package vectorindex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	"github.com/oyiakoumis/poco-sub000/internal/metrics"
)

// Backend is the search index API of one collection.
type Backend interface {
	SearchIndexStatus(ctx context.Context, name string) (string, error)
	CreateSearchIndex(ctx context.Context, name string, definition any) error
	DropSearchIndex(ctx context.Context, name string) error
}

// Config bounds the status polling.
type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
	DeletingWait time.Duration
}

// DefaultConfig polls every 2s for up to a minute.
func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second, MaxAttempts: 30, DeletingWait: 5 * time.Second}
}

// Lifecycle drives an index to READY or to absence with bounded polling.
type Lifecycle struct {
	cfg    Config
	clock  Clock
	logger *zap.Logger
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(l *Lifecycle) { l.clock = c }
}

// NewLifecycle creates a Lifecycle. Zero config values fall back to DefaultConfig.
func NewLifecycle(cfg Config, logger *zap.Logger, opts ...Option) *Lifecycle {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.DeletingWait <= 0 {
		cfg.DeletingWait = def.DeletingWait
	}
	l := &Lifecycle{cfg: cfg, clock: RealClock{}, logger: logger}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Ensure brings idx to a queryable state:
//   - READY is left alone
//   - FAILED and STALE are dropped and rebuilt
//   - PENDING and BUILDING are awaited
//   - DELETING is awaited until gone, then rebuilt
//   - a missing index is created
//
// Every failure surfaces as a domain database error.
func (l *Lifecycle) Ensure(ctx context.Context, b Backend, idx Index) error {
	log := l.logger.With(zap.String("index", idx.Name))

	status, err := l.status(ctx, b, idx.Name)
	if err != nil {
		return err
	}
	log.Info("Vector index status", zap.String("status", string(status)))

	switch status {
	case Ready:
		return nil
	case Pending, Building:
		log.Info("Waiting for existing vector index")
		return l.waitReady(ctx, b, idx.Name)
	case Failed, Stale:
		log.Warn("Dropping vector index to rebuild it", zap.String("status", string(status)))
		if err := l.Drop(ctx, b, idx.Name); err != nil {
			return err
		}
	case Deleting:
		log.Info("Waiting for vector index deletion before recreating it")
		if err := l.clock.Sleep(ctx, l.cfg.DeletingWait); err != nil {
			return wrap(idx.Name, err)
		}
		if err := l.waitGone(ctx, b, idx.Name); err != nil {
			return err
		}
	}

	log.Info("Creating vector index")
	if err := b.CreateSearchIndex(ctx, idx.Name, idx.Definition); err != nil {
		return wrap(idx.Name, err)
	}
	if err := l.waitReady(ctx, b, idx.Name); err != nil {
		return err
	}
	log.Info("Vector index is ready")
	return nil
}

// Drop requests deletion of the named index and waits until it is gone.
func (l *Lifecycle) Drop(ctx context.Context, b Backend, name string) error {
	if err := b.DropSearchIndex(ctx, name); err != nil {
		return wrap(name, err)
	}
	return l.waitGone(ctx, b, name)
}

// waitReady polls until READY. STALE is accepted since the index still answers queries.
// A DOES_NOT_EXIST result means a freshly submitted build is not listed yet.
func (l *Lifecycle) waitReady(ctx context.Context, b Backend, name string) error {
	for range l.cfg.MaxAttempts {
		metrics.VectorIndexPollsTotal.WithLabelValues(name, "ready").Inc()
		status, err := l.status(ctx, b, name)
		if err != nil {
			return err
		}

		wait := l.cfg.PollInterval
		switch status {
		case Ready:
			return nil
		case Stale:
			l.logger.Warn("Vector index is stale and may return out-of-date results", zap.String("index", name))
			return nil
		case Failed:
			return wrap(name, fmt.Errorf("index build failed"))
		case Deleting:
			wait = 2 * l.cfg.PollInterval
		}

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return wrap(name, err)
		}
	}
	return wrap(name, fmt.Errorf("index not ready after %d attempts", l.cfg.MaxAttempts))
}

// waitGone polls until the index is no longer listed.
func (l *Lifecycle) waitGone(ctx context.Context, b Backend, name string) error {
	for range l.cfg.MaxAttempts {
		metrics.VectorIndexPollsTotal.WithLabelValues(name, "delete").Inc()
		status, err := l.status(ctx, b, name)
		if err != nil {
			return err
		}
		if status == DoesNotExist {
			return nil
		}
		if err := l.clock.Sleep(ctx, l.cfg.PollInterval); err != nil {
			return wrap(name, err)
		}
	}
	return wrap(name, fmt.Errorf("index deletion not complete after %d attempts", l.cfg.MaxAttempts))
}

func (l *Lifecycle) status(ctx context.Context, b Backend, name string) (Status, error) {
	raw, err := b.SearchIndexStatus(ctx, name)
	if err != nil {
		return "", wrap(name, err)
	}
	status := ParseStatus(raw)
	if raw != "" && status == Failed && raw != string(Failed) {
		l.logger.Warn("Unknown vector index status", zap.String("index", name), zap.String("status", raw))
	}
	for _, s := range allStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		metrics.VectorIndexStatus.WithLabelValues(name, string(s)).Set(v)
	}
	return status, nil
}

func wrap(name string, err error) error {
	return domain.NewDatabaseError("vector index "+name, err)
}
