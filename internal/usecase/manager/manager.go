// Package manager orchestrates dataset and record operations over the
// repositories, the embedder and the vector index lifecycle.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/domain"
	domds "github.com/oyiakoumis/poco-sub000/internal/domain/dataset"
	domrec "github.com/oyiakoumis/poco-sub000/internal/domain/record"
	"github.com/oyiakoumis/poco-sub000/internal/domain/schema"
	"github.com/oyiakoumis/poco-sub000/internal/logger"
	"github.com/oyiakoumis/poco-sub000/internal/vectorindex"
)

// Manager exposes the tenant-scoped dataset and record operations.
// It is safe for concurrent use.
type Manager struct {
	datasets  DatasetRepository
	records   RecordRepository
	embedder  Embedder
	tx        Transactor
	lifecycle IndexLifecycle
	search    domain.VectorSearchConfig
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithVectorSearch overrides the vector index and similarity settings.
func WithVectorSearch(cfg domain.VectorSearchConfig) Option {
	return func(m *Manager) { m.search = cfg }
}

// WithLifecycle sets the index lifecycle used by Setup.
func WithLifecycle(l IndexLifecycle) Option {
	return func(m *Manager) { m.lifecycle = l }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces the random UUID generator for dataset and record ids.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager.
func New(
	datasets DatasetRepository, records RecordRepository,
	embedder Embedder, tx Transactor, opts ...Option,
) *Manager {
	m := &Manager{
		datasets: datasets,
		records:  records,
		embedder: embedder,
		tx:       tx,
		search:   domain.DefaultVectorSearchConfig(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.lifecycle == nil {
		m.lifecycle = vectorindex.NewLifecycle(vectorindex.DefaultConfig(), m.logger)
	}
	return m
}

// Setup creates the regular indexes of both collections and brings both vector
// indexes to a queryable state. It blocks until done and fails if either index
// cannot be made ready.
func (m *Manager) Setup(ctx context.Context) error {
	if err := m.datasets.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("dataset indexes: %w", err)
	}
	if err := m.records.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("record indexes: %w", err)
	}
	if err := m.lifecycle.Ensure(ctx, m.datasets.SearchIndexes(), vectorindex.DatasetIndex(m.search)); err != nil {
		return fmt.Errorf("dataset vector index: %w", err)
	}
	if err := m.lifecycle.Ensure(ctx, m.records.SearchIndexes(), vectorindex.RecordIndex(m.search)); err != nil {
		return fmt.Errorf("record vector index: %w", err)
	}
	m.logger.Info("Document store ready",
		zap.String("dataset_index", m.search.DatasetIndexName),
		zap.String("record_index", m.search.RecordIndexName),
	)
	return nil
}

func (m *Manager) log(ctx context.Context, userID string, fields ...zap.Field) *zap.Logger {
	return logger.FromContext(ctx, m.logger).With(append([]zap.Field{zap.String("user_id", userID)}, fields...)...)
}

func requireTenant(userID string) error {
	if userID == "" {
		return domain.ErrMissingTenant
	}
	return nil
}

func (m *Manager) loadDataset(ctx context.Context, userID, datasetID string) (domds.Dataset, error) {
	if err := requireTenant(userID); err != nil {
		return domds.Dataset{}, err
	}
	d, err := m.datasets.Get(ctx, userID, datasetID)
	if err != nil {
		return domds.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return d, nil
}

func (m *Manager) requireDataset(ctx context.Context, userID, datasetID string) error {
	if err := requireTenant(userID); err != nil {
		return err
	}
	ok, err := m.datasets.Exists(ctx, userID, datasetID)
	if err != nil {
		return fmt.Errorf("check dataset: %w", err)
	}
	if !ok {
		return domain.ErrDatasetNotFound
	}
	return nil
}

func (m *Manager) embedText(ctx context.Context, text string) ([]float32, error) {
	res, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return res.Embedding, nil
}

func (m *Manager) embedDataset(ctx context.Context, d domds.Dataset) (domds.Dataset, error) {
	vec, err := m.embedText(ctx, vectorindex.DatasetText(d))
	if err != nil {
		return domds.Dataset{}, err
	}
	return d.WithEmbedding(vec), nil
}

// embedRecords embeds every record under s, in one batch call when the embedder supports it.
func (m *Manager) embedRecords(ctx context.Context, recs []domrec.Record, s schema.Schema) ([]domrec.Record, error) {
	if len(recs) == 0 {
		return recs, nil
	}
	texts := make([]string, len(recs))
	for i, rec := range recs {
		texts[i] = vectorindex.RecordText(rec.Data(), s)
	}
	vecs, err := domain.EmbedAll(ctx, m.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("embed records: %w", err)
	}
	out := make([]domrec.Record, len(recs))
	for i, rec := range recs {
		out[i] = rec.WithEmbedding(vecs[i])
	}
	return out, nil
}
