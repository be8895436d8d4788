package health

import "context"

// Pinger reports whether a backing store answers: the MongoDB deployment, or the
// Redis embedding cache when one is configured.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker is the embedding provider every dataset and record write depends on.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
