package domain

import (
	"context"
	"testing"
)

func TestEmbeddingUsage_TalliesCalls(t *testing.T) {
	ctx, usage := WithEmbeddingUsage(context.Background())

	EmbeddingUsageFrom(ctx).Record(12)
	EmbeddingUsageFrom(ctx).Record(0) // cache hit

	if usage.Tokens != 12 || usage.Calls != 2 {
		t.Errorf("unexpected tally %+v", *usage)
	}
	if !usage.Embedded() {
		t.Error("expected Embedded after a cache hit")
	}
}

func TestEmbeddingUsage_NilTally(t *testing.T) {
	u := EmbeddingUsageFrom(context.Background())
	if u != nil {
		t.Fatalf("expected no tally, got %+v", u)
	}
	u.Record(5)
	if u.Embedded() {
		t.Error("a nil tally never reports embedding")
	}
}
