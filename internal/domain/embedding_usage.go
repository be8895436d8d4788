package domain

import "context"

type usageKey struct{}

// EmbeddingUsage tallies the embedding calls made while serving one docstore API
// request. A dataset write embeds once; record writes and schema migrations may
// embed many records, and the handler reports the sum in X-Embedding-Tokens.
type EmbeddingUsage struct {
	Tokens int
	// Calls counts embedder invocations, including cache hits that cost no tokens.
	Calls int
}

// WithEmbeddingUsage attaches a fresh tally to ctx.
func WithEmbeddingUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// EmbeddingUsageFrom returns the tally attached to ctx, or nil.
func EmbeddingUsageFrom(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(usageKey{}).(*EmbeddingUsage)
	return u
}

// Record adds one embedder call that consumed tokens. It is a no-op on a nil tally.
func (u *EmbeddingUsage) Record(tokens int) {
	if u == nil {
		return
	}
	u.Tokens += tokens
	u.Calls++
}

// Embedded reports whether any embedding happened under this tally.
func (u *EmbeddingUsage) Embedded() bool {
	return u != nil && u.Calls > 0
}
