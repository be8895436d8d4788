package vectorindex

import (
	"context"
	"time"
)

// fakeClock records requested sleeps without blocking.
type fakeClock struct {
	sleeps []time.Duration
	err    error
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return c.err
}

// scriptedBackend returns statuses in order, repeating the last one when exhausted.
type scriptedBackend struct {
	statuses  []string
	statusErr error
	createErr error
	dropErr   error

	polls   int
	created []string
	dropped []string
	defs    []any
}

func (b *scriptedBackend) SearchIndexStatus(_ context.Context, _ string) (string, error) {
	if b.statusErr != nil {
		return "", b.statusErr
	}
	i := b.polls
	if i >= len(b.statuses) {
		i = len(b.statuses) - 1
	}
	b.polls++
	return b.statuses[i], nil
}

func (b *scriptedBackend) CreateSearchIndex(_ context.Context, name string, def any) error {
	b.created = append(b.created, name)
	b.defs = append(b.defs, def)
	return b.createErr
}

func (b *scriptedBackend) DropSearchIndex(_ context.Context, name string) error {
	b.dropped = append(b.dropped, name)
	return b.dropErr
}
