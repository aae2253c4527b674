package counter

import (
	"context"
	"fmt"

	"comichub/internal/domain/ads"
)

// Kind is the counter an event increments.
type Kind string

const (
	KindView  Kind = "view"
	KindClick Kind = "click"
)

// Incrementer applies counter deltas atomically. ads.Store satisfies it.
type Incrementer interface {
	IncrementViews(ctx context.Context, id int64, delta int64) error
	IncrementClicks(ctx context.Context, id int64, delta int64) error
}

// Accumulator records single view or click events.
type Accumulator interface {
	Record(ctx context.Context, kind Kind, id int64) error
}

func apply(ctx context.Context, store Incrementer, kind Kind, id, delta int64) error {
	switch kind {
	case KindView:
		return store.IncrementViews(ctx, id, delta)
	case KindClick:
		return store.IncrementClicks(ctx, id, delta)
	}
	return fmt.Errorf("unknown counter kind %q", kind)
}

// Direct writes every event straight to the store.
type Direct struct {
	store Incrementer
}

func NewDirect(store Incrementer) *Direct {
	return &Direct{store: store}
}

func (d *Direct) Record(ctx context.Context, kind Kind, id int64) error {
	return apply(ctx, d.store, kind, id, 1)
}

var _ Accumulator = (*Direct)(nil)
var _ Incrementer = (ads.Store)(nil)
