package ads

import (
	"context"
	"slices"
	"time"
)

// CandidateSource supplies enabled ads before activation windows are applied.
// Store satisfies it, as does the Redis candidate cache.
type CandidateSource interface {
	ListByPosition(ctx context.Context, pos Position) ([]Ad, error)
	ListEnabled(ctx context.Context) ([]Ad, error)
}

// Selector returns the ads that may be displayed right now.
type Selector struct {
	src CandidateSource
}

func NewSelector(src CandidateSource) *Selector {
	return &Selector{src: src}
}

// SelectForPosition returns the eligible ads of a slot, newest first.
// An unknown slot is a *ValidationError.
func (s *Selector) SelectForPosition(ctx context.Context, pos Position, now time.Time) ([]Ad, error) {
	p, err := ParsePosition(string(pos))
	if err != nil {
		return nil, err
	}
	candidates, err := s.src.ListByPosition(ctx, p)
	if err != nil {
		return nil, err
	}
	selected := make([]Ad, 0, len(candidates))
	for _, ad := range candidates {
		if ad.Position == p && IsEligible(ad, now) {
			selected = append(selected, ad)
		}
	}
	SortNewestFirst(selected)
	return selected, nil
}

// SelectAll returns every eligible ad regardless of slot, newest first.
func (s *Selector) SelectAll(ctx context.Context, now time.Time) ([]Ad, error) {
	candidates, err := s.src.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	selected := FilterEligible(candidates, now)
	SortNewestFirst(selected)
	return selected, nil
}

// SortNewestFirst orders by creation time descending; ties go to the higher id.
func SortNewestFirst(list []Ad) {
	slices.SortStableFunc(list, func(a, b Ad) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}
