package ads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memorySource struct {
	ads []Ad
	err error
}

func (m *memorySource) ListByPosition(_ context.Context, pos Position) ([]Ad, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Ad
	for _, a := range m.ads {
		if a.Position == pos && a.Status == StatusActive && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memorySource) ListEnabled(_ context.Context) ([]Ad, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Ad
	for _, a := range m.ads {
		if a.Status == StatusActive && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func enabledAd(id int64, pos Position, created time.Time) Ad {
	return Ad{ID: id, Position: pos, Status: StatusActive, IsActive: true, CreatedAt: created}
}

func ids(list []Ad) []int64 {
	out := make([]int64, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestSelectForPositionNewestFirst(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &memorySource{ads: []Ad{
		enabledAd(1, PositionTop, t0.Add(3*time.Hour)), // A
		enabledAd(2, PositionTop, t0.Add(1*time.Hour)), // B
		enabledAd(3, PositionTop, t0.Add(2*time.Hour)), // C
		enabledAd(4, PositionSidebar, t0.Add(5*time.Hour)),
	}}

	got, err := NewSelector(src).SelectForPosition(context.Background(), PositionTop, t0.Add(10*time.Hour))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3, 2}, ids(got))
	for _, a := range got {
		require.Equal(t, PositionTop, a.Position)
	}
}

func TestSelectForPositionTieBreaksOnID(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &memorySource{ads: []Ad{
		enabledAd(7, PositionTop, t0),
		enabledAd(9, PositionTop, t0),
		enabledAd(8, PositionTop, t0),
	}}

	got, err := NewSelector(src).SelectForPosition(context.Background(), PositionTop, t0)
	require.NoError(t, err)
	require.Equal(t, []int64{9, 8, 7}, ids(got))
}

func TestSelectForPositionAppliesWindows(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	future := enabledAd(1, PositionSidebar, now.Add(-time.Hour))
	future.StartDate = ptr(now.Add(time.Hour))
	expired := enabledAd(2, PositionSidebar, now.Add(-time.Hour))
	expired.EndDate = ptr(now.Add(-time.Minute))
	live := enabledAd(3, PositionSidebar, now.Add(-time.Hour))
	off := enabledAd(4, PositionSidebar, now)
	off.Status = StatusInactive

	src := &memorySource{ads: []Ad{future, expired, live, off}}
	got, err := NewSelector(src).SelectForPosition(context.Background(), "sidebar", now)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, ids(got))
}

func TestSelectForPositionPremiumAlias(t *testing.T) {
	now := time.Now().UTC()
	src := &memorySource{ads: []Ad{enabledAd(5, PositionBottom, now)}}

	got, err := NewSelector(src).SelectForPosition(context.Background(), "premium", now)
	require.NoError(t, err)
	require.Equal(t, []int64{5}, ids(got))
}

func TestSelectForPositionUnknown(t *testing.T) {
	_, err := NewSelector(&memorySource{}).SelectForPosition(context.Background(), "header", time.Now())
	require.True(t, IsValidation(err))
}

func TestSelectForPositionEmpty(t *testing.T) {
	got, err := NewSelector(&memorySource{}).SelectForPosition(context.Background(), PositionTop, time.Now())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSelectAllPropagatesStoreErrors(t *testing.T) {
	src := &memorySource{err: ErrStoreUnavailable}
	_, err := NewSelector(src).SelectAll(context.Background(), time.Now())
	require.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestSelectAllAcrossPositions(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &memorySource{ads: []Ad{
		enabledAd(1, PositionTop, t0),
		enabledAd(2, PositionSidebar, t0.Add(time.Hour)),
		enabledAd(3, PositionBottom, t0.Add(2*time.Hour)),
	}}

	got, err := NewSelector(src).SelectAll(context.Background(), t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2, 1}, ids(got))
}
