package ads

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"comichub/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	conn, err := db.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "ads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := NewSQLiteRepository(conn)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func createAd(t *testing.T, store Store, title string, pos Position, created time.Time) *Ad {
	t.Helper()
	ad, err := store.Create(context.Background(), CreateAdRequest{
		Title:           title,
		BodyText:        title + " body",
		DestinationLink: "https://example.com/" + title,
		BannerImageRef:  "/uploads/banners/" + title + ".png",
		Position:        pos,
		IsActive:        true,
		CreatedAt:       created,
	})
	require.NoError(t, err)
	return ad
}

func TestSQLiteCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	created, err := store.Create(ctx, CreateAdRequest{
		Title:           "Launch",
		BodyText:        "Volume one is out",
		DestinationLink: "tg://resolve?domain=comichub",
		BannerImageRef:  "/uploads/banners/launch.webp",
		Position:        PositionSidebar,
		IsActive:        true,
		StartDate:       &start,
		EndDate:         &end,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, StatusActive, created.Status)
	require.Zero(t, created.ViewCount)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Launch", got.Title)
	require.Equal(t, PositionSidebar, got.Position)
	require.True(t, got.StartDate.Equal(start))
	require.True(t, got.EndDate.Equal(end))
}

func TestSQLiteGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetByID(context.Background(), 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCreateRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create(context.Background(), CreateAdRequest{
		Title:           "x",
		BodyText:        "y",
		DestinationLink: "not a url",
		BannerImageRef:  "/b.png",
		Position:        PositionTop,
	})
	require.True(t, IsValidation(err))
}

func TestSQLiteListByPositionOrdering(t *testing.T) {
	store := newTestStore(t)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a := createAd(t, store, "a", PositionTop, t0.Add(3*time.Hour))
	b := createAd(t, store, "b", PositionTop, t0.Add(1*time.Hour))
	c := createAd(t, store, "c", PositionTop, t0.Add(2*time.Hour))
	createAd(t, store, "d", PositionSidebar, t0.Add(4*time.Hour))

	got, err := store.ListByPosition(context.Background(), PositionTop)
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, c.ID, b.ID}, ids(got))
}

func TestSQLiteUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ad := createAd(t, store, "promo", PositionTop, time.Now().UTC())

	title := "Promo v2"
	pos := PositionBottom
	updated, err := store.Update(ctx, ad.ID, UpdateAdRequest{Title: &title, Position: &pos})
	require.NoError(t, err)
	require.Equal(t, "Promo v2", updated.Title)
	require.Equal(t, PositionBottom, updated.Position)
	require.Equal(t, ad.DestinationLink, updated.DestinationLink)

	end := time.Now().UTC().Add(-48 * time.Hour)
	start := time.Now().UTC()
	_, err = store.Update(ctx, ad.ID, UpdateAdRequest{StartDate: &start})
	require.NoError(t, err)
	_, err = store.Update(ctx, ad.ID, UpdateAdRequest{EndDate: &end})
	require.True(t, IsValidation(err), "end before stored start must be rejected")

	updated, err = store.Update(ctx, ad.ID, UpdateAdRequest{ClearStartDate: true})
	require.NoError(t, err)
	require.Nil(t, updated.StartDate)

	_, err = store.Update(ctx, 999, UpdateAdRequest{Title: &title})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteToggleStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ad := createAd(t, store, "toggle", PositionTop, time.Now().UTC())

	toggled, err := store.ToggleStatus(ctx, ad.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInactive, toggled.Status)

	list, err := store.ListByPosition(ctx, PositionTop)
	require.NoError(t, err)
	require.Empty(t, list)

	toggled, err = store.ToggleStatus(ctx, ad.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, toggled.Status)

	_, err = store.ToggleStatus(ctx, 12345)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ad := createAd(t, store, "gone", PositionTop, time.Now().UTC())

	deleted, err := store.Delete(ctx, ad.ID)
	require.NoError(t, err)
	require.Equal(t, ad.BannerImageRef, deleted.BannerImageRef)

	_, err = store.GetByID(ctx, ad.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Delete(ctx, ad.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteConcurrentIncrements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ad := createAd(t, store, "busy", PositionTop, time.Now().UTC())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementClicks(ctx, ad.ID, 1))
			assert.NoError(t, store.IncrementViews(ctx, ad.ID, 2))
		}()
	}
	wg.Wait()

	got, err := store.GetByID(ctx, ad.ID)
	require.NoError(t, err)
	require.EqualValues(t, n, got.ClickCount)
	require.EqualValues(t, 2*n, got.ViewCount)

	require.ErrorIs(t, store.IncrementViews(ctx, 999, 1), ErrNotFound)
	require.NoError(t, store.IncrementViews(ctx, 999, 0))
}

func TestSQLiteListAndAnalytics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a := createAd(t, store, "a", PositionTop, t0)
	b := createAd(t, store, "b", PositionSidebar, t0.Add(time.Hour))
	createAd(t, store, "c", PositionSidebar, t0.Add(2*time.Hour))

	require.NoError(t, store.IncrementViews(ctx, a.ID, 100))
	require.NoError(t, store.IncrementClicks(ctx, a.ID, 5))
	require.NoError(t, store.IncrementViews(ctx, b.ID, 10))
	require.NoError(t, store.IncrementClicks(ctx, b.ID, 5))
	_, err := store.ToggleStatus(ctx, b.ID)
	require.NoError(t, err)

	page, total, err := store.List(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, page, 2)

	sidebar := PositionSidebar
	page, total, err = store.List(ctx, ListFilter{Limit: 10, Position: &sidebar})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, page, 2)

	stats, err := store.Analytics(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalAds)
	require.Equal(t, 2, stats.EnabledAds)
	require.EqualValues(t, 110, stats.TotalViews)
	require.EqualValues(t, 10, stats.TotalClicks)
	require.InDelta(t, 9.09, stats.AverageCTR, 0.01)
	require.Equal(t, b.ID, stats.TopPerformingAds[0].ID)

	enabled, err := store.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)

	allIDs, err := store.ListIDs(ctx)
	require.NoError(t, err)
	require.Len(t, allIDs, 3)
}

func TestSQLiteClosedIsUnavailable(t *testing.T) {
	conn, err := db.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "ads.db"))
	require.NoError(t, err)
	store := NewSQLiteRepository(conn)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, conn.Close())

	_, err = store.ListByPosition(context.Background(), PositionTop)
	require.True(t, errors.Is(err, ErrStoreUnavailable))
}
