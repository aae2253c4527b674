package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"comichub/internal/assets"
	"comichub/internal/auth"
	"comichub/internal/counter"
	"comichub/internal/db"
	"comichub/internal/domain/ads"
	"comichub/internal/filter"
	"comichub/internal/metrics"
	"comichub/internal/ratelimiter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testApp struct {
	*application
	conn    *sql.DB
	handler http.Handler
	token   string
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	conn, err := db.NewSQLite(ctx, filepath.Join(t.TempDir(), "ads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := ads.NewSQLiteRepository(conn)
	require.NoError(t, store.Migrate(ctx))

	local, err := assets.NewLocal(t.TempDir(), "/banners")
	require.NoError(t, err)

	passHash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	logger := zap.NewNop().Sugar()
	m := metrics.New()
	limiter := ratelimiter.NewFixedWindowLimiter(2, time.Minute)
	t.Cleanup(limiter.Close)

	authenticator := auth.NewJWTAuthenticator("test-secret", "comichub", "comichub")
	token, err := authenticator.GenerateToken("admin-1", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	app := &application{
		config: config{
			env: "test",
			auth: authConfig{
				basic: basicConfig{user: "ops", passHash: string(passHash)},
			},
			rotation: rotationConfig{interval: time.Hour, refresh: time.Hour},
			rateLimiter: ratelimiter.Config{
				RequestsPerTimeFrame: 2,
				TimeFrame:            time.Minute,
			},
		},
		logger:        logger,
		store:         store,
		selector:      ads.NewSelector(store),
		recorder:      counter.NewRecorder(counter.NewDirect(store), store, filter.NewKnownAds(1000, 0.01), m, logger),
		assets:        local,
		authenticator: authenticator,
		rateLimiter:   limiter,
		metrics:       m,
		ping:          conn.PingContext,
		clock:         func() time.Time { return testNow },
		stop:          make(chan struct{}),
	}

	return &testApp{application: app, conn: conn, handler: app.mount(), token: token}
}

func (ta *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testApp) admin(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+ta.token)
	return req
}

// seed inserts an ad directly, bypassing the upload path.
func (ta *testApp) seed(t *testing.T, title string, pos ads.Position, created time.Time) *ads.Ad {
	t.Helper()
	ad, err := ta.store.Create(context.Background(), ads.CreateAdRequest{
		Title:           title,
		BodyText:        title + " body",
		DestinationLink: "https://example.com/" + title,
		BannerImageRef:  "/banners/" + title + ".png",
		Position:        pos,
		IsActive:        true,
		CreatedAt:       created,
	})
	require.NoError(t, err)
	ta.recorder.Known(ad.ID)
	return ad
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, banner []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if banner != nil {
		fw, err := mw.CreateFormFile(bannerField, "banner.png")
		require.NoError(t, err)
		_, err = fw.Write(banner)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func TestAdLifecycle(t *testing.T) {
	ta := newTestApplication(t)

	create := multipartRequest(t, http.MethodPost, "/v1/admin/ads", map[string]string{
		"title":            "Volume 3",
		"body_text":        "Out now",
		"destination_link": "https://comichub.example/v3",
		"position":         "top",
	}, pngBytes(t))
	rr := ta.do(t, ta.admin(create))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created ads.Ad
	decodeData(t, rr, &created)
	assert.Equal(t, ads.PositionTop, created.Position)
	assert.Equal(t, ads.StatusActive, created.Status)
	assert.True(t, created.IsActive)
	assert.True(t, strings.HasPrefix(created.BannerImageRef, "/banners/banner-"))

	rr = ta.do(t, httptest.NewRequest(http.MethodGet, created.BannerImageRef, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	listTop := func() []ads.PublicAd {
		rr := ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/ads/position/top", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var list []ads.PublicAd
		decodeData(t, rr, &list)
		return list
	}

	list := listTop()
	require.Len(t, list, 1)
	assert.Equal(t, strconv.FormatInt(created.ID, 10), list[0].ID)

	adPath := "/v1/admin/ads/" + strconv.FormatInt(created.ID, 10)
	rr = ta.do(t, ta.admin(httptest.NewRequest(http.MethodPatch, adPath+"/toggle-status", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	var toggled ads.Ad
	decodeData(t, rr, &toggled)
	assert.Equal(t, ads.StatusInactive, toggled.Status)
	assert.Empty(t, listTop())

	rr = ta.do(t, ta.admin(httptest.NewRequest(http.MethodDelete, adPath, nil)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ta.do(t, ta.admin(httptest.NewRequest(http.MethodGet, adPath, nil)))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	exists, err := ta.assets.Exists(context.Background(), created.BannerImageRef)
	require.NoError(t, err)
	assert.False(t, exists)
	rr = ta.do(t, httptest.NewRequest(http.MethodGet, created.BannerImageRef, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateAdValidation(t *testing.T) {
	ta := newTestApplication(t)
	valid := map[string]string{
		"title":            "Promo",
		"body_text":        "Read it",
		"destination_link": "https://comichub.example",
		"position":         "sidebar",
	}
	with := func(k, v string) map[string]string {
		out := make(map[string]string, len(valid)+1)
		for key, val := range valid {
			out[key] = val
		}
		out[k] = v
		return out
	}

	tests := []struct {
		name   string
		fields map[string]string
		banner []byte
	}{
		{"missing banner", valid, nil},
		{"bad scheme", with("destination_link", "javascript:alert(1)"), pngBytes(t)},
		{"unknown position", with("position", "header"), pngBytes(t)},
		{"window reversed", with("end_date", "2025-01-01"), pngBytes(t)},
		{"not an image", valid, []byte("plain text, not a picture")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := tt.fields
			if tt.name == "window reversed" {
				fields["start_date"] = "2025-02-01"
			}
			rr := ta.do(t, ta.admin(multipartRequest(t, http.MethodPost, "/v1/admin/ads", fields, tt.banner)))
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}

	rr := ta.do(t, ta.admin(httptest.NewRequest(http.MethodGet, "/v1/admin/ads", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Ads []ads.Ad `json:"ads"`
	}
	decodeData(t, rr, &page)
	assert.Empty(t, page.Ads)
}

func TestUpdateAd(t *testing.T) {
	ta := newTestApplication(t)
	ad := ta.seed(t, "alpha", ads.PositionTop, testNow.Add(-time.Hour))
	adPath := "/v1/admin/ads/" + strconv.FormatInt(ad.ID, 10)

	req := httptest.NewRequest(http.MethodPatch, adPath, strings.NewReader(`{"title":"beta","position":"premium"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := ta.do(t, ta.admin(req))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var updated ads.Ad
	decodeData(t, rr, &updated)
	assert.Equal(t, "beta", updated.Title)
	assert.Equal(t, ads.PositionBottom, updated.Position)
	assert.Equal(t, ad.BodyText, updated.BodyText)

	req = httptest.NewRequest(http.MethodPatch, adPath, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, ta.do(t, ta.admin(req)).Code)

	req = httptest.NewRequest(http.MethodPut, "/v1/admin/ads/999", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusNotFound, ta.do(t, ta.admin(req)).Code)
}

func TestUpdateAdReplacesBanner(t *testing.T) {
	ta := newTestApplication(t)

	rr := ta.do(t, ta.admin(multipartRequest(t, http.MethodPost, "/v1/admin/ads", map[string]string{
		"title":            "Promo",
		"body_text":        "Read it",
		"destination_link": "https://comichub.example",
		"position":         "bottom",
	}, pngBytes(t))))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created ads.Ad
	decodeData(t, rr, &created)

	adPath := "/v1/admin/ads/" + strconv.FormatInt(created.ID, 10)
	rr = ta.do(t, ta.admin(multipartRequest(t, http.MethodPut, adPath, map[string]string{"title": "Promo 2"}, pngBytes(t))))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated ads.Ad
	decodeData(t, rr, &updated)

	assert.NotEqual(t, created.BannerImageRef, updated.BannerImageRef)
	oldExists, err := ta.assets.Exists(context.Background(), created.BannerImageRef)
	require.NoError(t, err)
	assert.False(t, oldExists)
	newExists, err := ta.assets.Exists(context.Background(), updated.BannerImageRef)
	require.NoError(t, err)
	assert.True(t, newExists)
}

func TestPublicSelection(t *testing.T) {
	ta := newTestApplication(t)
	a := ta.seed(t, "a", ads.PositionTop, testNow.Add(-3*time.Hour))
	b := ta.seed(t, "b", ads.PositionTop, testNow.Add(-1*time.Hour))
	ta.seed(t, "side", ads.PositionSidebar, testNow.Add(-2*time.Hour))

	past := testNow.Add(-24 * time.Hour)
	_, err := ta.store.Create(context.Background(), ads.CreateAdRequest{
		Title: "expired", BodyText: "gone", DestinationLink: "https://example.com",
		BannerImageRef: "/banners/expired.png", Position: ads.PositionTop, IsActive: true,
		EndDate: &past, CreatedAt: testNow,
	})
	require.NoError(t, err)

	rr := ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/ads/position/top", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var top []ads.PublicAd
	decodeData(t, rr, &top)
	require.Len(t, top, 2)
	assert.Equal(t, strconv.FormatInt(b.ID, 10), top[0].ID)
	assert.Equal(t, strconv.FormatInt(a.ID, 10), top[1].ID)

	rr = ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/ads/active", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var all []ads.PublicAd
	decodeData(t, rr, &all)
	assert.Len(t, all, 3)

	rr = ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/ads/position/header", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSelectionStoreUnavailable(t *testing.T) {
	ta := newTestApplication(t)
	require.NoError(t, ta.conn.Close())

	rr := ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/ads/active", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))
}

func TestCounters(t *testing.T) {
	ta := newTestApplication(t)
	ad := ta.seed(t, "promo", ads.PositionTop, testNow)
	id := strconv.FormatInt(ad.ID, 10)

	rr := ta.do(t, httptest.NewRequest(http.MethodPost, "/v1/ads/"+id+"/view", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ta.do(t, httptest.NewRequest(http.MethodPost, "/v1/ads/"+id+"/click", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var click clickResponse
	decodeData(t, rr, &click)
	assert.Equal(t, ad.DestinationLink, click.DestinationLink)

	rr = ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/ads/"+id+"/go", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, ad.DestinationLink, rr.Header().Get("Location"))

	got, err := ta.store.GetByID(context.Background(), ad.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ViewCount)
	assert.EqualValues(t, 2, got.ClickCount)

	assert.Equal(t, http.StatusNotFound, ta.do(t, httptest.NewRequest(http.MethodPost, "/v1/ads/4242/view", nil)).Code)
	assert.Equal(t, http.StatusNotFound, ta.do(t, httptest.NewRequest(http.MethodPost, "/v1/ads/4242/click", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, ta.do(t, httptest.NewRequest(http.MethodPost, "/v1/ads/abc/view", nil)).Code)
}

func TestAnalytics(t *testing.T) {
	ta := newTestApplication(t)
	ad := ta.seed(t, "promo", ads.PositionTop, testNow)
	require.NoError(t, ta.store.IncrementViews(context.Background(), ad.ID, 10))
	require.NoError(t, ta.store.IncrementClicks(context.Background(), ad.ID, 2))

	rr := ta.do(t, ta.admin(httptest.NewRequest(http.MethodGet, "/v1/admin/ads/analytics", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	var stats ads.Analytics
	decodeData(t, rr, &stats)
	assert.Equal(t, 1, stats.TotalAds)
	assert.EqualValues(t, 10, stats.TotalViews)
	assert.EqualValues(t, 2, stats.TotalClicks)
	require.Len(t, stats.TopPerformingAds, 1)
}

func TestAdminAuth(t *testing.T) {
	ta := newTestApplication(t)

	rr := ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/admin/ads", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	editor, err := ta.authenticator.GenerateToken("editor-1", "editor", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/ads", nil)
	req.Header.Set("Authorization", "Bearer "+editor)
	assert.Equal(t, http.StatusForbidden, ta.do(t, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/ads", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, ta.do(t, req).Code)
}

func TestHealthCheck(t *testing.T) {
	ta := newTestApplication(t)

	rr := ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.SetBasicAuth("ops", "secret")
	rr = ta.do(t, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]string
	decodeData(t, rr, &health)
	assert.Equal(t, "ok", health["store"])

	require.NoError(t, ta.conn.Close())
	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.SetBasicAuth("ops", "secret")
	rr = ta.do(t, req)
	decodeData(t, rr, &health)
	assert.Equal(t, "unavailable", health["store"])
}

func TestRateLimiter(t *testing.T) {
	ta := newTestApplication(t)
	ta.config.rateLimiter.Enabled = true
	handler := ta.mount()
	ad := ta.seed(t, "promo", ads.PositionTop, testNow)
	target := "/v1/ads/" + strconv.FormatInt(ad.ID, 10) + "/view"

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestCountersDuringStoreOutage(t *testing.T) {
	ta := newTestApplication(t)
	ad := ta.seed(t, "promo", ads.PositionTop, testNow)
	id := strconv.FormatInt(ad.ID, 10)
	require.NoError(t, ta.conn.Close())

	rr := ta.do(t, httptest.NewRequest(http.MethodPost, "/v1/ads/"+id+"/click", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var click clickResponse
	decodeData(t, rr, &click)
	assert.Equal(t, "click accepted", click.Message)
	assert.Empty(t, click.DestinationLink)

	rr = ta.do(t, httptest.NewRequest(http.MethodPost, "/v1/ads/"+id+"/view", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ta.do(t, httptest.NewRequest(http.MethodGet, "/v1/ads/"+id+"/go", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"))
}

func TestCreateAdRejectsOversizedBody(t *testing.T) {
	ta := newTestApplication(t)

	banner := append(pngBytes(t), make([]byte, 2*maxAdFormBytes)...)
	rr := ta.do(t, ta.admin(multipartRequest(t, http.MethodPost, "/v1/admin/ads", map[string]string{
		"title":            "Huge",
		"body_text":        "Too big",
		"destination_link": "https://comichub.example",
		"position":         "top",
	}, banner)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ta.do(t, ta.admin(httptest.NewRequest(http.MethodGet, "/v1/admin/ads", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Ads []ads.Ad `json:"ads"`
	}
	decodeData(t, rr, &page)
	assert.Empty(t, page.Ads)
}
