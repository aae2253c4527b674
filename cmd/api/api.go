package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comichub/docs" //this is required to generate swagger docs
	"comichub/internal/assets"
	"comichub/internal/auth"
	"comichub/internal/counter"
	"comichub/internal/domain/ads"
	"comichub/internal/metrics"
	"comichub/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	logger        *zap.SugaredLogger
	store         ads.Store
	selector      *ads.Selector
	candidates    candidateInvalidator
	recorder      *counter.Recorder
	assets        assets.Store
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	metrics       *metrics.Metrics
	ping          func(context.Context) error
	clock         func() time.Time
	// stop is closed on shutdown so long-lived streams can end.
	stop chan struct{}
}

// candidateInvalidator is satisfied by the Redis candidate cache.
type candidateInvalidator interface {
	Invalidate(ctx context.Context) error
}

type config struct {
	addr        string
	env         string
	apiURL      string
	db          dbConfig
	redis       redisConfig
	counter     counterConfig
	rotation    rotationConfig
	assets      assetConfig
	bloom       bloomConfig
	auth        authConfig
	rateLimiter ratelimiter.Config
}

type dbConfig struct {
	driver       string
	addr         string
	maxOpenConns int
	maxIdleTime  string
	sqlitePath   string
}

type redisConfig struct {
	addr     string
	password string
	db       int
	cacheTTL time.Duration
}

type counterConfig struct {
	flushInterval time.Duration
}

type rotationConfig struct {
	interval time.Duration
	refresh  time.Duration
}

type assetConfig struct {
	backend       string
	dir           string
	urlPrefix     string
	cloudinaryURL string
	folder        string
}

type bloomConfig struct {
	capacity uint
	fpRate   float64
	reseed   time.Duration
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type basicConfig struct {
	user     string
	passHash string
}

type tokenConfig struct {
	secret string
	iss    string
	aud    string
}

func (app *application) now() time.Time {
	if app.clock != nil {
		return app.clock()
	}
	return time.Now().UTC()
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if local, ok := app.assets.(*assets.Local); ok {
		r.Handle(local.URLPrefix()+"/*", local.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		// Rotation streams outlive the request timeout below.
		r.Get("/ads/position/{position}/stream", app.streamAdsHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
			r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
			r.With(app.BasicAuthMiddleware()).Handle("/metrics", app.metrics.Handler())

			docsURL := fmt.Sprintf("%s/v1/swagger/doc.json", app.config.apiURL)
			r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

			r.Get("/ads/active", app.getActiveAdsHandler)
			r.Get("/ads/position/{position}", app.getAdsByPositionHandler)
			r.Group(func(r chi.Router) {
				r.Use(app.RateLimiterMiddleware)
				r.Post("/ads/{adID}/view", app.recordViewHandler)
				r.Post("/ads/{adID}/click", app.recordClickHandler)
				r.Get("/ads/{adID}/go", app.redirectAdHandler)
			})

			r.Route("/admin/ads", func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Use(app.RequireAdmin)

				r.Get("/", app.listAdsHandler)
				r.Post("/", app.createAdHandler)
				r.Get("/analytics", app.adsAnalyticsHandler)
				r.Route("/{adID}", func(r chi.Router) {
					r.Get("/", app.getAdHandler)
					r.Put("/", app.updateAdHandler)
					r.Patch("/", app.updateAdHandler)
					r.Delete("/", app.deleteAdHandler)
					r.Patch("/toggle-status", app.toggleAdStatusHandler)
				})
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		close(app.stop)
		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
