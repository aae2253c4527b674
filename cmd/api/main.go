package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"comichub/internal/assets"
	"comichub/internal/auth"
	"comichub/internal/cache"
	"comichub/internal/counter"
	"comichub/internal/db"
	"comichub/internal/domain/ads"
	"comichub/internal/filter"
	"comichub/internal/metrics"
	"comichub/internal/ratelimiter"
	"comichub/internal/rotation"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		fmt.Printf("Invalid %s, defaulting to %d\n", key, fallback)
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		fmt.Printf("Invalid %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		fmt.Printf("Invalid %s, defaulting to %s\n", key, fallback)
		return fallback
	}
	return parsed
}

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	defaultRequests := 200
	defaultEnabled := false

	requestsPerTimeFrame := getEnvInt("RATELIMITER_REQUESTS_COUNT", defaultRequests)

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

var version = "1.0.0"

//	@title			Comichub Ads API
//	@description	Ad serving and rotation for the comichub reader.

//	@contact.name	API Support
//	@contact.url	http://www.swagger.io/support
//	@contact.email	support@swagger.io

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description
//	@securityDefinitions.basic	BasicAuth

func main() {
	// A missing .env is fine in containers; the environment is used as is.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg := config{
		addr:   getEnv("ADDR", ":8080"),
		env:    getEnv("ENV", "development"),
		apiURL: getEnv("EXTERNAL_URL", "localhost:8080"),
		db: dbConfig{
			driver:       getEnv("DB_DRIVER", "sqlite"),
			addr:         os.Getenv("DB_ADDR"),
			maxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 30),
			maxIdleTime:  getEnv("DB_MAX_IDLE_TIME", "15m"),
			sqlitePath:   getEnv("SQLITE_PATH", "data/ads.db"),
		},
		redis: redisConfig{
			addr:     os.Getenv("REDIS_ADDR"),
			password: os.Getenv("REDIS_PASSWORD"),
			db:       getEnvInt("REDIS_DB", 0),
			cacheTTL: getEnvDuration("CANDIDATE_CACHE_TTL", cache.DefaultTTL),
		},
		counter: counterConfig{
			flushInterval: getEnvDuration("COUNTER_FLUSH_INTERVAL", 10*time.Second),
		},
		rotation: rotationConfig{
			interval: getEnvDuration("ROTATION_INTERVAL", rotation.DefaultInterval),
			refresh:  getEnvDuration("ROTATION_REFRESH", 30*time.Second),
		},
		assets: assetConfig{
			backend:       getEnv("ASSET_BACKEND", "local"),
			dir:           getEnv("ASSET_DIR", "uploads/banners"),
			urlPrefix:     getEnv("ASSET_URL_PREFIX", "/banners"),
			cloudinaryURL: os.Getenv("CLOUDINARY_URL"),
			folder:        getEnv("CLOUDINARY_FOLDER", "comichub/ads"),
		},
		bloom: bloomConfig{
			capacity: uint(getEnvInt("BLOOM_CAPACITY", 100_000)),
			fpRate:   getEnvFloat("BLOOM_FP_RATE", 0.01),
			reseed:   getEnvDuration("BLOOM_RESEED_INTERVAL", time.Minute),
		},
		auth: authConfig{
			basic: basicConfig{
				user:     os.Getenv("AUTH_BASIC_USER"),
				passHash: os.Getenv("AUTH_BASIC_PASS_HASH"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				iss:    getEnv("AUTH_TOKEN_ISS", "comichub"),
				aud:    getEnv("AUTH_TOKEN_AUD", "comichub"),
			},
		},
		rateLimiter: LoadRateLimiterConfig(),
	}

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	ctx := context.Background()

	// Database
	var (
		store ads.Store
		ping  func(context.Context) error
		stats func() any
	)
	switch cfg.db.driver {
	case "postgres":
		var pool *pgxpool.Pool
		pool, err = db.New(ctx, cfg.db.addr, int32(cfg.db.maxOpenConns), cfg.db.maxIdleTime)
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()
		store = ads.NewRepository(pool)
		ping = pool.Ping
		stats = func() any { return pool.Stat().TotalConns() }
	case "sqlite":
		var sqlDB *sql.DB
		sqlDB, err = db.NewSQLite(ctx, cfg.db.sqlitePath)
		if err != nil {
			logger.Fatal(err)
		}
		defer sqlDB.Close()
		store = ads.NewSQLiteRepository(sqlDB)
		ping = sqlDB.PingContext
		stats = func() any { return sqlDB.Stats() }
	default:
		logger.Fatalf("unknown DB_DRIVER %q, expected postgres or sqlite", cfg.db.driver)
	}
	logger.Infow("database connection established", "driver", cfg.db.driver)

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal(err)
	}

	m := metrics.New()

	// Redis is optional: without it candidates are read straight from the
	// store and counters are written through.
	var (
		source      ads.CandidateSource = store
		invalidator candidateInvalidator
		acc         counter.Accumulator = counter.NewDirect(store)
		flusher     *counter.Flusher
	)
	if cfg.redis.addr != "" {
		var rdb *redis.Client
		rdb, err = cache.NewRedisClient(ctx, cfg.redis.addr, cfg.redis.password, cfg.redis.db)
		if err != nil {
			logger.Fatal(err)
		}
		defer rdb.Close()

		candidates := cache.NewCandidates(rdb, store, cfg.redis.cacheTTL, logger)
		source, invalidator = candidates, candidates

		buf := counter.NewBuffered(rdb)
		acc = buf
		flusher = counter.NewFlusher(buf, store, cfg.counter.flushInterval, logger, m)
		flusher.Start()
		defer flusher.Stop()
		logger.Infow("redis connected", "addr", cfg.redis.addr)
	}

	known := filter.NewKnownAds(cfg.bloom.capacity, cfg.bloom.fpRate)
	recorder := counter.NewRecorder(acc, store, known, m, logger)
	if err := recorder.Seed(ctx, store.ListIDs); err != nil {
		logger.Fatal(err)
	}
	seedCtx, stopSeeding := context.WithCancel(ctx)
	defer stopSeeding()
	go recorder.KeepSeeded(seedCtx, cfg.bloom.reseed, store.ListIDs)

	// Banner storage
	var assetStore assets.Store
	switch cfg.assets.backend {
	case "cloudinary":
		assetStore, err = assets.NewCloudinary(cfg.assets.cloudinaryURL, cfg.assets.folder)
	default:
		assetStore, err = assets.NewLocal(cfg.assets.dir, cfg.assets.urlPrefix)
	}
	if err != nil {
		logger.Fatal(err)
	}

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)
	defer rateLimiter.Close()

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.aud,
		cfg.auth.token.iss,
	)

	app := &application{
		config:        cfg,
		logger:        logger,
		store:         store,
		selector:      ads.NewSelector(source),
		candidates:    invalidator,
		recorder:      recorder,
		assets:        assetStore,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		metrics:       m,
		ping:          ping,
		stop:          make(chan struct{}),
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(stats))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	if err := app.run(mux); err != nil {
		logger.Errorw("server stopped with error", "error", err)
	}
}
