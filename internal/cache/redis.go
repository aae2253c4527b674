package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"comichub/internal/domain/ads"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// CandidatePrefix is the prefix for cached candidate lists in Redis
	CandidatePrefix = "ads:candidates:"
	// DefaultTTL bounds how stale a candidate list may get without an invalidation
	DefaultTTL = 30 * time.Second

	allKey = CandidatePrefix + "all"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Candidates is a read-through cache of enabled ads in front of the store.
// Redis failures fall through to the store; they never fail a request.
type Candidates struct {
	client *redis.Client
	next   ads.CandidateSource
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewCandidates(client *redis.Client, next ads.CandidateSource, ttl time.Duration, logger *zap.SugaredLogger) *Candidates {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Candidates{client: client, next: next, ttl: ttl, logger: logger}
}

func positionKey(pos ads.Position) string {
	return CandidatePrefix + string(pos)
}

func (c *Candidates) ListByPosition(ctx context.Context, pos ads.Position) ([]ads.Ad, error) {
	return c.load(ctx, positionKey(pos), func() ([]ads.Ad, error) {
		return c.next.ListByPosition(ctx, pos)
	})
}

func (c *Candidates) ListEnabled(ctx context.Context) ([]ads.Ad, error) {
	return c.load(ctx, allKey, func() ([]ads.Ad, error) {
		return c.next.ListEnabled(ctx)
	})
}

func (c *Candidates) load(ctx context.Context, key string, fetch func() ([]ads.Ad, error)) ([]ads.Ad, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var list []ads.Ad
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
		c.logger.Warnw("discarding corrupt candidate cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warnw("candidate cache read failed", "key", key, "error", err)
	}

	list, err := fetch()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(list)
	if err != nil {
		return list, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warnw("candidate cache write failed", "key", key, "error", err)
	}
	return list, nil
}

// Invalidate drops every cached list. Admin writes call it so the next
// selection sees the change.
func (c *Candidates) Invalidate(ctx context.Context) error {
	keys := []string{allKey}
	for _, pos := range ads.Positions {
		keys = append(keys, positionKey(pos))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate candidate cache: %w", err)
	}
	return nil
}
