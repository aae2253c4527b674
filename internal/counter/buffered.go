package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ads:counter:"

// Buffered collects events in Redis with INCR. A Flusher moves the totals
// into the store.
type Buffered struct {
	client *redis.Client
}

func NewBuffered(client *redis.Client) *Buffered {
	return &Buffered{client: client}
}

func counterKey(kind Kind, id int64) string {
	return keyPrefix + string(kind) + ":" + strconv.FormatInt(id, 10)
}

func parseKey(key string) (Kind, int64, error) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", 0, fmt.Errorf("not a counter key: %q", key)
	}
	kind, rawID, ok := strings.Cut(rest, ":")
	if !ok || (Kind(kind) != KindView && Kind(kind) != KindClick) {
		return "", 0, fmt.Errorf("malformed counter key: %q", key)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed counter key %q: %w", key, err)
	}
	return Kind(kind), id, nil
}

func (b *Buffered) Record(ctx context.Context, kind Kind, id int64) error {
	if err := b.client.Incr(ctx, counterKey(kind, id)).Err(); err != nil {
		return fmt.Errorf("failed to buffer %s: %w", kind, err)
	}
	return nil
}

// Pending returns the buffered total for one counter without consuming it.
func (b *Buffered) Pending(ctx context.Context, kind Kind, id int64) (int64, error) {
	n, err := b.client.Get(ctx, counterKey(kind, id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (b *Buffered) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan counter keys: %w", err)
	}
	return keys, nil
}

// take atomically reads and clears a buffered total.
func (b *Buffered) take(ctx context.Context, key string) (int64, error) {
	n, err := b.client.GetDel(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to take %s: %w", key, err)
	}
	return n, nil
}

func (b *Buffered) restore(ctx context.Context, key string, delta int64) error {
	return b.client.IncrBy(ctx, key, delta).Err()
}

var _ Accumulator = (*Buffered)(nil)
