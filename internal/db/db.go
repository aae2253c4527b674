package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New opens a pgx pool for the ads store and checks it with a ping.
func New(ctx context.Context, addr string, maxConns int32, maxIdleTime string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, fmt.Errorf("parse db addr: %w", err)
	}
	config.MaxConns = maxConns

	idle, err := time.ParseDuration(maxIdleTime)
	if err != nil {
		return nil, fmt.Errorf("parse db max idle time: %w", err)
	}
	config.MaxConnIdleTime = idle

	// Bounds pool start-up including the first ping.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
