// internal/infrastructure/database/redis/connection.go
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vaarahi/storefront/internal/config"
)

const connectAttempts = 3

// Client owns the pooled connection used for cart storage and shared rate limits
type Client struct {
	rdb *redis.Client
}

// Options builds client options. REDIS_URL wins over the host/port fields.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second
	return opts, nil
}

// NewConnection dials Redis and pings it, retrying briefly while the server
// comes up.
func NewConnection(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	var pingErr error
retry:
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr = rdb.Ping(pingCtx).Err()
		cancel()
		if pingErr == nil || attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			pingErr = ctx.Err()
			break retry
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	if pingErr != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, pingErr)
	}

	log.Printf("✅ Redis connection established (%s, db %d)", opts.Addr, opts.DB)
	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the pool
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings Redis within ctx
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
