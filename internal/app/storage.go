// internal/app/storage.go
package app

import (
	"context"
	"fmt"
	"log"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vaarahi/storefront/internal/config"
	"github.com/vaarahi/storefront/internal/infrastructure/database/postgres"
	"github.com/vaarahi/storefront/internal/infrastructure/database/redis"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
)

// Storage is the opened key-value backend plus what the server needs to
// report on it.
type Storage struct {
	KV     kvstore.Store
	Keys   kvstore.Keyspace
	Checks map[string]func(ctx context.Context) error

	redis   *redis.Client
	closers []func() error
}

// OpenStorage connects the backend selected by STORAGE_DRIVER. Redis, when
// configured, is connected for the postgres driver too so rate limits are
// shared across instances; a failed optional connection only logs.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	s := &Storage{
		Keys:   kvstore.NewKeyspace(cfg.Storage.KeyPrefix),
		Checks: make(map[string]func(ctx context.Context) error),
	}

	switch cfg.Storage.Driver {
	case "memory":
		s.KV = kvstore.NewMemory()
		log.Println("⚠️ Using in-memory storage; carts and orders are lost on restart")

	case "redis":
		client, err := redis.NewConnection(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.useRedis(client)
		s.KV = kvstore.NewRedis(client.GetClient(), cfg.Storage.TTL)

	case "postgres":
		db, err := postgres.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Checks["database"] = db.Health

		migration := postgres.NewMigration(db.GetDB())
		if err := migration.RunAutoMigrations(); err != nil {
			s.Close()
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		if err := migration.CreateIndexes(); err != nil {
			log.Printf("Warning: Index creation failed: %v", err)
		}
		s.KV = kvstore.NewGorm(db.GetDB())

		if cfg.Redis.URL != "" || cfg.Redis.Host != "" {
			if client, err := redis.NewConnection(ctx, cfg.Redis); err != nil {
				log.Printf("Warning: Redis unavailable, rate limiting stays in process: %v", err)
			} else {
				s.useRedis(client)
			}
		}

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	return s, nil
}

func (s *Storage) useRedis(client *redis.Client) {
	s.redis = client
	s.closers = append(s.closers, client.Close)
	s.Checks["redis"] = client.Health
}

// RedisClient returns the connected client, or nil without Redis.
func (s *Storage) RedisClient() *goredis.Client {
	if s.redis == nil {
		return nil
	}
	return s.redis.GetClient()
}

// Close releases every connection in reverse order.
func (s *Storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Printf("Warning: failed to close storage connection: %v", err)
		}
	}
	s.closers = nil
}
