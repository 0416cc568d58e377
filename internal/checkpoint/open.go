// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Open builds the store selected by cfg.Backend together with a matching
// Locker. Shared backends lock through the backend itself so separate
// processes exclude each other; the memory backend locks in process.
func Open(ctx context.Context, cfg types.StoreConfig) (Store, Locker, error) {
	switch strings.ToLower(cfg.Backend) {
	case types.StoreMemory:
		return NewMemoryStore(), NewKeyedMutex(), nil

	case "", types.StoreSQLite:
		path := cfg.Path
		if path == "" {
			path = types.DefaultConfig().Store.Path
		}
		s, err := NewSQLiteStore(path, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Locker(), nil

	case types.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, cfg.Prefix, cfg.TTL), NewRedisLocker(client, cfg.Prefix), nil

	case types.StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("postgres store: missing dsn")
		}
		s, err := NewPostgresStore(ctx, cfg.PostgresDSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Locker(), nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
