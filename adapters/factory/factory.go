// Package factory opens the storage adapter selected by configuration.
package factory

import (
	"context"
	"fmt"

	"drinktab/adapters/jsonfile"
	mem "drinktab/adapters/memory"
	redisAdapter "drinktab/adapters/redis"
	sqlxAdapter "drinktab/adapters/sqlx"
	"drinktab/config"
	"drinktab/engine"
)

// CloseFunc releases the resources held by a storage adapter.
type CloseFunc func() error

func noopClose() error { return nil }

// Open creates the storage adapter named by cfg.Adapter.
func Open(ctx context.Context, cfg config.StorageConfig) (engine.Storage, CloseFunc, error) {
	switch cfg.Adapter {
	case config.AdapterMemory, "":
		return mem.New(), noopClose, nil
	case config.AdapterFile:
		s, err := jsonfile.New(cfg.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open file storage: %w", err)
		}
		return s, noopClose, nil
	case config.AdapterRedis:
		s, err := redisAdapter.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.AdapterSQL:
		s, err := sqlxAdapter.New(ctx, cfg.SQL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Adapter)
	}
}
