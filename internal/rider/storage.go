package rider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/config"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/migrate"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository/file"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository/memory"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository/postgres"
	redisstore "github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository/redis"
)

// OpenStore opens the local persistence backend selected by cfg.Storage.
// The returned close function releases connections and is never nil.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.KV, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}
	noop := func() {}

	switch cfg.Storage {
	case config.StorageMemory:
		return memory.New(), noop, nil

	case config.StorageFile, "":
		path := cfg.StoragePath
		if path == "" {
			path = file.DefaultPath()
		}
		kv, err := file.New(path, cfg.StorageKey)
		if err != nil {
			return nil, noop, fmt.Errorf("open file store: %w", err)
		}
		log.Debug("using file store", zap.String("path", path), zap.Bool("sealed", cfg.StorageKey != ""))
		return kv, noop, nil

	case config.StorageRedis:
		rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		log.Debug("using redis store", zap.String("prefix", cfg.RedisPrefix))
		return redisstore.New(rdb, cfg.RedisPrefix), func() { _ = rdb.Close() }, nil

	case config.StoragePostgres:
		if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
			return nil, noop, fmt.Errorf("migrate: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		log.Debug("using postgres store", zap.String("namespace", cfg.StorageNS))
		return postgres.NewKVStore(db, cfg.StorageNS), db.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown storage %q", cfg.Storage)
}
