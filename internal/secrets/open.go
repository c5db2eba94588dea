package secrets

import (
	"fmt"
	"time"

	"supamon-backend/internal/config"
	"supamon-backend/internal/database"
)

// Open builds the Store selected by cfg.StoreDriver.
func Open(cfg *config.Config) (*Store, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(backend, cfg.StoreEncryptionKey)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}

func openBackend(cfg *config.Config) (Backend, error) {
	switch cfg.StoreDriver {
	case "sqlite", "postgres":
		if err := database.InitDatabase(cfg); err != nil {
			return nil, err
		}
		return NewGormBackend(database.DB)
	case "redis":
		return NewRedisBackend(RedisConfig{
			Addr:             cfg.RedisAddr,
			Password:         cfg.RedisPassword,
			DB:               cfg.RedisDB,
			OperationTimeout: 1500 * time.Millisecond,
		})
	case "badger":
		return NewBadgerBackend(BadgerConfig{Path: cfg.BadgerPath, SyncWrites: true})
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
}
