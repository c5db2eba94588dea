package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr             string
	Password         string
	DB               int
	OperationTimeout time.Duration
}

// RedisBackend stores sealed blobs as plain Redis strings without expiry.
type RedisBackend struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisBackend connects and pings Redis.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	b := &RedisBackend{client: rdb, timeout: cfg.OperationTimeout}

	ctx, cancel := b.withTimeout(context.Background())
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return b, nil
}

func (b *RedisBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := b.timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func wrapRedisError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s redis operation timed out: %w", operation, err)
	}
	return fmt.Errorf("%s redis operation failed: %w", operation, err)
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	val, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapRedisError("get", err)
	}
	return val, nil
}

func (b *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return wrapRedisError("set", b.client.Set(ctx, key, value, 0).Err())
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return wrapRedisError("del", b.client.Del(ctx, key).Err())
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return wrapRedisError("ping", b.client.Ping(ctx).Err())
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
