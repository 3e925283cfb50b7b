package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores entries in Redis so that several processes share one
// rewrite cache. Keys are "<prefix>:<bin>:<key>".
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for the Redis backend.
type RedisConfig struct {
	Addr     string // Redis address (e.g. "localhost:6379")
	Password string
	DB       int
	Prefix   string // Key namespace (default: "sqlsrv")
}

// NewRedisBackend creates a Redis-backed cache.
func NewRedisBackend(cfg RedisConfig) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisBackendFromClient(client, cfg.Prefix)
}

// NewRedisBackendFromClient creates a Redis backend using an existing client.
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) key(bin, key string) string {
	return r.prefix + ":" + bin + ":" + key
}

func (r *RedisBackend) Get(ctx context.Context, bin, key string) (Payload, error) {
	raw, err := r.client.Get(ctx, r.key(bin, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Payload{}, ErrMiss
	}
	if err != nil {
		return Payload{}, fmt.Errorf("redis get: %w", err)
	}
	var p Payload
	if err := p.UnmarshalBinary(raw); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func (r *RedisBackend) Set(ctx context.Context, bin, key string, p Payload) error {
	raw, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(bin, key), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, bin, key string) error {
	if err := r.client.Del(ctx, r.key(bin, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
