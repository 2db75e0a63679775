package invalidate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every key
	Prefix string
}

// RedisTracker keeps generations in Redis so every process sees them
type RedisTracker struct {
	client *redis.Client
	prefix string
}

// NewRedisTracker connects to Redis and verifies the connection
func NewRedisTracker(cfg RedisConfig) (*RedisTracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewRedisTrackerWithClient(client, cfg.Prefix), nil
}

// NewRedisTrackerWithClient creates a tracker with an existing client
func NewRedisTrackerWithClient(client *redis.Client, prefix string) *RedisTracker {
	return &RedisTracker{client: client, prefix: prefix}
}

func (r *RedisTracker) key(namespace string) string {
	return r.prefix + "gen:" + namespace
}

// Current implements Tracker. A namespace never bumped is at generation 0.
func (r *RedisTracker) Current(ctx context.Context, namespace string) (int64, error) {
	gen, err := r.client.Get(ctx, r.key(namespace)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read generation of %s: %w", namespace, err)
	}
	return gen, nil
}

// Bump implements Tracker
func (r *RedisTracker) Bump(ctx context.Context, namespace string) (int64, error) {
	gen, err := r.client.Incr(ctx, r.key(namespace)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump generation of %s: %w", namespace, err)
	}
	return gen, nil
}

// Close closes the Redis connection
func (r *RedisTracker) Close() error {
	return r.client.Close()
}
