package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisWriter keeps the latest artifact of each name under <key>:<name> so
// readers can fetch the current report without touching disk.
type RedisWriter struct {
	client redisSetter
	key    string
	ttl    time.Duration
}

func NewRedisWriter(addr, password string, db int, key string, ttl time.Duration) *RedisWriter {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisWriter{client: rdb, key: key, ttl: ttl}
}

// NewRedisWriterWith is only for tests to inject a fake client.
func NewRedisWriterWith(c redisSetter, key string, ttl time.Duration) *RedisWriter {
	return &RedisWriter{client: c, key: key, ttl: ttl}
}

func (r *RedisWriter) Write(ctx context.Context, a Artifact) error {
	k := r.key + ":" + a.Name
	if err := r.client.Set(ctx, k, a.Data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

func (r *RedisWriter) Close() error {
	if c, ok := r.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
