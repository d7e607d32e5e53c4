package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"metrix/internal/query"
)

// RedisAPI is the subset of *redis.Client used by Redis.
type RedisAPI interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Redis keeps artifacts as plain string values {Prefix}{key}.{ext} without expiration.
type Redis struct {
	Client RedisAPI
	Addr   string
	Prefix string
	Ext    string
}

// RedisOptions configure NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Ext      string
}

// NewRedis connects to Redis and pings it.
func NewRedis(ctx context.Context, o RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return &Redis{Client: rdb, Addr: o.Addr, Prefix: o.Prefix, Ext: o.Ext}, nil
}

func (r *Redis) redisKey(key query.Key) string {
	return r.Prefix + objectName(key, r.Ext)
}

// Location returns redis://{addr}/{key}.
func (r *Redis) Location(key query.Key) string {
	return "redis://" + r.Addr + "/" + r.redisKey(key)
}

func (r *Redis) Exists(ctx context.Context, key query.Key) (bool, error) {
	n, err := r.Client.Exists(ctx, r.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", r.redisKey(key), err)
	}
	return n > 0, nil
}

func (r *Redis) Read(ctx context.Context, key query.Key) ([]byte, error) {
	b, err := r.Client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get %s: %w", r.redisKey(key), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.redisKey(key), err)
	}
	return b, nil
}

func (r *Redis) Write(ctx context.Context, key query.Key, data []byte) error {
	if err := r.Client.Set(ctx, r.redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.redisKey(key), err)
	}
	return nil
}

// Close releases the underlying client when it owns a connection pool.
func (r *Redis) Close() error {
	if c, ok := r.Client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}
