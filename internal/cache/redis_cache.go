package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"

	"gooeytea/backend/internal/domain"
)

const variantKeyPrefix = "gooeytea:variant:"

var ErrLockNotObtained = errors.New("lock not obtained")

type RedisVariantCache struct {
	client *redis.Client
}

func NewRedisVariantCache(addr string, password string, db int) *RedisVariantCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisVariantCache{client: client}
}

func (c *RedisVariantCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisVariantCache) Close() error {
	return c.client.Close()
}

// Locker returns a distributed lock backed by the same Redis connection.
func (c *RedisVariantCache) Locker() *RedisLocker {
	return &RedisLocker{client: redislock.New(c.client)}
}

func (c *RedisVariantCache) Get(ctx context.Context, signature string) (*domain.DrinkVariant, bool, error) {
	val, err := c.client.Get(ctx, variantKeyPrefix+signature).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var variant domain.DrinkVariant
	if err := json.Unmarshal([]byte(val), &variant); err != nil {
		return nil, false, err
	}
	return &variant, true, nil
}

func (c *RedisVariantCache) Set(ctx context.Context, signature string, value *domain.DrinkVariant, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, variantKeyPrefix+signature, payload, ttl).Err()
}

type RedisLocker struct {
	client *redislock.Client
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, "gooeytea:lock:"+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(25*time.Millisecond), 20),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// A fresh context keeps release working after ctx is cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}
