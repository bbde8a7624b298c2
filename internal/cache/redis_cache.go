package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"modaloja/backend/internal/domain"
)

type RedisRegisterStatusCache struct {
	client *redis.Client
}

func NewRedisRegisterStatusCache(addr string, password string, db int) *RedisRegisterStatusCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisRegisterStatusCache{client: client}
}

func (c *RedisRegisterStatusCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRegisterStatusCache) Close() error {
	return c.client.Close()
}

func (c *RedisRegisterStatusCache) Get(ctx context.Context, key string) (*domain.RegisterStatusResponse, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var resp domain.RegisterStatusResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

func (c *RedisRegisterStatusCache) Set(ctx context.Context, key string, value *domain.RegisterStatusResponse, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisRegisterStatusCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
