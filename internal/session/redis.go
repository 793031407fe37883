package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mmeshcher/forum-coins/internal/model"
)

const keyPrefix = "forum:session:"

// RedisCache хранит снимки в Redis в виде JSON.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect создаёт клиент Redis и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisCache создаёт кеш поверх готового клиента Redis.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func key(accountID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, accountID)
}

// Get читает снимок из Redis. Отсутствие ключа возвращается как ErrMiss.
func (c *RedisCache) Get(ctx context.Context, accountID int64) (*model.AccountSnapshot, error) {
	raw, err := c.client.Get(ctx, key(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var snap model.AccountSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &snap, nil
}

// Set сохраняет снимок в Redis со сроком жизни кеша.
func (c *RedisCache) Set(ctx context.Context, snap model.AccountSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.client.Set(ctx, key(snap.ID), string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Delete удаляет снимок из Redis.
func (c *RedisCache) Delete(ctx context.Context, accountID int64) error {
	if err := c.client.Del(ctx, key(accountID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
