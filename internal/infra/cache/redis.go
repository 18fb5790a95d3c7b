package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"pepper-deal-bot/internal/infra/metrics"
)

// RedisCache реализует domain.Cache поверх Redis: защёлки слотов
// планировщика и короткоживущие пометки вроде проверенных слагов.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Once выполняет функцию, только если защёлка по ключу ещё не взята.
// При ошибке функции защёлка снимается, чтобы слот можно было повторить.
func (c *RedisCache) Once(key string, ttl time.Duration, fn func() error) error {
	ctx := context.Background()
	start := time.Now()
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", "cache", start, err)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return err
	}
	return nil
}

// Set задаёт значение с TTL.
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(context.Background(), key, value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", "cache", start, err)
	return err
}

// Get возвращает значение; отсутствие ключа приходит как redis.Nil.
func (c *RedisCache) Get(key string) ([]byte, error) {
	start := time.Now()
	value, err := c.client.Get(context.Background(), key).Bytes()
	metrics.ObserveNetworkRequest("redis", "get", "cache", start, err)
	return value, err
}
