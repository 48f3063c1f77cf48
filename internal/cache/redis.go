package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/linkbio/internal/model"
)

// RedisCache stores projections as JSON strings with a per-key TTL.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

var _ ProjectionCache = (*RedisCache)(nil)

// NewRedis connects and pings. A failed ping closes the client.
func NewRedis(addr, password string, db int, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &RedisCache{client: client, logger: logger}, nil
}

func (c *RedisCache) Get(ctx context.Context, handle string) (*model.Projection, bool, error) {
	data, err := c.client.Get(ctx, key(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get %s: %w", handle, err)
	}

	var p model.Projection
	if err := json.Unmarshal(data, &p); err != nil {
		// Drop the corrupt entry so the next read repopulates it.
		c.client.Del(ctx, key(handle))
		c.logger.Warn("cache: dropped undecodable projection", slog.String("handle", handle))
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, handle string, p *model.Projection, ttl time.Duration) error {
	if p == nil || ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache: encoding projection %s: %w", handle, err)
	}
	if err := c.client.Set(ctx, key(handle), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", handle, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, handle string) error {
	if err := c.client.Del(ctx, key(handle)).Err(); err != nil {
		return fmt.Errorf("cache: redis del %s: %w", handle, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
