// internal/pkg/redis/client.go
package redis

import (
	"context"
	"time"

	"atlas/internal/pkg/config"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Client 对 go-redis 做一层薄封装，统一超时与错误处理。
type Client struct {
	rdb *redis.Client
}

// NewClient 建立 Redis 连接并做一次连通性检查。
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &Client{rdb: rdb}, nil
}

// Nil 是缓存未命中的标记错误。
var Nil = redis.Nil

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
