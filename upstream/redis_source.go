package upstream

import (
	"context"
	"errors"
	"fmt"
	"github.com/magic-lib/go-plat-guildcache/internal/redisclient"
	red "github.com/redis/go-redis/v9"
)

// RedisSource GET {prefix}{name}
type RedisSource struct {
	client red.UniversalClient
	prefix string
}

// NewRedisSource 同一地址共用客户端
func NewRedisSource(cfg *RedisConfig) (*RedisSource, error) {
	client, err := redisclient.GetRedis(&cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	return &RedisSource{client: client, prefix: cfg.KeyPrefix}, nil
}

// Key 取得 name 对应的 redis key
func (s *RedisSource) Key(name string) string {
	return s.prefix + name
}

// Fetch key 不存在返回 ErrNotFound
func (s *RedisSource) Fetch(ctx context.Context, name string) (string, error) {
	val, err := s.client.Get(ctx, s.Key(name)).Result()
	if errors.Is(err, red.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("upstream: redis get %s: %w", s.Key(name), err)
	}
	return val, nil
}

// Close 客户端由 redisclient 共享，这里不关闭
func (s *RedisSource) Close() error {
	return nil
}
