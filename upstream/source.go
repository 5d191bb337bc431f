package upstream

import (
	"context"
	"errors"
	"fmt"
	"github.com/magic-lib/go-plat-guildcache/internal/redisclient"
	"go.uber.org/zap"
	"strings"
)

const (
	// KindHTTP 从 HTTP 接口取数
	KindHTTP = "http"
	// KindMySQL 从 MySQL 表取数
	KindMySQL = "mysql"
	// KindRedis 从 Redis 取数
	KindRedis = "redis"
)

// ErrNotFound 上游明确表示不存在
var ErrNotFound = errors.New("upstream: not found")

// StatusError 上游返回非 2xx
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s returned status %d", e.URL, e.Code)
}

// Source 按名称取得原始 JSON 载荷
type Source interface {
	Fetch(ctx context.Context, name string) (string, error)
	Close() error
}

// Config 上游配置，Kind 决定使用哪一段
type Config struct {
	Kind  string      `mapstructure:"kind"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig redis 上游
type RedisConfig struct {
	redisclient.Config `mapstructure:",squash"`
	KeyPrefix          string `mapstructure:"key_prefix"`
}

// New 按 Kind 创建上游
func New(cfg *Config, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		src Source
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case KindHTTP, "":
		src, err = NewHTTPSource(&cfg.HTTP, logger)
	case KindMySQL:
		src, err = NewMySQLSource(&cfg.MySQL)
	case KindRedis:
		src, err = NewRedisSource(&cfg.Redis)
	default:
		return nil, fmt.Errorf("upstream: kind '%s' is not supported", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}
