package config

import (
	"errors"
	"fmt"
	"github.com/magic-lib/go-plat-guildcache/internal/mlog"
	"github.com/magic-lib/go-plat-guildcache/upstream"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"strings"
	"time"
)

// EnvPrefix 环境变量前缀，键中的 . 替换为 _，如 GUILDCACHE_CACHE_TTL
const EnvPrefix = "GUILDCACHE"

// Config 服务配置
type Config struct {
	Log      mlog.LogConfig  `mapstructure:"log"`
	Server   ServerConfig    `mapstructure:"server"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Online   OnlineConfig    `mapstructure:"online"`
	Upstream upstream.Config `mapstructure:"upstream"`
}

// ServerConfig http 服务
type ServerConfig struct {
	Listen            string        `mapstructure:"listen"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// CacheConfig 公会载荷缓存
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	NegativeTTL   time.Duration `mapstructure:"negative_ttl"`
}

// OnlineConfig 批量在线查询
type OnlineConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

var defaults = map[string]any{
	"log.level":      "info",
	"log.production": false,
	"log.file":       "",

	"server.listen":              ":3000",
	"server.read_header_timeout": "10s",
	"server.shutdown_timeout":    "10s",

	"cache.ttl":            "600s",
	"cache.sweep_interval": "300s",
	"cache.negative_ttl":   "30s",

	"online.ttl":             "120s",
	"online.max_concurrency": 8,

	"upstream.kind":                 upstream.KindHTTP,
	"upstream.http.base_url":        "https://api.wynncraft.com/v3/guild",
	"upstream.http.timeout":         "10s",
	"upstream.http.connect_timeout": "3s",
	"upstream.http.user_agent":      "",
	"upstream.http.rate_limit":      0,
	"upstream.http.burst":           1,
	"upstream.http.cache":           "",
	"upstream.http.cache_dir":       "",
	"upstream.http.cache_size":      0,

	"upstream.mysql.dsn":               "",
	"upstream.mysql.table":             "guild_payloads",
	"upstream.mysql.max_open_conns":    10,
	"upstream.mysql.max_idle_conns":    0,
	"upstream.mysql.conn_max_lifetime": "0s",

	"upstream.redis.type":                 "node",
	"upstream.redis.addr":                 "",
	"upstream.redis.username":             "",
	"upstream.redis.password":             "",
	"upstream.redis.db":                   0,
	"upstream.redis.tls":                  false,
	"upstream.redis.insecure_skip_verify": false,
	"upstream.redis.pool_size":            0,
	"upstream.redis.key_prefix":           "guild:",
}

// Load 依次应用默认值、配置文件(path 非空时)、环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := new(Config)
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if c.Cache.TTL < time.Second {
		errs = append(errs, fmt.Errorf("cache.ttl must be at least 1s, got %s", c.Cache.TTL))
	}
	if c.Cache.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("cache.sweep_interval must be positive, got %s", c.Cache.SweepInterval))
	}
	if c.Online.TTL <= 0 {
		errs = append(errs, fmt.Errorf("online.ttl must be positive, got %s", c.Online.TTL))
	}
	if c.Online.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("online.max_concurrency must be at least 1, got %d", c.Online.MaxConcurrency))
	}
	switch c.Upstream.Kind {
	case upstream.KindHTTP, upstream.KindMySQL, upstream.KindRedis:
	default:
		errs = append(errs, fmt.Errorf("upstream.kind '%s' is not supported", c.Upstream.Kind))
	}
	return errors.Join(errs...)
}
