package redisclient

import (
	"crypto/tls"
	"fmt"
	"github.com/magic-lib/go-plat-utils/syncx"
	red "github.com/redis/go-redis/v9"
	"io"
	"runtime"
	"strings"
)

const (
	// ClusterType means redis cluster.
	ClusterType = "cluster"
	// NodeType means redis node.
	NodeType = "node"

	addrSep    = ","
	maxRetries = 3
	idleConns  = 8
)

var (
	clientManager = syncx.NewResourceManager()
	// nodePoolSize is default pool size for node type of redis.
	nodePoolSize = 10 * runtime.GOMAXPROCS(0)

	clusterManager = syncx.NewResourceManager()
)

// Config redis 连接配置
type Config struct {
	Type     string `mapstructure:"type"` // node | cluster，默认 node
	Addr     string `mapstructure:"addr"` // cluster 时逗号分隔
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
	// InsecureSkipVerify 只在 TLS 为 true 时生效，跳过证书校验
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
	PoolSize           int  `mapstructure:"pool_size"`
}

// DatasourceName 同一配置共用一个连接池
func (c *Config) DatasourceName() string {
	return fmt.Sprintf("%s://%s@%s/%d", c.Type, c.Username, c.Addr, c.DB)
}

func (c *Config) tlsConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

func (c *Config) poolSize() int {
	if c.PoolSize > 0 {
		return c.PoolSize
	}
	return nodePoolSize
}

func getClient(r *Config) (*red.Client, error) {
	val, err := clientManager.GetResource(r.DatasourceName(), func() (io.Closer, error) {
		store := red.NewClient(&red.Options{
			Addr:         r.Addr,
			Username:     r.Username,
			Password:     r.Password,
			DB:           r.DB,
			MaxRetries:   maxRetries,
			MinIdleConns: idleConns,
			PoolSize:     r.poolSize(),
			TLSConfig:    r.tlsConfig(),
		})

		return store, nil
	})
	if err != nil {
		return nil, err
	}

	return val.(*red.Client), nil
}

func getCluster(r *Config) (*red.ClusterClient, error) {
	val, err := clusterManager.GetResource(r.DatasourceName(), func() (io.Closer, error) {
		store := red.NewClusterClient(&red.ClusterOptions{
			Addrs:        splitClusterAddrs(r.Addr),
			Username:     r.Username,
			Password:     r.Password,
			MaxRetries:   maxRetries,
			MinIdleConns: idleConns,
			PoolSize:     r.poolSize(),
			TLSConfig:    r.tlsConfig(),
		})

		return store, nil
	})
	if err != nil {
		return nil, err
	}

	return val.(*red.ClusterClient), nil
}

func splitClusterAddrs(addr string) []string {
	addrs := strings.Split(addr, addrSep)
	unique := make(map[string]struct{})
	out := make([]string, 0, len(addrs))
	for _, each := range addrs {
		each = strings.TrimSpace(each)
		if each == "" {
			continue
		}
		if _, ok := unique[each]; ok {
			continue
		}
		unique[each] = struct{}{}
		out = append(out, each)
	}

	return out
}

// GetRedis 按类型取得共享的客户端
func GetRedis(r *Config) (red.UniversalClient, error) {
	if r == nil || r.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	switch r.Type {
	case ClusterType:
		return getCluster(r)
	case NodeType, "":
		return getClient(r)
	default:
		return nil, fmt.Errorf("redis type '%s' is not supported", r.Type)
	}
}
