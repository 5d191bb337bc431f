package upstream

import (
	"fmt"
	"github.com/VictoriaMetrics/fastcache"
	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/peterbourgon/diskv"
)

const (
	// HTTPCacheMemory 进程内缓存上游响应
	HTTPCacheMemory = "memory"
	// HTTPCacheDisk 磁盘缓存上游响应
	HTTPCacheDisk = "disk"

	defaultHTTPCacheSize = 32 * 1024 * 1024
)

// fastHTTPCache 用 fastcache 实现 httpcache.Cache，响应可能超过 64KB，统一走 Big 接口
type fastHTTPCache struct {
	mCache *fastcache.Cache
}

func (c *fastHTTPCache) Get(key string) ([]byte, bool) {
	data := c.mCache.GetBig(nil, []byte(key))
	return data, len(data) > 0
}

func (c *fastHTTPCache) Set(key string, resp []byte) {
	c.mCache.SetBig([]byte(key), resp)
}

func (c *fastHTTPCache) Delete(key string) {
	c.mCache.Del([]byte(key))
}

// newHTTPCache kind 为空时返回 nil，不缓存上游响应
func newHTTPCache(cfg *HTTPConfig) (httpcache.Cache, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultHTTPCacheSize
	}
	switch cfg.Cache {
	case "":
		return nil, nil
	case HTTPCacheMemory:
		return &fastHTTPCache{mCache: fastcache.New(size)}, nil
	case HTTPCacheDisk:
		if cfg.CacheDir == "" {
			return nil, fmt.Errorf("upstream: http cache dir is required for disk cache")
		}
		d := diskv.New(diskv.Options{
			BasePath:     cfg.CacheDir,
			CacheSizeMax: uint64(size),
		})
		return diskcache.NewWithDiskv(d), nil
	default:
		return nil, fmt.Errorf("upstream: http cache '%s' is not supported", cfg.Cache)
	}
}
