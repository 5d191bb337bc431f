package loadcache

import (
	"context"
	"fmt"
	"github.com/magic-lib/go-plat-guildcache/cache"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"time"
)

const (
	defaultFreshFor     = 10 * time.Minute
	defaultFetchTimeout = 30 * time.Second
)

// Options 用于配置 Loader 的行为和参数。
type Options struct {
	FreshFor     time.Duration // 命中时允许的最大年龄，按整秒比较
	NegativeTTL  time.Duration // 回源返回 ErrNotFound 后记住的时间，<=0 不记录
	ErrNotFound  error         // 回源的"不存在"错误，命中时写入负缓存
	FetchTimeout time.Duration // 单次回源超时，与调用方 ctx 无关
	Metrics      *Metrics      // 可选
	Logger       *zap.Logger   // 可选
}

func (o *Options) init() {
	if o.FreshFor <= 0 {
		o.FreshFor = defaultFreshFor
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = defaultFetchTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Loader 先查 Store，miss 时回源并写回，同一个 key 同时只回源一次。
// 过期清理由 cache.Sweeper 负责，Loader 只在读取时判断新鲜度。
type Loader[K comparable, V any] struct {
	opts     Options
	store    *cache.Store[K, V]
	fetcher  Fetcher[K, V]
	group    singleflight.Group
	negative *gocache.Cache
}

// New 创建一个新的 Loader 实例。
func New[K comparable, V any](store *cache.Store[K, V], fetcher Fetcher[K, V], opts Options) (*Loader[K, V], error) {
	if store == nil || fetcher == nil {
		return nil, fmt.Errorf("loadcache: store and fetcher are required")
	}
	opts.init()
	return &Loader[K, V]{
		opts:     opts,
		store:    store,
		fetcher:  fetcher,
		negative: newNegativeCache(opts.NegativeTTL),
	}, nil
}

// Store 返回底层存储
func (l *Loader[K, V]) Store() *cache.Store[K, V] {
	return l.store
}

// Get 命中且未超过 FreshFor 时直接返回，否则回源。
func (l *Loader[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := l.Peek(key, l.opts.FreshFor); ok {
		return v, nil
	}
	return l.load(ctx, key, false)
}

// Peek 只查缓存，年龄小于 maxAge 才算命中，不回源。
func (l *Loader[K, V]) Peek(key K, maxAge time.Duration) (V, bool) {
	v, ok := l.peek(key, maxAge)
	if m := l.opts.Metrics; m != nil {
		if ok {
			m.Hits.Inc()
		} else {
			m.Misses.Inc()
		}
	}
	return v, ok
}

// Refresh 忽略缓存和负缓存直接回源并写回，成功时清除负缓存。
func (l *Loader[K, V]) Refresh(ctx context.Context, key K) (V, error) {
	return l.load(ctx, key, true)
}

func (l *Loader[K, V]) peek(key K, maxAge time.Duration) (V, bool) {
	var zero V
	e, ok := l.store.Entry(key)
	if !ok {
		return zero, false
	}
	if !cache.IsFresh(l.store.Clock().Now(), e.CachedAt, maxAge) {
		return zero, false
	}
	return e.Value, true
}
