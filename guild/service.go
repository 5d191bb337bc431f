package guild

import (
	"context"
	"errors"
	"fmt"
	loadcache "github.com/magic-lib/go-plat-guildcache/cache/load-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

const (
	// MaxOnlineBatch 单次批量查询的名称上限
	MaxOnlineBatch = 25

	defaultOnlineTTL      = 120 * time.Second
	defaultMaxConcurrency = 8
)

// ErrBatchTooLarge 批量查询名称过多
var ErrBatchTooLarge = fmt.Errorf("guild: more than %d names", MaxOnlineBatch)

// Options Service 配置
type Options struct {
	OnlineTTL      time.Duration // 批量查询可直接使用的缓存年龄上限
	MaxConcurrency int           // 批量查询并发回源上限
	Metrics        *Metrics      // 可选
	Logger         *zap.Logger   // 可选
}

func (o *Options) init() {
	if o.OnlineTTL <= 0 {
		o.OnlineTTL = defaultOnlineTTL
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = defaultMaxConcurrency
	}
	o.MaxConcurrency = min(o.MaxConcurrency, MaxOnlineBatch)
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Service 公会载荷查询
type Service struct {
	opts   Options
	loader *loadcache.Loader[string, string]
}

// NewService 新建
func NewService(loader *loadcache.Loader[string, string], opts Options) (*Service, error) {
	if loader == nil {
		return nil, errors.New("guild: loader is required")
	}
	opts.init()
	return &Service{opts: opts, loader: loader}, nil
}

// CacheSize 当前缓存条目数
func (s *Service) CacheSize() int {
	return s.loader.Store().Len()
}

// Guild 返回公会原始载荷，新鲜缓存直接返回，否则回源
func (s *Service) Guild(ctx context.Context, rawName string) (string, error) {
	name, err := NormalizeName(rawName)
	if err != nil {
		return "", err
	}
	return s.loader.Get(ctx, name)
}

// Online 批量查询在线人数，单个公会失败时从结果中省略
func (s *Service) Online(ctx context.Context, names []string) (map[string]Online, error) {
	m := s.opts.Metrics
	if m != nil {
		m.OnlineRequests.Inc()
	}

	result := make(map[string]Online, len(names))
	if len(names) == 0 {
		return result, nil
	}
	if len(names) > MaxOnlineBatch {
		return nil, ErrBatchTooLarge
	}

	toFetch := make([]string, 0, len(names))
	for _, name := range names {
		if payload, ok := s.loader.Peek(name, s.opts.OnlineTTL); ok {
			if entry, ok := ParseOnline(payload); ok {
				result[name] = entry
				continue
			}
		}
		toFetch = append(toFetch, name)
	}
	if m != nil {
		m.OnlineCacheHits.Add(float64(len(result)))
		m.OnlineCacheMisses.Add(float64(len(toFetch)))
	}

	var (
		mu     sync.Mutex
		failed int
		g      errgroup.Group
	)
	g.SetLimit(s.opts.MaxConcurrency)
	for _, name := range toFetch {
		g.Go(func() error {
			payload, err := s.loader.Refresh(ctx, name)
			entry, ok := Online{}, false
			if err == nil {
				entry, ok = ParseOnline(payload)
			}

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				failed++
				s.opts.Logger.Debug("guild omitted from online batch", zap.String("guild", name), zap.Error(err))
				return nil
			}
			result[name] = entry
			return nil
		})
	}
	_ = g.Wait()
	if m != nil {
		m.OnlineFetchFailures.Add(float64(failed))
	}

	return result, nil
}
