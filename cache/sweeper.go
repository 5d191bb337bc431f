package cache

import (
	"context"
	"fmt"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"time"
)

const (
	defaultSweepInterval = 5 * time.Minute
)

var nopLogger = zap.NewNop()

// SweeperOpts 清理任务配置
type SweeperOpts struct {
	// TTL 条目最长存活时间，按整秒计算，至少 1 秒
	TTL time.Duration
	// Interval 清理间隔，与 TTL 无关
	Interval time.Duration
	// Logger 为 nil 时不输出日志
	Logger *zap.Logger
	// Metrics 可选
	Metrics *Metrics
}

func (opts *SweeperOpts) init() error {
	if opts.TTL < time.Second {
		return fmt.Errorf("sweeper ttl must be at least 1s, got %s", opts.TTL)
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	return nil
}

// SweepResult 一次清理的结果
type SweepResult struct {
	Evicted   int
	Remaining int
}

// Sweeper 定时删除超过 TTL 的条目，与请求侧只通过 Store 交互
type Sweeper[K comparable, V any] struct {
	opts  SweeperOpts
	store *Store[K, V]
	clock clock.Clock
}

// NewSweeper 新建，时钟与 store 共用
func NewSweeper[K comparable, V any](store *Store[K, V], opts SweeperOpts) (*Sweeper[K, V], error) {
	if store == nil {
		return nil, fmt.Errorf("nil store")
	}
	if err := opts.init(); err != nil {
		return nil, err
	}
	return &Sweeper[K, V]{
		opts:  opts,
		store: store,
		clock: store.Clock(),
	}, nil
}

// Run 阻塞运行，直到 ctx 结束；只在两次清理之间响应取消
//
// 清理过程中的 panic 不做 recover，进程随之退出。
func (s *Sweeper[K, V]) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.opts.Interval)
	defer ticker.Stop()

	s.opts.Logger.Debug("cache sweeper started",
		zap.Duration("ttl", s.opts.TTL), zap.Duration("interval", s.opts.Interval))
	for {
		select {
		case <-ctx.Done():
			s.opts.Logger.Debug("cache sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep 立即执行一次清理
func (s *Sweeper[K, V]) Sweep() SweepResult {
	now := s.clock.Now()
	ttl := s.opts.TTL
	evicted := s.store.Retain(func(_ K, e Entry[K, V]) bool {
		return IsFresh(now, e.CachedAt, ttl)
	})
	res := SweepResult{
		Evicted:   evicted,
		Remaining: s.store.Len(),
	}

	if m := s.opts.Metrics; m != nil {
		m.Sweeps.Inc()
		m.Evictions.Add(float64(res.Evicted))
	}
	if res.Evicted > 0 {
		s.opts.Logger.Info("evicted stale cache entries",
			zap.Int("evicted", res.Evicted), zap.Int("remaining", res.Remaining))
	}
	return res
}
