package loadcache

import (
	"context"
	"errors"
	"github.com/magic-lib/go-plat-utils/conv"
	"go.uber.org/zap"
)

// load 通过 singleflight 回源，成功后写回 Store。
// 回源使用与调用方解耦的 ctx，调用方取消只影响自己的等待，不影响同 key 的其他调用方。
// force 为 true 时忽略负缓存。
func (l *Loader[K, V]) load(ctx context.Context, key K, force bool) (V, error) {
	var zero V
	sk := conv.String(key)
	if !force && l.knownMissing(sk) {
		return zero, l.opts.ErrNotFound
	}

	ch := l.group.DoChan(sk, func() (interface{}, error) {
		return l.fetch(context.WithoutCancel(ctx), key, sk)
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		val, _ := res.Val.(V)
		return val, nil
	}
}

// fetch 每个 singleflight 轮次只执行一次，计数和负缓存也只记录一次
func (l *Loader[K, V]) fetch(ctx context.Context, key K, sk string) (V, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	defer cancel()

	val, err := l.fetcher.Fetch(ctx, key)
	if err == nil {
		l.store.Upsert(key, val)
		l.forgetMissing(sk)
		return val, nil
	}
	if l.opts.ErrNotFound != nil && errors.Is(err, l.opts.ErrNotFound) {
		l.rememberMissing(sk)
		return val, err
	}
	if m := l.opts.Metrics; m != nil {
		m.UpstreamErrors.Inc()
	}
	l.opts.Logger.Debug("load from upstream", zap.String("key", sk), zap.Error(err))
	return val, err
}
