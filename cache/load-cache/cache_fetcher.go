package loadcache

import "context"

// Fetcher 回源接口，缓存 miss 时调用
type Fetcher[K comparable, V any] interface {
	Fetch(ctx context.Context, key K) (V, error)
}

// FetcherFunc 函数适配 Fetcher
type FetcherFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Fetch 调用 f
func (f FetcherFunc[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}
