package cache

import (
	"time"
)

// Entry 缓存条目，写入后不再修改，更新时整体替换
type Entry[K comparable, V any] struct {
	Key      K
	Value    V
	CachedAt time.Time // 写入或最近一次刷新的时间(UTC)
}

// Reader 请求侧只读接口
type Reader[K comparable, V any] interface {
	Get(key K) (V, bool)
	Entry(key K) (Entry[K, V], bool)
	Len() int
}

// Writer 请求侧写接口
type Writer[K comparable, V any] interface {
	Upsert(key K, val V)
	Delete(key K) bool
}

// Retainer 清理任务使用的批量保留接口
type Retainer[K comparable, V any] interface {
	Retain(keep func(key K, e Entry[K, V]) bool) int
	Len() int
}

var (
	_ Reader[string, any]   = (*Store[string, any])(nil)
	_ Writer[string, any]   = (*Store[string, any])(nil)
	_ Retainer[string, any] = (*Store[string, any])(nil)
)
