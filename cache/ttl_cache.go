package cache

import (
	"github.com/benbjohnson/clock"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Store 基于分片 map 的并发缓存，每个条目记录写入时间，过期由 Sweeper 清理
//
// 不同 key 落在不同分片时互不阻塞，同一 key 的读写在分片锁内串行。
type Store[K comparable, V any] struct {
	m     cmap.ConcurrentMap[K, *Entry[K, V]]
	clock clock.Clock
}

// StoreOption Store 的可选配置
type StoreOption func(*storeOptions)

type storeOptions struct {
	clock clock.Clock
}

// WithClock 指定时钟，测试时传入 clock.NewMock()
func WithClock(c clock.Clock) StoreOption {
	return func(o *storeOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// NewStore 新建
func NewStore[K comparable, V any](opts ...StoreOption) *Store[K, V] {
	o := &storeOptions{clock: clock.New()}
	for _, opt := range opts {
		opt(o)
	}
	return &Store[K, V]{
		m:     cmap.NewWithCustomShardingFunction[K, *Entry[K, V]](shardingFunc[K]()),
		clock: o.clock,
	}
}

// Clock 返回 Store 使用的时钟
func (s *Store[K, V]) Clock() clock.Clock {
	return s.clock
}

// Get 取值，不判断是否过期
func (s *Store[K, V]) Get(key K) (V, bool) {
	e, ok := s.m.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Entry 取值及写入时间
func (s *Store[K, V]) Entry(key K) (Entry[K, V], bool) {
	e, ok := s.m.Get(key)
	if !ok {
		return Entry[K, V]{}, false
	}
	return *e, true
}

// Upsert 写入或覆盖，同时刷新写入时间
func (s *Store[K, V]) Upsert(key K, val V) {
	s.m.Set(key, &Entry[K, V]{
		Key:      key,
		Value:    val,
		CachedAt: s.clock.Now().UTC(),
	})
}

// Delete 删除，返回 key 是否存在
func (s *Store[K, V]) Delete(key K) bool {
	return s.m.RemoveCb(key, func(_ K, _ *Entry[K, V], exists bool) bool {
		return exists
	})
}

// Retain 只保留 keep 返回 true 的条目，返回删除的数量
//
// 先逐个分片在读锁下找出候选，再在写锁下对每个候选重新判断后删除，
// 所以遍历之后被 Upsert 刷新的条目会保留；遍历之后新写入的 key 不在本次处理范围内。
// keep 内不能再调用本 Store 的方法。
func (s *Store[K, V]) Retain(keep func(key K, e Entry[K, V]) bool) int {
	return s.removeStale(s.staleKeys(keep), keep)
}

// staleKeys 在各分片读锁下收集 keep 返回 false 的 key
func (s *Store[K, V]) staleKeys(keep func(key K, e Entry[K, V]) bool) []K {
	var stale []K
	s.m.IterCb(func(key K, e *Entry[K, V]) {
		if !keep(key, *e) {
			stale = append(stale, key)
		}
	})
	return stale
}

// removeStale 在分片写锁下对当前条目重新判断后删除
func (s *Store[K, V]) removeStale(keys []K, keep func(key K, e Entry[K, V]) bool) int {
	removed := 0
	for _, key := range keys {
		ok := s.m.RemoveCb(key, func(k K, e *Entry[K, V], exists bool) bool {
			return exists && !keep(k, *e)
		})
		if ok {
			removed++
		}
	}
	return removed
}

// Len 当前条目数
func (s *Store[K, V]) Len() int {
	return s.m.Count()
}
