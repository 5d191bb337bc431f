package cache

import (
	"hash/maphash"
	"time"
)

// shardingFunc 按 key 计算分片，种子在每个 Store 内独立
func shardingFunc[K comparable]() func(key K) uint32 {
	seed := maphash.MakeSeed()
	return func(key K) uint32 {
		return uint32(maphash.Comparable(seed, key))
	}
}

// wholeSeconds 截断到整秒，负数向 0 截断
func wholeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// IsFresh 判断条目在 now 时刻是否仍在 ttl 内，按整秒比较，age == ttl 视为过期
func IsFresh(now, cachedAt time.Time, ttl time.Duration) bool {
	return wholeSeconds(now.Sub(cachedAt)) < wholeSeconds(ttl)
}
