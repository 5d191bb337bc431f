package loadcache

import (
	gocache "github.com/patrickmn/go-cache"
	"time"
)

// newNegativeCache 记录回源不存在的 key，ttl<=0 时不启用
func newNegativeCache(ttl time.Duration) *gocache.Cache {
	if ttl <= 0 {
		return nil
	}
	return gocache.New(ttl, 2*ttl)
}

func (l *Loader[K, V]) knownMissing(key string) bool {
	if l.negative == nil {
		return false
	}
	_, ok := l.negative.Get(key)
	return ok
}

func (l *Loader[K, V]) rememberMissing(key string) {
	if l.negative == nil {
		return
	}
	l.negative.Set(key, struct{}{}, gocache.DefaultExpiration)
	if m := l.opts.Metrics; m != nil {
		m.NotFound.Inc()
	}
}

func (l *Loader[K, V]) forgetMissing(key string) {
	if l.negative == nil {
		return
	}
	l.negative.Delete(key)
}
