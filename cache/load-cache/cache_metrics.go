package loadcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 用于 Prometheus 监控缓存命中、丢失、回源失败等指标。
type Metrics struct {
	Hits           prometheus.Counter // 命中次数
	Misses         prometheus.Counter // 丢失次数
	UpstreamErrors prometheus.Counter // 回源失败次数
	NotFound       prometheus.Counter // 回源不存在次数
}

// NewMetrics 新建
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "The total number of lookups served from cache",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "The total number of lookups that missed the cache",
		}),
		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "The total number of failed upstream fetches",
		}),
		NotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_not_found_total",
			Help:      "The total number of upstream fetches that found nothing",
		}),
	}
}

// Register 注册到 reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Hits, m.Misses, m.UpstreamErrors, m.NotFound} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
