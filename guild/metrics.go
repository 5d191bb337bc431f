package guild

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 批量在线查询指标
type Metrics struct {
	OnlineRequests      prometheus.Counter
	OnlineCacheHits     prometheus.Counter
	OnlineCacheMisses   prometheus.Counter
	OnlineFetchFailures prometheus.Counter
}

// NewMetrics 新建
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlineRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guilds_online_requests_total",
			Help:      "The total number of batch online requests",
		}),
		OnlineCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guilds_online_cache_hits_total",
			Help:      "The total number of guilds answered from cache in batch online requests",
		}),
		OnlineCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guilds_online_cache_misses_total",
			Help:      "The total number of guilds refetched in batch online requests",
		}),
		OnlineFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guilds_online_fetch_failures_total",
			Help:      "The total number of guilds omitted from batch online responses",
		}),
	}
}

// Register 注册到 reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.OnlineRequests, m.OnlineCacheHits, m.OnlineCacheMisses, m.OnlineFetchFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
