package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 清理任务的 Prometheus 指标
type Metrics struct {
	Sweeps    prometheus.Counter // 清理次数
	Evictions prometheus.Counter // 过期删除的条目数
	Size      prometheus.GaugeFunc
}

// NewMetrics 新建，size 用于采集当前条目数
func NewMetrics(namespace string, size func() int) *Metrics {
	return &Metrics{
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sweeps_total",
			Help:      "The total number of eviction sweeps",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "The total number of entries evicted for exceeding the ttl",
		}),
		Size: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size",
			Help:      "Current number of entries in cache",
		}, func() float64 {
			return float64(size())
		}),
	}
}

// Register 注册到 reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Sweeps, m.Evictions, m.Size} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
