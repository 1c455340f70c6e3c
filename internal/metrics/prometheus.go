package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PoolStats はゲージとして公開するプールの状態
type PoolStats interface {
	QueueSize() int
	AliveWorkers() int
}

// DropCounter は取りこぼしたイベント配信数を返す
type DropCounter interface {
	Dropped() uint64
}

// Collector は Metrics を Prometheus 形式で公開する
// グローバルレジストリを汚さないよう専用のレジストリを持つ
type Collector struct {
	registry  *prometheus.Registry
	namespace string
	latency   prometheus.Histogram
}

// NewCollector は m を読み出すコレクタを作成し、レジストリに登録する
func NewCollector(namespace string, m *Metrics) *Collector {
	c := &Collector{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_latency_seconds",
			Help:      "Histogram of job execution latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted to the pool",
		}, func() float64 { return float64(m.SubmittedJobs()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that ran to completion",
		}, func() float64 { return float64(m.CompletedJobs()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs that panicked",
		}, func() float64 { return float64(m.FailedJobs()) }),
		c.latency,
	)
	m.setObserver(c.latency)

	return c
}

// WatchPool はプールのキュー長と稼働ワーカー数をゲージとして登録する
func (c *Collector) WatchPool(pool string, stats PoolStats) error {
	labels := prometheus.Labels{"pool": pool}
	queued := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.namespace,
		Name:        "queue_size",
		Help:        "Number of jobs waiting in the queue",
		ConstLabels: labels,
	}, func() float64 { return float64(stats.QueueSize()) })
	alive := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   c.namespace,
		Name:        "alive_workers",
		Help:        "Number of worker goroutines still running",
		ConstLabels: labels,
	}, func() float64 { return float64(stats.AliveWorkers()) })

	if err := c.registry.Register(queued); err != nil {
		return err
	}
	if err := c.registry.Register(alive); err != nil {
		c.registry.Unregister(queued)
		return err
	}
	return nil
}

// WatchEvents はイベントバスの取りこぼし数をカウンタとして登録する
func (c *Collector) WatchEvents(bus DropCounter) error {
	return c.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      "events_dropped_total",
		Help:      "Total number of event deliveries dropped because a subscriber was full",
	}, func() float64 { return float64(bus.Dropped()) }))
}

// Registry は登録先のレジストリを返す
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler は /metrics 用の HTTP ハンドラを返す
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
