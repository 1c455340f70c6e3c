// Package metrics provides job execution metrics for worker pools.
//
// Metrics counts submitted, completed and failed (panicked) jobs and keeps a
// bounded latency sample for P99 estimation. It is thread-safe and is meant
// to be shared by a pool and whatever reports on it.
//
// # Basic Usage
//
//	m := metrics.New()
//	pool := worker.NewPoolWithConfig(worker.PoolConfig{NumWorkers: 4, Metrics: m})
//
//	fmt.Printf("Done: %d, P99: %v\n", m.CompletedJobs(), m.P99Latency())
//
// # Prometheus
//
// Collector exposes the same numbers on a private registry:
//
//	c := metrics.NewCollector("threadkit", m)
//	_ = c.WatchPool(pool.Name(), pool)
//	http.Handle("/metrics", c.Handler())
package metrics
