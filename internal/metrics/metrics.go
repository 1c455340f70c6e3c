package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99 計算用に保持するサンプル数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxLatencySamples: 1000,
	}
}

// Metrics はジョブのメトリクスを収集する
type Metrics struct {
	submittedJobs  atomic.Uint64
	completedJobs  atomic.Uint64
	failedJobs     atomic.Uint64
	totalLatencyNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowJobs        uint64
	latencies         []time.Duration
	maxLatencySamples int
	observer          prometheus.Observer
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = DefaultConfig().MaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// RecordSubmitted はキューに追加されたジョブを記録する
func (m *Metrics) RecordSubmitted() {
	m.submittedJobs.Add(1)
}

// RecordSuccess は正常終了したジョブを記録する
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.completedJobs.Add(1)
	m.record(latency, true)
}

// RecordFailure は panic したジョブを記録する
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.failedJobs.Add(1)
	m.record(latency, false)
}

func (m *Metrics) record(latency time.Duration, sample bool) {
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowJobs++
	if sample && len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer.Observe(latency.Seconds())
	}
}

// setObserver はレイテンシの転送先を設定する
func (m *Metrics) setObserver(o prometheus.Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = o
}

// SubmittedJobs は投入されたジョブ数を返す
func (m *Metrics) SubmittedJobs() uint64 {
	return m.submittedJobs.Load()
}

// CompletedJobs は正常終了したジョブ数を返す
func (m *Metrics) CompletedJobs() uint64 {
	return m.completedJobs.Load()
}

// FailedJobs は panic したジョブ数を返す
func (m *Metrics) FailedJobs() uint64 {
	return m.failedJobs.Load()
}

// FinishedJobs は実行を終えたジョブ数を返す
func (m *Metrics) FinishedJobs() uint64 {
	return m.completedJobs.Load() + m.failedJobs.Load()
}

// JobsPerSecond は直近ウィンドウの処理速度を返す
func (m *Metrics) JobsPerSecond() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowJobs) / elapsed
}

// OverallJobsPerSecond は開始からの平均処理速度を返す
func (m *Metrics) OverallJobsPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.FinishedJobs()) / elapsed
}

// AverageLatency は平均実行時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.FinishedJobs()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// P99Latency は P99 実行時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// FailureRate は失敗率を返す（0.0〜1.0）
func (m *Metrics) FailureRate() float64 {
	total := m.FinishedJobs()
	if total == 0 {
		return 0
	}
	return float64(m.failedJobs.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowJobs = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	SubmittedJobs        uint64        `json:"submitted_jobs"`
	CompletedJobs        uint64        `json:"completed_jobs"`
	FailedJobs           uint64        `json:"failed_jobs"`
	JobsPerSecond        float64       `json:"jobs_per_second"`
	OverallJobsPerSecond float64       `json:"overall_jobs_per_second"`
	AverageLatency       time.Duration `json:"average_latency_ns"`
	P99Latency           time.Duration `json:"p99_latency_ns"`
	FailureRate          float64       `json:"failure_rate"`
	Elapsed              time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		SubmittedJobs:        m.SubmittedJobs(),
		CompletedJobs:        m.CompletedJobs(),
		FailedJobs:           m.FailedJobs(),
		JobsPerSecond:        m.JobsPerSecond(),
		OverallJobsPerSecond: m.OverallJobsPerSecond(),
		AverageLatency:       m.AverageLatency(),
		P99Latency:           m.P99Latency(),
		FailureRate:          m.FailureRate(),
		Elapsed:              time.Since(m.startTime),
	}
}
