package worker

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"threadkit/internal/events"
	"threadkit/internal/logger"
	"threadkit/internal/metrics"
)

var (
	// ErrPoolClosed はシャットダウン開始後に Submit されたことを表す
	ErrPoolClosed = errors.New("worker: pool is closed")
	// ErrNilJob は nil のジョブが渡されたことを表す
	ErrNilJob = errors.New("worker: nil job")
)

// Job はワーカーが実行するジョブを表す
type Job func()

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers int              // ワーカー数（1以上）
	Name       string           // ログとイベントに使う名前
	Metrics    *metrics.Metrics // nil なら記録しない
	Events     *events.Bus      // nil なら通知しない
}

// Pool は固定数のゴルーチンと共有キューを管理する
type Pool struct {
	name       string
	numWorkers int
	jobs       *queue
	wg         sync.WaitGroup
	alive      atomic.Int32
	stopOnce   sync.Once

	metrics *metrics.Metrics
	events  *events.Bus
}

// NewPool は新しいワーカープールを作成し、全ワーカーを起動する
// numWorkers が 0 以下の場合は panic する
func NewPool(numWorkers int) *Pool {
	return NewPoolWithConfig(PoolConfig{NumWorkers: numWorkers})
}

// NewPoolWithConfig は設定を指定してワーカープールを作成する
// 戻った時点で全ワーカーが起動済みでジョブを待っている
func NewPoolWithConfig(config PoolConfig) *Pool {
	if config.NumWorkers <= 0 {
		panic(fmt.Sprintf("worker: invalid number of workers: %d", config.NumWorkers))
	}
	name := config.Name
	if name == "" {
		name = "pool"
	}

	p := &Pool{
		name:       name,
		numWorkers: config.NumWorkers,
		metrics:    config.Metrics,
		events:     config.Events,
	}
	var onPush func()
	if p.metrics != nil {
		onPush = p.metrics.RecordSubmitted
	}
	p.jobs = newQueue(onPush)

	var ready sync.WaitGroup
	for i := range p.numWorkers {
		p.wg.Add(1)
		ready.Add(1)
		p.alive.Add(1)
		go p.worker(i, &ready)
	}
	ready.Wait()

	logger.Info(p.name, "WorkerPool started with %d workers", p.numWorkers)
	p.publish(events.NewPoolStartedEvent(p.name, p.numWorkers))
	return p
}

// worker は個々のワーカーゴルーチン
func (p *Pool) worker(id int, ready *sync.WaitGroup) {
	defer p.wg.Done()
	ready.Done()

	reason := "queue closed"
	defer func() {
		p.alive.Add(-1)
		logger.Debug(p.workerName(id), "worker exited: %s", reason)
		p.publish(events.NewWorkerExitedEvent(p.name, id, reason))
	}()

	for {
		job, ok := p.jobs.pop()
		if !ok {
			return
		}
		if !p.run(id, job) {
			reason = "job panicked"
			return
		}
	}
}

// run はジョブを 1 つ実行する
// ジョブが panic した場合はログに残して false を返し、ワーカーは終了する。
// 終了したワーカーは補充されない。
func (p *Pool) run(id int, job Job) (ok bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			latency := time.Since(start)
			logger.Error(p.workerName(id), "job panicked, worker exiting: %v\n%s", r, debug.Stack())
			if p.metrics != nil {
				p.metrics.RecordFailure(latency)
			}
			p.publish(events.NewJobPanickedEvent(p.name, id, r))
			ok = false
		}
	}()

	job()

	if p.metrics != nil {
		p.metrics.RecordSuccess(time.Since(start))
	}
	return true
}

// Submit はジョブをキューに追加する
// ブロックしない。シャットダウン開始後は ErrPoolClosed を返す。
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}
	return p.jobs.push(job)
}

// SubmitWait はジョブを追加し、実行完了時に閉じられるチャネルを返す
// ジョブが panic した場合もチャネルは閉じられる。
func (p *Pool) SubmitWait(job Job) (<-chan struct{}, error) {
	if job == nil {
		return nil, ErrNilJob
	}
	done := make(chan struct{})
	err := p.Submit(func() {
		defer close(done)
		job()
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// Stop はワーカープールを停止する
// 受付を閉じてから全ワーカーの終了を待つ。閉じる前に待つと
// ワーカーが終了を観測できずデッドロックする。
// Stop 前に追加されたジョブはすべて実行されてから戻る。
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.jobs.close()
		p.wg.Wait()

		if n := p.jobs.len(); n > 0 {
			logger.Warn(p.name, "WorkerPool stopped with %d undelivered jobs: no live workers", n)
		}
		logger.Info(p.name, "WorkerPool stopped")
		p.publish(events.NewPoolStoppedEvent(p.name))
	})
}

// Close は Stop を呼ぶ io.Closer 実装
func (p *Pool) Close() error {
	p.Stop()
	return nil
}

// Name はプール名を返す
func (p *Pool) Name() string {
	return p.name
}

// NumWorkers は設定されたワーカー数を返す
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// AliveWorkers は稼働中のワーカー数を返す
func (p *Pool) AliveWorkers() int {
	return int(p.alive.Load())
}

// QueueSize は現在のキューサイズを返す
func (p *Pool) QueueSize() int {
	return p.jobs.len()
}

func (p *Pool) workerName(id int) string {
	return fmt.Sprintf("%s/worker-%d", p.name, id)
}

func (p *Pool) publish(event events.Event) {
	if p.events != nil {
		p.events.Publish(event)
	}
}
