// Package digest runs batches of hashing jobs on a worker pool.
package digest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"threadkit/internal/ctxchain"
	"threadkit/internal/events"
	"threadkit/internal/hashutil"
	"threadkit/internal/logger"
	"threadkit/internal/worker"
)

// KeyInput は各ジョブのチェーンに入力名を載せるキー
const KeyInput = "input"

// ErrNoInputs は空のバッチを表す
var ErrNoInputs = errors.New("digest: no inputs")

// Config は Runner の設定
type Config struct {
	Algorithm string // ハッシュアルゴリズム（空で md5）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Algorithm: hashutil.DefaultAlgorithm,
	}
}

// Input はハッシュ対象の 1 件
// Path が空でなければファイルを読み、空なら Data を使う。
type Input struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
	Path string `json:"path,omitempty"`
}

// Result は 1 件分の結果
type Result struct {
	Name      string        `json:"name"`
	Algorithm string        `json:"algorithm"`
	Digest    string        `json:"digest,omitempty"`
	TraceID   string        `json:"trace_id"`
	Locale    string        `json:"locale,omitempty"`
	Lang      string        `json:"lang,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	Error     string        `json:"error,omitempty"`
}

// Runner はバッチをワーカープールに投入する
type Runner struct {
	config Config
	pool   *worker.Pool
	events *events.Bus
}

// New は新しい Runner を作成する
func New(pool *worker.Pool, config Config) *Runner {
	if config.Algorithm == "" {
		config.Algorithm = hashutil.DefaultAlgorithm
	}
	return &Runner{
		config: config,
		pool:   pool,
	}
}

// WithEvents はバッチ完了イベントの通知先を設定する
func (r *Runner) WithEvents(bus *events.Bus) *Runner {
	r.events = bus
	return r
}

// Algorithm は使用するアルゴリズム名を返す
func (r *Runner) Algorithm() string {
	return r.config.Algorithm
}

// Run は inputs を 1 件 1 ジョブとして投入し、全件の完了を待つ
// 結果は inputs と同じ順序で返る。個々の失敗は Result.Error に入り、
// Run 自体のエラーは投入失敗かコンテキストのキャンセルに限られる。
// ctx が持つ ctxchain のトレースIDを引き継ぎ、無ければ新しく振る。
func (r *Runner) Run(ctx context.Context, inputs []Input) ([]Result, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if !hashutil.Supported(r.config.Algorithm) {
		return nil, fmt.Errorf("digest: %w: %q", hashutil.ErrUnknownAlgorithm, r.config.Algorithm)
	}

	chain := ctxchain.Wrap(ctxchain.FromContext(ctx))
	traceID := ctxchain.TraceID(chain)
	logger.Info(traceID, "Digest batch started (inputs: %d, algorithm: %s)", len(inputs), r.config.Algorithm)
	if logger.Default.Enabled(logger.LevelDebug) {
		logger.Debug(traceID, "chain keys: %v", ctxchain.Keys(chain))
	}

	results := make([]Result, len(inputs))
	pending := make([]<-chan struct{}, 0, len(inputs))

	for i, in := range inputs {
		job := r.createJob(ctxchain.WithValue(chain, KeyInput, in.Name), in, &results[i])
		done, err := r.pool.SubmitWait(job)
		if err != nil {
			err = fmt.Errorf("digest: submit %q: %w", in.Name, err)
			r.finish(traceID, len(inputs), err)
			return nil, err
		}
		pending = append(pending, done)
	}

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			r.finish(traceID, len(inputs), ctx.Err())
			return nil, ctx.Err()
		}
	}

	r.finish(traceID, len(inputs), nil)
	return results, nil
}

// createJob はハッシュ計算ジョブを作成する
// 各ジョブは自分の Result だけに書き込む。
func (r *Runner) createJob(chain *ctxchain.Chain, in Input, out *Result) worker.Job {
	algo := r.config.Algorithm
	return func() {
		traceID := ctxchain.TraceID(chain)
		name, _ := ctxchain.Value[string](chain, KeyInput)

		start := time.Now()
		sum, err := digestInput(algo, in)
		*out = Result{
			Name:      name,
			Algorithm: algo,
			Digest:    sum,
			TraceID:   traceID,
			Locale:    ctxchain.Locale(chain),
			Lang:      ctxchain.Lang(chain),
			Latency:   time.Since(start),
		}
		if err != nil {
			out.Error = err.Error()
			logger.Warn(traceID, "digest %s failed: %v", name, err)
			return
		}
		if logger.Default.Enabled(logger.LevelDebug) {
			logger.Debug(traceID, "digest %s = %s", name, sum)
		}
	}
}

func (r *Runner) finish(traceID string, n int, err error) {
	if err != nil {
		logger.Error(traceID, "Digest batch aborted: %v", err)
	} else {
		logger.Info(traceID, "Digest batch completed (%d inputs)", n)
	}
	if r.events != nil {
		r.events.Publish(events.NewBatchCompletedEvent(r.pool.Name(), traceID, n, err))
	}
}

func digestInput(algo string, in Input) (string, error) {
	if in.Path == "" {
		return hashutil.DigestReader(algo, bytes.NewReader(in.Data))
	}
	f, err := os.Open(in.Path)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return hashutil.DigestReader(algo, f)
}
