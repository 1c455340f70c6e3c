package worker

import "sync"

// queue は上限なしの FIFO ジョブキュー
// 送信側はいくつあってもよく、受信側は全ワーカーで共有される。
// mu は 1 回の取り出しだけを保護し、ジョブの実行中は保持しない。
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Job
	closed bool
	onPush func() // 追加の確定時に mu を保持したまま呼ばれる
}

// newQueue は空のキューを作成する
// onPush は nil でもよい。
func newQueue(onPush func()) *queue {
	q := &queue{onPush: onPush}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push はジョブを末尾に追加する
// close 後は ErrPoolClosed を返す。ブロックしない。
func (q *queue) push(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrPoolClosed
	}
	q.items = append(q.items, job)
	if q.onPush != nil {
		// ワーカーが取り出す前に数えておく
		q.onPush()
	}
	q.cond.Signal()
	return nil
}

// pop は先頭のジョブを取り出す
// キューが空なら次のジョブか close まで待つ。
// close 後も残っているジョブは返し続け、空になったら ok=false を返す。
func (q *queue) pop() (job Job, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}

	job = q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return job, true
}

// close は入力の終わりを通知し、待機中の全ワーカーを起こす
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// len は未取り出しのジョブ数を返す
func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
