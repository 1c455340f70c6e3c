// Package worker provides a fixed-size goroutine pool for fire-and-forget jobs.
//
// The Pool starts a fixed number of worker goroutines that drain a single,
// unbounded FIFO queue. Each submitted job is delivered to exactly one
// worker, exactly once. Submission never blocks, regardless of backlog.
//
// # Basic Usage
//
//	pool := worker.NewPool(4) // 4 workers, panics on 0
//	defer pool.Stop()
//
//	for i := 0; i < 100; i++ {
//	    if err := pool.Submit(func() {
//	        // do work
//	    }); err != nil {
//	        // pool already stopped
//	    }
//	}
//
// # Completion
//
// Jobs have no result channel. SubmitWait returns a channel that is closed
// once the job has run:
//
//	done, err := pool.SubmitWait(job)
//	<-done
//
// # Shutdown
//
// Stop closes intake first, then waits for the workers to drain the queue
// and exit. Every job submitted before Stop runs before Stop returns. Submit
// after Stop returns ErrPoolClosed.
//
// # Failures
//
// Jobs are never retried. A job that panics takes its worker down with it;
// the panic is logged and the worker is not replaced, so AliveWorkers
// shrinks.
package worker
