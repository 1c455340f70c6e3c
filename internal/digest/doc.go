// Package digest fans hashing work out over a worker pool.
//
// A Runner turns each Input into one fire-and-forget job and tracks its
// completion through the pool's SubmitWait handles. Every job carries a
// ctxchain derived from the batch chain, so log lines of one batch share a
// trace id.
//
// # Basic Usage
//
//	pool := worker.NewPool(4)
//	defer pool.Stop()
//
//	r := digest.New(pool, digest.Config{Algorithm: "sha256"})
//	results, err := r.Run(ctx, []digest.Input{
//	    {Name: "a", Data: []byte("hello")},
//	    {Name: "b", Path: "/etc/hostname"},
//	})
//
// Per-input failures (unreadable files) are reported in Result.Error; Run
// only fails when the pool is closed or ctx is done.
package digest
