package ingestion

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool runs jobs from a channel across a bounded set of goroutines,
// matching celery_app.py's worker_concurrency=4 default via
// errgroup.SetLimit instead of a Celery prefetch setting.
type Pool struct {
	worker      *Worker
	concurrency int
}

// NewPool builds a Pool of the given concurrency (celery_app.py
// defaults worker_concurrency to 4; callers should do the same absent
// other guidance).
func NewPool(worker *Worker, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Pool{worker: worker, concurrency: concurrency}
}

// Run drains jobs until the channel closes or ctx is canceled,
// processing up to p.concurrency jobs at once, and returns only after
// every in-flight job has finished. A single job's failure neither
// cancels the others nor is returned by Run (Process records it on the
// document's status), the same as Celery tasks failing independently
// of one another.
func (p *Pool) Run(ctx context.Context, jobs <-chan Job) error {
	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(p.concurrency)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case job, ok := <-jobs:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				_ = p.worker.Process(gctx, job)
				return nil
			})
		}
	}
}
