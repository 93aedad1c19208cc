package worker

import (
	"context"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"
)

type task struct {
	job    ReconcileJob
	handle *JobHandle
}

// Pool is the in-process Executor. Jobs are sharded by payment id, so all
// jobs of one payment run on the same worker, one after another.
type Pool struct {
	reconciler Reconciler
	queues     []chan task
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(reconciler Reconciler, workers, queueSize int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	queues := make([]chan task, workers)
	for i := range queues {
		queues[i] = make(chan task, queueSize)
	}
	return &Pool{
		reconciler: reconciler,
		queues:     queues,
		logger:     logger.Named("pool"),
	}
}

// Submit never blocks: a full shard queue is reported as ErrQueueFull.
func (p *Pool) Submit(ctx context.Context, job ReconcileJob) (*JobHandle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	handle := newJobHandle()
	select {
	case p.queues[p.shard(job)] <- task{job: job, handle: handle}:
		return handle, nil
	default:
		return nil, ErrQueueFull
	}
}

func (p *Pool) shard(job ReconcileJob) int {
	h := fnv.New32a()
	_, _ = h.Write(job.PaymentID[:])
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Run starts the workers and blocks until ctx is done. Jobs already queued
// are still processed before Run returns.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("reconciliation pool started", zap.Int("workers", len(p.queues)))

	jobCtx := context.WithoutCancel(ctx)
	for i, queue := range p.queues {
		p.wg.Add(1)
		go p.work(jobCtx, i, queue)
	}

	<-ctx.Done()

	p.mu.Lock()
	p.closed = true
	for _, queue := range p.queues {
		close(queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("reconciliation pool stopped")
}

func (p *Pool) work(ctx context.Context, id int, queue <-chan task) {
	defer p.wg.Done()

	for t := range queue {
		err := p.reconciler.Reconcile(ctx, t.job)
		if err != nil {
			p.logger.Error("reconciliation failed",
				zap.Int("worker", id),
				zap.String("job_id", t.handle.ID),
				zap.String("payment_id", t.job.PaymentID.String()),
				zap.Error(err),
			)
		}
		t.handle.complete(err)
	}
}
