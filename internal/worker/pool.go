package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pytake/taskqueue/internal/logger"
	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/queue"
)

// Pool runs a fixed number of Workers concurrently, each in its own
// goroutine, the way the teacher's WorkerImpl spins up `concurrency`
// goroutines over processJobs.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool constructs a Pool of n Workers sharing one engine, registry,
// metrics sink, and event publisher.
func NewPool(n int, engine *queue.Engine, registry *queue.Registry, sink *metrics.Sink, publisher queue.EventPublisher, log *logger.Logger, dequeueTimeout time.Duration) *Pool {
	workers := make([]*Worker, n)
	for i := 0; i < n; i++ {
		var workerLog *logger.Logger
		if log != nil {
			workerLog = log.With("worker_id", i)
		}
		workers[i] = New(Config{
			ID:             i,
			Engine:         engine,
			Registry:       registry,
			Sink:           sink,
			Publisher:      publisher,
			Log:            workerLog,
			DequeueTimeout: dequeueTimeout,
		})
	}
	return &Pool{workers: workers}
}

// Start launches every worker's Run loop in its own goroutine and
// returns immediately.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker's Run loop has returned (i.e. until
// the context passed to Start is canceled).
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats aggregates every worker's lifetime counters.
func (p *Pool) Stats() Stats {
	var total Stats
	for _, w := range p.workers {
		s := w.Stats()
		total.Processed += s.Processed
		total.Succeeded += s.Succeeded
		total.Failed += s.Failed
		total.Retried += s.Retried
		total.Dead += s.Dead
	}
	return total
}
