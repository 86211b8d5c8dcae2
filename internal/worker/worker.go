// Package worker implements the polling loop that drains priority
// queues, dispatches jobs to their registered handler, and reports the
// outcome back to the queue engine and metrics sink.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/pytake/taskqueue/internal/logger"
	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/queue"
)

// Stats is a point-in-time snapshot of a worker's lifetime counters.
type Stats struct {
	Processed int64
	Succeeded int64
	Failed    int64
	Retried   int64
	Dead      int64
}

// Worker drains the priority queues one job at a time. Concurrency is
// achieved by running N Workers, each with its own goroutine, rather
// than a single worker fanning out internally — this keeps each job's
// dequeue-process-ack sequence a single straight-line call chain, the
// shape the control plane's at-least-once guarantee depends on.
type Worker struct {
	id        int
	engine    *queue.Engine
	registry  *queue.Registry
	sink      *metrics.Sink
	publisher queue.EventPublisher
	log       *logger.Logger

	dequeueTimeout time.Duration

	stats Stats
}

// Config bundles a Worker's dependencies.
type Config struct {
	ID             int
	Engine         *queue.Engine
	Registry       *queue.Registry
	Sink           *metrics.Sink
	Publisher      queue.EventPublisher
	Log            *logger.Logger
	DequeueTimeout time.Duration
}

// New constructs a Worker from a Config, defaulting the event publisher
// to a no-op and the dequeue timeout to 2s (the original's timeout=2).
func New(cfg Config) *Worker {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = queue.NoopPublisher{}
	}
	timeout := cfg.DequeueTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Worker{
		id:             cfg.ID,
		engine:         cfg.Engine,
		registry:       cfg.Registry,
		sink:           cfg.Sink,
		publisher:      publisher,
		log:            cfg.Log,
		dequeueTimeout: timeout,
	}
}

// Run polls for work until ctx is canceled. idleLoops-scaled backoff
// mirrors the original's min(0.5 + idle_loops*0.05, 2.0) sleep so an
// empty queue doesn't spin the CPU.
func (w *Worker) Run(ctx context.Context) {
	idleLoops := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		worked, err := w.processOne(ctx)
		if err != nil {
			if w.log != nil {
				w.log.Errorw("worker iteration failed", "worker_id", w.id, "error", err)
			}
		}

		if !worked {
			idleLoops++
			delay := time.Duration((0.5+float64(idleLoops)*0.05)*1000) * time.Millisecond
			if cap := 2 * time.Second; delay > cap {
				delay = cap
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		} else {
			idleLoops = 0
		}
	}
}

// processOne promotes any due scheduled jobs, then attempts to dequeue
// and process a single job. The returned bool reports whether work was
// found, driving the caller's idle backoff.
func (w *Worker) processOne(ctx context.Context) (bool, error) {
	if _, err := w.engine.PromoteDue(ctx); err != nil {
		return false, fmt.Errorf("promote due: %w", err)
	}

	popped, ok, err := w.engine.BlockingDequeue(ctx, w.dequeueTimeout)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if !ok {
		return false, nil
	}

	job, ok, err := w.engine.Load(ctx, popped.JobID)
	if err != nil {
		return true, fmt.Errorf("load job %s: %w", popped.JobID, err)
	}
	if !ok {
		return true, nil
	}

	w.stats.Processed++
	if w.sink != nil {
		w.sink.IncCounter(ctx, "job_queue_processed_total", map[string]string{"priority": string(job.Priority)})
	}
	if w.log != nil {
		w.log.Infow("job started", "worker_id", w.id, "job_id", job.ID, "type", job.Type, "priority", job.Priority)
	}
	w.publisher.Publish(queue.JobEvent{Kind: queue.EventStarted, JobID: job.ID, Type: job.Type, Priority: job.Priority, Attempts: job.Attempts})

	handler, found := w.registry.Lookup(job.Type)
	if !found {
		if w.sink != nil {
			w.sink.IncCounter(ctx, "job_queue_failed_total", map[string]string{"reason": "unknown_task", "priority": string(job.Priority)})
		}
		w.fail(ctx, job, queue.UnknownTaskTypeError(job.Type).Error())
		return true, nil
	}

	result, runErr := handler(ctx, job.Payload)
	if runErr != nil {
		if w.sink != nil {
			w.sink.IncCounter(ctx, "job_queue_failed_total", map[string]string{"reason": "exception", "priority": string(job.Priority)})
		}
		w.fail(ctx, job, runErr.Error())
		return true, nil
	}

	if err := w.engine.MarkSucceeded(ctx, job, result); err != nil {
		return true, fmt.Errorf("mark succeeded %s: %w", job.ID, err)
	}
	w.stats.Succeeded++
	if w.sink != nil {
		w.sink.IncCounter(ctx, "job_queue_succeeded_total", map[string]string{"priority": string(job.Priority)})
		latency := unixNow() - job.CreatedAt
		w.sink.ObserveHistogram(ctx, "job_queue_latency_seconds", map[string]string{"priority": string(job.Priority)}, latency, nil)
	}
	if w.log != nil {
		w.log.Infow("job succeeded", "worker_id", w.id, "job_id", job.ID, "priority", job.Priority)
	}
	w.publisher.Publish(queue.JobEvent{Kind: queue.EventSucceeded, JobID: job.ID, Type: job.Type, Priority: job.Priority, Attempts: job.Attempts})

	return true, nil
}

func (w *Worker) fail(ctx context.Context, job *queue.Job, errMsg string) {
	retried, err := w.engine.MarkFailedOrRetry(ctx, job, errMsg)
	if err != nil {
		if w.log != nil {
			w.log.Errorw("failed to record job failure", "job_id", job.ID, "error", err)
		}
		return
	}
	if retried {
		w.stats.Retried++
		if w.sink != nil {
			w.sink.IncCounter(ctx, "job_queue_retries_total", map[string]string{"priority": string(job.Priority)})
		}
		w.publisher.Publish(queue.JobEvent{Kind: queue.EventRetried, JobID: job.ID, Type: job.Type, Priority: job.Priority, Attempts: job.Attempts, Error: errMsg})
		return
	}
	w.stats.Dead++
	w.publisher.Publish(queue.JobEvent{Kind: queue.EventDead, JobID: job.ID, Type: job.Type, Priority: job.Priority, Attempts: job.Attempts, Error: errMsg})
}

// Stats returns a snapshot of this worker's lifetime counters.
func (w *Worker) Stats() Stats {
	return w.stats
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
