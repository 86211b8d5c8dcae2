// Package bench generates synthetic load against the queue engine,
// covering both the one-shot demo bursts the control plane exposes over
// HTTP and recurring cron-scheduled bursts for soak testing.
package bench

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/queue"
)

// DemoSize names one of the three canned demo burst sizes.
type DemoSize string

const (
	DemoSmall  DemoSize = "small"
	DemoMedium DemoSize = "medium"
	DemoLarge  DemoSize = "large"
)

var demoSizes = map[DemoSize]int{
	DemoSmall:  12,
	DemoMedium: 120,
	DemoLarge:  1000,
}

// RunDemo enqueues n "sleep" jobs cycling through high/default/low
// priority, matching the original's /demo endpoint.
func RunDemo(ctx context.Context, engine *queue.Engine, sink *metrics.Sink, size DemoSize) (int, error) {
	n, ok := demoSizes[size]
	if !ok {
		n = demoSizes[DemoSmall]
	}
	priorities := []queue.Priority{queue.PriorityHigh, queue.PriorityDefault, queue.PriorityLow}

	for i := 0; i < n; i++ {
		prio := priorities[i%3]
		job := queue.NewJob(uuid.NewString(), "sleep", map[string]interface{}{"seconds": 0.05}, 3, 1.5, prio)
		if err := engine.Enqueue(ctx, job, 0); err != nil {
			return i, fmt.Errorf("bench: enqueue demo job %d: %w", i, err)
		}
		if sink != nil {
			sink.IncCounter(ctx, "job_queue_enqueued_total", map[string]string{"priority": string(prio)})
		}
	}
	return n, nil
}

// RunComplexDemo enqueues the fixed mix of immediate, delayed, and
// guaranteed-to-fail jobs the original's /demo/complex endpoint does:
// 10 high immediate, 10 default delayed by 3s, 5 low immediate, and 3
// jobs of an unregistered type that will dead-letter after retries.
func RunComplexDemo(ctx context.Context, engine *queue.Engine, sink *metrics.Sink) error {
	burst := []struct {
		count    int
		priority queue.Priority
		jobType  string
		delay    float64
	}{
		{10, queue.PriorityHigh, "sleep", 0},
		{10, queue.PriorityDefault, "sleep", 3},
		{5, queue.PriorityLow, "sleep", 0},
		{3, queue.PriorityDefault, "does_not_exist", 0},
	}

	for _, b := range burst {
		for i := 0; i < b.count; i++ {
			job := queue.NewJob(uuid.NewString(), b.jobType, map[string]interface{}{"seconds": 0.1}, 3, 1.5, b.priority)
			if err := engine.Enqueue(ctx, job, b.delay); err != nil {
				return fmt.Errorf("bench: enqueue complex demo job: %w", err)
			}
			if sink != nil {
				sink.IncCounter(ctx, "job_queue_enqueued_total", map[string]string{"priority": string(b.priority)})
			}
		}
	}
	return nil
}
