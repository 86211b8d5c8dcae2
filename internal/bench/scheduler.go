package bench

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/pytake/taskqueue/internal/logger"
	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/queue"
)

// RecurringScheduler runs demo bursts on a cron schedule, for soak
// testing a long-lived deployment rather than a one-shot benchmark.
// This repurposes the teacher's cron.New(cron.WithSeconds()) scheduler
// (originally wired to CRM cleanup jobs) onto recurring load bursts;
// it never drives promote_due, which stays worker-loop-driven.
type RecurringScheduler struct {
	cron   *cron.Cron
	engine *queue.Engine
	sink   *metrics.Sink
	log    *logger.Logger
}

// NewRecurringScheduler builds a scheduler with second-resolution cron
// expressions enabled.
func NewRecurringScheduler(engine *queue.Engine, sink *metrics.Sink, log *logger.Logger) *RecurringScheduler {
	return &RecurringScheduler{
		cron:   cron.New(cron.WithSeconds()),
		engine: engine,
		sink:   sink,
		log:    log,
	}
}

// AddBurst schedules a demo burst of the given size on the given cron
// spec (e.g. "0 */5 * * * *" for every 5 minutes).
func (s *RecurringScheduler) AddBurst(spec string, size DemoSize) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		n, err := RunDemo(ctx, s.engine, s.sink, size)
		if err != nil {
			if s.log != nil {
				s.log.Errorw("recurring demo burst failed", "size", size, "error", err)
			}
			return
		}
		if s.log != nil {
			s.log.Infow("recurring demo burst enqueued", "size", size, "count", n)
		}
	})
	return err
}

// Start begins running scheduled bursts in the background.
func (s *RecurringScheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight burst trigger to
// finish.
func (s *RecurringScheduler) Stop() {
	<-s.cron.Stop().Done()
}
