package queue

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pytake/taskqueue/internal/store"
)

// Engine is the queue's single entry point onto the store: every
// enqueue, promotion, dequeue, and terminal state transition goes
// through it so the store stays the sole owner of queue truth.
type Engine struct {
	db        store.Store
	ttl       time.Duration
	publisher EventPublisher
}

// NewEngine constructs an Engine over the given store. ttl is the expiry
// reset on a job record every time the record is written, whatever its
// status; a non-positive ttl falls back to 7 days.
func NewEngine(db store.Store, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = time.Duration(recordTTLSeconds) * time.Second
	}
	return &Engine{db: db, ttl: ttl, publisher: NoopPublisher{}}
}

// SetPublisher wires an EventPublisher so Enqueue can announce new jobs
// to live listeners. Defaults to NoopPublisher when never called.
func (e *Engine) SetPublisher(publisher EventPublisher) {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	e.publisher = publisher
}

func (e *Engine) save(ctx context.Context, j *Job) error {
	if err := e.db.HashSet(ctx, jobKey(j.ID), j.ToHashFields()); err != nil {
		return fmt.Errorf("queue: save job %s: %w", j.ID, err)
	}
	if err := e.db.Expire(ctx, jobKey(j.ID), e.ttl); err != nil {
		return fmt.Errorf("queue: expire job %s: %w", j.ID, err)
	}
	return nil
}

// Load fetches a job record by ID. ok is false if no such job exists.
func (e *Engine) Load(ctx context.Context, id string) (*Job, bool, error) {
	fields, err := e.db.HashGetAll(ctx, jobKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("queue: load job %s: %w", id, err)
	}
	j, ok := JobFromHash(fields)
	return j, ok, nil
}

// Enqueue places a job onto its priority list, or onto the scheduled
// set if delaySec is positive. It always persists the record first so
// a reader racing the queue placement still finds a consistent job.
func (e *Engine) Enqueue(ctx context.Context, j *Job, delaySec float64) error {
	if delaySec > 0 {
		runAt := unixNow() + delaySec
		j.Status = StatusScheduled
		j.NextRunAt = &runAt
		if err := e.save(ctx, j); err != nil {
			return err
		}
		if err := e.db.SortedSetAdd(ctx, scheduledZSetKey, store.ZMember{Member: j.ID, Score: runAt}); err != nil {
			return fmt.Errorf("queue: schedule job %s: %w", j.ID, err)
		}
		e.publisher.Publish(JobEvent{Kind: EventEnqueued, JobID: j.ID, Type: j.Type, Priority: j.Priority, Attempts: j.Attempts, At: unixNow()})
		return nil
	}

	j.Status = StatusQueued
	j.NextRunAt = nil
	if err := e.save(ctx, j); err != nil {
		return err
	}
	if err := e.db.ListPushLeft(ctx, queueKeyFor(j.Priority), j.ID); err != nil {
		return fmt.Errorf("queue: push job %s: %w", j.ID, err)
	}
	e.publisher.Publish(JobEvent{Kind: EventEnqueued, JobID: j.ID, Type: j.Type, Priority: j.Priority, Attempts: j.Attempts, At: unixNow()})
	return nil
}

// PromoteDue moves due scheduled jobs onto their priority queues,
// pipelined and capped at 200 per call the way move_due_jobs is. It
// tolerates being called again before the previous call's effects are
// visible: re-promoting an already-queued job only pushes a duplicate
// list entry, never corrupts state.
func (e *Engine) PromoteDue(ctx context.Context) (int, error) {
	const limit = 200
	now := unixNow()

	due, err := e.db.SortedSetRangeByScore(ctx, scheduledZSetKey, 0, now, limit)
	if err != nil {
		return 0, fmt.Errorf("queue: range scheduled: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	moved := 0
	err = e.db.Pipeline(ctx, func(p store.Pipeliner) {
		for _, id := range due {
			priority := PriorityDefault
			if v, ok, _ := e.db.HashGet(ctx, jobKey(id), "priority"); ok && v != "" {
				priority = Priority(v)
			}
			p.ListPushLeft(queueKeyFor(priority), id)
			p.SortedSetRem(scheduledZSetKey, id)
			p.HashSet(jobKey(id), map[string]string{
				"status":      string(StatusQueued),
				"updated_at":  fmt.Sprintf("%f", now),
				"next_run_at": "null",
			})
			moved++
		}
	})
	if err != nil {
		return moved, fmt.Errorf("queue: promote due: %w", err)
	}
	return moved, nil
}

// Popped is the result of a successful blocking dequeue.
type Popped struct {
	Priority Priority
	JobID    string
}

// BlockingDequeue waits up to timeout for a job ID on any priority
// queue, polling them in strict priority order (BLPOP's multi-key
// semantics do this natively). ok is false on timeout.
func (e *Engine) BlockingDequeue(ctx context.Context, timeout time.Duration) (Popped, bool, error) {
	key, id, ok, err := e.db.BlockingPopLeft(ctx, timeout, queueListKeysInOrder()...)
	if err != nil {
		return Popped{}, false, fmt.Errorf("queue: blocking dequeue: %w", err)
	}
	if !ok {
		return Popped{}, false, nil
	}
	return Popped{Priority: priorityForQueueKey(key), JobID: id}, true, nil
}

// MarkSucceeded transitions a job to its terminal success state.
func (e *Engine) MarkSucceeded(ctx context.Context, j *Job, result interface{}) error {
	j.Status = StatusSucceeded
	j.Result = result
	j.Error = nil
	return e.save(ctx, j)
}

// MarkFailedOrRetry records a failure and either schedules a retry with
// exponential backoff or moves the job to the dead-letter list once
// attempts exceed MaxRetries. The returned bool is true when a retry
// was scheduled, false when the job went dead.
func (e *Engine) MarkFailedOrRetry(ctx context.Context, j *Job, errMsg string) (bool, error) {
	j.Attempts++

	if j.Attempts > j.MaxRetries {
		j.Status = StatusDead
		j.Error = &errMsg
		if err := e.save(ctx, j); err != nil {
			return false, err
		}
		if err := e.db.ListPushLeft(ctx, deadLetterKey, j.ID); err != nil {
			return false, fmt.Errorf("queue: dead-letter job %s: %w", j.ID, err)
		}
		return false, nil
	}

	delay := math.Pow(j.BackoffSec, float64(j.Attempts))
	runAt := unixNow() + delay
	j.Status = StatusScheduled
	j.NextRunAt = &runAt
	j.Error = &errMsg
	if err := e.save(ctx, j); err != nil {
		return false, err
	}
	if err := e.db.SortedSetAdd(ctx, scheduledZSetKey, store.ZMember{Member: j.ID, Score: runAt}); err != nil {
		return false, fmt.Errorf("queue: reschedule job %s: %w", j.ID, err)
	}
	return true, nil
}

// Sizes reports the current length of every priority queue plus the
// scheduled set and dead-letter list.
type Sizes struct {
	High       int64 `json:"high"`
	Default    int64 `json:"default"`
	Low        int64 `json:"low"`
	Scheduled  int64 `json:"scheduled"`
	DeadLetter int64 `json:"deadletter"`
}

func (e *Engine) Sizes(ctx context.Context) (Sizes, error) {
	var s Sizes
	var err error
	if s.High, err = e.db.ListLen(ctx, queueKeyFor(PriorityHigh)); err != nil {
		return s, err
	}
	if s.Default, err = e.db.ListLen(ctx, queueKeyFor(PriorityDefault)); err != nil {
		return s, err
	}
	if s.Low, err = e.db.ListLen(ctx, queueKeyFor(PriorityLow)); err != nil {
		return s, err
	}
	if s.Scheduled, err = e.db.SortedSetCard(ctx, scheduledZSetKey); err != nil {
		return s, err
	}
	if s.DeadLetter, err = e.db.ListLen(ctx, deadLetterKey); err != nil {
		return s, err
	}
	return s, nil
}

// Peek returns the tail (oldest-pushed-visible) jobs on every priority
// queue and the head of the dead-letter list, mirroring the
// lrange(qname, -10, -1) / lrange(DEAD_LETTER, 0, 9) split in the
// original's /queues endpoint.
type Peek struct {
	High       []string `json:"high"`
	Default    []string `json:"default"`
	Low        []string `json:"low"`
	DeadLetter []string `json:"deadletter"`
}

func (e *Engine) PeekQueues(ctx context.Context) (Peek, error) {
	var p Peek
	var err error
	if p.High, err = e.db.ListRange(ctx, queueKeyFor(PriorityHigh), -10, -1); err != nil {
		return p, err
	}
	if p.Default, err = e.db.ListRange(ctx, queueKeyFor(PriorityDefault), -10, -1); err != nil {
		return p, err
	}
	if p.Low, err = e.db.ListRange(ctx, queueKeyFor(PriorityLow), -10, -1); err != nil {
		return p, err
	}
	if p.DeadLetter, err = e.db.ListRange(ctx, deadLetterKey, 0, 9); err != nil {
		return p, err
	}
	return p, nil
}

// Recent scans job:* records, capped at 800 scanned, and returns the
// most recently updated ones first, capped at 50, exactly as the
// original's /recent endpoint does.
func (e *Engine) Recent(ctx context.Context) ([]*Job, error) {
	const scanCap = 800
	const returnCap = 50

	keys, err := e.db.Keys(ctx, jobKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("queue: scan job keys: %w", err)
	}
	if len(keys) > scanCap {
		keys = keys[:scanCap]
	}

	jobs := make([]*Job, 0, len(keys))
	for _, k := range keys {
		fields, err := e.db.HashGetAll(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("queue: read job %s: %w", k, err)
		}
		j, ok := JobFromHash(fields)
		if !ok {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].UpdatedAt > jobs[j].UpdatedAt })
	if len(jobs) > returnCap {
		jobs = jobs[:returnCap]
	}
	return jobs, nil
}
