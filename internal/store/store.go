// Package store wraps the external key/value store (Redis) behind a
// narrow interface so the queue engine, metrics sink, and rate limiter
// depend on a contract rather than a concrete client. A fake
// implementation backs the package's own tests and the queue/worker
// tests, without a live Redis involved.
package store

import (
	"context"
	"time"
)

// ZMember is a single member/score pair for a sorted-set write.
type ZMember struct {
	Member string
	Score  float64
}

// Store is the full set of key/value operations the control plane,
// worker, and metrics sink need. Every method maps to a single Redis
// command (or a small pipeline of them) so the Redis-backed
// implementation stays a thin adapter.
type Store interface {
	// Hash operations back job records (job:<id>).
	HashSet(ctx context.Context, key string, fields map[string]string) error
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	HashGet(ctx context.Context, key, field string) (string, bool, error)
	HashIncrByFloat(ctx context.Context, key, field string, amount float64) (float64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// List operations back the priority queues and the dead-letter list.
	ListPushLeft(ctx context.Context, key string, values ...string) error
	ListLen(ctx context.Context, key string) (int64, error)
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	BlockingPopLeft(ctx context.Context, timeout time.Duration, keys ...string) (key string, value string, ok bool, err error)

	// Sorted-set operations back queue:scheduled.
	SortedSetAdd(ctx context.Context, key string, members ...ZMember) error
	SortedSetRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)
	SortedSetRem(ctx context.Context, key string, members ...string) error
	SortedSetCard(ctx context.Context, key string) (int64, error)

	// Keys lists keys matching a glob pattern (used by /recent and the
	// metrics exposition renderer, mirroring the original's `r.keys(...)`).
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Counter used by the rate limiter middleware.
	Incr(ctx context.Context, key string) (int64, error)

	// Pipeline batches a set of writes into one round trip. The function
	// receives a Pipeliner to queue commands on; Pipeline executes them
	// together and returns the first error, if any.
	Pipeline(ctx context.Context, fn func(p Pipeliner)) error

	// Publish/Subscribe bridge job lifecycle events across processes:
	// the worker binary publishes, the API binary's websocket hub
	// subscribes and rebroadcasts to connected clients.
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channel string) Subscription

	Ping(ctx context.Context) error
	Close() error
}

// Subscription delivers messages published to a single channel. Close
// must be safe to call more than once and unblocks any reader of C.
type Subscription interface {
	C() <-chan string
	Close() error
}

// Pipeliner queues a batch of write commands for a single round trip.
// It mirrors the subset of Store's write surface that move_due_jobs and
// observe_histogram need inside a pipeline.
type Pipeliner interface {
	ListPushLeft(key string, values ...string)
	SortedSetAdd(key string, members ...ZMember)
	SortedSetRem(key string, members ...string)
	HashSet(key string, fields map[string]string)
	HashIncrByFloat(key, field string, amount float64)
}
