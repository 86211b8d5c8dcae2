package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pytake/taskqueue/internal/queue"
	"github.com/pytake/taskqueue/internal/store"
)

func newTestWorker(registry *queue.Registry) (*Worker, *queue.Engine) {
	db := store.NewFake()
	engine := queue.NewEngine(db, time.Hour)
	w := New(Config{
		ID:             0,
		Engine:         engine,
		Registry:       registry,
		DequeueTimeout: 50 * time.Millisecond,
	})
	return w, engine
}

func TestProcessOneRunsRegisteredHandler(t *testing.T) {
	registry := queue.NewRegistry()
	registry.Register("instant", func(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})
	w, engine := newTestWorker(registry)
	ctx := context.Background()

	j := queue.NewJob("w1", "instant", nil, 3, 1.5, queue.PriorityHigh)
	require.NoError(t, engine.Enqueue(ctx, j, 0))

	worked, err := w.processOne(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	got, ok, err := engine.Load(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, queue.StatusSucceeded, got.Status)
	assert.EqualValues(t, 1, w.Stats().Succeeded)
}

func TestProcessOneRetriesOnHandlerError(t *testing.T) {
	registry := queue.NewRegistry()
	registry.Register("flaky", func(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
		return nil, errors.New("transient failure")
	})
	w, engine := newTestWorker(registry)
	ctx := context.Background()

	j := queue.NewJob("w2", "flaky", nil, 3, 1.5, queue.PriorityDefault)
	require.NoError(t, engine.Enqueue(ctx, j, 0))

	worked, err := w.processOne(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	got, ok, err := engine.Load(ctx, "w2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, queue.StatusScheduled, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.EqualValues(t, 1, w.Stats().Retried)
}

func TestProcessOneDeadLettersUnknownType(t *testing.T) {
	registry := queue.NewRegistry()
	w, engine := newTestWorker(registry)
	ctx := context.Background()

	j := queue.NewJob("w3", "does_not_exist", nil, 0, 1.5, queue.PriorityDefault)
	require.NoError(t, engine.Enqueue(ctx, j, 0))

	worked, err := w.processOne(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	got, ok, err := engine.Load(ctx, "w3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, queue.StatusDead, got.Status)
	assert.EqualValues(t, 1, w.Stats().Dead)
}

func TestProcessOneReturnsFalseWhenQueueEmpty(t *testing.T) {
	registry := queue.NewRegistry()
	w, _ := newTestWorker(registry)
	ctx := context.Background()

	worked, err := w.processOne(ctx)
	require.NoError(t, err)
	assert.False(t, worked)
}

func TestPoolStartAndStopDrainsQueuedJobs(t *testing.T) {
	registry := queue.NewRegistry()
	registry.Register("instant", func(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
		return "done", nil
	})

	db := store.NewFake()
	engine := queue.NewEngine(db, time.Hour)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, engine.Enqueue(ctx, queue.NewJob(string(rune('a'+i)), "instant", nil, 3, 1.5, queue.PriorityDefault), 0))
	}

	pool := NewPool(2, engine, registry, nil, queue.NoopPublisher{}, nil, 50*time.Millisecond)
	runCtx, cancel := context.WithCancel(ctx)
	pool.Start(runCtx)

	require.Eventually(t, func() bool {
		sizes, err := engine.Sizes(ctx)
		return err == nil && sizes.Default == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()

	assert.GreaterOrEqual(t, pool.Stats().Succeeded, int64(5))
}
