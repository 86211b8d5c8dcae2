package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeHashRoundTrip(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.HashSet(ctx, "job:1", map[string]string{"status": "queued"}))
	got, err := f.HashGetAll(ctx, "job:1")
	require.NoError(t, err)
	assert.Equal(t, "queued", got["status"])
}

func TestFakeListPushLeftOrdering(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.ListPushLeft(ctx, "q", "a"))
	require.NoError(t, f.ListPushLeft(ctx, "q", "b"))

	n, err := f.ListLen(ctx, "q")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rng, err := f.ListRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, rng)
}

func TestFakeBlockingPopLeftPrefersFirstKey(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.ListPushLeft(ctx, "low", "low-job"))
	require.NoError(t, f.ListPushLeft(ctx, "high", "high-job"))

	key, val, ok, err := f.BlockingPopLeft(ctx, time.Second, "high", "low")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "high", key)
	assert.Equal(t, "high-job", val)
}

func TestFakeBlockingPopLeftTimesOut(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	_, _, ok, err := f.BlockingPopLeft(ctx, 20*time.Millisecond, "empty")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFakeSortedSetRangeByScore(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.SortedSetAdd(ctx, "z", ZMember{Member: "a", Score: 1}, ZMember{Member: "b", Score: 5}))

	members, err := f.SortedSetRangeByScore(ctx, "z", 0, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)
}

func TestFakePipelineAppliesAllOps(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.Pipeline(ctx, func(p Pipeliner) {
		p.ListPushLeft("q", "x")
		p.HashSet("job:1", map[string]string{"status": "queued"})
		p.HashIncrByFloat("metrics:counter:foo", "", 1.0)
	}))

	n, err := f.ListLen(ctx, "q")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	h, err := f.HashGetAll(ctx, "job:1")
	require.NoError(t, err)
	assert.Equal(t, "queued", h["status"])
}

func TestFakeBlockingPopLeftReturnsMostRecentlyPushed(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.ListPushLeft(ctx, "q", "a"))
	require.NoError(t, f.ListPushLeft(ctx, "q", "b"))

	_, val, ok, err := f.BlockingPopLeft(ctx, time.Second, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", val, "BLPOP pops the same end LPUSH writes to")
}

func TestFakePublishSubscribe(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	sub := f.Subscribe(ctx, "events")
	defer sub.Close()

	require.NoError(t, f.Publish(ctx, "events", "hello"))

	select {
	case msg := <-sub.C():
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestFakeKeysGlobMatch(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.HashSet(ctx, "job:1", map[string]string{"id": "1"}))
	require.NoError(t, f.HashSet(ctx, "job:2", map[string]string{"id": "2"}))
	require.NoError(t, f.HashSet(ctx, "other:1", map[string]string{"id": "x"}))

	keys, err := f.Keys(ctx, "job:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"job:1", "job:2"}, keys)
}
