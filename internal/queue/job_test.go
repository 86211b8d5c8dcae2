package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobHashRoundTrip(t *testing.T) {
	j := NewJob("job-1", "echo", map[string]interface{}{"hello": "world"}, 3, 1.5, PriorityHigh)

	fields := j.ToHashFields()
	got, ok := JobFromHash(fields)
	require.True(t, ok)

	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, j.Type, got.Type)
	assert.Equal(t, j.Status, got.Status)
	assert.Equal(t, j.Priority, got.Priority)
	assert.Equal(t, j.MaxRetries, got.MaxRetries)
	assert.Equal(t, j.BackoffSec, got.BackoffSec)
	assert.Equal(t, "world", got.Payload["hello"])
	assert.Nil(t, got.NextRunAt)
	assert.Nil(t, got.Error)
}

func TestJobFromHashEmptyIsAbsent(t *testing.T) {
	_, ok := JobFromHash(map[string]string{})
	assert.False(t, ok)
}

func TestJobFromHashDefaultsOnMissingFields(t *testing.T) {
	got, ok := JobFromHash(map[string]string{"id": "job-2", "type": "sleep"})
	require.True(t, ok)

	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, PriorityDefault, got.Priority)
	assert.Equal(t, 3, got.MaxRetries)
	assert.Equal(t, 1.5, got.BackoffSec)
}

func TestJobNextRunAtRoundTrip(t *testing.T) {
	j := NewJob("job-3", "sleep", nil, 3, 1.5, PriorityLow)
	runAt := 12345.5
	j.NextRunAt = &runAt
	j.Status = StatusScheduled

	fields := j.ToHashFields()
	got, ok := JobFromHash(fields)
	require.True(t, ok)
	require.NotNil(t, got.NextRunAt)
	assert.Equal(t, runAt, *got.NextRunAt)
}

func TestJobErrorRoundTrip(t *testing.T) {
	j := NewJob("job-4", "sleep", nil, 3, 1.5, PriorityDefault)
	errMsg := "boom: something broke"
	j.Error = &errMsg

	fields := j.ToHashFields()
	got, ok := JobFromHash(fields)
	require.True(t, ok)
	require.NotNil(t, got.Error)
	assert.Equal(t, errMsg, *got.Error)
}
