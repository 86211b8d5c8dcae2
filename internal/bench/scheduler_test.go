package bench

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecurringSchedulerRunsBurstOnSchedule(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	s := NewRecurringScheduler(engine, nil, nil)
	require.NoError(t, s.AddBurst("@every 50ms", DemoSmall))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		sizes, err := engine.Sizes(ctx)
		return err == nil && sizes.High+sizes.Default+sizes.Low > 0
	}, 2*time.Second, 20*time.Millisecond)
}
