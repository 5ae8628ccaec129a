package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronSchedulerValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewCronScheduler("0 6 * * *", time.UTC).Validate())
	assert.Error(t, NewCronScheduler("every morning", time.UTC).Validate())
	assert.Error(t, NewCronScheduler("0 0 6 * * *", time.UTC).Validate(), "seconds field is not accepted")
}

func TestCronSchedulerNext(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("30 6 * * 1-5", time.UTC)
	friday := time.Date(2026, time.May, 8, 7, 0, 0, 0, time.UTC)

	next, err := s.Next(friday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.May, 11, 6, 30, 0, 0, time.UTC), next)
}

func TestCronSchedulerStartStop(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("* * * * *", time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, func(time.Time) {}))
	require.NoError(t, s.Start(ctx, func(time.Time) {}), "second start is a no-op")
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestCronSchedulerStartRejectsBadSpec(t *testing.T) {
	t.Parallel()

	err := NewCronScheduler("nope", time.UTC).Start(context.Background(), func(time.Time) {})
	require.Error(t, err)
}
