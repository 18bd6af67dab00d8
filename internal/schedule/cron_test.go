package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	r := NewRunner(zerolog.Nop())

	err := r.Add("every hour", "fetch", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestNextFollowsSpec(t *testing.T) {
	r := NewRunner(zerolog.Nop(), WithLocation(time.UTC))
	require.NoError(t, r.Add("0 * * * *", "fetch", func(context.Context) error { return nil }))

	r.Start()
	defer r.Stop()

	next := r.Next()
	require.False(t, next.IsZero())
	require.Zero(t, next.Minute())
	require.WithinDuration(t, time.Now(), next, time.Hour)
}

func TestNextBeforeStart(t *testing.T) {
	r := NewRunner(zerolog.Nop(), WithLocation(time.UTC))
	require.True(t, r.Next().IsZero())

	require.NoError(t, r.Add("*/30 * * * *", "fetch", func(context.Context) error { return nil }))
	require.NoError(t, r.Add("0 6 * * *", "daily", func(context.Context) error { return nil }))

	next := r.Next()
	require.Contains(t, []int{0, 30}, next.Minute())
	require.WithinDuration(t, time.Now(), next, 30*time.Minute)
}

func TestRunExecutesJobs(t *testing.T) {
	var runs atomic.Int32
	r := NewRunner(zerolog.Nop(), WithTimeout(time.Second))
	require.NoError(t, r.Add("@every 1s", "fetch", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		if !hasDeadline {
			return errors.New("missing deadline")
		}
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	require.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	var (
		active  atomic.Int32
		overlap atomic.Bool
		runs    atomic.Int32
	)
	r := NewRunner(zerolog.Nop(), WithTimeout(10*time.Second))
	require.NoError(t, r.Add("@every 1s", "slow", func(context.Context) error {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)
		runs.Add(1)
		time.Sleep(2500 * time.Millisecond)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 3500*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	require.False(t, overlap.Load())
	require.Equal(t, int32(1), runs.Load())
}
