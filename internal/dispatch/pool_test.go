package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followwatch/pkg/logger"
)

func TestRunHandlesEveryJob(t *testing.T) {
	jobs := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	results := Run(context.Background(), 3, jobs, func(ctx context.Context, n int) int {
		return n * n
	}, logger.NewNopLogger())

	require.Len(t, results, len(jobs))
	sum := 0
	for _, r := range results {
		assert.Equal(t, r.Job*r.Job, r.Value)
		sum += r.Value
	}
	assert.Equal(t, 385, sum)
}

func TestRunBoundsConcurrency(t *testing.T) {
	var current, peak int32
	jobs := make([]int, 20)

	Run(context.Background(), 4, jobs, func(ctx context.Context, _ int) struct{} {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return struct{}{}
	}, logger.NewNopLogger())

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}

func TestRunWithCancelledContextStillReportsEveryJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Run(ctx, 2, []string{"a", "b", "c"}, func(ctx context.Context, s string) error {
		return ctx.Err()
	}, logger.NewNopLogger())

	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Value, context.Canceled)
	}
}

func TestWorkerPoolSubmitAfterStop(t *testing.T) {
	wp := NewWorkerPool(context.Background(), 0, func(ctx context.Context, n int) int { return n }, logger.NewNopLogger())
	assert.Equal(t, 1, wp.Size())
	wp.Start()

	require.NoError(t, wp.Submit(7))
	go wp.Stop()

	var got []int
	for r := range wp.Results() {
		got = append(got, r.Value)
	}
	assert.Equal(t, []int{7}, got)

	wp.Stop()
	assert.Error(t, wp.Submit(8))
}
