package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followwatch/pkg/logger"
	"followwatch/pkg/monitor"
)

type fakeRunner struct {
	batches int32
	mu      sync.Mutex
	ones    []int64
	block   chan struct{}
}

func (r *fakeRunner) RunBatch(ctx context.Context) monitor.BatchReport {
	atomic.AddInt32(&r.batches, 1)
	if r.block != nil {
		<-r.block
	}
	return monitor.BatchReport{RunID: "run"}
}

func (r *fakeRunner) RunOne(ctx context.Context, id int64) monitor.Outcome {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.ones = append(r.ones, id)
	r.mu.Unlock()
	return monitor.Outcome{Status: monitor.StatusSuccess}
}

func (r *fakeRunner) triggered() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ones...)
}

func TestInitialRunFiresAfterDelay(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, logger.NewNopLogger())
	require.NoError(t, s.Start(time.Hour, 10*time.Millisecond))
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&r.batches) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRepeatingSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the cron tick")
	}
	r := &fakeRunner{}
	s := New(r, logger.NewNopLogger())
	require.NoError(t, s.Start(time.Second, time.Hour))
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&r.batches) >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestOverlappingBatchesAreSkipped(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{})}
	s := New(r, logger.NewNopLogger())

	go s.batch.Run()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&r.batches) == 1 }, time.Second, time.Millisecond)

	// returns at once while the first run is still going
	s.batch.Run()
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.batches))
	close(r.block)
}

func TestTriggerNow(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, logger.NewNopLogger())

	require.NoError(t, s.TriggerNow(5))
	require.NoError(t, s.TriggerNow(6))
	s.Stop()

	assert.ElementsMatch(t, []int64{5, 6}, r.triggered())
	assert.True(t, errors.Is(s.TriggerNow(7), ErrStopped))
}

func TestStopWaitsForInFlightWork(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{})}
	s := New(r, logger.NewNopLogger())
	require.NoError(t, s.TriggerNow(1))

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the trigger finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(r.block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, []int64{1}, r.triggered())
}

func TestStopCancelsPendingInitialRun(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, logger.NewNopLogger())
	require.NoError(t, s.Start(time.Hour, time.Hour))
	s.Stop()

	assert.Equal(t, int32(0), atomic.LoadInt32(&r.batches))
	assert.True(t, errors.Is(s.Start(time.Hour, 0), ErrStopped))
}

func TestStartValidation(t *testing.T) {
	s := New(&fakeRunner{}, logger.NewNopLogger())
	assert.Error(t, s.Start(10*time.Millisecond, 0))
	require.NoError(t, s.Start(time.Hour, time.Hour))
	assert.Error(t, s.Start(time.Hour, time.Hour))
	s.Stop()
}

func TestCronLoggerFields(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"entry": 1, "now": "x"}, kvFields([]interface{}{"entry", 1, "now", "x", "dangling"}))
}
