package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"followwatch/pkg/logger"
)

// Handler processes one job
type Handler[J, R any] func(ctx context.Context, job J) R

// Result pairs a job with what its handler produced
type Result[J, R any] struct {
	Job      J
	Value    R
	Duration time.Duration
}

// WorkerPool runs jobs on a fixed number of goroutines
type WorkerPool[J, R any] struct {
	numWorkers  int
	jobQueue    chan J
	resultQueue chan Result[J, R]
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	handler     Handler[J, R]
	logger      logger.Logger
	stopOnce    sync.Once

	// mu guards closed against concurrent Submit and Stop
	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool of numWorkers workers. Handlers receive a
// context derived from ctx.
func NewWorkerPool[J, R any](ctx context.Context, numWorkers int, handler Handler[J, R], log logger.Logger) *WorkerPool[J, R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool[J, R]{
		numWorkers:  numWorkers,
		jobQueue:    make(chan J, numWorkers*2),
		resultQueue: make(chan Result[J, R], numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		handler:     handler,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool[J, R]) Start() {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue and waits for queued jobs to finish. Results must
// be drained concurrently or Stop blocks.
func (wp *WorkerPool[J, R]) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.jobQueue)
		wp.mu.Unlock()

		wp.wg.Wait()
		close(wp.resultQueue)
		wp.cancel()
	})
}

// Submit queues a job
func (wp *WorkerPool[J, R]) Submit(job J) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return fmt.Errorf("worker pool is stopped")
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel; it is closed by Stop
func (wp *WorkerPool[J, R]) Results() <-chan Result[J, R] {
	return wp.resultQueue
}

// Size returns the number of workers
func (wp *WorkerPool[J, R]) Size() int {
	return wp.numWorkers
}

func (wp *WorkerPool[J, R]) worker(id int) {
	defer wp.wg.Done()

	// every queued job is handled, even after cancellation; handlers see
	// the cancelled context and return quickly
	for job := range wp.jobQueue {
		start := time.Now()
		value := wp.handler(wp.ctx, job)
		wp.resultQueue <- Result[J, R]{Job: job, Value: value, Duration: time.Since(start)}
	}

	wp.logger.DebugWithFields("worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// Run handles every job on a pool of numWorkers and returns one result per
// job in completion order. Cancelling ctx does not drop jobs.
func Run[J, R any](ctx context.Context, numWorkers int, jobs []J, handler Handler[J, R], log logger.Logger) []Result[J, R] {
	wp := NewWorkerPool(ctx, numWorkers, handler, log)
	wp.Start()

	go func() {
		for _, job := range jobs {
			wp.jobQueue <- job
		}
		wp.Stop()
	}()

	results := make([]Result[J, R], 0, len(jobs))
	for r := range wp.Results() {
		results = append(results, r)
	}
	return results
}
