// Package scheduler triggers batch runs on a fixed cadence and on-demand
// checks of single targets.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"followwatch/pkg/logger"
	"followwatch/pkg/monitor"
)

// ErrStopped is returned by operations on a stopped scheduler
var ErrStopped = errors.New("scheduler is stopped")

// Runner is what the scheduler drives
type Runner interface {
	RunBatch(ctx context.Context) monitor.BatchReport
	RunOne(ctx context.Context, targetID int64) monitor.Outcome
}

// Scheduler owns the periodic timer and the ad-hoc triggers
type Scheduler struct {
	runner Runner
	log    logger.Logger
	ctx    context.Context

	mu      sync.Mutex
	cron    *cron.Cron
	initial *time.Timer
	batch   cron.Job
	started bool
	stopped bool

	wg sync.WaitGroup
}

// New creates an idle scheduler
func New(runner Runner, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "scheduler")
	s := &Scheduler{
		runner: runner,
		log:    log,
		ctx:    context.Background(),
	}
	cl := cronLogger{log: log}
	s.cron = cron.New(cron.WithLogger(cl))
	// one guard shared by the cron entry and the initial run
	s.batch = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.runBatch))
	return s
}

// Start arms the repeating schedule. The first batch fires after
// initialDelay, then every interval after the previous one started.
func (s *Scheduler) Start(interval, initialDelay time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true

	s.cron.Schedule(cron.Every(interval), s.batch)
	s.cron.Start()

	s.wg.Add(1)
	s.initial = time.AfterFunc(initialDelay, func() {
		defer s.wg.Done()
		s.batch.Run()
	})

	s.log.InfoWithFields("scheduler started", map[string]interface{}{
		"interval":      interval,
		"initial_delay": initialDelay,
	})
	return nil
}

func (s *Scheduler) runBatch() {
	report := s.runner.RunBatch(s.ctx)
	if report.Err != nil {
		s.log.WithError(report.Err).WarnWithFields("batch run failed", map[string]interface{}{"run_id": report.RunID})
	}
}

// TriggerNow runs an on-demand check of targetID in the background
func (s *Scheduler) TriggerNow(targetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		out := s.runner.RunOne(s.ctx, targetID)
		s.log.DebugWithFields("on-demand check finished", map[string]interface{}{
			"target_id": targetID,
			"outcome":   string(out.Status),
		})
	}()
	return nil
}

// Stop halts the timer and waits for running batches and triggers to
// finish. Running work is not cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.initial != nil && s.initial.Stop() {
		// the initial run never fired
		s.wg.Done()
	}
	started := s.started
	s.mu.Unlock()

	if started {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// cronLogger routes cron's logging into ours
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.DebugWithFields("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).ErrorWithFields("cron: "+msg, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
