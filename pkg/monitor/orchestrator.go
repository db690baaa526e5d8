package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"followwatch/internal/dispatch"
	errs "followwatch/pkg/errors"
	"followwatch/pkg/logger"
	"followwatch/pkg/metrics"
	"followwatch/pkg/models"
	"followwatch/pkg/notify"
	"followwatch/pkg/store"
)

const notifyTimeout = 30 * time.Second

// Options configures the orchestrator
type Options struct {
	Workers       int
	ScrapeTimeout time.Duration
}

// flight is a check currently running for a target
type flight struct {
	cancel     context.CancelFunc
	done       chan struct{}
	superseded bool
}

// Orchestrator runs batches and on-demand checks
type Orchestrator struct {
	store    Store
	pool     AccountPool
	task     *Task
	notifier notify.Notifier
	workers  int
	log      logger.Logger

	mu       sync.Mutex
	inflight map[int64]*flight
}

// NewOrchestrator wires the engine together
func NewOrchestrator(st Store, accounts AccountPool, scrapers Scrapers, notifier notify.Notifier, opts Options, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	log = log.WithField("component", "orchestrator")
	return &Orchestrator{
		store:    st,
		pool:     accounts,
		task:     NewTask(st, accounts, scrapers, opts.ScrapeTimeout, log),
		notifier: notifier,
		workers:  opts.Workers,
		log:      log,
		inflight: make(map[int64]*flight),
	}
}

// Task exposes the task runner, mainly to swap its clock in tests
func (o *Orchestrator) Task() *Task {
	return o.task
}

// RunBatch checks every active target once. It returns when every target
// has an outcome.
func (o *Orchestrator) RunBatch(ctx context.Context) BatchReport {
	report := BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		PerTarget: make(map[int64]Outcome),
	}
	log := o.log.WithField("run_id", report.RunID)
	defer func() {
		report.FinishedAt = time.Now()
		metrics.ObserveBatch(report.StartedAt)
	}()

	if err := o.pool.Refresh(ctx); err != nil {
		log.WithError(err).Warn("account roster refresh failed, using previous roster")
	}

	targets, err := o.store.ListActiveTargets(ctx)
	if err != nil {
		report.Err = errs.StoreFailure("list active targets", err)
		log.WithError(err).Error("batch aborted: could not load targets")
		return report
	}

	workers := o.workers
	if c := o.pool.Capacity(); c < workers {
		workers = c
	}
	if workers < 1 {
		workers = 1
	}

	gates := o.platformGates(targets, workers)
	targets = interleavePlatforms(targets)

	log.InfoWithFields("batch started", map[string]interface{}{
		"targets":   len(targets),
		"workers":   workers,
		"platforms": len(gates),
	})

	results := dispatch.Run(ctx, workers, targets, func(ctx context.Context, t models.TrackedTarget) Outcome {
		gate := gates[t.Platform]
		select {
		case gate <- struct{}{}:
		case <-ctx.Done():
			out := skipped(t, SkipCancelled)
			o.record(log, out, time.Now())
			return out
		}
		defer func() { <-gate }()
		return o.runTarget(ctx, t, false, log)
	}, log)
	for _, r := range results {
		r.Value.Duration = r.Duration
		report.PerTarget[r.Job.ID] = r.Value
	}

	log.InfoWithFields("batch finished", map[string]interface{}{
		"success":  report.Count(StatusSuccess),
		"skipped":  report.Count(StatusSkipped),
		"failure":  report.Count(StatusFailure),
		"duration": time.Since(report.StartedAt),
	})
	return report
}

// platformGates caps the concurrent checks of each platform at its account
// count, and at workers
func (o *Orchestrator) platformGates(targets []models.TrackedTarget, workers int) map[models.Platform]chan struct{} {
	gates := make(map[models.Platform]chan struct{})
	for _, t := range targets {
		if _, ok := gates[t.Platform]; ok {
			continue
		}
		size := o.pool.CapacityFor(t.Platform)
		if size > workers {
			size = workers
		}
		if size < 1 {
			size = 1
		}
		gates[t.Platform] = make(chan struct{}, size)
	}
	return gates
}

// interleavePlatforms orders targets round-robin across platforms, keeping
// the store order within a platform
func interleavePlatforms(targets []models.TrackedTarget) []models.TrackedTarget {
	var order []models.Platform
	byPlatform := make(map[models.Platform][]models.TrackedTarget)
	for _, t := range targets {
		if _, ok := byPlatform[t.Platform]; !ok {
			order = append(order, t.Platform)
		}
		byPlatform[t.Platform] = append(byPlatform[t.Platform], t)
	}

	out := make([]models.TrackedTarget, 0, len(targets))
	for i := 0; len(out) < len(targets); i++ {
		for _, p := range order {
			if group := byPlatform[p]; i < len(group) {
				out = append(out, group[i])
			}
		}
	}
	return out
}

// RunOne checks a single target now. A newer RunOne for the same target
// cancels this one, and only the newest outcome is notified.
func (o *Orchestrator) RunOne(ctx context.Context, targetID int64) Outcome {
	log := o.log.WithField("target_id", targetID)

	target, err := o.store.GetTarget(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("on-demand check for unknown target")
			return skipped(models.TrackedTarget{ID: targetID}, SkipNotFound)
		}
		log.WithError(err).Error("failed to load target")
		return failure(models.TrackedTarget{ID: targetID}, errs.StoreFailure("get target", err))
	}
	return o.runTarget(ctx, *target, true, log)
}

// runTarget registers the check as the target's flight, runs it and
// notifies. With supersede set an existing flight is cancelled and awaited
// until it has fully unwound, so at most one task runs per target; otherwise
// an existing flight makes this check a skip.
func (o *Orchestrator) runTarget(ctx context.Context, target models.TrackedTarget, supersede bool, log logger.Logger) Outcome {
	start := time.Now()

	fctx, f, prev, ok := o.claim(ctx, target.ID, supersede)
	if !ok {
		out := skipped(target, SkipInFlight)
		o.record(log, out, start)
		return out
	}
	defer f.cancel()

	var out Outcome
	if prev != nil {
		// wait even when cancelled: prev may still hold a lease for this target
		<-prev.done
	}
	if fctx.Err() != nil {
		out = skipped(target, SkipCancelled)
	} else {
		out = o.task.Run(fctx, target)
	}

	if o.finish(target.ID, f) {
		out = skipped(target, SkipSuperseded)
	}
	out.Duration = time.Since(start)
	o.record(log, out, start)

	o.deliver(context.WithoutCancel(ctx), out, log)
	return out
}

// claim registers a new flight for id and returns its context. prev is the
// flight being superseded; ok is false when a flight exists and supersede
// is off.
func (o *Orchestrator) claim(ctx context.Context, id int64, supersede bool) (fctx context.Context, f, prev *flight, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev = o.inflight[id]
	if prev != nil && !supersede {
		return nil, nil, nil, false
	}
	var cancel context.CancelFunc
	fctx, cancel = context.WithCancel(ctx)
	f = &flight{done: make(chan struct{}), cancel: cancel}
	if prev != nil {
		prev.superseded = true
		prev.cancel()
	}
	o.inflight[id] = f
	return fctx, f, prev, true
}

// finish deregisters f and reports whether it was superseded meanwhile
func (o *Orchestrator) finish(id int64, f *flight) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[id] == f {
		delete(o.inflight, id)
	}
	close(f.done)
	return f.superseded
}

func (o *Orchestrator) record(log logger.Logger, out Outcome, start time.Time) {
	metrics.IncOutcome(string(out.Status), string(out.Kind()))
	logger.LogTaskOutcome(log.WithField("outcome", string(out.Status)), out.Target.ID, string(out.Status), time.Since(start), out.Err)
}

// deliver sends the report for out. Notifier errors are only logged.
func (o *Orchestrator) deliver(ctx context.Context, out Outcome, log logger.Logger) {
	var report notify.Report
	switch out.Status {
	case StatusSuccess:
		report = RenderReport(out.Target, *out.Snapshot, *out.Diff)
	case StatusFailure:
		report = RenderFailure(out.Target)
	default:
		return
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := o.notifier.Notify(ctx, out.Target.OwnerID, report); err != nil {
		metrics.IncNotifyFailure()
		log.WithError(err).WarnWithFields("failed to deliver report", map[string]interface{}{
			"target_id": out.Target.ID,
			"owner_id":  out.Target.OwnerID,
		})
	}
}
