package monitor

import (
	"context"
	"errors"
	"time"

	"followwatch/pkg/diff"
	errs "followwatch/pkg/errors"
	"followwatch/pkg/logger"
	"followwatch/pkg/metrics"
	"followwatch/pkg/models"
	"followwatch/pkg/pool"
	"followwatch/pkg/scraper"
)

// Task checks one target
type Task struct {
	store    Store
	pool     AccountPool
	scrapers Scrapers
	timeout  time.Duration
	clock    models.Clock
	log      logger.Logger
}

// NewTask creates a task runner. timeout bounds each scraper call.
func NewTask(store Store, accounts AccountPool, scrapers Scrapers, timeout time.Duration, log logger.Logger) *Task {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Task{
		store:    store,
		pool:     accounts,
		scrapers: scrapers,
		timeout:  timeout,
		clock:    models.RealClock{},
		log:      log,
	}
}

// SetClock overrides the clock used for snapshot timestamps
func (t *Task) SetClock(c models.Clock) {
	t.clock = c
}

// Run performs one check of target. The leased account is released on
// every path.
func (t *Task) Run(ctx context.Context, target models.TrackedTarget) Outcome {
	if !target.Active {
		return skipped(target, SkipInactive)
	}

	s, ok := t.scrapers.Get(target.Platform)
	if !ok {
		return failure(target, errs.ScrapeFailed(errs.ReasonUnsupported, "no scraper for platform "+target.Platform.String(), nil))
	}

	lease, err := t.pool.Acquire(ctx, target.Platform)
	if err != nil {
		if errors.Is(err, pool.ErrNoAccountAvailable) {
			return failure(target, errs.PoolExhausted(target.Platform.String(), err))
		}
		return failure(target, errs.Wrap(errs.KindUnknown, err, "acquire account"))
	}
	metrics.SetAccountsInUse(t.pool.InUse())

	log := t.log.WithFields(map[string]interface{}{
		"target_id":  target.ID,
		"platform":   target.Platform.String(),
		"account_id": lease.Account.ID,
	})

	var sessionHandle string
	defer func() {
		// release must outlive a cancelled check
		t.pool.Release(context.WithoutCancel(ctx), lease, sessionHandle)
		metrics.SetAccountsInUse(t.pool.InUse())
	}()

	result, err := t.fetch(ctx, s, lease.Account, target)
	if result != nil {
		sessionHandle = result.SessionHandle
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return skipped(target, SkipCancelled)
		}
		log.WithError(err).DebugWithFields("fetch failed", map[string]interface{}{
			"reason": string(errs.ReasonOf(err)),
		})
		return failure(target, err)
	}

	stored, err := t.store.AddSnapshot(ctx, models.Snapshot{
		TargetID:       target.ID,
		Timestamp:      t.clock.Now(),
		FollowerCount:  result.FollowerCount,
		FollowingCount: result.FollowingCount,
		Followers:      result.Followers,
		Following:      result.Following,
	})
	if err != nil {
		return failure(target, errs.StoreFailure("add snapshot", err))
	}

	recent, err := t.store.LastTwoSnapshots(ctx, target.ID)
	if err != nil {
		return failure(target, errs.StoreFailure("load snapshots", err))
	}
	d := diff.Compute(previousOf(recent, stored.ID), stored)

	if err := t.store.SetTargetLastChecked(ctx, target.ID, stored.Timestamp); err != nil {
		return failure(target, errs.StoreFailure("set last checked", err))
	}

	checked := stored.Timestamp
	target.LastCheckedAt = &checked
	if target.Username == "" {
		target.Username = result.Username
	}
	return success(target, stored, d)
}

func (t *Task) fetch(ctx context.Context, s scraper.Scraper, account models.ScraperAccount, target models.TrackedTarget) (*scraper.Result, error) {
	fetchCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.Fetch(fetchCtx, account, target.ProfileURL)
	metrics.ObserveScrape(target.Platform.String(), time.Since(start))

	if err == nil {
		return result, nil
	}
	if errs.KindOf(err) == errs.KindScrapeFailed {
		return result, err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return result, errs.ScrapeFailed(errs.ReasonTimeout, "scrape timed out", err)
	}
	return result, errs.ScrapeFailed(errs.ReasonNone, "scrape failed", err)
}

// previousOf picks the snapshot before current out of the two most recent
func previousOf(recent []models.Snapshot, currentID int64) *models.Snapshot {
	for i := range recent {
		if recent[i].ID != currentID {
			return &recent[i]
		}
	}
	return nil
}
