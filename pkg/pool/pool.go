// Package pool leases scraper accounts to scrape tasks.
//
// Every account is held by at most one task at a time. Among the free,
// active accounts of a platform the least recently used one is handed out;
// an account that was never used counts as the oldest, and ties go to the
// lowest id.
package pool

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"followwatch/pkg/logger"
	"followwatch/pkg/models"
)

// ErrNoAccountAvailable is returned when every eligible account is leased or none exists
var ErrNoAccountAvailable = errors.New("no scraper account available")

// AccountStore is the part of the store the pool needs
type AccountStore interface {
	ListAccounts(ctx context.Context, platform models.Platform) ([]models.ScraperAccount, error)
	TouchAccount(ctx context.Context, id int64, usedAt time.Time, sessionHandle string) error
}

// Lease is an exclusive hold on one account
type Lease struct {
	Account models.ScraperAccount
	seq     uint64
}

type entry struct {
	account models.ScraperAccount
	leased  bool
	seq     uint64
	// stale entries were dropped from the roster while leased
	stale bool
}

// Pool hands out accounts. All lease state is guarded by one mutex.
type Pool struct {
	store     AccountStore
	platforms []models.Platform
	log       logger.Logger
	clock     models.Clock

	mu      sync.Mutex
	entries map[models.Platform]map[int64]*entry
	seq     uint64
}

// New creates an empty pool for the given platforms. Call Refresh to load
// the roster.
func New(store AccountStore, platforms []models.Platform, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	p := &Pool{
		store:     store,
		platforms: platforms,
		log:       log.WithField("component", "pool"),
		clock:     models.RealClock{},
		entries:   make(map[models.Platform]map[int64]*entry),
	}
	for _, pl := range platforms {
		p.entries[pl] = make(map[int64]*entry)
	}
	return p
}

// SetClock overrides the clock used for last-used stamps
func (p *Pool) SetClock(c models.Clock) {
	p.mu.Lock()
	p.clock = c
	p.mu.Unlock()
}

// Refresh reloads the roster of every platform. Leased accounts keep their
// lease; a leased account missing from the new roster is dropped when it is
// released.
func (p *Pool) Refresh(ctx context.Context) error {
	listed := make(map[models.Platform][]models.ScraperAccount, len(p.platforms))
	var errs []error
	for _, pl := range p.platforms {
		accounts, err := p.store.ListAccounts(ctx, pl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		listed[pl] = accounts
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for pl, accounts := range listed {
		current := p.entries[pl]
		next := make(map[int64]*entry, len(accounts))

		for _, a := range accounts {
			e, ok := current[a.ID]
			if !ok {
				next[a.ID] = &entry{account: a}
				continue
			}
			// our in-memory stamp may be ahead of a write that failed
			if e.account.LastUsedAt != nil && (a.LastUsedAt == nil || e.account.LastUsedAt.After(*a.LastUsedAt)) {
				a.LastUsedAt = e.account.LastUsedAt
			}
			e.account = a
			e.stale = false
			next[a.ID] = e
		}
		for id, e := range current {
			if _, ok := next[id]; !ok && e.leased {
				e.stale = true
				next[id] = e
			}
		}
		p.entries[pl] = next
	}

	return errors.Join(errs...)
}

// Acquire leases the least recently used free account of platform. The new
// last-used time is persisted before Acquire returns.
func (p *Pool) Acquire(ctx context.Context, platform models.Platform) (*Lease, error) {
	p.mu.Lock()
	candidates := make([]*entry, 0, len(p.entries[platform]))
	for _, e := range p.entries[platform] {
		if e.account.Active && !e.leased && !e.stale {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		p.mu.Unlock()
		return nil, ErrNoAccountAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		return olderFirst(candidates[i].account, candidates[j].account)
	})
	chosen := candidates[0]

	now := p.clock.Now()
	p.seq++
	chosen.leased = true
	chosen.seq = p.seq
	chosen.account.LastUsedAt = &now
	lease := &Lease{Account: chosen.account, seq: chosen.seq}
	p.mu.Unlock()

	if err := p.store.TouchAccount(ctx, lease.Account.ID, now, ""); err != nil {
		p.log.WithError(err).WarnWithFields("failed to persist account last-used", map[string]interface{}{
			"account_id": lease.Account.ID,
			"platform":   platform.String(),
		})
	}

	p.log.DebugWithFields("account leased", map[string]interface{}{
		"account_id": lease.Account.ID,
		"platform":   platform.String(),
	})
	return lease, nil
}

func olderFirst(a, b models.ScraperAccount) bool {
	switch {
	case a.LastUsedAt == nil && b.LastUsedAt == nil:
		return a.ID < b.ID
	case a.LastUsedAt == nil:
		return true
	case b.LastUsedAt == nil:
		return false
	case a.LastUsedAt.Equal(*b.LastUsedAt):
		return a.ID < b.ID
	default:
		return a.LastUsedAt.Before(*b.LastUsedAt)
	}
}

// Release returns the account. A non-empty sessionHandle is persisted;
// last-used is left as Acquire set it. Releasing a lease twice is a no-op.
func (p *Pool) Release(ctx context.Context, lease *Lease, sessionHandle string) {
	if lease == nil {
		return
	}

	p.mu.Lock()
	platform := lease.Account.Platform
	e, ok := p.entries[platform][lease.Account.ID]
	if !ok || !e.leased || e.seq != lease.seq {
		p.mu.Unlock()
		return
	}
	e.leased = false
	if e.stale {
		delete(p.entries[platform], lease.Account.ID)
	}
	if sessionHandle != "" {
		e.account.SessionHandle = sessionHandle
	}
	var usedAt time.Time
	if e.account.LastUsedAt != nil {
		usedAt = *e.account.LastUsedAt
	}
	p.mu.Unlock()

	if sessionHandle != "" && !usedAt.IsZero() {
		if err := p.store.TouchAccount(ctx, lease.Account.ID, usedAt, sessionHandle); err != nil {
			p.log.WithError(err).WarnWithFields("failed to persist session handle", map[string]interface{}{
				"account_id": lease.Account.ID,
			})
		}
	}
}

// Capacity is the number of active accounts across all platforms
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, entries := range p.entries {
		for _, e := range entries {
			if e.account.Active && !e.stale {
				n++
			}
		}
	}
	return n
}

// CapacityFor is the number of active accounts of one platform
func (p *Pool) CapacityFor(platform models.Platform) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries[platform] {
		if e.account.Active && !e.stale {
			n++
		}
	}
	return n
}

// InUse is the number of leased accounts
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, entries := range p.entries {
		for _, e := range entries {
			if e.leased {
				n++
			}
		}
	}
	return n
}
