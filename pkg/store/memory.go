package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"followwatch/pkg/models"
)

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu        sync.Mutex
	clock     models.Clock
	targets   map[int64]models.TrackedTarget
	accounts  map[int64]models.ScraperAccount
	snapshots map[int64][]models.Snapshot
	nextID    int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:     models.RealClock{},
		targets:   make(map[int64]models.TrackedTarget),
		accounts:  make(map[int64]models.ScraperAccount),
		snapshots: make(map[int64][]models.Snapshot),
	}
}

// SetClock overrides the clock used for creation times
func (m *MemoryStore) SetClock(c models.Clock) {
	m.mu.Lock()
	m.clock = c
	m.mu.Unlock()
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func cloneTarget(t models.TrackedTarget) models.TrackedTarget {
	t.LastCheckedAt = copyTime(t.LastCheckedAt)
	return t
}

func cloneAccount(a models.ScraperAccount) models.ScraperAccount {
	a.LastUsedAt = copyTime(a.LastUsedAt)
	return a
}

func cloneSnapshot(s models.Snapshot) models.Snapshot {
	s.Followers = copyIDs(s.Followers)
	s.Following = copyIDs(s.Following)
	return s
}

func (m *MemoryStore) sortedTargets(keep func(models.TrackedTarget) bool) []models.TrackedTarget {
	out := []models.TrackedTarget{}
	for _, t := range m.targets {
		if keep(t) {
			out = append(out, cloneTarget(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListActiveTargets implements Store
func (m *MemoryStore) ListActiveTargets(ctx context.Context) ([]models.TrackedTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedTargets(func(t models.TrackedTarget) bool { return t.Active }), nil
}

// GetTarget implements Store
func (m *MemoryStore) GetTarget(ctx context.Context, id int64) (*models.TrackedTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, fmt.Errorf("target %d: %w", id, ErrNotFound)
	}
	t = cloneTarget(t)
	return &t, nil
}

// SetTargetLastChecked implements Store
func (m *MemoryStore) SetTargetLastChecked(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return fmt.Errorf("target %d: %w", id, ErrNotFound)
	}
	t.LastCheckedAt = &at
	m.targets[id] = t
	return nil
}

// AddSnapshot implements Store
func (m *MemoryStore) AddSnapshot(ctx context.Context, s models.Snapshot) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.targets[s.TargetID]; !ok {
		return models.Snapshot{}, fmt.Errorf("target %d: %w", s.TargetID, ErrNotFound)
	}

	existing := m.snapshots[s.TargetID]
	var last time.Time
	if len(existing) > 0 {
		last = existing[len(existing)-1].Timestamp
	}
	s.Timestamp = nextTimestamp(s.Timestamp, last, len(existing) > 0)
	s.ID = m.id()
	s = cloneSnapshot(s)

	m.snapshots[s.TargetID] = append(existing, s)
	return cloneSnapshot(s), nil
}

// LastTwoSnapshots implements Store
func (m *MemoryStore) LastTwoSnapshots(ctx context.Context, targetID int64) ([]models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.snapshots[targetID]
	out := []models.Snapshot{}
	for i := len(all) - 1; i >= 0 && len(out) < 2; i-- {
		out = append(out, cloneSnapshot(all[i]))
	}
	return out, nil
}

// SnapshotCount returns how many snapshots exist for a target
func (m *MemoryStore) SnapshotCount(targetID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots[targetID])
}

func (m *MemoryStore) sortedAccounts(keep func(models.ScraperAccount) bool) []models.ScraperAccount {
	out := []models.ScraperAccount{}
	for _, a := range m.accounts {
		if keep(a) {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListAccounts implements Store
func (m *MemoryStore) ListAccounts(ctx context.Context, platform models.Platform) ([]models.ScraperAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedAccounts(func(a models.ScraperAccount) bool { return a.Platform == platform }), nil
}

// TouchAccount implements Store
func (m *MemoryStore) TouchAccount(ctx context.Context, id int64, usedAt time.Time, sessionHandle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	a.LastUsedAt = &usedAt
	if sessionHandle != "" {
		a.SessionHandle = sessionHandle
	}
	m.accounts[id] = a
	return nil
}

// AddTarget implements Store
func (m *MemoryStore) AddTarget(ctx context.Context, t models.TrackedTarget) (models.TrackedTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.targets {
		if existing.OwnerID == t.OwnerID && existing.Platform == t.Platform && existing.ProfileURL == t.ProfileURL {
			return models.TrackedTarget{}, fmt.Errorf("target %s: %w", t.ProfileURL, ErrDuplicate)
		}
	}
	t.ID = m.id()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.clock.Now()
	}
	t = cloneTarget(t)
	m.targets[t.ID] = t
	return cloneTarget(t), nil
}

// ListTargets implements Store; an empty ownerID lists every target
func (m *MemoryStore) ListTargets(ctx context.Context, ownerID string) ([]models.TrackedTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedTargets(func(t models.TrackedTarget) bool {
		return ownerID == "" || t.OwnerID == ownerID
	}), nil
}

// SetTargetActive implements Store
func (m *MemoryStore) SetTargetActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return fmt.Errorf("target %d: %w", id, ErrNotFound)
	}
	t.Active = active
	m.targets[id] = t
	return nil
}

// DeleteTarget implements Store
func (m *MemoryStore) DeleteTarget(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return fmt.Errorf("target %d: %w", id, ErrNotFound)
	}
	delete(m.targets, id)
	delete(m.snapshots, id)
	return nil
}

// AddAccount implements Store
func (m *MemoryStore) AddAccount(ctx context.Context, a models.ScraperAccount) (models.ScraperAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Platform == a.Platform && existing.Username == a.Username {
			return models.ScraperAccount{}, fmt.Errorf("account %s: %w", a.Username, ErrDuplicate)
		}
	}
	a.ID = m.id()
	a = cloneAccount(a)
	m.accounts[a.ID] = a
	return cloneAccount(a), nil
}

// ListAllAccounts implements Store
func (m *MemoryStore) ListAllAccounts(ctx context.Context) ([]models.ScraperAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedAccounts(func(models.ScraperAccount) bool { return true }), nil
}

// SetAccountActive implements Store
func (m *MemoryStore) SetAccountActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	a.Active = active
	m.accounts[id] = a
	return nil
}

// DeleteAccount implements Store
func (m *MemoryStore) DeleteAccount(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	delete(m.accounts, id)
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }
