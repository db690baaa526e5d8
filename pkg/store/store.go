// Package store persists tracked targets, scraper accounts and snapshots.
//
// Two implementations share one contract: SQLiteStore for the daemon and
// MemoryStore for tests and dry runs. Snapshots are append-only and their
// timestamps strictly increase per target in creation order.
package store

import (
	"context"
	"errors"
	"time"

	"followwatch/pkg/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key is already taken
var ErrDuplicate = errors.New("already exists")

// Store is the persistence surface of the monitor and the admin CLI
type Store interface {
	ListActiveTargets(ctx context.Context) ([]models.TrackedTarget, error)
	GetTarget(ctx context.Context, id int64) (*models.TrackedTarget, error)
	SetTargetLastChecked(ctx context.Context, id int64, at time.Time) error

	// AddSnapshot appends s and returns it with its id and stored timestamp
	AddSnapshot(ctx context.Context, s models.Snapshot) (models.Snapshot, error)
	// LastTwoSnapshots returns up to two snapshots, most recent first
	LastTwoSnapshots(ctx context.Context, targetID int64) ([]models.Snapshot, error)

	ListAccounts(ctx context.Context, platform models.Platform) ([]models.ScraperAccount, error)
	// TouchAccount sets last-used and, when sessionHandle is not empty, the session handle
	TouchAccount(ctx context.Context, id int64, usedAt time.Time, sessionHandle string) error

	AddTarget(ctx context.Context, t models.TrackedTarget) (models.TrackedTarget, error)
	ListTargets(ctx context.Context, ownerID string) ([]models.TrackedTarget, error)
	SetTargetActive(ctx context.Context, id int64, active bool) error
	DeleteTarget(ctx context.Context, id int64) error

	AddAccount(ctx context.Context, a models.ScraperAccount) (models.ScraperAccount, error)
	ListAllAccounts(ctx context.Context) ([]models.ScraperAccount, error)
	SetAccountActive(ctx context.Context, id int64, active bool) error
	DeleteAccount(ctx context.Context, id int64) error

	Close() error
}

// SecretResolver fills in account credentials kept outside the database
type SecretResolver interface {
	Get(platform, username string) (string, error)
}

// nextTimestamp keeps snapshot timestamps strictly increasing
func nextTimestamp(want time.Time, last time.Time, hasLast bool) time.Time {
	if hasLast && !want.After(last) {
		return last.Add(time.Nanosecond)
	}
	return want
}
