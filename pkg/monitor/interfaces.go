package monitor

import (
	"context"
	"time"

	"followwatch/pkg/models"
	"followwatch/pkg/pool"
	"followwatch/pkg/scraper"
)

// Store is the persistence the engine needs
type Store interface {
	ListActiveTargets(ctx context.Context) ([]models.TrackedTarget, error)
	GetTarget(ctx context.Context, id int64) (*models.TrackedTarget, error)
	SetTargetLastChecked(ctx context.Context, id int64, at time.Time) error
	AddSnapshot(ctx context.Context, s models.Snapshot) (models.Snapshot, error)
	LastTwoSnapshots(ctx context.Context, targetID int64) ([]models.Snapshot, error)
}

// AccountPool leases scraper accounts
type AccountPool interface {
	Acquire(ctx context.Context, platform models.Platform) (*pool.Lease, error)
	Release(ctx context.Context, lease *pool.Lease, sessionHandle string)
	Refresh(ctx context.Context) error
	Capacity() int
	CapacityFor(platform models.Platform) int
	InUse() int
}

// Scrapers looks up the scraper of a platform
type Scrapers interface {
	Get(platform models.Platform) (scraper.Scraper, bool)
}
