// Package diff computes the change between two snapshots of the same target.
//
// Count deltas and set differences are independent signals: a scraper that
// only returns counts yields a nonzero delta alongside empty sets, and the
// two are never reconciled.
package diff

import (
	"sort"

	"followwatch/pkg/models"
)

// Diff is the derived change between a previous and a current snapshot
type Diff struct {
	NewFollowers        []string `json:"new_followers"`
	Unfollowers         []string `json:"unfollowers"`
	NewFollowing        []string `json:"new_following"`
	Unfollowed          []string `json:"unfollowed"`
	FollowerCountDelta  int      `json:"follower_count_delta"`
	FollowingCountDelta int      `json:"following_count_delta"`

	// Initial is set for the first-ever snapshot of a target
	Initial bool `json:"initial"`
	// SetsAvailable is false when either side lacks follower identifiers
	SetsAvailable bool `json:"sets_available"`
	// FollowingSetsAvailable is the same flag for the following set
	FollowingSetsAvailable bool `json:"following_sets_available"`
}

// HasChanges reports whether anything moved between the two snapshots
func (d Diff) HasChanges() bool {
	if d.Initial {
		return false
	}
	return len(d.NewFollowers) > 0 || len(d.Unfollowers) > 0 ||
		len(d.NewFollowing) > 0 || len(d.Unfollowed) > 0 ||
		d.FollowerCountDelta != 0 || d.FollowingCountDelta != 0
}

// Compute diffs current against previous. A nil previous is an initial
// observation: empty change sets and deltas equal to the current counts.
func Compute(previous *models.Snapshot, current models.Snapshot) Diff {
	d := Diff{
		NewFollowers: []string{},
		Unfollowers:  []string{},
		NewFollowing: []string{},
		Unfollowed:   []string{},
	}

	if previous == nil {
		d.Initial = true
		d.FollowerCountDelta = current.FollowerCount
		d.FollowingCountDelta = current.FollowingCount
		return d
	}

	d.FollowerCountDelta = current.FollowerCount - previous.FollowerCount
	d.FollowingCountDelta = current.FollowingCount - previous.FollowingCount

	if previous.HasFollowerSet() && current.HasFollowerSet() {
		d.SetsAvailable = true
		d.NewFollowers = subtract(current.Followers, previous.Followers)
		d.Unfollowers = subtract(previous.Followers, current.Followers)
	}

	if previous.HasFollowingSet() && current.HasFollowingSet() {
		d.FollowingSetsAvailable = true
		d.NewFollowing = subtract(current.Following, previous.Following)
		d.Unfollowed = subtract(previous.Following, current.Following)
	}

	return d
}

// subtract returns a − b as a sorted, de-duplicated slice
func subtract(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, id := range b {
		exclude[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(a))
	out := []string{}
	for _, id := range a {
		if _, skip := exclude[id]; skip {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
