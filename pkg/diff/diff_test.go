package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"followwatch/pkg/models"
)

func snapshot(count int, followers []string) models.Snapshot {
	return models.Snapshot{
		TargetID:      1,
		Timestamp:     time.Now(),
		FollowerCount: count,
		Followers:     followers,
	}
}

func TestComputeScenario(t *testing.T) {
	prev := snapshot(2, []string{"a", "b"})
	cur := snapshot(2, []string{"a", "c"})

	d := Compute(&prev, cur)

	assert.Equal(t, []string{"c"}, d.NewFollowers)
	assert.Equal(t, []string{"b"}, d.Unfollowers)
	assert.Equal(t, 0, d.FollowerCountDelta)
	assert.True(t, d.SetsAvailable)
	assert.False(t, d.Initial)
	assert.True(t, d.HasChanges())
}

func TestComputeInitialObservation(t *testing.T) {
	cur := snapshot(42, []string{"a", "b", "c"})
	cur.FollowingCount = 7

	d := Compute(nil, cur)

	assert.True(t, d.Initial)
	assert.Empty(t, d.NewFollowers)
	assert.Empty(t, d.Unfollowers)
	assert.Equal(t, 42, d.FollowerCountDelta)
	assert.Equal(t, 7, d.FollowingCountDelta)
	assert.False(t, d.HasChanges())
}

func TestComputeWithoutSets(t *testing.T) {
	prev := snapshot(100, nil)
	cur := snapshot(90, []string{"a"})

	d := Compute(&prev, cur)

	assert.False(t, d.SetsAvailable)
	assert.Empty(t, d.NewFollowers)
	assert.Empty(t, d.Unfollowers)
	assert.Equal(t, -10, d.FollowerCountDelta)
	assert.True(t, d.HasChanges())
}

func TestComputeCountsAndSetsAreIndependent(t *testing.T) {
	// Counts say nothing changed, sets say one swap happened.
	prev := snapshot(500, []string{"x"})
	cur := snapshot(500, []string{"y"})

	d := Compute(&prev, cur)

	assert.Equal(t, 0, d.FollowerCountDelta)
	assert.Equal(t, []string{"y"}, d.NewFollowers)
	assert.Equal(t, []string{"x"}, d.Unfollowers)
}

func TestComputeSetProperties(t *testing.T) {
	cases := []struct {
		prev, cur []string
	}{
		{[]string{}, []string{"a"}},
		{[]string{"a"}, []string{}},
		{[]string{"a", "b", "c"}, []string{"b", "c", "d", "e"}},
		{[]string{"a", "a", "b"}, []string{"b", "b"}},
		{[]string{"same"}, []string{"same"}},
	}

	for _, c := range cases {
		prev := snapshot(len(c.prev), c.prev)
		cur := snapshot(len(c.cur), c.cur)
		d := Compute(&prev, cur)

		prevSet := toSet(c.prev)
		curSet := toSet(c.cur)

		for _, id := range d.NewFollowers {
			assert.Contains(t, curSet, id)
			assert.NotContains(t, prevSet, id)
		}
		for _, id := range d.Unfollowers {
			assert.Contains(t, prevSet, id)
			assert.NotContains(t, curSet, id)
		}
		for id := range curSet {
			if _, ok := prevSet[id]; !ok {
				assert.Contains(t, d.NewFollowers, id)
			}
		}
		for id := range prevSet {
			if _, ok := curSet[id]; !ok {
				assert.Contains(t, d.Unfollowers, id)
			}
		}

		unf := toSet(d.Unfollowers)
		for _, id := range d.NewFollowers {
			assert.NotContains(t, unf, id)
		}
	}
}

func TestComputeFollowingSets(t *testing.T) {
	prev := models.Snapshot{FollowingCount: 2, Following: []string{"p", "q"}}
	cur := models.Snapshot{FollowingCount: 1, Following: []string{"q"}}

	d := Compute(&prev, cur)

	assert.True(t, d.FollowingSetsAvailable)
	assert.False(t, d.SetsAvailable)
	assert.Empty(t, d.NewFollowing)
	assert.Equal(t, []string{"p"}, d.Unfollowed)
	assert.Equal(t, -1, d.FollowingCountDelta)
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
