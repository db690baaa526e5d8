package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"followwatch/pkg/diff"
	"followwatch/pkg/models"
)

var reportTarget = models.TrackedTarget{
	ID:         7,
	Platform:   models.PlatformInstagram,
	ProfileURL: "https://www.instagram.com/gopher",
	Username:   "gopher",
}

func TestRenderInitialReport(t *testing.T) {
	snap := models.Snapshot{
		FollowerCount:  12500,
		FollowingCount: 3,
		Timestamp:      time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	r := RenderReport(reportTarget, snap, diff.Compute(nil, snap))

	assert.Equal(t, "Report for @gopher (Instagram)", r.Title)
	assert.Equal(t, int64(7), r.TargetID)
	assert.Contains(t, r.Body, "Followers: 12,500\n")
	assert.Contains(t, r.Body, "Following: 3\n")
	assert.Contains(t, r.Body, "Last checked: 2024-01-15 10:30 UTC")
	assert.Contains(t, r.Body, "First check recorded")
	assert.False(t, r.Failure)
}

func TestRenderChangeReport(t *testing.T) {
	prev := models.Snapshot{FollowerCount: 2, Followers: []string{"a", "b"}}
	cur := models.Snapshot{FollowerCount: 3, Followers: []string{"a", "c", "d"}}

	r := RenderReport(reportTarget, cur, diff.Compute(&prev, cur))

	assert.Contains(t, r.Body, "Followers: 3 (+1)")
	assert.Contains(t, r.Body, "New followers (2):\nc\nd")
	assert.Contains(t, r.Body, "Unfollowers (1):\nb")
	assert.NotContains(t, r.Body, "No changes")
	assert.False(t, strings.HasSuffix(r.Body, "\n"))
}

func TestRenderNoChanges(t *testing.T) {
	snap := models.Snapshot{FollowerCount: 5}
	r := RenderReport(reportTarget, snap, diff.Compute(&snap, snap))
	assert.Contains(t, r.Body, "No changes since the last check.")
}

func TestRenderCountsOnlyChange(t *testing.T) {
	prev := models.Snapshot{FollowerCount: 100}
	cur := models.Snapshot{FollowerCount: 90}
	r := RenderReport(reportTarget, cur, diff.Compute(&prev, cur))

	assert.Contains(t, r.Body, "Followers: 90 (-10)")
	assert.Contains(t, r.Body, "only counts changed")
}

func TestRenderFailureIsGeneric(t *testing.T) {
	target := reportTarget
	target.Username = ""
	r := RenderFailure(target)

	assert.True(t, r.Failure)
	assert.Equal(t, "Report for https://www.instagram.com/gopher (Instagram)", r.Title)
	assert.Contains(t, r.Body, "Could not generate a report")
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", formatCount(0))
	assert.Equal(t, "999", formatCount(999))
	assert.Equal(t, "1,000", formatCount(1000))
	assert.Equal(t, "1,234,567", formatCount(1234567))
	assert.Equal(t, "-12,000", formatCount(-12000))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "never", FormatTime(nil))
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-15 10:30 UTC", FormatTime(&ts))
}
