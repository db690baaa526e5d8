package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"followwatch/pkg/diff"
	"followwatch/pkg/models"
	"followwatch/pkg/notify"
)

const timeLayout = "2006-01-02 15:04 MST"

// RenderReport formats a successful check for the target owner
func RenderReport(target models.TrackedTarget, snap models.Snapshot, d diff.Diff) notify.Report {
	var b strings.Builder

	fmt.Fprintf(&b, "Followers: %s%s\n", formatCount(snap.FollowerCount), deltaSuffix(d, d.FollowerCountDelta))
	fmt.Fprintf(&b, "Following: %s%s\n", formatCount(snap.FollowingCount), deltaSuffix(d, d.FollowingCountDelta))
	fmt.Fprintf(&b, "Last checked: %s\n", snap.Timestamp.UTC().Format(timeLayout))

	if d.Initial {
		b.WriteString("\nFirst check recorded. No changes yet.")
		return notify.Report{TargetID: target.ID, Title: reportTitle(target), Body: b.String()}
	}

	sections := []struct {
		label string
		ids   []string
	}{
		{"New followers", d.NewFollowers},
		{"Unfollowers", d.Unfollowers},
		{"Newly following", d.NewFollowing},
		{"No longer following", d.Unfollowed},
	}
	listed := false
	for _, s := range sections {
		if len(s.ids) == 0 {
			continue
		}
		listed = true
		fmt.Fprintf(&b, "\n%s (%d):\n%s\n", s.label, len(s.ids), strings.Join(s.ids, "\n"))
	}

	if !d.HasChanges() {
		b.WriteString("\nNo changes since the last check.")
	} else if !listed && !d.SetsAvailable {
		b.WriteString("\nFollower lists unavailable; only counts changed.")
	}

	return notify.Report{TargetID: target.ID, Title: reportTitle(target), Body: strings.TrimRight(b.String(), "\n")}
}

// RenderFailure is the generic notice sent when a check fails. It never
// carries the failure detail.
func RenderFailure(target models.TrackedTarget) notify.Report {
	return notify.Report{
		TargetID: target.ID,
		Title:    reportTitle(target),
		Body:     "Could not generate a report this time. The next scheduled check will try again.",
		Failure:  true,
	}
}

func reportTitle(t models.TrackedTarget) string {
	return fmt.Sprintf("Report for %s (%s)", t.DisplayName(), t.Platform.Title())
}

func deltaSuffix(d diff.Diff, delta int) string {
	if d.Initial || delta == 0 {
		return ""
	}
	return fmt.Sprintf(" (%+d)", delta)
}

// formatCount groups digits by thousands
func formatCount(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// FormatTime renders an optional timestamp for listings
func FormatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(timeLayout)
}
