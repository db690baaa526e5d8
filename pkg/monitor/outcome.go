package monitor

import (
	"time"

	"followwatch/pkg/diff"
	errs "followwatch/pkg/errors"
	"followwatch/pkg/models"
)

// Status is the result class of one check
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailure Status = "failure"
)

// Skip reasons
const (
	SkipInactive   = "inactive"
	SkipInFlight   = "in flight"
	SkipSuperseded = "superseded"
	SkipNotFound   = "not found"
	SkipCancelled  = "cancelled"
)

// Outcome is what one check produced
type Outcome struct {
	Status Status
	Target models.TrackedTarget
	// Snapshot and Diff are set on success
	Snapshot *models.Snapshot
	Diff     *diff.Diff
	// Err is set on failure
	Err        error
	SkipReason string
	Duration   time.Duration
}

// Kind is the error kind of a failure, empty otherwise
func (o Outcome) Kind() errs.Kind {
	if o.Err == nil {
		return ""
	}
	return errs.KindOf(o.Err)
}

func success(t models.TrackedTarget, s models.Snapshot, d diff.Diff) Outcome {
	return Outcome{Status: StatusSuccess, Target: t, Snapshot: &s, Diff: &d}
}

func skipped(t models.TrackedTarget, reason string) Outcome {
	return Outcome{Status: StatusSkipped, Target: t, SkipReason: reason}
}

func failure(t models.TrackedTarget, err error) Outcome {
	return Outcome{Status: StatusFailure, Target: t, Err: err}
}

// BatchReport collects the outcomes of one batch run
type BatchReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	PerTarget  map[int64]Outcome
	// Err is set when the batch could not load its targets
	Err error
}

// Count returns how many outcomes have status
func (r BatchReport) Count(status Status) int {
	n := 0
	for _, o := range r.PerTarget {
		if o.Status == status {
			n++
		}
	}
	return n
}
