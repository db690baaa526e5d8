// Package testutil holds helpers shared by package tests.
package testutil

import (
	"sync/atomic"
	"time"
)

// Epoch is the instant every frozen test clock starts at
var Epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// ManualClock only moves when a test moves it
type ManualClock struct {
	nanos atomic.Int64
}

// NewManualClock starts a clock at t
func NewManualClock(t time.Time) *ManualClock {
	c := &ManualClock{}
	c.nanos.Store(t.UnixNano())
	return c
}

// FrozenClock starts a clock at Epoch
func FrozenClock() *ManualClock {
	return NewManualClock(Epoch)
}

// Now implements models.Clock
func (c *ManualClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}
